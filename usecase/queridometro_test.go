package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cppla/queridometro/models"
	"github.com/cppla/queridometro/tally"
)

type memVotes struct {
	mu        sync.Mutex
	records   []tally.VoteRecord
	failAll   bool
	lastLimit int
}

func (m *memVotes) QueryByDay(_ context.Context, day string) ([]tally.VoteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errors.New("db down")
	}
	var out []tally.VoteRecord
	for _, r := range m.records {
		if r.Day == day {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memVotes) QueryByVoterAndDay(_ context.Context, voter, day string) ([]tally.VoteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errors.New("db down")
	}
	var out []tally.VoteRecord
	for _, r := range m.records {
		if r.Voter == voter && r.Day == day {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memVotes) InsertBatch(_ context.Context, records []tally.VoteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("db down")
	}
	for _, in := range records {
		for _, r := range m.records {
			if r.Voter == in.Voter && r.Day == in.Day {
				return ErrAlreadyVoted
			}
		}
	}
	m.records = append(m.records, records...)
	return nil
}

func (m *memVotes) Days(_ context.Context, limit int) ([]DaySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	voters := map[string]map[string]struct{}{}
	for _, r := range m.records {
		if voters[r.Day] == nil {
			voters[r.Day] = map[string]struct{}{}
		}
		voters[r.Day][r.Voter] = struct{}{}
	}
	var out []DaySummary
	for d, v := range voters {
		out = append(out, DaySummary{Day: d, Voters: len(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day > out[j].Day })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memUsers struct {
	users map[string]*models.User
}

func (m *memUsers) LookupUser(_ context.Context, name string) (*models.User, error) {
	u, ok := m.users[name]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) SetInitialCredential(_ context.Context, name, hash string) error {
	if u, ok := m.users[name]; ok {
		if u.PasswordHash != "" {
			return ErrAlreadyRegistered
		}
		u.PasswordHash = hash
		u.CredentialVersion++
		return nil
	}
	m.users[name] = &models.User{Name: name, PasswordHash: hash, CredentialVersion: 1}
	return nil
}

func (m *memUsers) UpdateCredential(_ context.Context, name, hash string) error {
	u, ok := m.users[name]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	u.CredentialVersion++
	return nil
}

func (m *memUsers) ClearCredential(ctx context.Context, name string) error {
	return m.UpdateCredential(ctx, name, "")
}

// plainHasher keeps tests fast; bcrypt is covered in utils.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "h:" + p, nil }
func (plainHasher) Verify(h, p string) bool       { return h == "h:"+p }

var testRoster = []string{"Ana", "Bruno", "Carla", "Davi", "Érica", "Fábio"}

func newService(t *testing.T, now time.Time) (*Queridometro, *memVotes, *memUsers) {
	t.Helper()
	votes := &memVotes{}
	users := &memUsers{users: map[string]*models.User{}}
	q := New(votes, users, plainHasher{}, Options{
		Roster:  tally.NewRoster(testRoster),
		Palette: tally.NewPalette(tally.DefaultEmojis),
		Now:     func() time.Time { return now },
	})
	return q, votes, users
}

func fullBallot(q *Queridometro, self string, emoji string) tally.Ballot {
	b := tally.Ballot{}
	for _, name := range q.Roster().Others(self) {
		b[name] = emoji
	}
	return b
}

func TestSubmitBallotHappyPathThenAlreadyVoted(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)
	q, votes, _ := newService(t, now)

	sess, err := q.Session(ctx, "Ana")
	if err != nil || sess.Voted || sess.Day != "2025-03-14" {
		t.Fatalf("Session = %+v, %v", sess, err)
	}
	if err := q.SubmitBallot(ctx, sess, fullBallot(q, "Ana", "🎯")); err != nil {
		t.Fatalf("SubmitBallot: %v", err)
	}
	if len(votes.records) != 5 {
		t.Fatalf("stored %d records, want 5", len(votes.records))
	}

	sess, _ = q.Session(ctx, "Ana")
	if !sess.Voted || sess.State() != "voted" {
		t.Fatalf("session after submit = %+v", sess)
	}
	if err := q.SubmitBallot(ctx, sess, fullBallot(q, "Ana", "🎯")); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("second submit = %v", err)
	}
	// a stale session still hits the store's guard
	stale := tally.Session{Voter: "Ana", Day: "2025-03-14"}
	if err := q.SubmitBallot(ctx, stale, fullBallot(q, "Ana", "🎯")); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("stale submit = %v", err)
	}
}

func TestSubmitBallotIncomplete(t *testing.T) {
	ctx := context.Background()
	q, votes, _ := newService(t, time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC))
	sess, _ := q.Session(ctx, "Ana")

	b := fullBallot(q, "Ana", "❤️")
	delete(b, "Fábio")
	err := q.SubmitBallot(ctx, sess, b)
	if !errors.Is(err, ErrIncompleteBallot) {
		t.Fatalf("err = %v, want ErrIncompleteBallot", err)
	}
	var detail *tally.IncompleteBallotError
	if !errors.As(err, &detail) || len(detail.Missing) != 1 || detail.Missing[0] != "Fábio" {
		t.Fatalf("detail = %+v", detail)
	}
	if len(votes.records) != 0 {
		t.Fatal("incomplete ballot must not be stored")
	}
}

func TestSubmitBallotAcceptsFoldedNames(t *testing.T) {
	ctx := context.Background()
	q, votes, _ := newService(t, time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC))
	sess, _ := q.Session(ctx, "Ana")

	b := tally.Ballot{"bruno": "❤️", "CARLA": "❤️", "Davi": "❤️", "erica": "❤️", "fabio": "❤️"}
	if err := q.SubmitBallot(ctx, sess, b); err != nil {
		t.Fatalf("SubmitBallot: %v", err)
	}
	for _, r := range votes.records {
		if !q.Roster().Contains(r.Target) {
			t.Errorf("stored non-canonical target %q", r.Target)
		}
	}
}

func TestSubmitBallotPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	q, votes, _ := newService(t, time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC))
	votes.failAll = true
	sess := tally.Session{Voter: "Ana", Day: q.Today()}
	err := q.SubmitBallot(ctx, sess, fullBallot(q, "Ana", "❤️"))
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if _, err := q.Session(ctx, "Ana"); !errors.Is(err, ErrPersistence) {
		t.Fatalf("Session err = %v", err)
	}
}

func TestResultsQuorumGate(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newService(t, time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC))
	day := q.Today()

	voters := []string{"Ana", "Bruno", "Carla", "Davi", "Érica"}
	for i, v := range voters {
		sess, _ := q.Session(ctx, v)
		if err := q.SubmitBallot(ctx, sess, fullBallot(q, v, "❤️")); err != nil {
			t.Fatal(err)
		}
		res, err := q.Results(ctx, day)
		if err != nil {
			t.Fatal(err)
		}
		if res.VoterCount != i+1 {
			t.Fatalf("VoterCount = %d, want %d", res.VoterCount, i+1)
		}
		if i < 4 {
			if res.Disclosed || len(res.People) != 0 || res.Remaining != 4-i {
				t.Fatalf("after %d voters: %+v", i+1, res)
			}
			continue
		}
		if !res.Disclosed || res.Remaining != 0 {
			t.Fatalf("must disclose at quorum: %+v", res)
		}
		if len(res.People) != len(testRoster) {
			t.Fatalf("people = %d", len(res.People))
		}
		// Fábio received a ❤️ from every voter
		for _, p := range res.People {
			if p.Name == "Fábio" && (p.Counts[0].Emoji != "❤️" || p.Counts[0].Count != 5 || p.Total != 5) {
				t.Fatalf("Fábio = %+v", p)
			}
			if p.Name == "Ana" && p.Total != 4 {
				t.Fatalf("Ana = %+v", p)
			}
		}
	}
}

func TestResultsRejectsBadDay(t *testing.T) {
	q, _, _ := newService(t, time.Now())
	if _, err := q.Results(context.Background(), "yesterday"); !errors.Is(err, ErrInvalidDay) {
		t.Fatalf("err = %v", err)
	}
}

func TestHistoryMarksDisclosedDays(t *testing.T) {
	ctx := context.Background()
	q, votes, _ := newService(t, time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC))
	for _, v := range testRoster[:5] {
		votes.records = append(votes.records, tally.VoteRecord{Voter: v, Target: "X", Emoji: "❤️", Day: "2025-03-13"})
	}
	votes.records = append(votes.records, tally.VoteRecord{Voter: "Ana", Target: "X", Emoji: "❤️", Day: "2025-03-14"})

	days, err := q.History(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 2 || days[0].Disclosed || !days[1].Disclosed {
		t.Fatalf("History = %+v", days)
	}
}

func TestHistoryLimit(t *testing.T) {
	ctx := context.Background()
	q, votes, _ := newService(t, time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC))

	tests := []struct {
		limit int
		want  int
	}{
		{0, 30},
		{-4, 30},
		{7, 7},
		{366, 366},
		{1000, 366},
	}
	for _, tt := range tests {
		if _, err := q.History(ctx, tt.limit); err != nil {
			t.Fatal(err)
		}
		if votes.lastLimit != tt.want {
			t.Errorf("History(%d) asked the store for %d days, want %d", tt.limit, votes.lastLimit, tt.want)
		}
	}
}

func TestCheckTokenFollowsCredentialVersion(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newService(t, time.Now())

	if err := q.CheckToken(ctx, "Bruno", 1); !errors.Is(err, ErrStaleToken) {
		t.Fatalf("unregistered = %v", err)
	}
	u, err := q.Register(ctx, "Bruno", "1234")
	if err != nil {
		t.Fatal(err)
	}
	if err := q.CheckToken(ctx, "Bruno", u.CredentialVersion); err != nil {
		t.Fatalf("fresh token = %v", err)
	}

	if _, err := q.ChangePassword(ctx, "Bruno", "1234", "abcd"); err != nil {
		t.Fatal(err)
	}
	if err := q.CheckToken(ctx, "Bruno", u.CredentialVersion); !errors.Is(err, ErrStaleToken) {
		t.Fatalf("token from before password change = %v", err)
	}

	u, _ = q.Login(ctx, "Bruno", "abcd")
	if err := q.ResetPassword(ctx, "Bruno"); err != nil {
		t.Fatal(err)
	}
	if err := q.CheckToken(ctx, "Bruno", u.CredentialVersion); !errors.Is(err, ErrStaleToken) {
		t.Fatalf("token from before reset = %v", err)
	}
}

func TestCredentialFlow(t *testing.T) {
	ctx := context.Background()
	q, _, users := newService(t, time.Now())

	if _, err := q.Login(ctx, "Zé", "x"); !errors.Is(err, ErrNotOnRoster) {
		t.Fatalf("outsider login = %v", err)
	}
	if _, err := q.Login(ctx, "ana", "1234"); !errors.Is(err, ErrNeedsRegistration) {
		t.Fatalf("first login = %v", err)
	}
	if _, err := q.Register(ctx, "ana", "12"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak password = %v", err)
	}
	u, err := q.Register(ctx, "ana", "1234")
	if err != nil || u.Name != "Ana" {
		t.Fatalf("Register = %+v, %v", u, err)
	}
	if _, err := q.Register(ctx, "Ana", "9999"); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("second Register = %v", err)
	}
	if _, err := q.Login(ctx, "ANA", "wrong"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("bad password = %v", err)
	}
	if _, err := q.Login(ctx, "Ana", "1234"); err != nil {
		t.Fatalf("login = %v", err)
	}

	changed, err := q.ChangePassword(ctx, "Ana", "1234", "abcd")
	if err != nil || changed.CredentialVersion != u.CredentialVersion+1 {
		t.Fatalf("ChangePassword = %+v, %v", changed, err)
	}
	if _, err := q.Login(ctx, "Ana", "abcd"); err != nil {
		t.Fatalf("login with new password = %v", err)
	}

	if err := q.ResetPassword(ctx, "Ana"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if users.users["Ana"].PasswordHash != "" {
		t.Fatal("reset must clear the hash")
	}
	if _, err := q.Login(ctx, "Ana", "abcd"); !errors.Is(err, ErrNeedsRegistration) {
		t.Fatalf("login after reset = %v", err)
	}
	if err := q.ResetPassword(ctx, "Bruno"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("reset unknown = %v", err)
	}
	if err := q.ResetPassword(ctx, "Zé"); !errors.Is(err, ErrNotOnRoster) {
		t.Fatalf("reset outsider = %v", err)
	}
}

func TestTodayUsesReferenceZone(t *testing.T) {
	q, _, _ := newService(t, time.Date(2025, 3, 15, 2, 0, 0, 0, time.UTC))
	if got := q.Today(); got != "2025-03-14" {
		t.Fatalf("Today = %s", got)
	}
}
