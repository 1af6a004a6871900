package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cppla/queridometro/models"
	"github.com/cppla/queridometro/tally"
)

var (
	ErrIncompleteBallot  = errors.New("incomplete ballot")
	ErrAlreadyVoted      = errors.New("already voted today")
	ErrPersistence       = errors.New("persistence failure")
	ErrNotOnRoster       = errors.New("name is not on the roster")
	ErrNeedsRegistration = errors.New("password not set yet")
	ErrInvalidCredential = errors.New("invalid name or password")
	ErrAlreadyRegistered = errors.New("password already set")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidDay        = errors.New("invalid day")
	ErrWeakPassword      = errors.New("password too short")
	ErrStaleToken        = errors.New("token predates a credential change")
)

// maxHistoryDays caps History at one year of days.
const maxHistoryDays = 366

// VoteRepository is the row store holding ballot lines.
type VoteRepository interface {
	QueryByDay(ctx context.Context, day string) ([]tally.VoteRecord, error)
	QueryByVoterAndDay(ctx context.Context, voter, day string) ([]tally.VoteRecord, error)
	// InsertBatch writes all records or none. It returns ErrAlreadyVoted when
	// a voter already has records for that day.
	InsertBatch(ctx context.Context, records []tally.VoteRecord) error
	Days(ctx context.Context, limit int) ([]DaySummary, error)
}

// UserRepository stores credentials. Lookups return ErrUserNotFound.
type UserRepository interface {
	LookupUser(ctx context.Context, name string) (*models.User, error)
	// SetInitialCredential stores hash only when none is set yet, otherwise
	// it returns ErrAlreadyRegistered.
	SetInitialCredential(ctx context.Context, name, hash string) error
	UpdateCredential(ctx context.Context, name, hash string) error
	ClearCredential(ctx context.Context, name string) error
}

// Hasher turns passwords into stored credentials and verifies them.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// DaySummary is one entry of the voting history.
type DaySummary struct {
	Day       string `json:"day"`
	Voters    int    `json:"voters"`
	Disclosed bool   `json:"disclosed"`
}

type EmojiCount struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

type PersonTally struct {
	Name   string       `json:"name"`
	Counts []EmojiCount `json:"counts"`
	Total  int          `json:"total"`
}

// Results is the quorum-gated view of one day. People is empty unless Disclosed.
type Results struct {
	Day        string        `json:"day"`
	VoterCount int           `json:"voter_count"`
	Quorum     int           `json:"quorum"`
	Disclosed  bool          `json:"disclosed"`
	Remaining  int           `json:"remaining"`
	People     []PersonTally `json:"people,omitempty"`
}

type Options struct {
	Roster         tally.Roster
	Palette        tally.Palette
	Quorum         int
	Location       *time.Location
	Now            func() time.Time
	MinPasswordLen int
}

// Queridometro runs the daily voting workflows.
type Queridometro struct {
	votes  VoteRepository
	users  UserRepository
	hasher Hasher
	opts   Options
}

func New(votes VoteRepository, users UserRepository, hasher Hasher, opts Options) *Queridometro {
	if opts.Quorum <= 0 {
		opts.Quorum = tally.DefaultQuorum
	}
	if opts.Location == nil {
		opts.Location = tally.ReferenceZone(tally.DefaultOffsetMinutes)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MinPasswordLen <= 0 {
		opts.MinPasswordLen = 4
	}
	return &Queridometro{votes: votes, users: users, hasher: hasher, opts: opts}
}

func (q *Queridometro) Roster() tally.Roster   { return q.opts.Roster }
func (q *Queridometro) Palette() tally.Palette { return q.opts.Palette }
func (q *Queridometro) Quorum() int            { return q.opts.Quorum }

// Today is the current day key in the reference zone.
func (q *Queridometro) Today() string {
	return tally.DayKey(q.opts.Now(), q.opts.Location)
}

// Session loads today's state for voter. Only the emptiness of the voter's
// records matters.
func (q *Queridometro) Session(ctx context.Context, voter string) (tally.Session, error) {
	day := q.Today()
	records, err := q.votes.QueryByVoterAndDay(ctx, voter, day)
	if err != nil {
		return tally.Session{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return tally.Session{Voter: voter, Day: day, Voted: len(records) > 0}, nil
}

// SubmitBallot persists a complete ballot for the session's voter and day.
func (q *Queridometro) SubmitBallot(ctx context.Context, sess tally.Session, ballot tally.Ballot) error {
	if sess.Voted {
		return ErrAlreadyVoted
	}
	ballot = q.canonicalBallot(ballot)
	if err := tally.ValidateBallot(ballot, q.opts.Roster, q.opts.Palette, sess.Voter); err != nil {
		return fmt.Errorf("%w: %w", ErrIncompleteBallot, err)
	}

	records := tally.Records(ballot, q.opts.Roster, sess.Voter, sess.Day)
	if err := q.votes.InsertBatch(ctx, records); err != nil {
		if errors.Is(err, ErrAlreadyVoted) {
			return ErrAlreadyVoted
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// canonicalBallot rewrites target names to their roster spelling. Names that
// do not resolve, or collide with an already resolved one, are kept verbatim
// so validation reports them.
func (q *Queridometro) canonicalBallot(in tally.Ballot) tally.Ballot {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(tally.Ballot, len(in))
	for _, k := range keys {
		name, ok := q.opts.Roster.Resolve(k)
		if !ok {
			name = k
		}
		if _, taken := out[name]; taken {
			name = k
		}
		out[name] = in[k]
	}
	return out
}

// Results aggregates day and applies the quorum gate.
func (q *Queridometro) Results(ctx context.Context, day string) (*Results, error) {
	if !tally.ValidDay(day) {
		return nil, ErrInvalidDay
	}
	records, err := q.votes.QueryByDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	view := tally.Aggregate(records)

	res := &Results{
		Day:        day,
		VoterCount: view.VoterCount,
		Quorum:     q.opts.Quorum,
		Disclosed:  tally.IsDisclosable(view.VoterCount, q.opts.Quorum),
	}
	if !res.Disclosed {
		res.Remaining = q.opts.Quorum - view.VoterCount
		return res, nil
	}

	emojis := q.opts.Palette.Emojis()
	names := q.opts.Roster.Names()
	var unknown []string
	for target := range view.Counts {
		if !q.opts.Roster.Contains(target) {
			unknown = append(unknown, target)
		}
	}
	sort.Strings(unknown)
	names = append(names, unknown...)

	for _, name := range names {
		pt := PersonTally{Name: name, Counts: make([]EmojiCount, 0, len(emojis))}
		for _, e := range emojis {
			n := view.Count(name, e)
			pt.Counts = append(pt.Counts, EmojiCount{Emoji: e, Count: n})
			pt.Total += n
		}
		for e, n := range view.Counts[name] {
			if !q.opts.Palette.Contains(e) {
				pt.Total += n
			}
		}
		res.People = append(res.People, pt)
	}
	return res, nil
}

// History lists the most recent voting days.
func (q *Queridometro) History(ctx context.Context, limit int) ([]DaySummary, error) {
	if limit <= 0 {
		limit = 30
	}
	limit = min(limit, maxHistoryDays)
	days, err := q.votes.Days(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	for i := range days {
		days[i].Disclosed = tally.IsDisclosable(days[i].Voters, q.opts.Quorum)
	}
	return days, nil
}

// Login checks name and password. Names are matched against the roster
// ignoring case and accents.
func (q *Queridometro) Login(ctx context.Context, name, password string) (*models.User, error) {
	canonical, ok := q.opts.Roster.Resolve(name)
	if !ok {
		return nil, ErrNotOnRoster
	}
	user, err := q.users.LookupUser(ctx, canonical)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrNeedsRegistration
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !user.HasCredential() {
		return nil, ErrNeedsRegistration
	}
	if !q.hasher.Verify(user.PasswordHash, password) {
		return nil, ErrInvalidCredential
	}
	return user, nil
}

// Register completes first access by setting the member's password.
func (q *Queridometro) Register(ctx context.Context, name, password string) (*models.User, error) {
	canonical, ok := q.opts.Roster.Resolve(name)
	if !ok {
		return nil, ErrNotOnRoster
	}
	hash, err := q.hashPassword(password)
	if err != nil {
		return nil, err
	}
	if err := q.users.SetInitialCredential(ctx, canonical, hash); err != nil {
		if errors.Is(err, ErrAlreadyRegistered) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	user, err := q.users.LookupUser(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return user, nil
}

// ChangePassword replaces the credential after verifying the current one and
// returns the updated row. Tokens issued before the change stop validating.
func (q *Queridometro) ChangePassword(ctx context.Context, name, current, next string) (*models.User, error) {
	user, err := q.Login(ctx, name, current)
	if err != nil {
		return nil, err
	}
	hash, err := q.hashPassword(next)
	if err != nil {
		return nil, err
	}
	if err := q.users.UpdateCredential(ctx, user.Name, hash); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	user, err = q.users.LookupUser(ctx, user.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return user, nil
}

// ResetPassword clears a member's credential so the next login goes through
// first access again.
func (q *Queridometro) ResetPassword(ctx context.Context, name string) error {
	canonical, ok := q.opts.Roster.Resolve(name)
	if !ok {
		return ErrNotOnRoster
	}
	if err := q.users.ClearCredential(ctx, canonical); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// CheckToken confirms that a token issued at credential version still
// matches the member's row.
func (q *Queridometro) CheckToken(ctx context.Context, name string, version uint) error {
	user, err := q.users.LookupUser(ctx, name)
	if errors.Is(err, ErrUserNotFound) {
		return ErrStaleToken
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !user.HasCredential() || user.CredentialVersion != version {
		return ErrStaleToken
	}
	return nil
}

func (q *Queridometro) hashPassword(password string) (string, error) {
	if len([]rune(password)) < q.opts.MinPasswordLen {
		return "", ErrWeakPassword
	}
	hash, err := q.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}
