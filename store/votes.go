package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cppla/queridometro/models"
	"github.com/cppla/queridometro/tally"
	"github.com/cppla/queridometro/usecase"
)

// VoteStore persists ballot lines with gorm.
type VoteStore struct {
	db *gorm.DB
}

func NewVoteStore(db *gorm.DB) *VoteStore {
	return &VoteStore{db: db}
}

func (s *VoteStore) QueryByDay(ctx context.Context, day string) ([]tally.VoteRecord, error) {
	var rows []models.Vote
	if err := s.db.WithContext(ctx).Where("day = ?", day).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query votes by day: %w", err)
	}
	return toRecords(rows), nil
}

func (s *VoteStore) QueryByVoterAndDay(ctx context.Context, voter, day string) ([]tally.VoteRecord, error) {
	var rows []models.Vote
	if err := s.db.WithContext(ctx).Where("voter = ? AND day = ?", voter, day).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query votes by voter: %w", err)
	}
	return toRecords(rows), nil
}

// InsertBatch writes one ballot inside a single transaction. If any voter in
// the batch already has lines for that day, or the unique index trips because
// a concurrent submission won, nothing is written and
// usecase.ErrAlreadyVoted is returned.
func (s *VoteStore) InsertBatch(ctx context.Context, records []tally.VoteRecord) error {
	if len(records) == 0 {
		return nil
	}
	ballotID := uuid.NewString()
	rows := make([]models.Vote, 0, len(records))
	type voterDay struct{ voter, day string }
	seen := map[voterDay]struct{}{}
	for _, r := range records {
		rows = append(rows, models.Vote{
			BallotID: ballotID,
			Voter:    r.Voter,
			Target:   r.Target,
			Emoji:    r.Emoji,
			Day:      r.Day,
		})
		seen[voterDay{r.Voter, r.Day}] = struct{}{}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for k := range seen {
			var n int64
			if err := tx.Model(&models.Vote{}).Where("voter = ? AND day = ?", k.voter, k.day).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return usecase.ErrAlreadyVoted
			}
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		if errors.Is(err, usecase.ErrAlreadyVoted) || isDuplicate(err) {
			return usecase.ErrAlreadyVoted
		}
		return fmt.Errorf("insert ballot: %w", err)
	}
	return nil
}

// Days returns the newest days with their distinct voter count.
func (s *VoteStore) Days(ctx context.Context, limit int) ([]usecase.DaySummary, error) {
	var rows []struct {
		Day    string
		Voters int
	}
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Select("day, COUNT(DISTINCT voter) AS voters").
		Group("day").
		Order("day DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list voting days: %w", err)
	}
	out := make([]usecase.DaySummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, usecase.DaySummary{Day: r.Day, Voters: r.Voters})
	}
	return out, nil
}

// DeleteBefore removes every line older than day and reports how many went.
func (s *VoteStore) DeleteBefore(ctx context.Context, day string) (int64, error) {
	res := s.db.WithContext(ctx).Where("day < ?", day).Delete(&models.Vote{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete votes before %s: %w", day, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *VoteStore) CountVotes(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Vote{}).Count(&n).Error
	return n, err
}

func toRecords(rows []models.Vote) []tally.VoteRecord {
	out := make([]tally.VoteRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, tally.VoteRecord{Voter: r.Voter, Target: r.Target, Emoji: r.Emoji, Day: r.Day})
	}
	return out
}

// isDuplicate recognises unique violations from drivers that do not
// translate errors.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
