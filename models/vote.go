package models

import "time"

// Vote stores one ballot line. The unique index on (voter, target, day) keeps
// a voter from being counted twice for the same person on the same day.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BallotID  string    `gorm:"size:36;index;not null" json:"ballot_id"`
	Voter     string    `gorm:"size:64;not null;uniqueIndex:idx_vote_voter_target_day;index:idx_vote_voter_day" json:"voter"`
	Target    string    `gorm:"size:64;not null;uniqueIndex:idx_vote_voter_target_day" json:"target"`
	Emoji     string    `gorm:"size:32;not null" json:"emoji"`
	Day       string    `gorm:"type:char(10);not null;index;uniqueIndex:idx_vote_voter_target_day;index:idx_vote_voter_day" json:"day"`
	CreatedAt time.Time `json:"created_at"`
}
