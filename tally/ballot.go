package tally

import (
	"fmt"
	"sort"
	"strings"
)

// IncompleteBallotError lists why a ballot cannot be submitted.
type IncompleteBallotError struct {
	Missing       []string `json:"missing,omitempty"`
	Unexpected    []string `json:"unexpected,omitempty"`
	InvalidEmojis []string `json:"invalid_emojis,omitempty"`
}

func (e *IncompleteBallotError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected targets: "+strings.Join(e.Unexpected, ", "))
	}
	if len(e.InvalidEmojis) > 0 {
		parts = append(parts, "invalid emoji for: "+strings.Join(e.InvalidEmojis, ", "))
	}
	return fmt.Sprintf("incomplete ballot (%s)", strings.Join(parts, "; "))
}

// ValidateBallot checks that ballot has exactly one palette emoji for every
// roster member other than self and nothing else. It returns nil or an
// *IncompleteBallotError.
func ValidateBallot(ballot Ballot, roster Roster, palette Palette, self string) error {
	var bad IncompleteBallotError
	for _, target := range roster.Others(self) {
		emoji, ok := ballot[target]
		if !ok {
			bad.Missing = append(bad.Missing, target)
			continue
		}
		if !palette.Contains(emoji) {
			bad.InvalidEmojis = append(bad.InvalidEmojis, target)
		}
	}
	for target := range ballot {
		if target == self || !roster.Contains(target) {
			bad.Unexpected = append(bad.Unexpected, target)
		}
	}
	if len(bad.Missing) == 0 && len(bad.Unexpected) == 0 && len(bad.InvalidEmojis) == 0 {
		return nil
	}
	sort.Strings(bad.Unexpected)
	return &bad
}

// CanSubmit is the write-side gate: true iff the ballot is complete.
func CanSubmit(ballot Ballot, roster Roster, palette Palette, self string) bool {
	return ValidateBallot(ballot, roster, palette, self) == nil
}

// Records expands a validated ballot into one VoteRecord per target, in
// roster order.
func Records(ballot Ballot, roster Roster, voter, day string) []VoteRecord {
	out := make([]VoteRecord, 0, len(ballot))
	for _, target := range roster.Others(voter) {
		emoji, ok := ballot[target]
		if !ok {
			continue
		}
		out = append(out, VoteRecord{Voter: voter, Target: target, Emoji: emoji, Day: day})
	}
	return out
}
