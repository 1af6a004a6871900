// Package tally holds the daily aggregation and quorum gate of the Queridômetro.
//
// Everything here is a pure computation over data the caller already fetched:
// no I/O, no shared state. Callers filter records by day before aggregating.
package tally

// DefaultQuorum is the minimum number of distinct voters before a day's
// results may be disclosed.
const DefaultQuorum = 5

// VoteRecord is one anonymous ballot line: voter rated target with emoji on day.
type VoteRecord struct {
	Voter  string `json:"voter"`
	Target string `json:"target"`
	Emoji  string `json:"emoji"`
	Day    string `json:"day"`
}

// Ballot maps every rated target to the emoji chosen for it.
type Ballot map[string]string

// View is the derived per-day tally. It is never stored.
type View struct {
	// Counts maps target -> emoji -> occurrences.
	Counts map[string]map[string]int
	// Voters is the set of distinct voters that contributed at least one record.
	Voters map[string]struct{}
	// VoterCount is len(Voters).
	VoterCount int
}

// Count returns the tally for target/emoji, zero when absent.
func (v View) Count(target, emoji string) int {
	return v.Counts[target][emoji]
}

// Aggregate folds records into a View in a single pass. Records are counted
// as-is: no day re-filtering, no roster validation, no deduplication.
func Aggregate(records []VoteRecord) View {
	view := View{
		Counts: make(map[string]map[string]int),
		Voters: make(map[string]struct{}),
	}
	for _, r := range records {
		byEmoji, ok := view.Counts[r.Target]
		if !ok {
			byEmoji = make(map[string]int)
			view.Counts[r.Target] = byEmoji
		}
		byEmoji[r.Emoji]++
		view.Voters[r.Voter] = struct{}{}
	}
	view.VoterCount = len(view.Voters)
	return view
}

// IsDisclosable reports whether a day with voterCount distinct voters may be shown.
// Disclosure is all-or-nothing for the whole view.
func IsDisclosable(voterCount, quorum int) bool {
	return voterCount >= quorum
}
