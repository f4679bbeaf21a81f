// Package race resolves the first-responder race of a quiz round.
//
// Attempts are collected for a fixed window that opens on the first attempt
// observed locally. Timestamps come from each participant's own clock, so the
// outcome is only as fair as the participants' clock agreement.
package race

import "time"

// DefaultWindow is how long attempts are collected before a winner is declared.
const DefaultWindow = 200 * time.Millisecond

// Attempt is one participant's response attempt for the current question.
type Attempt struct {
	Identity  string `json:"identity"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds on the attempting participant's clock
}

// Resolve returns the attempt with the smallest timestamp. Ties go to the
// attempt observed first, so the result is deterministic for a given slice.
func Resolve(attempts []Attempt) (Attempt, bool) {
	if len(attempts) == 0 {
		return Attempt{}, false
	}
	winner := attempts[0]
	for _, a := range attempts[1:] {
		if a.Timestamp < winner.Timestamp {
			winner = a
		}
	}
	return winner, true
}

// Contains reports whether identity already has an attempt in attempts.
func Contains(attempts []Attempt, identity string) bool {
	for _, a := range attempts {
		if a.Identity == identity {
			return true
		}
	}
	return false
}
