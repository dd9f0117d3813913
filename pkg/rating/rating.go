// Package rating keeps a running average for rated entities.
//
// Apply is not idempotent: every call is one distinct vote, so
// applying the same vote twice counts it twice.
package rating

import (
	"math"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
)

const (
	MinVote = 1
	MaxVote = 5
)

// State is the aggregate rating of one entity.
type State struct {
	Average float64 `json:"rating"`
	Votes   int     `json:"votes"`
}

// Apply adds one vote and returns the new state.
func Apply(s State, vote int) (State, error) {
	if vote < MinVote || vote > MaxVote {
		return s, catalog.Invalidf("rating must be between %d and %d, got %d", MinVote, MaxVote, vote)
	}
	if s.Votes < 0 {
		return s, catalog.Invalidf("vote count cannot be negative")
	}
	total := s.Average*float64(s.Votes) + float64(vote)
	return State{
		Average: Round1(total / float64(s.Votes+1)),
		Votes:   s.Votes + 1,
	}, nil
}

// ApplyAll applies votes in order. It stops at the first invalid vote and
// returns the state reached so far.
func ApplyAll(s State, votes ...int) (State, error) {
	var err error
	for _, v := range votes {
		if s, err = Apply(s, v); err != nil {
			return s, err
		}
	}
	return s, nil
}

// ParseVote validates a vote that arrived as a JSON number.
func ParseVote(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, catalog.Invalidf("rating must be an integer, got %v", v)
	}
	if v < MinVote || v > MaxVote {
		return 0, catalog.Invalidf("rating must be between %d and %d, got %v", MinVote, MaxVote, v)
	}
	return int(v), nil
}

// Round1 rounds to one decimal place, halves away from zero.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// Of reads the rating state of a tour.
func Of(t catalog.Tour) State {
	return State{Average: t.Rating, Votes: t.Votes}
}

// Set writes s back into a copy of the tour.
func Set(t catalog.Tour, s State) catalog.Tour {
	t.Rating = s.Average
	t.Votes = s.Votes
	return t
}
