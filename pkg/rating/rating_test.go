package rating

import (
	"errors"
	"testing"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
)

func TestApplySequences(t *testing.T) {
	tests := []struct {
		name      string
		start     State
		votes     []int
		wantAvg   float64
		wantVotes int
	}{
		{name: "two votes", votes: []int{4, 2}, wantAvg: 3.0, wantVotes: 2},
		{name: "three votes rounds", votes: []int{4, 2, 2}, wantAvg: 2.7, wantVotes: 3},
		{name: "single vote", votes: []int{5}, wantAvg: 5, wantVotes: 1},
		{name: "existing tour", start: State{Average: 4.8, Votes: 124}, votes: []int{1}, wantAvg: 4.8, wantVotes: 125},
		{name: "half rounds away from zero", start: State{Average: 2, Votes: 3}, votes: []int{3}, wantAvg: 2.3, wantVotes: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyAll(tt.start, tt.votes...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Average != tt.wantAvg || got.Votes != tt.wantVotes {
				t.Fatalf("expected %.1f/%d, got %.2f/%d", tt.wantAvg, tt.wantVotes, got.Average, got.Votes)
			}
		})
	}
}

func TestApplyIsNotIdempotent(t *testing.T) {
	s, _ := Apply(State{}, 4)
	twice, _ := Apply(s, 4)
	if twice.Votes != 2 {
		t.Fatalf("expected the same vote to count twice, got %d votes", twice.Votes)
	}
}

func TestApplyRejectsOutOfRange(t *testing.T) {
	start := State{Average: 3, Votes: 2}
	for _, v := range []int{0, 6, -1} {
		got, err := Apply(start, v)
		if !errors.Is(err, catalog.ErrValidation) {
			t.Fatalf("vote %d: expected validation error, got %v", v, err)
		}
		if got != start {
			t.Fatalf("vote %d: state changed to %+v", v, got)
		}
	}
}

func TestApplyAllStopsAtFirstInvalid(t *testing.T) {
	got, err := ApplyAll(State{}, 5, 9, 1)
	if !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got.Votes != 1 || got.Average != 5 {
		t.Fatalf("expected state after first vote, got %+v", got)
	}
}

func TestParseVote(t *testing.T) {
	if v, err := ParseVote(3); err != nil || v != 3 {
		t.Fatalf("expected 3, got %d (%v)", v, err)
	}
	for _, bad := range []float64{2.5, 0, 5.01, 7} {
		if _, err := ParseVote(bad); !errors.Is(err, catalog.ErrValidation) {
			t.Fatalf("%v: expected validation error, got %v", bad, err)
		}
	}
}

func TestRound1(t *testing.T) {
	cases := map[float64]float64{
		2.6666: 2.7,
		2.25:   2.3,
		-2.25:  -2.3,
		4.04:   4.0,
	}
	for in, want := range cases {
		if got := Round1(in); got != want {
			t.Fatalf("Round1(%v): expected %v, got %v", in, want, got)
		}
	}
}
