package engine

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/Fezudo98/cidade-dorme-online/internal/domain/role"
	"github.com/Fezudo98/cidade-dorme-online/internal/platform/logger"
)

func newVotingState(roles ...role.Name) (*GameState, *VoteResolver) {
	s := newTestState(roles...)
	s.Phase = PhaseDayVoting
	return s, NewVoteResolver(s, rand.New(rand.NewSource(1)), logger.Nop())
}

func castAll(t *testing.T, vr *VoteResolver, votes map[string]string) {
	t.Helper()
	for voter, target := range votes {
		if err := vr.CastVote(voter, target); err != nil {
			t.Fatalf("Unexpected error casting %s -> %s: %v", voter, target, err)
		}
	}
}

func TestLynchNeedsMajority(t *testing.T) {
	tests := []struct {
		name    string
		votes   map[string]string
		lynched string
	}{
		{"majority", map[string]string{"p2": "p1", "p3": "p1", "p4": "p1"}, "p1"},
		{"below threshold", map[string]string{"p2": "p1", "p3": "p1", "p4": "p5"}, ""},
		{"no votes", map[string]string{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, vr := newVotingState(role.AlphaKiller, role.Mayor, role.Sheriff, role.Angel, role.Bodyguard)
			castAll(t, vr, tt.votes)
			res := vr.Resolve()
			if res.Threshold != 3 {
				t.Errorf("Expected threshold 3 with 5 alive, got %d", res.Threshold)
			}
			if res.Lynched != tt.lynched {
				t.Errorf("Expected lynched %q, got %q", tt.lynched, res.Lynched)
			}
		})
	}
}

func TestDecreeWeightsAndTie(t *testing.T) {
	s, vr := newVotingState(role.Mayor, role.Sheriff, role.Angel, role.Bodyguard, role.AlphaKiller)
	s.DecreeActive = true
	s.DecreeHolder = "p1"

	castAll(t, vr, map[string]string{"p1": "p5", "p2": "p4", "p3": "p4"})
	res := vr.Resolve()
	if res.Tally["p5"] != DecreeHolderWeight {
		t.Errorf("Expected the holder's vote to weigh %d, got %d", DecreeHolderWeight, res.Tally["p5"])
	}
	if res.Tally["p4"] != 2*DecreeTownWeight {
		t.Errorf("Expected two town votes to weigh %d, got %d", 2*DecreeTownWeight, res.Tally["p4"])
	}
	if res.Lynched != "p4" {
		t.Errorf("Expected p4 lynched, got %q", res.Lynched)
	}

	s.clearVotes()
	castAll(t, vr, map[string]string{"p1": "p5", "p5": "p3", "p2": "p3"})
	res = vr.Resolve()
	if res.Tally["p3"] != 3 || res.Tally["p5"] != 3 {
		t.Errorf("Expected a 3-3 tally, got %v", res.Tally)
	}
	if res.Lynched != "" {
		t.Errorf("Expected a tie to lynch nobody, got %q", res.Lynched)
	}
}

func TestMayorPardonedOnce(t *testing.T) {
	s, vr := newVotingState(role.AlphaKiller, role.Mayor, role.Sheriff, role.Angel, role.Bodyguard)
	votes := map[string]string{"p1": "p2", "p3": "p2", "p4": "p2"}

	castAll(t, vr, votes)
	res := vr.Resolve()
	if res.Pardoned != "p2" || res.Lynched != "" {
		t.Errorf("Expected the first lynch of the Mayor pardoned, got %+v", res)
	}
	if !s.Players["p2"].MayorPardoned {
		t.Errorf("Expected the pardon remembered")
	}

	s.clearVotes()
	castAll(t, vr, votes)
	res = vr.Resolve()
	if res.Lynched != "p2" {
		t.Errorf("Expected the second lynch to go through, got %+v", res)
	}
}

func TestSkipMajority(t *testing.T) {
	_, vr := newVotingState(role.AlphaKiller, role.Mayor, role.Sheriff, role.Angel, role.Bodyguard)
	castAll(t, vr, map[string]string{"p1": "p2"})

	for i, voter := range []string{"p1", "p3", "p4"} {
		majority, err := vr.CastSkip(voter)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if want := i == 2; majority != want {
			t.Errorf("Expected majority=%v after %d skips, got %v", want, i+1, majority)
		}
	}
	res := vr.Resolve()
	if !res.Skipped || res.Lynched != "" {
		t.Errorf("Expected the vote skipped, got %+v", res)
	}
}

func TestFraudPreservesTargetMultiset(t *testing.T) {
	roles := []role.Name{role.Mayor, role.Sheriff, role.Angel, role.Bodyguard, role.AlphaKiller, role.Accomplice, role.Detective}
	votes := map[string]string{"p1": "p5", "p2": "p5", "p3": "p6", "p4": "p6", "p5": "p1", "p6": "p2", "p7": "p5"}

	_, vr := newVotingState(roles...)
	castAll(t, vr, votes)
	plain := vr.Resolve()

	for seed := int64(1); seed <= 10; seed++ {
		s := newTestState(roles...)
		s.Phase = PhaseDayVoting
		s.FraudActive = true
		vr := NewVoteResolver(s, rand.New(rand.NewSource(seed)), logger.Nop())
		castAll(t, vr, votes)
		got := vr.Resolve()

		total := 0
		for target, n := range got.Tally {
			total += n
			if plain.Tally[target] != n {
				t.Errorf("Expected %s to keep %d votes under fraud, got %d (seed %d)", target, plain.Tally[target], n, seed)
			}
		}
		if total != len(votes) {
			t.Errorf("Expected %d votes counted, got %d", len(votes), total)
		}
	}
}

func TestVoteValidation(t *testing.T) {
	s, vr := newVotingState(role.AlphaKiller, role.Mayor, role.Sheriff, role.Angel, role.Bodyguard)
	s.Players["p5"].Kill()

	if err := vr.CastVote("p5", "p1"); !errors.Is(err, ErrNotAlive) {
		t.Errorf("Expected ErrNotAlive for a dead voter, got %v", err)
	}
	if err := vr.CastVote("p1", "p5"); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("Expected ErrInvalidTarget for a dead target, got %v", err)
	}
	if err := vr.CastVote("ghost", "p1"); !errors.Is(err, ErrUnknownPlayer) {
		t.Errorf("Expected ErrUnknownPlayer, got %v", err)
	}
	s.Phase = PhaseDayDiscussion
	if err := vr.CastVote("p1", "p2"); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("Expected ErrWrongPhase outside voting, got %v", err)
	}
}

func TestDeadBallotsAreIgnored(t *testing.T) {
	seven := []role.Name{role.Mayor, role.AlphaKiller, role.Sheriff, role.Angel, role.Bodyguard, role.Detective, role.AuraSeer}
	tests := []struct {
		name string
		dead string
	}{
		{"dead voter", "p5"},
		{"dead target", "p1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, vr := newVotingState(seven...)
			castAll(t, vr, map[string]string{"p2": "p1", "p3": "p1", "p4": "p1", "p5": "p1"})
			s.Players[tt.dead].Kill()
			res := vr.Resolve()
			if res.Lynched != "" {
				t.Errorf("Expected no lynch, got %q (tally %v)", res.Lynched, res.Tally)
			}
		})
	}

	t.Run("dead skipper", func(t *testing.T) {
		s, vr := newVotingState(seven...)
		for _, id := range []string{"p2", "p3", "p4", "p5"} {
			if _, err := vr.CastSkip(id); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		}
		s.Players["p5"].Kill()
		if res := vr.Resolve(); res.Skipped {
			t.Errorf("Expected three living skips to fall short of 4")
		}
	})
}
