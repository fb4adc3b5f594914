package engine

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/Fezudo98/cidade-dorme-online/internal/domain/role"
	"github.com/Fezudo98/cidade-dorme-online/internal/platform/logger"
)

// Decree vote weights.
const (
	DecreeHolderWeight = 3
	DecreeTownWeight   = 2
)

// LynchResult is the resolved day vote.
type LynchResult struct {
	Skipped   bool           `json:"skipped"`
	Tally     map[string]int `json:"tally"`
	Threshold int            `json:"threshold"`
	Lynched   string         `json:"lynched,omitempty"`
	Pardoned  string         `json:"pardoned,omitempty"`
	Notices   []Notice       `json:"-"`
}

func (r *LynchResult) public(format string, args ...interface{}) {
	r.Notices = append(r.Notices, Notice{Content: fmt.Sprintf(format, args...)})
}

// VoteResolver tallies day votes into at most one lynch.
type VoteResolver struct {
	state  *GameState
	rng    *rand.Rand
	logger *logger.Logger
}

// NewVoteResolver creates a resolver bound to the match state.
func NewVoteResolver(state *GameState, rng *rand.Rand, log *logger.Logger) *VoteResolver {
	return &VoteResolver{state: state, rng: rng, logger: log}
}

// CastVote records voter's lynch vote and clears any skip.
func (vr *VoteResolver) CastVote(voter, target string) error {
	if err := vr.checkVoter(voter); err != nil {
		return err
	}
	t, ok := vr.state.Player(target)
	if !ok || !t.Alive {
		return fmt.Errorf("target %s: %w", target, ErrInvalidTarget)
	}
	delete(vr.state.SkipVotes, voter)
	vr.state.DayVotes[voter] = target
	return nil
}

// CastSkip records a skip vote and clears any lynch vote.
// It reports whether skips reached the majority.
func (vr *VoteResolver) CastSkip(voter string) (bool, error) {
	if err := vr.checkVoter(voter); err != nil {
		return false, err
	}
	delete(vr.state.DayVotes, voter)
	vr.state.SkipVotes[voter] = true
	return len(vr.state.SkipVotes) >= vr.state.Threshold(), nil
}

func (vr *VoteResolver) checkVoter(voter string) error {
	switch vr.state.Phase {
	case PhaseFinished:
		return ErrMatchFinished
	case PhaseDayVoting:
	default:
		return fmt.Errorf("voting is closed: %w", ErrWrongPhase)
	}
	p, ok := vr.state.Player(voter)
	if !ok {
		return fmt.Errorf("voter %s: %w", voter, ErrUnknownPlayer)
	}
	if !p.Alive {
		return ErrNotAlive
	}
	return nil
}

// Resolve tallies the current votes. It does not kill; the caller runs the death hooks.
func (vr *VoteResolver) Resolve() LynchResult {
	s := vr.state
	res := LynchResult{Threshold: s.Threshold(), Tally: make(map[string]int)}

	// Only the living count, on either side of a ballot.
	skips := 0
	for id := range s.SkipVotes {
		if s.Players[id].Alive {
			skips++
		}
	}
	if skips >= res.Threshold {
		res.Skipped = true
		res.public("The majority chose to skip the vote.")
		return res
	}

	// Seat order keeps seeded matches reproducible.
	var voters, targets []string
	for _, id := range s.Order {
		t, ok := s.DayVotes[id]
		if !ok || !s.Players[id].Alive || !s.Players[t].Alive {
			continue
		}
		voters = append(voters, id)
		targets = append(targets, t)
	}
	if len(voters) == 0 {
		res.public("Nobody was lynched.")
		return res
	}
	if s.FraudActive {
		vr.rng.Shuffle(len(targets), func(i, j int) { targets[i], targets[j] = targets[j], targets[i] })
		res.public("The vote results look... strange.")
		vr.logger.Info("fraud active, votes shuffled")
	}

	var order []string
	for i, voter := range voters {
		t := targets[i]
		if _, ok := res.Tally[t]; !ok {
			order = append(order, t)
		}
		res.Tally[t] += vr.weight(voter)
	}
	if s.DecreeActive {
		parts := make([]string, 0, len(order))
		for _, t := range order {
			parts = append(parts, fmt.Sprintf("%s (%d)", s.NameOf(t), res.Tally[t]))
		}
		res.public("Under the decree the final count was: %s.", strings.Join(parts, ", "))
	}

	best, top, tie := "", 0, false
	for _, t := range order {
		switch {
		case res.Tally[t] > top:
			best, top, tie = t, res.Tally[t], false
		case res.Tally[t] == top:
			tie = true
		}
	}
	if top < res.Threshold {
		res.public("The vote did not reach the majority of %d.", res.Threshold)
		return res
	}
	if tie {
		res.public("The vote was tied.")
		return res
	}

	p := s.Players[best]
	if s.IsLeader(p) && !p.MayorPardoned {
		p.MayorPardoned = true
		res.Pardoned = best
		res.public("The vote to lynch %s was overwhelming! But the town reconsidered.", p.Name)
		return res
	}
	res.Lynched = best
	res.public("With %d votes, %s was lynched!", top, p.Name)
	return res
}

func (vr *VoteResolver) weight(voter string) int {
	if !vr.state.DecreeActive {
		return 1
	}
	if voter == vr.state.DecreeHolder {
		return DecreeHolderWeight
	}
	if vr.state.FactionOf(vr.state.Players[voter]) == role.Town {
		return DecreeTownWeight
	}
	return 1
}
