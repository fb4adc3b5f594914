package engine

import (
	"github.com/Fezudo98/cidade-dorme-online/internal/domain/role"
)

// Faction labels used in results.
const (
	FactionTown      = "Town"
	FactionVillains  = "Villains"
	FactionNone      = "None"
	FactionClown     = "Solo (Clown)"
	FactionHunter    = "Solo (Headhunter)"
	FactionLovers    = "Solo (Lovers)"
	FactionCorruptor = "Solo (Corruptor)"
	FactionPlague    = "Solo (Plague)"
)

// Trigger describes the event a win check follows.
type Trigger struct {
	// Victim is the player whose death triggered the check, if any.
	Victim  string
	Lynched bool
	// DayEnd is set after the voting phase resolves; only then can the round limit fire.
	DayEnd bool
}

// Verdict is the evaluator's answer. At most one field is set.
type Verdict struct {
	Result   *WinResult
	Defer    bool
	Confront bool
}

// WinEvaluator checks the ordered win rules.
type WinEvaluator struct {
	state      *GameState
	roundLimit int
}

// NewWinEvaluator creates an evaluator for the match.
func NewWinEvaluator(state *GameState, roundLimit int) *WinEvaluator {
	return &WinEvaluator{state: state, roundLimit: roundLimit}
}

// Evaluate applies the rules in order and stops at the first that fires.
func (w *WinEvaluator) Evaluate(t Trigger) Verdict {
	s := w.state

	if t.Lynched {
		if res := w.lynchWin(t.Victim); res != nil {
			return Verdict{Result: res}
		}
	}

	alive := s.Alive()
	if len(alive) == 0 {
		return Verdict{Result: draw("Nobody survived.")}
	}

	villains := s.Faction(role.Villains, true)
	leader := s.Leader()
	leaderAlive := leader != nil && leader.Alive

	if leader != nil && !leader.Alive && !s.RevivalAvailable() && len(villains) > 0 {
		return Verdict{Result: &WinResult{
			Title:   "Villains Victory!",
			Faction: FactionVillains,
			Winners: s.Faction(role.Villains, false),
			Reason:  "The Mayor is dead and there is no one left to bring them back.",
		}}
	}

	if len(villains) == 0 {
		switch {
		case leaderAlive:
			return Verdict{Result: w.townWin("Every villain has been eliminated.", false)}
		case leader != nil && s.RevivalAvailable():
			return Verdict{Defer: true}
		default:
			return Verdict{Result: w.Passive()}
		}
	}

	if !w.villainVictim(t.Victim) && len(villains) >= len(alive)-len(villains) {
		return Verdict{Result: &WinResult{
			Title:   "Villains Victory!",
			Faction: FactionVillains,
			Winners: villains,
			Reason:  "The villains now match the town in number.",
		}}
	}

	if t.DayEnd && s.Round >= w.roundLimit {
		if leaderAlive {
			return Verdict{Confront: true}
		}
		return Verdict{Result: w.Passive()}
	}
	return Verdict{}
}

func (w *WinEvaluator) lynchWin(victim string) *WinResult {
	s := w.state
	p, ok := s.Player(victim)
	if !ok {
		return nil
	}
	if c := s.Contract; c != nil && c.Target == victim {
		if h, ok := s.Player(c.Hunter); ok && h.Alive && h.Role == role.Headhunter {
			return &WinResult{
				Title:   "Headhunter Victory!",
				Faction: FactionHunter,
				Winners: []string{h.ID},
				Reason:  p.Name + " was lynched, fulfilling the Headhunter's contract.",
			}
		}
	}
	if p.Role == role.Clown {
		return &WinResult{
			Title:   "Clown Victory!",
			Faction: FactionClown,
			Winners: []string{p.ID},
			Reason:  "The town lynched the Clown. The joke is on them.",
		}
	}
	return nil
}

func (w *WinEvaluator) villainVictim(id string) bool {
	if id == "" {
		return false
	}
	p, ok := w.state.Player(id)
	return ok && w.state.FactionOf(p) == role.Villains
}

func (w *WinEvaluator) townWin(reason string, livingOnly bool) *WinResult {
	return &WinResult{
		Title:   "Town Victory!",
		Faction: FactionTown,
		Winners: w.state.Faction(role.Town, livingOnly),
		Reason:  reason,
	}
}

func (w *WinEvaluator) villainsWin(reason string, livingOnly bool) *WinResult {
	return &WinResult{
		Title:   "Villains Victory!",
		Faction: FactionVillains,
		Winners: w.state.Faction(role.Villains, livingOnly),
		Reason:  reason,
	}
}

// Passive resolves a match nobody won outright, in the order lovers, corruptor, town.
func (w *WinEvaluator) Passive() *WinResult {
	s := w.state
	if s.Lovers != nil && s.Players[s.Lovers[0]].Alive && s.Players[s.Lovers[1]].Alive {
		winners := []string{s.Lovers[0], s.Lovers[1]}
		if s.Cupid != "" {
			winners = appendUnique(winners, s.Cupid)
		}
		return &WinResult{
			Title:   "Lovers Victory!",
			Faction: FactionLovers,
			Winners: winners,
			Reason:  "The lovers survived to the end, together.",
		}
	}
	if c := s.LivingRole(role.Corruptor); c != nil {
		return &WinResult{
			Title:   "Corruptor Victory!",
			Faction: FactionCorruptor,
			Winners: []string{c.ID},
			Reason:  "The Corruptor outlasted the town's resolve.",
		}
	}
	if len(s.Faction(role.Town, true)) > 0 {
		return w.townWin("The town held out until the end.", true)
	}
	return draw("No faction reached its goal.")
}

// ApplyRiders adds the bonus winners to a terminal result.
func (w *WinEvaluator) ApplyRiders(res *WinResult) {
	s := w.state

	if witch := s.FindRole(role.Witch); witch != nil && w.witchPivotal(res) {
		res.Winners = appendUnique(res.Winners, witch.ID)
	}

	if s.Lovers != nil {
		l1, l2 := s.Players[s.Lovers[0]], s.Players[s.Lovers[1]]
		if contains(res.Winners, l1.ID) || contains(res.Winners, l2.ID) || (l1.Alive && l2.Alive) {
			for _, l := range []string{l1.ID, l2.ID} {
				if s.Players[l].Alive {
					res.Winners = appendUnique(res.Winners, l)
				}
			}
			if s.Cupid != "" {
				res.Winners = appendUnique(res.Winners, s.Cupid)
			}
		}
	}

	if res.Faction == FactionTown || res.Faction == FactionVillains {
		if g := s.LivingRole(role.Gossip); g != nil {
			res.Winners = appendUnique(res.Winners, g.ID)
		}
	}
}

func (w *WinEvaluator) witchPivotal(res *WinResult) bool {
	s := w.state
	for _, a := range s.Witch {
		t, ok := s.Player(a.Target)
		if !ok {
			continue
		}
		switch a.Kind {
		case role.WitchKill:
			if s.IsLeader(t) && res.Faction == FactionVillains {
				return true
			}
			if s.IsTopVillain(t) && res.Faction == FactionTown {
				return true
			}
		case role.WitchRevive:
			if string(s.FactionOf(t)) == res.Faction {
				return true
			}
		}
	}
	return false
}

func draw(reason string) *WinResult {
	return &WinResult{Title: "Draw", Faction: FactionNone, Reason: reason}
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func appendUnique(ids []string, id string) []string {
	if contains(ids, id) {
		return ids
	}
	return append(ids, id)
}
