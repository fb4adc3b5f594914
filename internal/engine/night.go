package engine

import (
	"fmt"
	"math/rand"

	"github.com/Fezudo98/cidade-dorme-online/internal/domain/player"
	"github.com/Fezudo98/cidade-dorme-online/internal/domain/role"
	"github.com/Fezudo98/cidade-dorme-online/internal/platform/logger"
)

// ExterminateThreshold is how many living infected make the Plague win outright.
const ExterminateThreshold = 4

// PossessionLimit is the point count at which a target converts.
const PossessionLimit = 3

type killAttempt struct {
	source      Cause
	responsible []string
}

type visits struct {
	by map[string][]string // target -> visitors
	to map[string][]string // visitor -> targets
}

// NightResolver runs the night pipeline once per night end.
type NightResolver struct {
	state    *GameState
	registry *ActionRegistry
	rng      *rand.Rand
	logger   *logger.Logger
}

// NewNightResolver wires the resolver to the match state.
func NewNightResolver(state *GameState, registry *ActionRegistry, rng *rand.Rand, log *logger.Logger) *NightResolver {
	return &NightResolver{state: state, registry: registry, rng: rng, logger: log}
}

// Resolve consumes every pending action. The state's alive flags are left to the caller's death hooks.
func (nr *NightResolver) Resolve() (*Outcome, error) {
	actions := nr.registry.Sorted()
	if err := nr.validate(actions); err != nil {
		return nil, err
	}
	out := &Outcome{}
	v := buildVisits(actions)

	nr.applyStatusEffects(actions, out)
	suppressKill := nr.resolveUnique(actions, out)
	attempts, order := nr.gatherKills(actions, suppressKill)
	nr.resolveDeaths(attempts, order, out)
	nr.resolveRevivals(actions, out)
	nr.resolveInformation(actions, v, out)
	solo := nr.resolvePlague(actions, out)
	nr.finish(actions)
	if solo {
		return out, nil
	}
	nr.logger.Info(fmt.Sprintf("night %d resolved: %d actions, %d deaths, %d revivals",
		nr.state.Round, len(actions), len(out.Deaths), len(out.Revivals)))
	return out, nil
}

func (nr *NightResolver) validate(actions []NightAction) error {
	for _, a := range actions {
		p, ok := nr.state.Player(a.Actor)
		if !ok {
			return fmt.Errorf("night action by unknown actor %s: %w", a.Actor, ErrInconsistent)
		}
		if _, err := nr.state.RoleOf(p); err != nil {
			return err
		}
		for _, t := range a.Targets {
			if _, ok := nr.state.Player(t); !ok {
				return fmt.Errorf("night action on unknown target %s: %w", t, ErrInconsistent)
			}
		}
	}
	return nil
}

func buildVisits(actions []NightAction) visits {
	v := visits{by: make(map[string][]string), to: make(map[string][]string)}
	for _, a := range actions {
		for _, t := range a.Targets {
			v.by[t] = append(v.by[t], a.Actor)
			v.to[a.Actor] = append(v.to[a.Actor], t)
		}
	}
	return v
}

func (nr *NightResolver) actor(a NightAction) *player.State {
	return nr.state.Players[a.Actor]
}

func (nr *NightResolver) active(a NightAction) bool {
	return !nr.actor(a).Corrupted
}

// applyStatusEffects is stage 1: confuse, reroute, corrupt, protect.
func (nr *NightResolver) applyStatusEffects(actions []NightAction, out *Outcome) {
	for _, a := range actions {
		if a.Kind == role.Confuse {
			nr.state.Players[a.Targets[0]].Confused = true
		}
	}

	for i := range actions {
		a := &actions[i]
		if !nr.actor(*a).Confused || len(a.Targets) != 1 {
			continue
		}
		pool := nr.reroutePool(*a)
		if len(pool) == 0 {
			continue
		}
		a.Targets[0] = pool[nr.rng.Intn(len(pool))]
		out.private(a.Actor, "You feel dizzy... your action went astray.")
	}

	for _, a := range actions {
		switch a.Kind {
		case role.Corrupt:
			nr.state.Players[a.Targets[0]].Corrupted = true
			out.private(a.Targets[0], "Your mind was invaded. Your ability fails tonight.")
		case role.Protect:
			if nr.active(a) {
				nr.state.Players[a.Targets[0]].ProtectedBy = a.Actor
			}
		}
	}
}

// reroutePool is the action's legal pool minus the actor and the original target.
func (nr *NightResolver) reroutePool(a NightAction) []string {
	deadPool := a.Kind == role.Revive || a.Kind == role.WitchRevive
	var pool []string
	for _, p := range nr.state.All() {
		if p.ID == a.Actor || p.ID == a.Targets[0] {
			continue
		}
		if p.Alive != deadPool {
			pool = append(pool, p.ID)
		}
	}
	return pool
}

// resolveUnique is stage 2: possession, pairing and first-night targets.
// It reports whether the villain kill is suppressed tonight.
func (nr *NightResolver) resolveUnique(actions []NightAction, out *Outcome) bool {
	suppress := false
	for _, a := range actions {
		if !nr.active(a) {
			continue
		}
		switch a.Kind {
		case role.Possess:
			suppress = true
			t := nr.state.Players[a.Targets[0]]
			t.PossessionPoints++
			out.private(a.Actor, "You added a possession point to %s. Total: %d/%d.", t.Name, t.PossessionPoints, PossessionLimit)
			if t.PossessionPoints == PossessionLimit {
				nr.convert(t, out)
			}

		case role.Pair:
			l1, l2 := a.Targets[0], a.Targets[1]
			nr.state.Lovers = &[2]string{l1, l2}
			nr.state.Cupid = a.Actor
			out.private(l1, "Cupid struck you! Your love is %s. If one of you dies, so does the other.", nr.state.NameOf(l2))
			out.private(l2, "Cupid struck you! Your love is %s. If one of you dies, so does the other.", nr.state.NameOf(l1))

		case role.FirstTarget:
			t := a.Targets[0]
			switch nr.actor(a).Role {
			case role.JuniorKiller:
				nr.state.JuniorMark = t
			case role.Gossip:
				nr.state.GossipMark = t
			case role.Plague:
				nr.state.PatientZero = t
				nr.state.Players[t].Infected = true
			}
			out.private(a.Actor, "Target chosen: %s.", nr.state.NameOf(t))
		}
	}
	return suppress
}

func (nr *NightResolver) convert(t *player.State, out *Outcome) {
	t.Assign(role.SimpleKiller)
	out.Conversions = append(out.Conversions, t.ID)

	villains := nr.state.Faction(role.Villains, true)
	out.private(t.ID, "Your mind broke. You are now a %s. Your companions: %s.", role.SimpleKiller, nr.state.Names(villains))
	for _, id := range villains {
		if id != t.ID {
			out.private(id, "%s was corrupted and is now a %s.", t.Name, role.SimpleKiller)
		}
	}
}

// gatherKills is stage 3. Witch attempts are gathered before the villain vote.
func (nr *NightResolver) gatherKills(actions []NightAction, suppress bool) (map[string][]killAttempt, []string) {
	attempts := make(map[string][]killAttempt)
	var order []string
	add := func(target string, k killAttempt) {
		if _, ok := attempts[target]; !ok {
			order = append(order, target)
		}
		attempts[target] = append(attempts[target], k)
	}

	tally := make(map[string]int)
	var voteOrder []string
	for _, a := range actions {
		if !nr.active(a) {
			continue
		}
		switch a.Kind {
		case role.VillainVote:
			r, _ := nr.state.RoleOf(nr.actor(a))
			w := r.NightVoteWeight
			if w < 1 {
				w = 1
			}
			t := a.Targets[0]
			if _, ok := tally[t]; !ok {
				voteOrder = append(voteOrder, t)
			}
			tally[t] += w
		case role.WitchKill:
			nr.actor(a).Consume(nr.state.counterFor(nr.actor(a), a.Kind))
			add(a.Targets[0], killAttempt{source: CauseWitchKill, responsible: []string{a.Actor}})
		}
	}

	if suppress || len(tally) == 0 {
		return attempts, order
	}
	best, top, tie := "", 0, false
	for _, t := range voteOrder {
		switch {
		case tally[t] > top:
			best, top, tie = t, tally[t], false
		case tally[t] == top:
			tie = true
		}
	}
	if tie {
		nr.logger.Info("villain vote tied, no kill tonight")
		return attempts, order
	}
	var voters []string
	for _, a := range actions {
		if a.Kind == role.VillainVote && nr.active(a) && a.Targets[0] == best {
			voters = append(voters, a.Actor)
		}
	}
	add(best, killAttempt{source: CauseVillainVote, responsible: voters})
	return attempts, order
}

// guarded reports whether t has a protector still standing this night.
func (nr *NightResolver) guarded(t *player.State, out *Outcome) bool {
	if t.ProtectedBy == "" {
		return false
	}
	prot, ok := nr.state.Players[t.ProtectedBy]
	return ok && prot.Alive && !out.dies(prot.ID)
}

// resolveDeaths is stage 4: protection, sacrifice and the protector's own vest.
func (nr *NightResolver) resolveDeaths(attempts map[string][]killAttempt, order []string, out *Outcome) {
	for _, id := range order {
		t := nr.state.Players[id]
		if !t.Alive || out.dies(id) {
			continue
		}
		for _, k := range attempts[id] {
			if k.source == CauseVillainVote && nr.guarded(t, out) {
				prot := nr.state.Players[t.ProtectedBy]
				if !prot.VestUsed {
					prot.VestUsed = true
					out.private(prot.ID, "You shielded your target from an attack and survived!")
				} else {
					out.Deaths = append(out.Deaths, DeathRecord{Victim: prot.ID, Cause: CauseSacrifice, Responsible: k.responsible})
					out.public("The Bodyguard was found dead in place of %s!", t.Name)
				}
				continue
			}
			if t.Role == role.Bodyguard && !t.VestUsed {
				t.VestUsed = true
				out.private(t.ID, "You were attacked, but your vest saved you!")
				continue
			}
			out.Deaths = append(out.Deaths, DeathRecord{Victim: id, Cause: k.source, Responsible: k.responsible})
			if k.source == CauseWitchKill {
				nr.state.Witch = append(nr.state.Witch, WitchAction{Kind: role.WitchKill, Target: id})
			}
			break
		}
	}
}

// resolveRevivals is the first half of stage 5. The first reviver in pipeline order wins a corpse.
func (nr *NightResolver) resolveRevivals(actions []NightAction, out *Outcome) {
	revived := make(map[string]bool)
	for _, a := range actions {
		if (a.Kind != role.Revive && a.Kind != role.WitchRevive) || !nr.active(a) {
			continue
		}
		id := a.Targets[0]
		t := nr.state.Players[id]
		if t.Alive || revived[id] || out.dies(id) {
			continue
		}
		controller := t.GhostController
		wasLeader := nr.state.IsLeader(t)

		t.Revive()
		revived[id] = true
		nr.actor(a).Consume(nr.state.counterFor(nr.actor(a), a.Kind))
		out.Revivals = append(out.Revivals, Revival{Target: id, Reviver: a.Actor})
		if a.Kind == role.WitchRevive {
			nr.state.Witch = append(nr.state.Witch, WitchAction{Kind: role.WitchRevive, Target: id})
		}

		if wasLeader && controller != "" {
			if m, ok := nr.state.Player(controller); ok {
				m.Refund(role.Channel)
				out.private(m.ID, "The Mayor was revived! Your power is restored.")
			}
		}
	}
}

// resolveInformation is the detective clue and the haunt reports.
func (nr *NightResolver) resolveInformation(actions []NightAction, v visits, out *Outcome) {
	for _, a := range actions {
		if !nr.active(a) {
			continue
		}
		switch a.Kind {
		case role.Mark:
			nr.clue(a, out)
		case role.Haunt:
			nr.haunt(a, v, out)
		}
	}
}

func (nr *NightResolver) clue(a NightAction, out *Outcome) {
	var death *DeathRecord
	for _, t := range a.Targets {
		for i := range out.Deaths {
			if out.Deaths[i].Victim == t {
				death = &out.Deaths[i]
				break
			}
		}
		if death != nil {
			break
		}
	}
	if death == nil {
		out.private(a.Actor, "Your watch was quiet. None of your targets died.")
		return
	}
	victim := nr.state.NameOf(death.Victim)
	if len(death.Responsible) == 0 {
		out.private(a.Actor, "%s was killed, but the killer is a mystery.", victim)
		return
	}

	culprit := death.Responsible[nr.rng.Intn(len(death.Responsible))]
	var innocents []string
	for _, p := range nr.state.Alive() {
		if p.ID == a.Actor || p.ID == culprit || out.dies(p.ID) {
			continue
		}
		innocents = append(innocents, p.ID)
	}
	clue := []string{culprit}
	if len(innocents) > 0 {
		clue = append(clue, innocents[nr.rng.Intn(len(innocents))])
		nr.rng.Shuffle(len(clue), func(i, j int) { clue[i], clue[j] = clue[j], clue[i] })
	}
	out.private(a.Actor, "%s was killed. One of these is involved: %s.", victim, nr.state.Names(clue))
}

func (nr *NightResolver) haunt(a NightAction, v visits, out *Outcome) {
	ghost := nr.actor(a)
	if ghost.GhostController == "" {
		return
	}
	target := a.Targets[0]
	var by []string
	for _, id := range v.by[target] {
		if id != ghost.ID {
			by = append(by, id)
		}
	}
	report := fmt.Sprintf("Haunting report on %s. Visited by: %s. Visited: %s.",
		nr.state.NameOf(target), orNobody(nr.state.Names(by)), orNobody(nr.state.Names(v.to[target])))
	out.private(ghost.ID, "%s", report)
	out.private(ghost.GhostController, "%s", report)
}

func orNobody(s string) string {
	if s == "" {
		return "nobody"
	}
	return s
}

// resolvePlague runs exterminate and then the spread. It reports a solo win.
func (nr *NightResolver) resolvePlague(actions []NightAction, out *Outcome) bool {
	for _, a := range actions {
		if a.Kind != role.Exterminate || !nr.active(a) {
			continue
		}
		nr.actor(a).Consume(role.Exterminate)

		var infected []string
		for _, p := range nr.state.Alive() {
			if p.Infected && !out.dies(p.ID) {
				infected = append(infected, p.ID)
			}
		}
		for _, id := range infected {
			out.Deaths = append(out.Deaths, DeathRecord{Victim: id, Cause: CausePlague, Responsible: []string{a.Actor}})
		}
		if len(infected) >= ExterminateThreshold {
			out.SoloWin = &WinResult{
				Title:   "Plague Victory!",
				Faction: "Solo (Plague)",
				Winners: []string{a.Actor},
				Reason:  fmt.Sprintf("The Plague wiped out %d players!", len(infected)),
				Hint:    "PLAGUE_WIN",
			}
			return true
		}
		if len(infected) > 0 {
			out.public("The plague spread, leaving a trail of destruction!")
		}
	}

	pz, ok := nr.state.Player(nr.state.PatientZero)
	if !ok || !pz.Alive {
		return false
	}
	infect := func(id string) {
		p := nr.state.Players[id]
		if id == nr.state.PlagueID || p.Infected {
			return
		}
		p.Infected = true
		out.private(id, "You feel feverish... you were infected by the Plague!")
	}
	for _, a := range actions {
		for _, t := range a.Targets {
			if t == pz.ID {
				infect(a.Actor)
			}
		}
		if a.Actor == pz.ID {
			for _, t := range a.Targets {
				infect(t)
			}
		}
	}
	return false
}

// finish clears the night transients, commits no-repeat memos and empties the registry.
func (nr *NightResolver) finish(actions []NightAction) {
	for _, a := range actions {
		if a.Memo != "" {
			nr.actor(a).Remember(a.Kind, a.Memo)
		}
	}
	for _, p := range nr.state.All() {
		p.ClearNight()
	}
	nr.registry.Clear()
}
