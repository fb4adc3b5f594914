package engine

import (
	"fmt"
	"sort"

	"github.com/Fezudo98/cidade-dorme-online/internal/domain/player"
	"github.com/Fezudo98/cidade-dorme-online/internal/domain/role"
)

// NightAction is one pending night submission.
type NightAction struct {
	Actor    string
	Kind     role.Kind
	Targets  []string
	Priority int
	Seq      int
	// Memo is the target kept for the no-repeat rule once the night resolves.
	Memo string
}

// ActionRegistry holds at most one pending night action per actor.
type ActionRegistry struct {
	actions map[string]*NightAction
	seq     int
}

// NewActionRegistry creates an empty registry.
func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{actions: make(map[string]*NightAction)}
}

// Put stores a, overwriting the actor's earlier submission.
func (r *ActionRegistry) Put(a NightAction) {
	r.seq++
	a.Seq = r.seq
	a.Targets = append([]string(nil), a.Targets...)
	r.actions[a.Actor] = &a
}

// Get returns the actor's pending action.
func (r *ActionRegistry) Get(actor string) (NightAction, bool) {
	a, ok := r.actions[actor]
	if !ok {
		return NightAction{}, false
	}
	return *a, true
}

// Sorted returns copies ordered by priority, then submission order.
func (r *ActionRegistry) Sorted() []NightAction {
	out := make([]NightAction, 0, len(r.actions))
	for _, a := range r.actions {
		c := *a
		c.Targets = append([]string(nil), a.Targets...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Len returns the number of pending actions.
func (r *ActionRegistry) Len() int {
	return len(r.actions)
}

// Clear empties the registry for the next night.
func (r *ActionRegistry) Clear() {
	r.actions = make(map[string]*NightAction)
}

// revivingTarget reports whether another actor already aims a revival at target.
func (r *ActionRegistry) revivingTarget(target, except string) bool {
	for _, a := range r.actions {
		if a.Actor == except {
			continue
		}
		if (a.Kind == role.Revive || a.Kind == role.WitchRevive) && len(a.Targets) > 0 && a.Targets[0] == target {
			return true
		}
	}
	return false
}

func windowOpen(w role.Window, ph Phase) bool {
	switch w {
	case role.NightWindow:
		return ph == PhaseNight
	case role.DayWindow:
		return ph == PhaseDayDiscussion || ph == PhaseDayVoting
	case role.VotingWindow:
		return ph == PhaseDayVoting
	case role.ConfrontationWindow:
		return ph == PhaseConfrontation
	}
	return false
}

// authorize checks everything about the actor: phase, life, role, uses.
func (s *GameState) authorize(actorID string, kind role.Kind) (*player.State, role.Ability, error) {
	if s.Phase == PhaseFinished {
		return nil, role.Ability{}, ErrMatchFinished
	}
	p, ok := s.Player(actorID)
	if !ok {
		return nil, role.Ability{}, fmt.Errorf("actor %s: %w", actorID, ErrUnknownPlayer)
	}

	var ab role.Ability
	if kind == role.Haunt {
		if !p.Ghost || p.Alive {
			return nil, ab, fmt.Errorf("only ghosts can haunt: %w", ErrRoleMismatch)
		}
		ab = role.HauntAbility
	} else {
		if !p.Alive {
			return nil, ab, ErrNotAlive
		}
		r, err := s.RoleOf(p)
		if err != nil {
			return nil, ab, err
		}
		a, ok := r.Ability(kind)
		if !ok {
			return nil, ab, fmt.Errorf("%s cannot %s: %w", r.Name, kind, ErrRoleMismatch)
		}
		ab = a
	}

	if !windowOpen(ab.Window, s.Phase) {
		return nil, ab, fmt.Errorf("%s not allowed during %s: %w", kind, s.Phase, ErrWrongPhase)
	}
	if ab.FirstNightOnly && s.Round != 1 {
		return nil, ab, fmt.Errorf("%s only on the first night: %w", kind, ErrWrongPhase)
	}
	if ab.MinSeats > 0 && s.Seats < ab.MinSeats {
		return nil, ab, fmt.Errorf("%s needs %d seats: %w", kind, ab.MinSeats, ErrRoleMismatch)
	}
	if ab.MaxUses > 0 && p.Used(ab.Counter()) >= ab.MaxUses {
		return nil, ab, fmt.Errorf("%s: %w", kind, ErrAbilityUsed)
	}
	if ab.Window == role.NightWindow && p.Corrupted {
		return nil, ab, ErrCorrupted
	}
	return p, ab, nil
}

// checkTargets applies the ability's arity and pool rules.
func (s *GameState) checkTargets(p *player.State, ab role.Ability, targets []string) error {
	if len(targets) < ab.MinTargets || len(targets) > ab.MaxTargets {
		return fmt.Errorf("%s takes %d-%d targets, got %d: %w", ab.Kind, ab.MinTargets, ab.MaxTargets, len(targets), ErrInvalidTarget)
	}
	seen := make(map[string]bool, len(targets))
	for _, id := range targets {
		t, ok := s.Player(id)
		if !ok {
			return fmt.Errorf("target %s: %w", id, ErrInvalidTarget)
		}
		if seen[id] {
			return fmt.Errorf("targets must be distinct: %w", ErrInvalidTarget)
		}
		seen[id] = true
		switch ab.Pool {
		case role.PoolAlive:
			if !t.Alive {
				return fmt.Errorf("%s is dead: %w", t.Name, ErrInvalidTarget)
			}
		case role.PoolDead:
			if t.Alive {
				return fmt.Errorf("%s is alive: %w", t.Name, ErrInvalidTarget)
			}
		}
		if id == p.ID && !ab.AllowSelf {
			return ErrSelfTarget
		}
	}
	if ab.NoRepeat && len(targets) > 0 && p.LastTarget[ab.Kind] == targets[0] {
		return fmt.Errorf("%s on %s again: %w", ab.Kind, s.NameOf(targets[0]), ErrRepeatTarget)
	}
	return nil
}

// checkSpecial holds the per-kind rules the descriptor cannot express.
func (s *GameState) checkSpecial(p *player.State, ab role.Ability, targets []string, reg *ActionRegistry) error {
	switch ab.Kind {
	case role.Mark:
		want := 2
		if s.Seats <= 5 {
			want = 1
		}
		if len(targets) != want {
			return fmt.Errorf("mark needs exactly %d targets: %w", want, ErrInvalidTarget)
		}
	case role.Possess:
		t := s.Players[targets[0]]
		if s.FactionOf(t) == role.Villains {
			return fmt.Errorf("%s is already a villain: %w", t.Name, ErrInvalidTarget)
		}
	case role.Revive, role.WitchRevive:
		t := s.Players[targets[0]]
		if t.Ghost && !s.IsLeader(t) {
			return fmt.Errorf("%s's soul is bound: %w", t.Name, ErrInvalidTarget)
		}
		if reg.revivingTarget(t.ID, p.ID) {
			return fmt.Errorf("%s is already being revived: %w", t.Name, ErrInvalidTarget)
		}
	case role.Channel:
		if t := s.Players[targets[0]]; t.Ghost {
			return fmt.Errorf("%s is already a ghost: %w", t.Name, ErrInvalidTarget)
		}
	case role.Shoot:
		if s.ShotToday {
			return fmt.Errorf("one shot per day: %w", ErrAbilityUsed)
		}
		if p.ShotsFired >= s.shotLimit() {
			return fmt.Errorf("all %d shots spent: %w", s.shotLimit(), ErrAbilityUsed)
		}
	case role.Sabotage:
		if s.DecreeActive {
			return fmt.Errorf("sabotage blocked by decree: %w", ErrWrongPhase)
		}
	}
	return nil
}

// counterFor returns the use counter an ability of p's role is tracked under.
func (s *GameState) counterFor(p *player.State, k role.Kind) role.Kind {
	if r, err := s.RoleOf(p); err == nil {
		if ab, ok := r.Ability(k); ok {
			return ab.Counter()
		}
	}
	return k
}

func (s *GameState) shotLimit() int {
	if s.Seats <= 6 {
		return 1
	}
	return 2
}
