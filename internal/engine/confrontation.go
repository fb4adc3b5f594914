package engine

import (
	"fmt"

	"github.com/Fezudo98/cidade-dorme-online/internal/domain/role"
	"github.com/Fezudo98/cidade-dorme-online/internal/events"
)

// ShowdownShots is how many shots the Sheriff may have fired by the end of the confrontation.
const ShowdownShots = 2

// showdown is the pending prompt of the confrontation.
type showdown struct {
	step    role.Kind // ShowdownShot or FinalAttack
	chooser string
}

func (e *Engine) startConfrontation() {
	e.setPhase(PhaseConfrontation)
	e.record(events.GameEvent{Type: events.EventTypeConfrontation, IsRevealed: true})
	e.voice.UnmuteLiving()
	e.public("The round limit was reached. The final confrontation begins!")
	e.nextShowdownStep()
}

// nextShowdownStep prompts the Sheriff while shots remain, then the strongest villain.
func (e *Engine) nextShowdownStep() {
	s := e.state
	if sh := s.LivingRole(role.Sheriff); sh != nil && sh.ShotsFired < ShowdownShots {
		e.showdown = &showdown{step: role.ShowdownShot, chooser: sh.ID}
		e.public("The Sheriff takes aim...")
		e.private(sh.ID, "Choose who to shoot (shot %d of %d).", sh.ShotsFired+1, ShowdownShots)
		e.timer.Arm(e.settings.ShowdownTimeout, e.showdownTimeout)
		return
	}

	attacker := e.finalAttacker()
	if attacker == "" {
		e.finish(e.win.Passive())
		return
	}
	if len(s.Faction(role.Town, true)) == 0 {
		e.finish(e.win.villainsWin("No one is left to stand against the villains.", true))
		return
	}
	e.showdown = &showdown{step: role.FinalAttack, chooser: attacker}
	e.public("The villains prepare one final attack...")
	e.private(attacker, "Choose a Town player for the final attack.")
	e.timer.Arm(e.settings.ShowdownTimeout, e.showdownTimeout)
}

func (e *Engine) finalAttacker() string {
	for _, n := range []role.Name{role.AlphaKiller, role.JuniorKiller, role.Accomplice} {
		if p := e.state.LivingRole(n); p != nil {
			return p.ID
		}
	}
	return ""
}

func (e *Engine) showdownTimeout() {
	sd := e.showdown
	if sd == nil || e.state.Phase != PhaseConfrontation {
		return
	}
	switch sd.step {
	case role.ShowdownShot:
		e.state.Players[sd.chooser].ShotsFired++
		e.public("The Sheriff hesitated and lost the shot.")
		e.nextShowdownStep()
	case role.FinalAttack:
		e.finish(e.win.townWin("The villains failed to strike in time.", false))
	}
}

// submitConfrontation handles showdown_shot and final_attack.
func (e *Engine) submitConfrontation(actorID string, kind role.Kind, targets []string) (string, error) {
	s := e.state
	switch s.Phase {
	case PhaseFinished:
		return "", ErrMatchFinished
	case PhaseConfrontation:
	default:
		return "", fmt.Errorf("%s only during the confrontation: %w", kind, ErrWrongPhase)
	}
	sd := e.showdown
	if sd == nil || sd.step != kind || sd.chooser != actorID {
		return "", ErrNotYourTurn
	}
	if len(targets) != 1 {
		return "", fmt.Errorf("%s takes one target: %w", kind, ErrInvalidTarget)
	}
	t, ok := s.Player(targets[0])
	if !ok || !t.Alive {
		return "", fmt.Errorf("target %s: %w", targets[0], ErrInvalidTarget)
	}
	if t.ID == actorID {
		return "", ErrSelfTarget
	}
	if kind == role.FinalAttack && s.FactionOf(t) != role.Town {
		return "", fmt.Errorf("%s is not Town: %w", t.Name, ErrInvalidTarget)
	}

	e.timer.Cancel()
	e.showdown = nil
	if kind == role.ShowdownShot {
		e.showdownShot(actorID, t.ID)
		return fmt.Sprintf("You shot %s.", t.Name), nil
	}
	e.finalAttack(actorID, t.ID)
	return fmt.Sprintf("You attacked %s.", t.Name), nil
}

func (e *Engine) showdownShot(sheriff, target string) {
	s := e.state
	s.Players[sheriff].ShotsFired++
	t := s.Players[target]
	leader, top := s.IsLeader(t), s.IsTopVillain(t)
	e.record(events.GameEvent{Type: events.EventTypeSheriffShot, ActorID: sheriff, TargetID: target, IsRevealed: true})
	e.processDeath(DeathRecord{Victim: target, Cause: CauseShowdownShot, Responsible: []string{sheriff}})

	switch {
	case leader:
		e.finish(e.win.villainsWin("The Sheriff shot the Mayor!", false))
		return
	case top:
		e.finish(e.win.townWin("The Sheriff shot the Alpha Killer!", false))
		return
	}
	v := e.win.Evaluate(Trigger{Victim: target})
	switch {
	case v.Result != nil:
		e.finish(v.Result)
	case v.Defer:
		e.finish(e.win.Passive())
	default:
		e.nextShowdownStep()
	}
}

func (e *Engine) finalAttack(attacker, target string) {
	s := e.state
	leader := s.IsLeader(s.Players[target])
	e.processDeath(DeathRecord{Victim: target, Cause: CauseVillainVote, Responsible: []string{attacker}})
	if leader {
		e.finish(e.win.villainsWin(fmt.Sprintf("%s struck down the Mayor in the final attack!", s.NameOf(attacker)), true))
		return
	}
	e.finish(e.win.townWin("The final attack missed the Mayor. The town stands.", false))
}
