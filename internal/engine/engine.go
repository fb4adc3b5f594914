package engine

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/Fezudo98/cidade-dorme-online/internal/domain/role"
	"github.com/Fezudo98/cidade-dorme-online/internal/events"
	"github.com/Fezudo98/cidade-dorme-online/internal/platform/config"
	"github.com/Fezudo98/cidade-dorme-online/internal/platform/logger"
	"github.com/Fezudo98/cidade-dorme-online/internal/platform/metrics"
)

// Settings is the read-only rule configuration of one match.
type Settings struct {
	MinPlayers         int
	MaxPlayers         int
	NightDuration      time.Duration
	DiscussionDuration time.Duration
	VoteDuration       time.Duration
	ShowdownTimeout    time.Duration
	RoundLimit         int
	Rules              role.Rules
	Catalog            *role.Catalog
	// Seed fixes the match's randomness. Zero seeds from the clock.
	Seed       int64
	OutboxSize int
}

// DefaultSettings returns the standard rules.
func DefaultSettings() Settings {
	return Settings{
		MinPlayers:         5,
		MaxPlayers:         16,
		NightDuration:      60 * time.Second,
		DiscussionDuration: 45 * time.Second,
		VoteDuration:       30 * time.Second,
		ShowdownTimeout:    120 * time.Second,
		RoundLimit:         7,
		Rules:              role.DefaultRules(),
		Catalog:            role.DefaultCatalog(),
		OutboxSize:         64,
	}
}

// SettingsFromConfig builds match settings from the loaded configuration.
func SettingsFromConfig(g config.GameConfig, outboxSize int) Settings {
	s := DefaultSettings()
	s.MinPlayers = g.MinPlayers
	s.MaxPlayers = g.MaxPlayers
	s.NightDuration = g.NightDuration
	s.DiscussionDuration = g.DiscussionDuration
	s.VoteDuration = g.VoteDuration
	s.ShowdownTimeout = g.ShowdownTimeout
	s.RoundLimit = g.RoundLimit
	s.OutboxSize = outboxSize
	return s
}

// Deps are the match's collaborators. Nil fields get no-op implementations.
type Deps struct {
	Notifier Notifier
	Voice    VoiceControl
	Recorder ResultRecorder
	Logger   *logger.Logger
	// Persister, when set, receives every event of the match log.
	Persister events.EventPersister
	Metrics   *metrics.Collector
}

// Engine is the phase controller of one match. Every exported method takes the
// match lock; timer callbacks take it too.
type Engine struct {
	mu sync.Mutex

	settings Settings
	state    *GameState
	rng      *rand.Rand

	registry *ActionRegistry
	night    *NightResolver
	votes    *VoteResolver
	win      *WinEvaluator
	voice    *VoiceSystem
	timer    *Timer
	out      *outbox

	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector
	notifier Notifier
	recorder ResultRecorder

	showdown *showdown
	forced   bool
	recorded bool
	done     chan struct{}
}

// NewEngine seats the players and deals the roles. The match waits in Preparing until Start.
func NewEngine(matchID string, seats []Seat, settings Settings, deps Deps) (*Engine, error) {
	if n := len(seats); n < settings.MinPlayers || n > settings.MaxPlayers {
		return nil, fmt.Errorf("%d players, want %d-%d: %w", n, settings.MinPlayers, settings.MaxPlayers, ErrSeatCount)
	}
	seen := make(map[string]bool, len(seats))
	for _, seat := range seats {
		if seat.ID == "" || seen[seat.ID] {
			return nil, fmt.Errorf("invalid or duplicate seat %q: %w", seat.ID, ErrSeatCount)
		}
		seen[seat.ID] = true
	}
	if settings.Catalog == nil {
		settings.Catalog = role.DefaultCatalog()
	}
	if settings.Rules.Compositions == nil {
		settings.Rules = role.DefaultRules()
	}
	seed := settings.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	roles, err := settings.Rules.Distribute(len(seats), rng)
	if err != nil {
		return nil, fmt.Errorf("failed to distribute roles: %w", err)
	}

	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Voice == nil {
		deps.Voice = nopVoice{}
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	log := deps.Logger.With("match", matchID)

	state := newGameState(matchID, settings.Catalog, seats)
	for i, id := range state.Order {
		state.Players[id].Assign(roles[i])
	}

	e := &Engine{
		settings: settings,
		state:    state,
		rng:      rng,
		registry: NewActionRegistry(),
		eventLog: events.NewEventLog(matchID, deps.Persister),
		logger:   log,
		metrics:  deps.Metrics,
		notifier: deps.Notifier,
		recorder: deps.Recorder,
		out:      newOutbox(settings.OutboxSize, log),
		done:     make(chan struct{}),
	}
	e.timer = NewTimer(&e.mu)
	e.night = NewNightResolver(state, e.registry, rng, log)
	e.votes = NewVoteResolver(state, rng, log)
	e.win = NewWinEvaluator(state, settings.RoundLimit)
	e.voice = NewVoiceSystem(state, deps.Voice, e.out, log)
	e.eventLog.OnPersistError(func(ev events.GameEvent, err error) {
		log.Err("failed to persist event "+string(ev.Type), err)
		deps.Metrics.RecordEventWriteError()
	})

	if h := state.FindRole(role.Headhunter); h != nil {
		var others []string
		for _, id := range state.Order {
			if id != h.ID {
				others = append(others, id)
			}
		}
		state.Contract = &Contract{Hunter: h.ID, Target: others[rng.Intn(len(others))]}
	}
	if pl := state.FindRole(role.Plague); pl != nil {
		state.PlagueID = pl.ID
	}

	assigned := make(map[string]role.Name, len(seats))
	for _, p := range state.All() {
		assigned[p.ID] = p.Role
	}
	e.record(events.GameEvent{Type: events.EventTypeRolesAssigned, Payload: assigned})
	log.Info(fmt.Sprintf("match created with %d players (seed %d)", len(seats), seed))
	return e, nil
}

// Start moves the match from Preparing into the first night.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state
	switch s.Phase {
	case PhaseFinished:
		return ErrMatchFinished
	case PhasePreparing:
	default:
		return fmt.Errorf("match already started: %w", ErrWrongPhase)
	}

	e.record(events.GameEvent{Type: events.EventTypeMatchStarted, Payload: map[string]int{"players": s.Seats}, IsRevealed: true})
	e.metrics.RecordMatch("started")
	for _, p := range s.All() {
		r, err := s.RoleOf(p)
		if err != nil {
			e.abort(err)
			return nil
		}
		e.private(p.ID, "Your role is %s (%s).", r.Name, r.Faction)
	}
	if c := s.Contract; c != nil {
		e.private(c.Hunter, "Your contract: get %s lynched by the town.", s.NameOf(c.Target))
	}
	e.public("The match begins with %d players.", s.Seats)
	e.enterNight()
	return nil
}

func (e *Engine) setPhase(ph Phase) {
	s := e.state
	s.Phase = ph
	e.record(events.GameEvent{
		Type:       events.EventTypePhaseChange,
		Payload:    map[string]interface{}{"phase": ph, "round": s.Round, "day": s.Day},
		IsRevealed: true,
	})
	e.logger.Event(string(events.EventTypePhaseChange), "SYSTEM", fmt.Sprintf("%s (round %d, day %d)", ph, s.Round, s.Day))
}

func (e *Engine) enterNight() {
	s := e.state
	s.Round++
	s.clearDaily()
	s.clearVotes()
	e.setPhase(PhaseNight)
	e.voice.MuteAll()
	e.public("Night %d falls over the city. Everyone, close your eyes...", s.Round)
	if s.Round == 1 {
		e.sendVillainRoster()
	}
	e.timer.Arm(e.settings.NightDuration, e.endNight)
}

func (e *Engine) sendVillainRoster() {
	s := e.state
	villains := s.Faction(role.Villains, true)
	for _, id := range villains {
		var mates []string
		for _, other := range villains {
			if other != id {
				mates = append(mates, fmt.Sprintf("%s (%s)", s.NameOf(other), s.Players[other].Role))
			}
		}
		if len(mates) == 0 {
			e.private(id, "You are alone in this mission.")
			continue
		}
		e.private(id, "Your fellow villains: %s.", strings.Join(mates, ", "))
	}
}

func (e *Engine) endNight() {
	s := e.state
	if s.Phase != PhaseNight {
		return
	}
	started := time.Now()
	out, err := e.night.Resolve()
	if err != nil {
		e.abort(err)
		return
	}
	e.metrics.RecordNight(time.Since(started))
	e.record(events.GameEvent{
		Type:    events.EventTypeNightResolved,
		Payload: map[string]interface{}{"deaths": out.Deaths, "revivals": out.Revivals, "conversions": out.Conversions},
	})
	e.deliver(out.Notices...)
	for _, id := range out.Conversions {
		e.record(events.GameEvent{Type: events.EventTypeConversion, TargetID: id, Payload: map[string]string{"role": string(role.SimpleKiller)}})
	}

	if out.SoloWin != nil {
		for _, d := range out.Deaths {
			e.processDeath(d)
		}
		e.finish(out.SoloWin)
		return
	}

	for _, r := range out.Revivals {
		e.record(events.GameEvent{Type: events.EventTypeRevival, ActorID: r.Reviver, TargetID: r.Target, IsRevealed: true})
		e.public("%s has returned from the dead!", s.NameOf(r.Target))
	}
	var died []DeathRecord
	for _, d := range out.Deaths {
		died = append(died, e.processDeath(d)...)
	}
	if len(died) == 0 && len(out.Revivals) == 0 {
		e.public("The night passed quietly. Nobody died.")
	}

	if s.PendingResolution {
		s.PendingResolution = false
		if l := s.Leader(); l != nil && l.Alive {
			e.finish(e.win.townWin("The Mayor returned and the villains are gone.", false))
		} else {
			e.finish(e.win.Passive())
		}
		return
	}

	t := Trigger{}
	if len(died) == 1 {
		t.Victim = died[0].Victim
	}
	if !e.applyVerdict(e.win.Evaluate(t)) {
		e.enterDay()
	}
}

func (e *Engine) enterDay() {
	s := e.state
	s.Day++
	e.setPhase(PhaseDayDiscussion)
	e.voice.UnmuteLiving()
	e.public("Day %d dawns. %d players remain. Discuss!", s.Day, len(s.Alive()))
	e.timer.Arm(e.settings.DiscussionDuration, e.enterVoting)
}

func (e *Engine) enterVoting() {
	s := e.state
	if s.Phase != PhaseDayDiscussion {
		return
	}
	s.clearVotes()
	e.setPhase(PhaseDayVoting)
	e.public("Voting is open. %d votes are needed to lynch.", s.Threshold())
	e.timer.Arm(e.settings.VoteDuration, e.endVoting)
}

func (e *Engine) endVoting() {
	s := e.state
	if s.Phase != PhaseDayVoting {
		return
	}
	res := e.votes.Resolve()
	e.deliver(res.Notices...)
	s.clearVotes()

	t := Trigger{DayEnd: true}
	switch {
	case res.Lynched != "":
		e.metrics.RecordLynch()
		e.record(events.GameEvent{Type: events.EventTypeLynch, TargetID: res.Lynched, Payload: res.Tally, IsRevealed: true})
		e.processDeath(DeathRecord{Victim: res.Lynched, Cause: CauseLynch})
		t.Victim, t.Lynched = res.Lynched, true
	case res.Pardoned != "":
		e.record(events.GameEvent{Type: events.EventTypePardon, TargetID: res.Pardoned, Payload: res.Tally, IsRevealed: true})
	default:
		e.record(events.GameEvent{Type: events.EventTypeLynch, Payload: res.Tally, IsRevealed: true})
	}
	if !e.applyVerdict(e.win.Evaluate(t)) {
		e.enterNight()
	}
}

// applyVerdict acts on a win check. It reports whether the normal cycle was left.
func (e *Engine) applyVerdict(v Verdict) bool {
	switch {
	case v.Result != nil:
		e.finish(v.Result)
	case v.Defer:
		e.state.PendingResolution = true
		e.public("The villains are gone, but the Mayor lies dead. One more night will decide the town's fate.")
		e.enterNight()
	case v.Confront:
		e.startConfrontation()
	default:
		return false
	}
	return true
}

// abort ends the match on an internal failure. Nothing is recorded.
func (e *Engine) abort(err error) {
	e.logger.Err("match aborted", err)
	e.finish(&WinResult{Title: "Match aborted", Faction: FactionNone, Reason: "An internal error ended the match.", Err: err})
}

func (e *Engine) finish(res *WinResult) {
	s := e.state
	if s.Phase == PhaseFinished {
		return
	}
	e.timer.Cancel()
	e.showdown = nil
	aborted := res.Err != nil || e.forced
	if !aborted {
		e.win.ApplyRiders(res)
	}
	s.Result = res
	e.setPhase(PhaseFinished)
	e.voice.UnmuteAll()

	e.public("%s %s", res.Title, res.Reason)
	if len(res.Winners) > 0 {
		e.public("Winners: %s.", s.Names(res.Winners))
	}
	var reveal []string
	for _, p := range s.All() {
		reveal = append(reveal, fmt.Sprintf("%s (%s)", p.Name, p.Role))
	}
	e.public("Roles: %s.", strings.Join(reveal, ", "))

	if aborted {
		e.record(events.GameEvent{Type: events.EventTypeMatchAborted, Payload: res.Reason, IsRevealed: true})
		e.metrics.RecordMatch("aborted")
	} else {
		e.record(events.GameEvent{Type: events.EventTypeMatchFinished, Payload: res, IsRevealed: true})
		e.metrics.RecordMatch("finished")
		e.recordResult(res)
	}
	e.logger.Info(fmt.Sprintf("match finished: %s (%s)", res.Title, res.Faction))
	e.out.close()
	close(e.done)
}

func (e *Engine) recordResult(res *WinResult) {
	if e.recorded {
		return
	}
	e.recorded = true
	mr := e.buildResult(res)
	recorder, m, log := e.recorder, e.metrics, e.logger
	e.out.send(func(ctx context.Context) {
		err := recorder.RecordMatchResult(ctx, mr)
		m.RecordResultWrite(err)
		if err != nil {
			log.Err("failed to record match result", err)
		}
	})
}

func (e *Engine) buildResult(res *WinResult) MatchResult {
	s := e.state
	mr := MatchResult{
		MatchID:    s.MatchID,
		Title:      res.Title,
		Faction:    res.Faction,
		Reason:     res.Reason,
		Rounds:     s.Round,
		Winners:    append([]string(nil), res.Winners...),
		FinishedAt: time.Now(),
	}
	for _, p := range s.All() {
		mr.Players = append(mr.Players, PlayerResult{
			ID:      p.ID,
			Name:    p.Name,
			Role:    string(p.Role),
			Faction: string(s.FactionOf(p)),
			Alive:   p.Alive,
			Winner:  contains(res.Winners, p.ID),
		})
	}
	return mr
}

func (e *Engine) record(ev events.GameEvent) {
	if ev.Round == 0 {
		ev.Round = e.state.Round
	}
	e.eventLog.Append(ev)
}

func (e *Engine) public(format string, args ...interface{}) {
	e.deliver(Notice{Content: fmt.Sprintf(format, args...)})
}

func (e *Engine) private(playerID, format string, args ...interface{}) {
	e.deliver(Notice{PlayerID: playerID, Content: fmt.Sprintf(format, args...)})
}

// deliver queues notices for the notifier in the order given.
func (e *Engine) deliver(notices ...Notice) {
	matchID, notifier, log := e.state.MatchID, e.notifier, e.logger
	for _, n := range notices {
		n := n
		e.out.send(func(ctx context.Context) {
			var err error
			if n.PlayerID == "" {
				err = notifier.NotifyPublic(ctx, matchID, n.Content)
			} else {
				err = notifier.NotifyPlayer(ctx, n.PlayerID, n.Content)
			}
			if err != nil {
				log.Err("failed to deliver notice", err)
			}
		})
	}
}
