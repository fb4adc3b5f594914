package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Fezudo98/cidade-dorme-online/internal/domain/role"
	"github.com/Fezudo98/cidade-dorme-online/internal/events"
)

type fakeNotifier struct {
	mu      sync.Mutex
	public  []string
	private map[string][]string
}

func (f *fakeNotifier) NotifyPublic(_ context.Context, _ string, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.public = append(f.public, content)
	return nil
}

func (f *fakeNotifier) NotifyPlayer(_ context.Context, playerID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.private == nil {
		f.private = make(map[string][]string)
	}
	f.private[playerID] = append(f.private[playerID], content)
	return nil
}

func (f *fakeNotifier) publicContains(sub string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.public {
		if strings.Contains(m, sub) {
			return true
		}
	}
	return false
}

type fakeVoice struct {
	mu    sync.Mutex
	muted map[string]bool
	fail  bool
}

func (f *fakeVoice) SetMuted(_ context.Context, playerID string, muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.muted == nil {
		f.muted = make(map[string]bool)
	}
	f.muted[playerID] = muted
	if f.fail {
		return errors.New("voice channel gone")
	}
	return nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	results []MatchResult
}

func (f *fakeRecorder) RecordMatchResult(_ context.Context, r MatchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, r)
	return nil
}

type harness struct {
	*Engine
	notifier *fakeNotifier
	voice    *fakeVoice
	recorder *fakeRecorder
}

// newTestEngine seats p1..pn and overrides the dealt roles with the given ones.
// Timers are long enough that tests drive phases with AdvancePhase.
func newTestEngine(t *testing.T, roles ...role.Name) *harness {
	t.Helper()
	seats := make([]Seat, len(roles))
	for i := range roles {
		seats[i] = Seat{ID: fmt.Sprintf("p%d", i+1), Name: fmt.Sprintf("P%d", i+1)}
	}
	settings := DefaultSettings()
	settings.Seed = 42
	settings.NightDuration = time.Hour
	settings.DiscussionDuration = time.Hour
	settings.VoteDuration = time.Hour
	settings.ShowdownTimeout = time.Hour

	h := &harness{notifier: &fakeNotifier{}, voice: &fakeVoice{}, recorder: &fakeRecorder{}}
	e, err := NewEngine("m1", seats, settings, Deps{Notifier: h.notifier, Voice: h.voice, Recorder: h.recorder})
	if err != nil {
		t.Fatalf("Unexpected error creating engine: %v", err)
	}
	for i, id := range e.state.Order {
		e.state.Players[id].Assign(roles[i])
	}
	e.state.Contract = nil
	e.state.PlagueID = ""
	h.Engine = e
	t.Cleanup(func() {
		_ = e.ForceEnd("test over")
		e.Flush()
	})
	return h
}

func (h *harness) must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func (h *harness) submit(t *testing.T, actor string, kind role.Kind, targets ...string) string {
	t.Helper()
	reply, err := h.Submit(actor, kind, targets...)
	h.must(t, err)
	return reply
}

func (h *harness) phase() Phase {
	return h.Phase().Phase
}

func TestNewEngineSetupErrors(t *testing.T) {
	seats := func(n int) []Seat {
		out := make([]Seat, n)
		for i := range out {
			out[i] = Seat{ID: fmt.Sprintf("p%d", i), Name: "x"}
		}
		return out
	}
	if _, err := NewEngine("m", seats(4), DefaultSettings(), Deps{}); !errors.Is(err, ErrSeatCount) {
		t.Errorf("Expected ErrSeatCount for 4 players, got %v", err)
	}
	if _, err := NewEngine("m", seats(14), DefaultSettings(), Deps{}); !errors.Is(err, role.ErrPoolExhausted) {
		t.Errorf("Expected ErrPoolExhausted for 14 players, got %v", err)
	}
	dup := seats(5)
	dup[4].ID = dup[0].ID
	if _, err := NewEngine("m", dup, DefaultSettings(), Deps{}); !errors.Is(err, ErrSeatCount) {
		t.Errorf("Expected ErrSeatCount for a duplicate seat, got %v", err)
	}
}

func TestNewEngineDealsEveryone(t *testing.T) {
	seats := make([]Seat, 9)
	for i := range seats {
		seats[i] = Seat{ID: fmt.Sprintf("p%d", i+1), Name: fmt.Sprintf("P%d", i+1)}
	}
	settings := DefaultSettings()
	settings.Seed = 9
	e, err := NewEngine("m9", seats, settings, Deps{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer e.ForceEnd("done")
	if e.Phase().Phase != PhasePreparing {
		t.Errorf("Expected Preparing before Start, got %s", e.Phase().Phase)
	}
	for _, p := range e.state.All() {
		if p.Role == "" {
			t.Errorf("Expected %s to have a role", p.ID)
		}
	}
	if h := e.state.FindRole(role.Headhunter); h != nil {
		if e.state.Contract == nil || e.state.Contract.Target == h.ID {
			t.Errorf("Expected a contract on someone else, got %+v", e.state.Contract)
		}
	}
}

func TestFivePlayerMatch(t *testing.T) {
	h := newTestEngine(t, role.Mayor, role.Bodyguard, role.Sheriff, role.Angel, role.AlphaKiller)
	h.must(t, h.Start())
	if h.phase() != PhaseNight || h.Phase().Round != 1 {
		t.Fatalf("Expected night 1, got %+v", h.Phase())
	}

	h.submit(t, "p5", role.VillainVote, "p3")
	h.must(t, h.AdvancePhase())
	if h.phase() != PhaseDayDiscussion {
		t.Fatalf("Expected the day after the night, got %s", h.phase())
	}
	for _, r := range h.Roster() {
		if r.ID == "p3" && (r.Alive || r.Role != role.Sheriff) {
			t.Errorf("Expected the Sheriff dead and revealed, got %+v", r)
		}
		if r.ID == "p1" && r.Role != "" {
			t.Errorf("Expected living roles hidden, got %+v", r)
		}
	}

	h.must(t, h.AdvancePhase())
	if h.phase() != PhaseDayVoting {
		t.Fatalf("Expected voting, got %s", h.phase())
	}
	for _, voter := range []string{"p1", "p2", "p4"} {
		h.must(t, h.Vote(voter, "p5"))
	}
	h.must(t, h.AdvancePhase())

	res := h.Result()
	if res == nil || res.Faction != FactionTown {
		t.Fatalf("Expected a Town win, got %+v", res)
	}
	if len(res.Winners) != 4 {
		t.Errorf("Expected all four Town players to win, got %v", res.Winners)
	}
	if h.phase() != PhaseFinished {
		t.Errorf("Expected Finished, got %s", h.phase())
	}

	h.Flush()
	h.recorder.mu.Lock()
	defer h.recorder.mu.Unlock()
	if len(h.recorder.results) != 1 {
		t.Fatalf("Expected the result recorded once, got %d", len(h.recorder.results))
	}
	if got := h.recorder.results[0]; got.Faction != FactionTown || len(got.Players) != 5 {
		t.Errorf("Expected a Town result with 5 players, got %+v", got)
	}
	if !h.notifier.publicContains("Town Victory!") {
		t.Errorf("Expected the verdict announced")
	}
	if len(h.Events().GetByType(events.EventTypeLynch)) != 1 {
		t.Errorf("Expected one lynch event")
	}
}

func TestCommandsAfterFinishAreRejected(t *testing.T) {
	h := newTestEngine(t, role.Mayor, role.Bodyguard, role.Sheriff, role.Angel, role.AlphaKiller)
	h.must(t, h.Start())
	h.must(t, h.ForceEnd("host left"))

	if err := h.ForceEnd("again"); !errors.Is(err, ErrMatchFinished) {
		t.Errorf("Expected ErrMatchFinished, got %v", err)
	}
	if _, err := h.Submit("p5", role.VillainVote, "p1"); !errors.Is(err, ErrMatchFinished) {
		t.Errorf("Expected ErrMatchFinished on submit, got %v", err)
	}
	if err := h.AdvancePhase(); !errors.Is(err, ErrMatchFinished) {
		t.Errorf("Expected ErrMatchFinished on advance, got %v", err)
	}
	select {
	case <-h.Done():
	default:
		t.Errorf("Expected Done closed")
	}

	h.Flush()
	h.recorder.mu.Lock()
	defer h.recorder.mu.Unlock()
	if len(h.recorder.results) != 0 {
		t.Errorf("Expected a forced end not to be recorded, got %d", len(h.recorder.results))
	}
}

func TestSubmitValidation(t *testing.T) {
	h := newTestEngine(t, role.Mayor, role.Bodyguard, role.Sheriff, role.Angel, role.AlphaKiller)

	if _, err := h.Submit("p2", role.Protect, "p1"); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("Expected ErrWrongPhase before the match starts, got %v", err)
	}
	h.must(t, h.Start())

	tests := []struct {
		name    string
		actor   string
		kind    role.Kind
		targets []string
		want    error
	}{
		{"unknown ability", "p2", role.Kind("fly"), nil, ErrUnknownAbility},
		{"wrong role", "p2", role.Revive, []string{"p1"}, ErrRoleMismatch},
		{"self target", "p2", role.Protect, []string{"p2"}, ErrSelfTarget},
		{"day ability at night", "p3", role.Shoot, []string{"p5"}, ErrWrongPhase},
		{"revive a living player", "p4", role.Revive, []string{"p1"}, ErrInvalidTarget},
		{"unknown target", "p2", role.Protect, []string{"nobody"}, ErrInvalidTarget},
		{"too many targets", "p5", role.VillainVote, []string{"p1", "p2"}, ErrInvalidTarget},
		{"unknown actor", "p9", role.Protect, []string{"p1"}, ErrUnknownPlayer},
		{"confrontation only", "p3", role.ShowdownShot, []string{"p5"}, ErrWrongPhase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.Submit(tt.actor, tt.kind, tt.targets...); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNoRepeatTarget(t *testing.T) {
	h := newTestEngine(t, role.Mayor, role.Bodyguard, role.Sheriff, role.Angel, role.AlphaKiller)
	h.must(t, h.Start())
	h.submit(t, "p2", role.Protect, "p1")
	h.must(t, h.AdvancePhase()) // night -> day
	h.must(t, h.AdvancePhase()) // discussion -> voting
	h.must(t, h.AdvancePhase()) // voting -> night 2

	if _, err := h.Submit("p2", role.Protect, "p1"); !errors.Is(err, ErrRepeatTarget) {
		t.Errorf("Expected ErrRepeatTarget, got %v", err)
	}
	h.submit(t, "p2", role.Protect, "p3")
}

func TestInstantAbilitiesReply(t *testing.T) {
	h := newTestEngine(t, role.AuraSeer, role.Gossip, role.Accomplice, role.Mayor, role.Sheriff, role.AlphaKiller, role.Angel)
	h.must(t, h.Start())

	if got := h.submit(t, "p1", role.Aura, "p6"); got != "Not Town" {
		t.Errorf("Expected Not Town for the Alpha, got %q", got)
	}
	if got := h.submit(t, "p1", role.Aura, "p4"); got != "Town" {
		t.Errorf("Expected Town for the Mayor, got %q", got)
	}
	if got := h.submit(t, "p2", role.Compare, "p4", "p5"); !strings.Contains(got, "same side") {
		t.Errorf("Expected Mayor and Sheriff on the same side, got %q", got)
	}
	h.submit(t, "p2", role.Compare, "p4", "p6")
	if _, err := h.Submit("p2", role.Compare, "p4", "p6"); !errors.Is(err, ErrAbilityUsed) {
		t.Errorf("Expected the third compare rejected, got %v", err)
	}

	if got := h.submit(t, "p3", role.Spy, "p5"); !strings.Contains(got, string(role.Sheriff)) {
		t.Errorf("Expected the spy to learn the role, got %q", got)
	}
	h.Flush()
	h.notifier.mu.Lock()
	leaked := false
	for _, m := range h.notifier.private["p6"] {
		if strings.Contains(m, "discovered") {
			leaked = true
		}
	}
	h.notifier.mu.Unlock()
	if !leaked {
		t.Errorf("Expected the Alpha to hear what the Accomplice found")
	}
}

func TestSabotageEndsTheDayUnlessDecreed(t *testing.T) {
	h := newTestEngine(t, role.Mayor, role.Bodyguard, role.Sheriff, role.Angel, role.AlphaKiller, role.Detective)
	h.must(t, h.Start())
	h.must(t, h.AdvancePhase())
	h.must(t, h.AdvancePhase())
	if h.phase() != PhaseDayVoting {
		t.Fatalf("Expected voting, got %s", h.phase())
	}

	h.submit(t, "p1", role.Decree)
	if _, err := h.Submit("p5", role.Sabotage); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("Expected sabotage blocked by the decree, got %v", err)
	}
	h.must(t, h.AdvancePhase()) // no votes, night 2
	h.must(t, h.AdvancePhase()) // day 2
	if h.phase() != PhaseDayDiscussion {
		t.Fatalf("Expected day 2, got %s", h.phase())
	}

	h.submit(t, "p5", role.Sabotage)
	if v := h.Phase(); v.Phase != PhaseNight || v.Round != 3 {
		t.Errorf("Expected sabotage to start night 3, got %+v", v)
	}
	if _, err := h.Submit("p5", role.Sabotage); err == nil {
		t.Errorf("Expected sabotage to be one-shot")
	}
}

func TestSkipMajorityEndsVoting(t *testing.T) {
	h := newTestEngine(t, role.Mayor, role.Bodyguard, role.Sheriff, role.Angel, role.AlphaKiller)
	h.must(t, h.Start())
	h.must(t, h.AdvancePhase())
	h.must(t, h.AdvancePhase())

	h.must(t, h.Skip("p1"))
	h.must(t, h.Skip("p2"))
	if h.phase() != PhaseDayVoting {
		t.Fatalf("Expected voting to stay open below the majority")
	}
	h.must(t, h.Skip("p3"))
	if v := h.Phase(); v.Phase != PhaseNight || v.Round != 2 {
		t.Errorf("Expected night 2 after a skip majority, got %+v", v)
	}
}

func TestSheriffDayShot(t *testing.T) {
	h := newTestEngine(t, role.Mayor, role.Bodyguard, role.Sheriff, role.Angel, role.AlphaKiller, role.Detective)
	h.must(t, h.Start())
	h.must(t, h.AdvancePhase())

	h.submit(t, "p3", role.Shoot, "p2")
	if _, err := h.Submit("p3", role.Shoot, "p4"); !errors.Is(err, ErrAbilityUsed) {
		t.Errorf("Expected one shot per day, got %v", err)
	}
	if h.state.DeathCauses["p2"] != CauseSheriffShot {
		t.Errorf("Expected p2 shot, got %q", h.state.DeathCauses["p2"])
	}
}

func TestSheriffShootingTheAlphaWins(t *testing.T) {
	h := newTestEngine(t, role.Mayor, role.Bodyguard, role.Sheriff, role.Angel, role.AlphaKiller, role.Detective, role.JuniorKiller)
	h.must(t, h.Start())
	h.must(t, h.AdvancePhase())

	h.submit(t, "p3", role.Shoot, "p5")
	if res := h.Result(); res == nil || res.Faction != FactionTown {
		t.Errorf("Expected a Town win, got %+v", res)
	}
}

func TestDeathCascades(t *testing.T) {
	h := newTestEngine(t, role.Gossip, role.JuniorKiller, role.Mayor, role.Sheriff, role.Headhunter, role.Angel, role.AlphaKiller)
	s := h.state
	s.GossipMark = "p7"
	s.JuniorMark = "p3"
	s.Lovers = &[2]string{"p3", "p4"}
	s.Contract = &Contract{Hunter: "p5", Target: "p1"}

	h.mu.Lock()
	gossip := h.processDeath(DeathRecord{Victim: "p1", Cause: CauseVillainVote})
	junior := h.processDeath(DeathRecord{Victim: "p2", Cause: CauseLynch})
	h.mu.Unlock()

	if len(gossip) != 1 {
		t.Errorf("Expected the Gossip to die alone, got %+v", gossip)
	}
	if s.Players["p5"].Role != role.CommonCitizen {
		t.Errorf("Expected the Headhunter to become a CommonCitizen, got %s", s.Players["p5"].Role)
	}

	if len(junior) != 3 {
		t.Fatalf("Expected the curse and heartbreak to follow the Junior, got %+v", junior)
	}
	if junior[1].Victim != "p3" || junior[1].Cause != CauseJuniorCurse {
		t.Errorf("Expected the Junior's mark cursed, got %+v", junior[1])
	}
	if junior[2].Victim != "p4" || junior[2].Cause != CauseHeartbreak {
		t.Errorf("Expected the lover to die of heartbreak, got %+v", junior[2])
	}

	h.Flush()
	if !h.notifier.publicContains("P7 is the AlphaKiller") {
		t.Errorf("Expected the Gossip's mark revealed")
	}
	h.voice.mu.Lock()
	defer h.voice.mu.Unlock()
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		if !h.voice.muted[id] {
			t.Errorf("Expected %s muted after dying", id)
		}
	}
}

func TestClownLynchWins(t *testing.T) {
	h := newTestEngine(t, role.Mayor, role.Bodyguard, role.Sheriff, role.Angel, role.AlphaKiller, role.Clown, role.Detective)
	h.must(t, h.Start())
	h.must(t, h.AdvancePhase())
	h.must(t, h.AdvancePhase())
	for _, voter := range []string{"p1", "p2", "p3", "p4"} {
		h.must(t, h.Vote(voter, "p6"))
	}
	h.must(t, h.AdvancePhase())
	if res := h.Result(); res == nil || res.Faction != FactionClown {
		t.Errorf("Expected a Clown win, got %+v", res)
	}
}

func TestShotClownCannotBeLynched(t *testing.T) {
	h := newTestEngine(t, role.Mayor, role.Sheriff, role.Clown, role.AlphaKiller, role.Detective, role.AuraSeer, role.Bodyguard)
	h.must(t, h.Start())
	h.must(t, h.AdvancePhase())
	h.must(t, h.AdvancePhase())
	for _, voter := range []string{"p1", "p5", "p6", "p7"} {
		h.must(t, h.Vote(voter, "p3"))
	}

	h.submit(t, "p2", role.Shoot, "p3")
	if len(h.state.DayVotes) != 0 {
		t.Errorf("Expected the votes against the dead Clown dropped, got %v", h.state.DayVotes)
	}
	h.must(t, h.AdvancePhase())

	if res := h.Result(); res != nil {
		t.Fatalf("Expected the match to go on, got %+v", res)
	}
	if h.phase() != PhaseNight {
		t.Errorf("Expected night after an empty vote, got %s", h.phase())
	}
}

func TestSheriffShootingTheMayorCrownsEveryVillain(t *testing.T) {
	h := newTestEngine(t, role.Mayor, role.Sheriff, role.AlphaKiller, role.JuniorKiller, role.Detective, role.AuraSeer, role.Bodyguard)
	h.state.Players["p4"].Kill()
	h.must(t, h.Start())
	h.must(t, h.AdvancePhase())

	h.submit(t, "p2", role.Shoot, "p1")
	res := h.Result()
	if res == nil || res.Faction != FactionVillains {
		t.Fatalf("Expected a Villains win, got %+v", res)
	}
	if !contains(res.Winners, "p3") || !contains(res.Winners, "p4") {
		t.Errorf("Expected dead villains among the winners, got %v", res.Winners)
	}
}

func TestConfrontationSheriffShotsThenFinalAttack(t *testing.T) {
	h := newTestEngine(t, role.Mayor, role.Bodyguard, role.Sheriff, role.Angel, role.AlphaKiller, role.Detective)
	h.win.roundLimit = 1
	h.must(t, h.Start())
	h.must(t, h.AdvancePhase())
	h.must(t, h.AdvancePhase())
	h.must(t, h.AdvancePhase())

	v := h.Phase()
	if v.Phase != PhaseConfrontation || v.Prompted != "p3" {
		t.Fatalf("Expected the Sheriff prompted in the confrontation, got %+v", v)
	}
	if _, err := h.Submit("p5", role.FinalAttack, "p1"); !errors.Is(err, ErrNotYourTurn) {
		t.Errorf("Expected the villain to wait, got %v", err)
	}

	h.submit(t, "p3", role.ShowdownShot, "p6")
	if h.Phase().Prompted != "p3" {
		t.Fatalf("Expected a second shot for the Sheriff")
	}
	h.must(t, h.AdvancePhase()) // the Sheriff hesitates

	if v := h.Phase(); v.Prompted != "p5" {
		t.Fatalf("Expected the Alpha prompted for the final attack, got %+v", v)
	}
	if _, err := h.Submit("p5", role.FinalAttack, "p5"); err == nil {
		t.Errorf("Expected the attacker unable to target themself")
	}
	h.submit(t, "p5", role.FinalAttack, "p1")
	if res := h.Result(); res == nil || res.Faction != FactionVillains {
		t.Errorf("Expected a Villains win after the Mayor falls, got %+v", res)
	}
}

func TestConfrontationTimeoutGivesTown(t *testing.T) {
	h := newTestEngine(t, role.Mayor, role.Bodyguard, role.CommonCitizen, role.Angel, role.AlphaKiller)
	h.win.roundLimit = 1
	h.must(t, h.Start())
	h.must(t, h.AdvancePhase())
	h.must(t, h.AdvancePhase())
	h.must(t, h.AdvancePhase())

	if v := h.Phase(); v.Phase != PhaseConfrontation || v.Prompted != "p5" {
		t.Fatalf("Expected the Alpha prompted with no Sheriff, got %+v", v)
	}
	h.must(t, h.AdvancePhase())
	if res := h.Result(); res == nil || res.Faction != FactionTown {
		t.Errorf("Expected Town to win when the attack never comes, got %+v", res)
	}
}

func TestPendingResolutionAfterRevival(t *testing.T) {
	h := newTestEngine(t, role.Mayor, role.Bodyguard, role.Sheriff, role.Angel, role.JuniorKiller, role.Detective)
	h.must(t, h.Start())
	h.submit(t, "p5", role.VillainVote, "p1")
	h.must(t, h.AdvancePhase())
	if h.state.Players["p1"].Alive {
		t.Fatalf("Expected the Mayor dead after night 1")
	}

	h.must(t, h.AdvancePhase())
	h.submit(t, "p3", role.Shoot, "p5")
	if v := h.Phase(); v.Phase != PhaseNight || !v.Pending {
		t.Fatalf("Expected a pending night after the last villain fell, got %+v", v)
	}

	h.submit(t, "p4", role.Revive, "p1")
	h.must(t, h.AdvancePhase())
	if res := h.Result(); res == nil || res.Faction != FactionTown {
		t.Errorf("Expected Town to win once the Mayor returns, got %+v", res)
	}
}

func TestVoiceFollowsPhases(t *testing.T) {
	h := newTestEngine(t, role.Mayor, role.Bodyguard, role.Sheriff, role.Angel, role.AlphaKiller)
	h.voice.fail = true
	h.must(t, h.Start())
	h.submit(t, "p5", role.VillainVote, "p3")
	h.Flush()
	h.voice.mu.Lock()
	if !h.voice.muted["p1"] {
		t.Errorf("Expected everyone muted at night")
	}
	h.voice.mu.Unlock()

	h.must(t, h.AdvancePhase())
	h.Flush()
	h.voice.mu.Lock()
	defer h.voice.mu.Unlock()
	if h.voice.muted["p1"] {
		t.Errorf("Expected the living unmuted at day")
	}
	if !h.voice.muted["p3"] {
		t.Errorf("Expected the dead to stay muted")
	}
}
