package engine

import (
	"fmt"
	"strings"

	"github.com/Fezudo98/cidade-dorme-online/internal/domain/player"
	"github.com/Fezudo98/cidade-dorme-online/internal/domain/role"
)

// Phase is a PhaseController state.
type Phase string

const (
	PhasePreparing     Phase = "preparing"
	PhaseNight         Phase = "night"
	PhaseDayDiscussion Phase = "day_discussion"
	PhaseDayVoting     Phase = "day_voting"
	PhaseConfrontation Phase = "confrontation"
	PhaseFinished      Phase = "finished"
)

// Seat is a player identity handed in by the host.
type Seat struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Contract is the Headhunter's hidden objective.
type Contract struct {
	Hunter string
	Target string
}

// WitchAction is a successful potion use, kept for the Witch rider.
type WitchAction struct {
	Kind   role.Kind
	Target string
}

// GameState is the mutable record of one match. Every access happens under the engine lock.
type GameState struct {
	MatchID string
	Catalog *role.Catalog
	Seats   int
	Order   []string
	Players map[string]*player.State

	Phase Phase
	Round int // nights entered
	Day   int

	// Links between players, stored by id.
	Lovers      *[2]string
	Cupid       string
	Contract    *Contract
	JuniorMark  string
	GossipMark  string
	PatientZero string
	PlagueID    string
	Witch       []WitchAction

	DayVotes     map[string]string
	SkipVotes    map[string]bool
	DecreeActive bool
	DecreeHolder string
	FraudActive  bool
	ShotToday    bool
	DeathCauses  map[string]Cause

	PendingResolution bool
	Result            *WinResult
}

func newGameState(matchID string, catalog *role.Catalog, seats []Seat) *GameState {
	s := &GameState{
		MatchID:     matchID,
		Catalog:     catalog,
		Seats:       len(seats),
		Players:     make(map[string]*player.State, len(seats)),
		Phase:       PhasePreparing,
		DayVotes:    make(map[string]string),
		SkipVotes:   make(map[string]bool),
		DeathCauses: make(map[string]Cause),
	}
	for _, seat := range seats {
		s.Order = append(s.Order, seat.ID)
		s.Players[seat.ID] = player.New(seat.ID, seat.Name)
	}
	return s
}

// Player looks up a seat.
func (s *GameState) Player(id string) (*player.State, bool) {
	p, ok := s.Players[id]
	return p, ok
}

// RoleOf resolves a player's descriptor. A missing role is an internal failure.
func (s *GameState) RoleOf(p *player.State) (role.Role, error) {
	if p.Role == "" {
		return role.Role{}, fmt.Errorf("player %s has no role: %w", p.ID, ErrInconsistent)
	}
	r, ok := s.Catalog.Get(p.Role)
	if !ok {
		return role.Role{}, fmt.Errorf("player %s has unknown role %s: %w", p.ID, p.Role, ErrInconsistent)
	}
	return r, nil
}

// FactionOf returns the player's faction, empty when the role is missing.
func (s *GameState) FactionOf(p *player.State) role.Faction {
	r, err := s.RoleOf(p)
	if err != nil {
		return ""
	}
	return r.Faction
}

// All returns every player in seat order.
func (s *GameState) All() []*player.State {
	out := make([]*player.State, 0, len(s.Order))
	for _, id := range s.Order {
		out = append(out, s.Players[id])
	}
	return out
}

// Alive returns the living players in seat order.
func (s *GameState) Alive() []*player.State {
	var out []*player.State
	for _, id := range s.Order {
		if p := s.Players[id]; p.Alive {
			out = append(out, p)
		}
	}
	return out
}

// Dead returns the fallen players in seat order.
func (s *GameState) Dead() []*player.State {
	var out []*player.State
	for _, id := range s.Order {
		if p := s.Players[id]; !p.Alive {
			out = append(out, p)
		}
	}
	return out
}

// FindRole returns the first seat holding the role, alive or not.
func (s *GameState) FindRole(n role.Name) *player.State {
	for _, id := range s.Order {
		if p := s.Players[id]; p.Role == n {
			return p
		}
	}
	return nil
}

// LivingRole returns the first living seat holding the role.
func (s *GameState) LivingRole(n role.Name) *player.State {
	if p := s.FindRole(n); p != nil && p.Alive {
		return p
	}
	return nil
}

// Leader returns the Town leader's seat, or nil when no seat holds that role.
func (s *GameState) Leader() *player.State {
	for _, p := range s.All() {
		if r, err := s.RoleOf(p); err == nil && r.Leader {
			return p
		}
	}
	return nil
}

// IsLeader reports whether the player holds the Town leader role.
func (s *GameState) IsLeader(p *player.State) bool {
	r, err := s.RoleOf(p)
	return err == nil && r.Leader
}

// IsTopVillain reports whether the player holds the Villains leader role.
func (s *GameState) IsTopVillain(p *player.State) bool {
	r, err := s.RoleOf(p)
	return err == nil && r.TopVillain
}

// Faction returns the ids of a faction, optionally only the living.
func (s *GameState) Faction(f role.Faction, livingOnly bool) []string {
	var out []string
	for _, p := range s.All() {
		if livingOnly && !p.Alive {
			continue
		}
		if s.FactionOf(p) == f {
			out = append(out, p.ID)
		}
	}
	return out
}

// RevivalAvailable reports whether a living player still holds an unused revival.
func (s *GameState) RevivalAvailable() bool {
	for _, p := range s.Alive() {
		r, err := s.RoleOf(p)
		if err != nil {
			continue
		}
		for _, a := range r.Abilities {
			if a.Kind != role.Revive && a.Kind != role.WitchRevive {
				continue
			}
			if a.MaxUses == 0 || p.Used(a.Counter()) < a.MaxUses {
				return true
			}
		}
	}
	return false
}

// Threshold is the lynch and skip majority: floor(alive/2)+1.
func (s *GameState) Threshold() int {
	return len(s.Alive())/2 + 1
}

// NameOf returns a display name, falling back to the id.
func (s *GameState) NameOf(id string) string {
	if p, ok := s.Players[id]; ok && p.Name != "" {
		return p.Name
	}
	return id
}

// Names joins display names.
func (s *GameState) Names(ids []string) string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, s.NameOf(id))
	}
	return strings.Join(names, ", ")
}

// OtherLover returns the partner of id, if id is a lover.
func (s *GameState) OtherLover(id string) (string, bool) {
	if s.Lovers == nil {
		return "", false
	}
	switch id {
	case s.Lovers[0]:
		return s.Lovers[1], true
	case s.Lovers[1]:
		return s.Lovers[0], true
	}
	return "", false
}

func (s *GameState) clearDaily() {
	s.DecreeActive = false
	s.DecreeHolder = ""
	s.FraudActive = false
	s.ShotToday = false
}

// dropVotes forgets every vote cast by or against id.
func (s *GameState) dropVotes(id string) {
	delete(s.DayVotes, id)
	delete(s.SkipVotes, id)
	for voter, target := range s.DayVotes {
		if target == id {
			delete(s.DayVotes, voter)
		}
	}
}

func (s *GameState) clearVotes() {
	s.DayVotes = make(map[string]string)
	s.SkipVotes = make(map[string]bool)
}
