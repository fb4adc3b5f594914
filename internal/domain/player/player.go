// Package player defines the per-match state of a seated player.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package player

import "github.com/Fezudo98/cidade-dorme-online/internal/domain/role"

// State is the mutable record of one seat for the lifetime of a match.
type State struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Role role.Name `json:"role"` // empty until assignment

	Alive bool `json:"alive"`
	// Ghost is an overlay independent of Alive.
	Ghost           bool   `json:"ghost"`
	GhostController string `json:"ghost_controller,omitempty"`

	// Night transients, cleared at the end of every pipeline run.
	Corrupted   bool   `json:"-"`
	Confused    bool   `json:"-"`
	ProtectedBy string `json:"-"`

	Infected         bool `json:"-"`
	PossessionPoints int  `json:"-"`

	// VestUsed is the protector's single damage absorption and innate resistance.
	VestUsed      bool                 `json:"-"`
	Uses          map[role.Kind]int    `json:"-"`
	LastTarget    map[role.Kind]string `json:"-"`
	ShotsFired    int                  `json:"-"`
	MayorPardoned bool                 `json:"-"`
}

// New creates a living, roleless seat.
func New(id, name string) *State {
	return &State{
		ID:         id,
		Name:       name,
		Alive:      true,
		Uses:       make(map[role.Kind]int),
		LastTarget: make(map[role.Kind]string),
	}
}

// Assign gives the seat its role.
func (p *State) Assign(r role.Name) {
	p.Role = r
}

// Used returns how many times the counter has been consumed.
func (p *State) Used(counter role.Kind) int {
	return p.Uses[counter]
}

// Consume records one use of the counter.
func (p *State) Consume(counter role.Kind) {
	if p.Uses == nil {
		p.Uses = make(map[role.Kind]int)
	}
	p.Uses[counter]++
}

// Refund gives back one use of the counter.
func (p *State) Refund(counter role.Kind) {
	if p.Uses[counter] > 0 {
		p.Uses[counter]--
	}
}

// Remember stores the last target of an ability for the no-repeat rule.
func (p *State) Remember(k role.Kind, target string) {
	if p.LastTarget == nil {
		p.LastTarget = make(map[role.Kind]string)
	}
	p.LastTarget[k] = target
}

// Kill marks the seat dead.
func (p *State) Kill() {
	p.Alive = false
}

// Revive restores the seat and wipes role-scoped flags.
func (p *State) Revive() {
	p.Alive = true
	p.Ghost = false
	p.GhostController = ""
	p.Confused = false
	p.VestUsed = false
	p.Uses = make(map[role.Kind]int)
	p.LastTarget = make(map[role.Kind]string)
	p.ShotsFired = 0
	p.MayorPardoned = false
}

// ClearNight drops the flags that only live for one resolution.
func (p *State) ClearNight() {
	p.Corrupted = false
	p.Confused = false
	p.ProtectedBy = ""
}
