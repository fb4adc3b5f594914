// Package role describes every role a seat can hold.
// Roles are plain data; the engine decides what each ability does by its Kind.
package role

// Faction is a player's win alignment.
type Faction string

const (
	Town     Faction = "Town"
	Villains Faction = "Villains"
	Solo     Faction = "Solo"
)

// Name identifies a role.
type Name string

const (
	Mayor         Name = "Mayor"
	Bodyguard     Name = "Bodyguard"
	Sheriff       Name = "Sheriff"
	Angel         Name = "Angel"
	Detective     Name = "Detective"
	AuraSeer      Name = "AuraSeer"
	Medium        Name = "Medium"
	CommonCitizen Name = "CommonCitizen"

	AlphaKiller  Name = "AlphaKiller"
	JuniorKiller Name = "JuniorKiller"
	Accomplice   Name = "Accomplice"
	SimpleKiller Name = "SimpleKiller"

	Clown      Name = "Clown"
	Headhunter Name = "Headhunter"
	Witch      Name = "Witch"
	Gossip     Name = "Gossip"
	Cupid      Name = "Cupid"
	Plague     Name = "Plague"
	Corruptor  Name = "Corruptor"
)

// Kind is an ability kind. The night pipeline dispatches on it.
type Kind string

const (
	Haunt       Kind = "haunt"
	Pair        Kind = "pair"
	Corrupt     Kind = "corrupt"
	Confuse     Kind = "confuse"
	Protect     Kind = "protect"
	WitchKill   Kind = "witch_kill"
	VillainVote Kind = "villain_vote"
	Exterminate Kind = "exterminate"
	Revive      Kind = "revive"
	WitchRevive Kind = "witch_revive"
	Mark        Kind = "mark"
	FirstTarget Kind = "first_target"
	Possess     Kind = "possess"

	Aura    Kind = "aura"
	Compare Kind = "compare"
	Channel Kind = "medium"
	Spy     Kind = "spy"

	Shoot    Kind = "shoot"
	Sabotage Kind = "sabotage"
	Decree   Kind = "decree"
	Fraud    Kind = "fraud"

	ShowdownShot Kind = "showdown_shot"
	FinalAttack  Kind = "final_attack"
)

// Window is the part of the cycle in which an ability may be used.
type Window int

const (
	NightWindow Window = iota
	DayWindow          // discussion or voting
	VotingWindow
	ConfrontationWindow
)

// TargetPool says which players an ability may point at.
type TargetPool int

const (
	PoolNone TargetPool = iota
	PoolAlive
	PoolDead
)

// Ability describes one thing a role can submit.
type Ability struct {
	Kind     Kind
	Window   Window
	Priority int
	// Instant abilities answer immediately and never occupy the night slot.
	Instant    bool
	MinTargets int
	MaxTargets int
	Pool       TargetPool
	AllowSelf  bool
	NoRepeat   bool
	// MaxUses is 0 for unlimited. UseKey lets two abilities share one counter.
	MaxUses        int
	UseKey         Kind
	FirstNightOnly bool
	MinSeats       int
}

// Counter returns the key uses are tracked under.
func (a Ability) Counter() Kind {
	if a.UseKey != "" {
		return a.UseKey
	}
	return a.Kind
}

// Role is an immutable descriptor.
type Role struct {
	Name    Name
	Faction Faction
	// Leader is the Town figure whose survival decides the match.
	Leader bool
	// TopVillain is the Villains leader.
	TopVillain      bool
	NightVoteWeight int
	Abilities       []Ability
}

// Ability looks up one of the role's abilities.
func (r Role) Ability(k Kind) (Ability, bool) {
	for _, a := range r.Abilities {
		if a.Kind == k {
			return a, true
		}
	}
	return Ability{}, false
}

// CanRevive reports whether the role owns any revival ability.
func (r Role) CanRevive() bool {
	for _, a := range r.Abilities {
		if a.Kind == Revive || a.Kind == WitchRevive {
			return true
		}
	}
	return false
}
