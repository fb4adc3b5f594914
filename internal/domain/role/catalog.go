package role

import "sort"

// Priorities of night abilities. Lower resolves first.
const (
	PriorityHaunt       = 5
	PriorityPair        = 10
	PriorityCorrupt     = 15
	PriorityConfuse     = 16
	PriorityProtect     = 20
	PriorityWitchKill   = 25
	PriorityVillainVote = 30
	PriorityExterminate = 35
	PriorityRevive      = 40
	PriorityMark        = 60
	PriorityFirstTarget = 70
	PriorityPossess     = 90
)

// PossessMinSeats is the smallest table on which possession is allowed.
const PossessMinSeats = 11

// HauntAbility is granted by ghost status rather than by a role.
var HauntAbility = Ability{Kind: Haunt, Window: NightWindow, Priority: PriorityHaunt, MinTargets: 1, MaxTargets: 1, Pool: PoolAlive}

var villainVote = Ability{Kind: VillainVote, Window: NightWindow, Priority: PriorityVillainVote, MinTargets: 1, MaxTargets: 1, Pool: PoolAlive}

var firstTarget = Ability{Kind: FirstTarget, Window: NightWindow, Priority: PriorityFirstTarget, MinTargets: 1, MaxTargets: 1, Pool: PoolAlive, FirstNightOnly: true}

// Catalog is the RoleCatalog: every role the engine knows.
type Catalog struct {
	roles map[Name]Role
}

// NewCatalog builds a catalog from explicit descriptors.
func NewCatalog(roles ...Role) *Catalog {
	c := &Catalog{roles: make(map[Name]Role, len(roles))}
	for _, r := range roles {
		c.roles[r.Name] = r
	}
	return c
}

// Get returns a role by name.
func (c *Catalog) Get(n Name) (Role, bool) {
	r, ok := c.roles[n]
	return r, ok
}

// All returns the roles sorted by name.
func (c *Catalog) All() []Role {
	out := make([]Role, 0, len(c.roles))
	for _, r := range c.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DefaultCatalog returns the standard roles.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Role{Name: Mayor, Faction: Town, Leader: true, Abilities: []Ability{
			{Kind: Decree, Window: VotingWindow, MaxUses: 1},
		}},
		Role{Name: Bodyguard, Faction: Town, Abilities: []Ability{
			{Kind: Protect, Window: NightWindow, Priority: PriorityProtect, MinTargets: 1, MaxTargets: 1, Pool: PoolAlive, NoRepeat: true},
		}},
		Role{Name: Sheriff, Faction: Town, Abilities: []Ability{
			{Kind: Shoot, Window: DayWindow, MinTargets: 1, MaxTargets: 1, Pool: PoolAlive},
		}},
		Role{Name: Angel, Faction: Town, Abilities: []Ability{
			{Kind: Revive, Window: NightWindow, Priority: PriorityRevive, MinTargets: 1, MaxTargets: 1, Pool: PoolDead, MaxUses: 1},
		}},
		Role{Name: Detective, Faction: Town, Abilities: []Ability{
			{Kind: Mark, Window: NightWindow, Priority: PriorityMark, MinTargets: 1, MaxTargets: 2, Pool: PoolAlive},
		}},
		Role{Name: AuraSeer, Faction: Town, Abilities: []Ability{
			{Kind: Aura, Window: NightWindow, Instant: true, MinTargets: 1, MaxTargets: 1, Pool: PoolAlive},
		}},
		Role{Name: Medium, Faction: Town, Abilities: []Ability{
			{Kind: Channel, Window: NightWindow, Instant: true, MinTargets: 1, MaxTargets: 1, Pool: PoolDead, MaxUses: 1},
		}},
		Role{Name: CommonCitizen, Faction: Town},

		Role{Name: AlphaKiller, Faction: Villains, TopVillain: true, NightVoteWeight: 2, Abilities: []Ability{
			villainVote,
			{Kind: Possess, Window: NightWindow, Priority: PriorityPossess, MinTargets: 1, MaxTargets: 1, Pool: PoolAlive, MinSeats: PossessMinSeats},
			{Kind: Sabotage, Window: DayWindow, MaxUses: 1},
		}},
		Role{Name: JuniorKiller, Faction: Villains, NightVoteWeight: 1, Abilities: []Ability{
			villainVote,
			{Kind: Confuse, Window: NightWindow, Priority: PriorityConfuse, MinTargets: 1, MaxTargets: 1, Pool: PoolAlive, NoRepeat: true},
			firstTarget,
		}},
		Role{Name: Accomplice, Faction: Villains, NightVoteWeight: 1, Abilities: []Ability{
			villainVote,
			{Kind: Spy, Window: NightWindow, Instant: true, MinTargets: 1, MaxTargets: 1, Pool: PoolAlive, MaxUses: 1, FirstNightOnly: true},
			{Kind: Fraud, Window: VotingWindow, MaxUses: 1},
		}},
		Role{Name: SimpleKiller, Faction: Villains, NightVoteWeight: 1, Abilities: []Ability{villainVote}},

		Role{Name: Clown, Faction: Solo},
		Role{Name: Headhunter, Faction: Solo},
		Role{Name: Witch, Faction: Solo, Abilities: []Ability{
			{Kind: WitchKill, Window: NightWindow, Priority: PriorityWitchKill, MinTargets: 1, MaxTargets: 1, Pool: PoolAlive, MaxUses: 1, UseKey: "potion"},
			{Kind: WitchRevive, Window: NightWindow, Priority: PriorityRevive, MinTargets: 1, MaxTargets: 1, Pool: PoolDead, MaxUses: 1, UseKey: "potion"},
		}},
		Role{Name: Gossip, Faction: Solo, Abilities: []Ability{
			firstTarget,
			{Kind: Compare, Window: NightWindow, Instant: true, MinTargets: 2, MaxTargets: 2, Pool: PoolAlive, MaxUses: 2},
		}},
		Role{Name: Cupid, Faction: Solo, Abilities: []Ability{
			{Kind: Pair, Window: NightWindow, Priority: PriorityPair, MinTargets: 2, MaxTargets: 2, Pool: PoolAlive, AllowSelf: true, FirstNightOnly: true},
		}},
		Role{Name: Plague, Faction: Solo, Abilities: []Ability{
			firstTarget,
			{Kind: Exterminate, Window: NightWindow, Priority: PriorityExterminate, MaxUses: 1},
		}},
		Role{Name: Corruptor, Faction: Solo, Abilities: []Ability{
			{Kind: Corrupt, Window: NightWindow, Priority: PriorityCorrupt, MinTargets: 1, MaxTargets: 1, Pool: PoolAlive, NoRepeat: true},
		}},
	)
}
