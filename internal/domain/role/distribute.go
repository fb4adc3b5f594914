package role

import (
	"errors"
	"fmt"
	"math/rand"
)

var (
	ErrNoComposition = errors.New("no composition for seat count")
	ErrPoolExhausted = errors.New("role pool exhausted")
)

// Composition is how many seats each faction gets.
type Composition struct {
	Town     int
	Villains int
	Solo     int
}

// Total returns the seat count the composition fills.
func (c Composition) Total() int {
	return c.Town + c.Villains + c.Solo
}

// Pool lists the roles a faction draws from.
// Essentials are taken in order before any random pick.
type Pool struct {
	TownEssentials    []Name
	TownInvestigators []Name
	VillainEssentials []Name
	VillainOthers     []Name
	// At most one exclusive is drawn whenever any Solo seat exists.
	SoloExclusives []Name
	SoloOthers     []Name
}

// Rules is the seat-count table plus the role pool.
type Rules struct {
	Compositions map[int]Composition
	Pool         Pool
}

// DefaultRules returns the standard compositions and pools.
func DefaultRules() Rules {
	return Rules{
		Compositions: map[int]Composition{
			5:  {Town: 4, Villains: 1, Solo: 0},
			6:  {Town: 5, Villains: 1, Solo: 0},
			7:  {Town: 5, Villains: 1, Solo: 1},
			8:  {Town: 5, Villains: 2, Solo: 1},
			9:  {Town: 5, Villains: 2, Solo: 2},
			10: {Town: 6, Villains: 3, Solo: 1},
			11: {Town: 6, Villains: 3, Solo: 2},
			12: {Town: 7, Villains: 3, Solo: 2},
			13: {Town: 7, Villains: 3, Solo: 3},
			14: {Town: 8, Villains: 4, Solo: 2},
			15: {Town: 8, Villains: 4, Solo: 3},
			16: {Town: 9, Villains: 4, Solo: 3},
		},
		Pool: Pool{
			TownEssentials:    []Name{Mayor, Bodyguard, Sheriff, Angel},
			TownInvestigators: []Name{Detective, AuraSeer, Medium},
			VillainEssentials: []Name{AlphaKiller},
			VillainOthers:     []Name{JuniorKiller, Accomplice},
			SoloExclusives:    []Name{Clown, Headhunter},
			SoloOthers:        []Name{Witch, Gossip, Cupid, Plague, Corruptor},
		},
	}
}

// Distribute draws exactly seats roles and shuffles them.
func (r Rules) Distribute(seats int, rng *rand.Rand) ([]Name, error) {
	comp, ok := r.Compositions[seats]
	if !ok {
		return nil, fmt.Errorf("%d seats: %w", seats, ErrNoComposition)
	}

	out := make([]Name, 0, seats)

	town, err := fill(r.Pool.TownEssentials, r.Pool.TownInvestigators, comp.Town, rng)
	if err != nil {
		return nil, fmt.Errorf("town: %w", err)
	}
	out = append(out, town...)

	villains, err := fill(r.Pool.VillainEssentials, r.Pool.VillainOthers, comp.Villains, rng)
	if err != nil {
		return nil, fmt.Errorf("villains: %w", err)
	}
	out = append(out, villains...)

	if comp.Solo > 0 {
		solos, err := r.drawSolos(comp.Solo, rng)
		if err != nil {
			return nil, fmt.Errorf("solo: %w", err)
		}
		out = append(out, solos...)
	}

	if len(out) != seats {
		return nil, fmt.Errorf("drew %d roles for %d seats: %w", len(out), seats, ErrPoolExhausted)
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}

func (r Rules) drawSolos(count int, rng *rand.Rand) ([]Name, error) {
	if len(r.Pool.SoloExclusives) == 0 {
		return sample(r.Pool.SoloOthers, count, rng)
	}
	chosen := r.Pool.SoloExclusives[rng.Intn(len(r.Pool.SoloExclusives))]
	others := make([]Name, 0, len(r.Pool.SoloOthers))
	for _, n := range r.Pool.SoloOthers {
		if n != chosen {
			others = append(others, n)
		}
	}
	rest, err := sample(others, count-1, rng)
	if err != nil {
		return nil, err
	}
	return append([]Name{chosen}, rest...), nil
}

func fill(essentials, others []Name, count int, rng *rand.Rand) ([]Name, error) {
	if count <= 0 {
		return nil, nil
	}
	n := min(count, len(essentials))
	out := append([]Name(nil), essentials[:n]...)
	rest, err := sample(others, count-n, rng)
	if err != nil {
		return nil, err
	}
	return append(out, rest...), nil
}

// sample picks k distinct entries.
func sample(from []Name, k int, rng *rand.Rand) ([]Name, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(from) < k {
		return nil, fmt.Errorf("need %d, have %d: %w", k, len(from), ErrPoolExhausted)
	}
	out := make([]Name, 0, k)
	for _, i := range rng.Perm(len(from))[:k] {
		out = append(out, from[i])
	}
	return out, nil
}
