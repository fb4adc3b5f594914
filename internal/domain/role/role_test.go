package role

import (
	"errors"
	"math/rand"
	"testing"
)

func TestCompositionsSumToSeatCount(t *testing.T) {
	for seats, comp := range DefaultRules().Compositions {
		if comp.Total() != seats {
			t.Errorf("Expected composition for %d seats to sum to %d, got %d", seats, seats, comp.Total())
		}
	}
}

func TestDistributeDrawsExactlySeatCount(t *testing.T) {
	rules := DefaultRules()
	catalog := DefaultCatalog()

	for seats := 5; seats <= 13; seats++ {
		for seed := int64(0); seed < 20; seed++ {
			names, err := rules.Distribute(seats, rand.New(rand.NewSource(seed)))
			if err != nil {
				t.Fatalf("Distribute(%d) seed %d: unexpected error %v", seats, seed, err)
			}
			if len(names) != seats {
				t.Errorf("Expected %d roles, got %d", seats, len(names))
			}

			counts := map[Faction]int{}
			exclusives := 0
			seen := map[Name]bool{}
			for _, n := range names {
				r, ok := catalog.Get(n)
				if !ok {
					t.Fatalf("Distribute returned unknown role %s", n)
				}
				counts[r.Faction]++
				if n == Clown || n == Headhunter {
					exclusives++
				}
				if seen[n] {
					t.Errorf("Expected distinct roles, %s drawn twice for %d seats", n, seats)
				}
				seen[n] = true
			}

			comp := rules.Compositions[seats]
			if counts[Town] != comp.Town || counts[Villains] != comp.Villains || counts[Solo] != comp.Solo {
				t.Errorf("Expected %+v for %d seats, got %v", comp, seats, counts)
			}
			if comp.Solo > 0 && exclusives != 1 {
				t.Errorf("Expected exactly one solo exclusive for %d seats, got %d", seats, exclusives)
			}
			if !seen[Mayor] || !seen[AlphaKiller] {
				t.Errorf("Expected Mayor and AlphaKiller at every table, got %v", names)
			}
		}
	}
}

func TestDistributeSetupFailures(t *testing.T) {
	rules := DefaultRules()
	rng := rand.New(rand.NewSource(1))

	if _, err := rules.Distribute(4, rng); !errors.Is(err, ErrNoComposition) {
		t.Errorf("Expected ErrNoComposition for 4 seats, got %v", err)
	}
	if _, err := rules.Distribute(17, rng); !errors.Is(err, ErrNoComposition) {
		t.Errorf("Expected ErrNoComposition for 17 seats, got %v", err)
	}
	for _, seats := range []int{14, 15, 16} {
		if _, err := rules.Distribute(seats, rng); !errors.Is(err, ErrPoolExhausted) {
			t.Errorf("Expected ErrPoolExhausted for %d seats, got %v", seats, err)
		}
	}
}

func TestWitchPotionIsShared(t *testing.T) {
	witch, _ := DefaultCatalog().Get(Witch)
	kill, _ := witch.Ability(WitchKill)
	revive, _ := witch.Ability(WitchRevive)
	if kill.Counter() != revive.Counter() {
		t.Errorf("Expected witch abilities to share a counter, got %s and %s", kill.Counter(), revive.Counter())
	}
	if !witch.CanRevive() {
		t.Error("Expected Witch to count as a reviver")
	}
}

func TestAlphaKillerVotesDouble(t *testing.T) {
	c := DefaultCatalog()
	alpha, _ := c.Get(AlphaKiller)
	junior, _ := c.Get(JuniorKiller)
	if alpha.NightVoteWeight != 2 || junior.NightVoteWeight != 1 {
		t.Errorf("Expected weights 2 and 1, got %d and %d", alpha.NightVoteWeight, junior.NightVoteWeight)
	}
	if _, ok := alpha.Ability(VillainVote); !ok {
		t.Error("Expected AlphaKiller to hold villain_vote")
	}
}
