// Package deck deals mission cards from per-difficulty shuffled bags so
// that no card repeats until every eligible card has been seen.
package deck

import (
	"math/rand"

	"github.com/hirameki/rail-mission/internal/catalog"
)

type bag struct {
	ids []string
	idx int
}

// Dealer dispenses cards per difficulty tier. It is not safe for
// concurrent use; the engine serializes access to it.
type Dealer struct {
	cat  *catalog.Catalog
	rng  *rand.Rand
	bags map[catalog.Difficulty]*bag
}

// New creates a dealer over the catalog. src seeds the shuffle; pass a
// fixed seed in tests for reproducible deals.
func New(cat *catalog.Catalog, src rand.Source) *Dealer {
	d := &Dealer{
		cat:  cat,
		rng:  rand.New(src),
		bags: make(map[catalog.Difficulty]*bag, 3),
	}
	for _, diff := range []catalog.Difficulty{catalog.DifficultyEasy, catalog.DifficultyNormal, catalog.DifficultyHard} {
		d.bags[diff] = &bag{}
		d.refill(diff)
	}
	return d
}

func (d *Dealer) refill(diff catalog.Difficulty) {
	b := d.bags[diff]
	b.ids = d.cat.CardsForDifficulty(diff)
	d.rng.Shuffle(len(b.ids), func(i, j int) {
		b.ids[i], b.ids[j] = b.ids[j], b.ids[i]
	})
	b.idx = 0
}

// Next deals the next card for the tier, reshuffling the bag once it is
// exhausted. It returns nil only when the catalog has no eligible cards,
// which Parse already rejects at startup.
func (d *Dealer) Next(diff catalog.Difficulty) *catalog.Card {
	b, ok := d.bags[diff]
	if !ok {
		return nil
	}
	if len(b.ids) == 0 || b.idx >= len(b.ids) {
		d.refill(diff)
	}
	if len(b.ids) == 0 {
		return nil
	}
	id := b.ids[b.idx]
	b.idx++
	return d.cat.Card(id)
}

// PoolSize returns the number of cards eligible for the tier's bag.
func (d *Dealer) PoolSize(diff catalog.Difficulty) int {
	return len(d.cat.CardsForDifficulty(diff))
}
