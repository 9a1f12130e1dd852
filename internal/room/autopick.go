package room

import (
	"math/rand"

	"github.com/hexdraft/draft-server/internal/catalog"
	"github.com/hexdraft/draft-server/internal/engine"
)

// autoPicker builds the forced-pick fallback: a uniform choice among
// catalog items not yet used in this room. The rand source is injectable
// so the behavior is reproducible under test.
func autoPicker(provider catalog.Provider, rng *rand.Rand) engine.AutoPickFunc {
	return func(used func(string) bool) (engine.Selection, bool) {
		items := provider.Items()
		avail := make([]catalog.Item, 0, len(items))
		for _, it := range items {
			if !used(it.ID) {
				avail = append(avail, it)
			}
		}
		if len(avail) == 0 {
			return engine.Selection{}, false
		}
		choice := avail[rng.Intn(len(avail))]
		return engine.Selection{ItemID: choice.ID, ItemName: choice.Name}, true
	}
}
