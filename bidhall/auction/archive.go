package auction

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// Archive keeps a bounded cache of completed-auction snapshots. Completed
// auctions leave the live ledger at finalization; the archive serves reads
// until the entry ages out.
type Archive struct {
	cache *lru.Cache
}

func NewArchive(size int) (*Archive, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive cache: %w", err)
	}
	return &Archive{cache: cache}, nil
}

func (ar *Archive) Add(a Auction) {
	ar.cache.Add(a.ID, a)
}

func (ar *Archive) Get(id string) (Auction, bool) {
	v, ok := ar.cache.Get(id)
	if !ok {
		return Auction{}, false
	}
	return v.(Auction), true
}

// List returns archived snapshots from least to most recently used.
func (ar *Archive) List() []Auction {
	keys := ar.cache.Keys()
	out := make([]Auction, 0, len(keys))
	for _, k := range keys {
		if v, ok := ar.cache.Peek(k); ok {
			out = append(out, v.(Auction))
		}
	}
	return out
}
