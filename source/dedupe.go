package source

import (
	"fmt"

	"github.com/golang/groupcache/lru"
	"github.com/mitchellh/hashstructure/v2"
)

// NewDedupeFunc returns a filter that passes a record only the first time
// it is seen among the last size distinct records.
func NewDedupeFunc(size int) func(Record) bool {
	cache := lru.New(size)
	return func(r Record) bool {
		hash, err := hashstructure.Hash(r, hashstructure.FormatV2, nil)
		if err != nil {
			return false
		}
		key := fmt.Sprintf("%d", hash)
		if _, ok := cache.Get(key); ok {
			return false
		}
		cache.Add(key, true)
		return true
	}
}
