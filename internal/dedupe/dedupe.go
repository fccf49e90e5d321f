// Package dedupe finds and removes duplicate local images. Grouping keys
// on exact perceptual-hash equality; the similarity-threshold predicate
// in imagehash is a separate near-duplicate query and deliberately plays
// no part in removal, which stays conservative.
package dedupe

import (
	"log/slog"
	"sort"

	"github.com/eerkela/pinsync/internal/collection"
)

// Remover deletes a local item's file. Satisfied by collection.LocalStore.
type Remover interface {
	Remove(c *collection.Container, item collection.LocalItem) error
}

// Groups buckets items by exact hash and returns only buckets holding
// more than one item. Candidates within a bucket are ordered id
// ascending; the id ordinal approximates creation time. Unhashed items
// (formats no decoder could read) are left out entirely; without a real
// hash there is no equality to key on.
func Groups(items []collection.LocalItem) map[uint64][]collection.LocalItem {
	buckets := make(map[uint64][]collection.LocalItem)

	for _, it := range items {
		if !it.Hashed {
			continue
		}

		buckets[it.Hash] = append(buckets[it.Hash], it)
	}

	duplicates := make(map[uint64][]collection.LocalItem)

	for hash, group := range buckets {
		if len(group) < 2 {
			continue
		}

		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		duplicates[hash] = group
	}

	return duplicates
}

// ChooseKeeper picks the surviving item from a duplicate group: the one
// with maximum pixel count, ties resolved to the oldest (smallest id).
// The group must be non-empty and ordered id ascending, as Groups
// produces it.
func ChooseKeeper(group []collection.LocalItem) collection.LocalItem {
	keeper := group[0]
	for _, it := range group[1:] {
		if it.Size > keeper.Size {
			keeper = it
		}
	}

	return keeper
}

// Resolve removes every non-keeper in every duplicate group and returns
// the removed items. At least one item per hash bucket always survives.
// The caller is responsible for issuing the matching remote delete for
// each removed id.
func Resolve(c *collection.Container, items []collection.LocalItem, store Remover, logger *slog.Logger) []collection.LocalItem {
	groups := Groups(items)

	// Iterate hashes in a fixed order so removal output is deterministic.
	hashes := make([]uint64, 0, len(groups))
	for hash := range groups {
		hashes = append(hashes, hash)
	}

	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	var removed []collection.LocalItem

	for _, hash := range hashes {
		group := groups[hash]
		keeper := ChooseKeeper(group)

		for _, it := range group {
			if it.ID == keeper.ID {
				continue
			}

			if err := store.Remove(c, it); err != nil {
				logger.Warn("removing duplicate",
					slog.String("path", it.Path),
					slog.String("error", err.Error()),
				)

				continue
			}

			logger.Info("removed duplicate",
				slog.String("path", it.Path),
				slog.String("kept", keeper.Path),
			)

			removed = append(removed, it)
		}
	}

	return removed
}
