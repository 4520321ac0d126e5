// Package deliver bundles acquired documents and mails them out with the
// digest report.
package deliver

// Item is one artifact destined for a bundle.
type Item struct {
	Path string
	Size int64
}

// Pack groups items into bundles whose total size stays at or under
// ceiling bytes. First-fit in arrival order: each item lands in the first
// open group with room, otherwise a new group opens. An item larger than
// the ceiling still gets a group of its own rather than being dropped.
func Pack(items []Item, ceiling int64) [][]Item {
	var groups [][]Item
	var sizes []int64

	for _, it := range items {
		placed := false
		for i := range groups {
			if sizes[i]+it.Size <= ceiling {
				groups[i] = append(groups[i], it)
				sizes[i] += it.Size
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []Item{it})
			sizes = append(sizes, it.Size)
		}
	}
	return groups
}
