package rtree

import "github.com/kailas-cloud/simsearch/internal/domain/geometry"

// quadraticSplit partitions items into two groups. Seeds are the pair wasting the
// most area when grouped together; the rest go one at a time to the group whose
// MBR enlarges least. Each group ends with at least minEntries members.
func quadraticSplit[T geometry.Bounded](items []T, minEntries int) (geometry.Group[T], geometry.Group[T]) {
	s1, s2 := pickSeeds(items)
	a := geometry.NewGroup(items[s1])
	b := geometry.NewGroup(items[s2])

	remaining := len(items) - 2
	for i, it := range items {
		if i == s1 || i == s2 {
			continue
		}
		// Force the rest into a group that would otherwise stay underfull.
		switch {
		case a.Len()+remaining <= minEntries:
			a = a.Add(it)
		case b.Len()+remaining <= minEntries:
			b = b.Add(it)
		case preferFirst(a, b, it.Bounds()):
			a = a.Add(it)
		default:
			b = b.Add(it)
		}
		remaining--
	}
	return a, b
}

func pickSeeds[T geometry.Bounded](items []T) (int, int) {
	s1, s2 := 0, 1
	bestWaste, bestMargin := -1.0, -1.0
	for i := 0; i < len(items); i++ {
		ri := items[i].Bounds()
		for j := i + 1; j < len(items); j++ {
			rj := items[j].Bounds()
			u := geometry.Union(ri, rj)
			waste := u.Area() - ri.Area() - rj.Area()
			// Points have zero area; margin separates them when every waste is zero.
			margin := u.Margin() - ri.Margin() - rj.Margin()
			if waste > bestWaste || (waste == bestWaste && margin > bestMargin) {
				s1, s2, bestWaste, bestMargin = i, j, waste, margin
			}
		}
	}
	return s1, s2
}

func preferFirst[T geometry.Bounded](a, b geometry.Group[T], r geometry.Rectangle) bool {
	ea, eb := a.MBR().Enlargement(r), b.MBR().Enlargement(r)
	if ea != eb {
		return ea < eb
	}
	aa, ab := a.MBR().Area(), b.MBR().Area()
	if aa != ab {
		return aa < ab
	}
	ma, mb := geometry.Union(a.MBR(), r).Margin(), geometry.Union(b.MBR(), r).Margin()
	if ma != mb {
		return ma < mb
	}
	return a.Len() <= b.Len()
}
