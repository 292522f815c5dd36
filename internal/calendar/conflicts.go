package calendar

import "sort"

// FindConflictGroups clusters concrete occurrences into maximal groups
// of transitively overlapping events: connected components of the
// overlap graph, where two events conflict iff they fall on the same
// calendar day and their [start, end) intervals intersect. Groups with
// a single member are omitted. Input order is not required; each group
// and the result are sorted by start time.
func FindConflictGroups(events []Event) [][]Event {
	n := len(events)
	if n < 2 {
		return nil
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if conflicts(events[i], events[j]) {
				union(i, j)
			}
		}
	}

	members := make(map[int][]Event)
	for i := range events {
		root := find(i)
		members[root] = append(members[root], events[i])
	}

	var groups [][]Event
	for _, group := range members {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(a, b int) bool { return group[a].Start.Before(group[b].Start) })
		groups = append(groups, group)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a][0].Start.Before(groups[b][0].Start) })
	return groups
}

func conflicts(a, b Event) bool {
	if !SameDay(a.Start, b.Start) {
		return false
	}
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}
