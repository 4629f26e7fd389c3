package tagger

import "sort"

// GroupByLocation builds one LocationGroup per distinct normalized prefix.
// Rows whose prefix normalizes to nothing are dropped. Groups come back
// sorted by prefix.
func GroupByLocation(rows []Row) []LocationGroup {
	index := make(map[string]int)
	seen := make(map[string]map[string]struct{})
	var groups []LocationGroup

	for _, row := range rows {
		prefix := NormalizePrefix(row.LocationPrefix)
		if prefix == "" || row.BaseFilename == "" {
			continue
		}

		i, ok := index[prefix]
		if !ok {
			i = len(groups)
			index[prefix] = i
			seen[prefix] = make(map[string]struct{})
			groups = append(groups, LocationGroup{Prefix: prefix})
		}

		if _, dup := seen[prefix][row.BaseFilename]; dup {
			continue
		}
		seen[prefix][row.BaseFilename] = struct{}{}
		groups[i].Filenames = append(groups[i].Filenames, row.BaseFilename)
	}

	sort.Slice(groups, func(a, b int) bool { return groups[a].Prefix < groups[b].Prefix })
	return groups
}
