package hydrate

type group struct {
	key  []any
	rows []Row
}

// groupRows buckets rows by the level's identity in first-seen order. Rows with
// a null identity are skipped. Without keyBy every row is its own group.
func groupRows(l level, rows []Row) []group {
	var groups []group
	if len(l.spec.keyBy) == 0 {
		for _, row := range rows {
			groups = append(groups, group{rows: []Row{row}})
		}
		return groups
	}

	index := make(map[string]int)
	for _, row := range rows {
		key, ok := l.identity(row)
		if !ok {
			continue
		}
		k := encodeKey(key)
		if i, seen := index[k]; seen {
			groups[i].rows = append(groups[i].rows, row)
			continue
		}
		index[k] = len(groups)
		groups = append(groups, group{key: key, rows: []Row{row}})
	}
	return groups
}
