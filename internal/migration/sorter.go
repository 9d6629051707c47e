package migration

import "sort"

// Sort returns a new slice of migrations sorted ascending by Version.
// Versions are zero-padded by convention, so lexicographic order matches
// numeric magnitude regardless of the directory-listing order the entries
// arrived in. The sort is stable to preserve insertion order for equal keys.
func Sort(migrations []Migration) []Migration {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})

	return sorted
}
