// Package source loads row sets from external formats and databases into
// core.Row values, keeping the column order the source reports.
//
// Loaders never guess types. They hand back raw values (strings for text
// formats, driver values for databases, typed values for Arrow) and leave
// classification to core.Vector.
package source

import (
	"fmt"
	"strings"
)

// headerKeys turns raw header cells into unique, non-empty row keys.
// Blank headers become column_N (1-based); repeats get a _2, _3 suffix.
func headerKeys(cells []string) []string {
	keys := make([]string, len(cells))
	used := make(map[string]bool, len(cells))

	for i, c := range cells {
		base := strings.TrimSpace(c)
		if base == "" {
			base = fmt.Sprintf("column_%d", i+1)
		}
		k := base
		for n := 2; used[k]; n++ {
			k = fmt.Sprintf("%s_%d", base, n)
		}
		used[k] = true
		keys[i] = k
	}
	return keys
}
