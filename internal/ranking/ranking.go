// Package ranking selects the files shown in the largest-files table.
package ranking

import (
	"sort"
	"strings"

	"github.com/phobologic/codecounter/internal/model"
)

// TopFiles returns the n files with the most lines, most first. Ties keep
// path order. If n is <= 0 no files are returned; generated files never are.
func TopFiles(files []*model.FileResult, n int) []model.FileResult {
	if n <= 0 {
		return nil
	}

	var selected []model.FileResult
	for _, f := range files {
		if f.Generated || f.Counts.Lines == 0 {
			continue
		}
		selected = append(selected, *f)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].Counts.Lines != selected[j].Counts.Lines {
			return selected[i].Counts.Lines > selected[j].Counts.Lines
		}
		return selected[i].Path < selected[j].Path
	})

	if n < len(selected) {
		selected = selected[:n]
	}
	return selected
}

// FilterByPath returns the files whose path contains substr
// (case-insensitive), in their original order.
func FilterByPath(files []*model.FileResult, substr string) []*model.FileResult {
	if substr == "" {
		return files
	}
	lower := strings.ToLower(substr)

	var out []*model.FileResult
	for _, f := range files {
		if strings.Contains(strings.ToLower(f.Path), lower) {
			out = append(out, f)
		}
	}
	return out
}
