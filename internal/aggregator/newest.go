package aggregator

import (
	"github.com/daimoniac/pkgwatch/internal/types"
	"github.com/daimoniac/pkgwatch/internal/version"
)

// NewestVersion picks a project's newest version from all of its repository records.
// The first record with status newest wins. Otherwise the greatest version among
// trusted records is used, or "" if there is none.
func NewestVersion(records []types.RepoRecord, cmp version.Comparator) string {
	for _, rec := range records {
		if rec.Status == types.StatusNewest && rec.Version != "" {
			return rec.Version
		}
	}

	var candidates []string
	for _, rec := range records {
		if rec.Status.Untrusted() || rec.Version == "" {
			continue
		}
		candidates = append(candidates, rec.Version)
	}

	return version.Max(cmp, candidates)
}
