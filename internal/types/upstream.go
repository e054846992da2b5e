package types

// RepoRecord is one repository's entry for an aggregator project.
type RepoRecord struct {
	Repo        string   `json:"repo"`
	Version     string   `json:"version"`
	Status      Status   `json:"status"`
	Maintainers []string `json:"maintainers,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Licenses    []string `json:"licenses,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	SourceURL   string   `json:"source_url,omitempty"`
}

// HasMaintainer reports whether identifier is listed among the record's maintainers.
func (r RepoRecord) HasMaintainer(identifier string) bool {
	for _, m := range r.Maintainers {
		if m == identifier {
			return true
		}
	}
	return false
}

// ProjectGroup is an aggregator project with the records kept for a maintainer.
// NewestVersion is computed over all of the project's records, before filtering.
type ProjectGroup struct {
	ProjectName   string
	NewestVersion string
	Records       []RepoRecord
}

// RegistryPackage is an outdated package reported by the registry for a maintainer.
type RegistryPackage struct {
	RegistryName   string
	OldVersion     string
	NewVersion     string
	AggregatorName string
	UpdateURL      string
	UpdateDate     string
}

// RegistrySummary is one hit of a registry package search.
type RegistrySummary struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Release    string `json:"release"`
	Branch     string `json:"branch"`
	Maintainer string `json:"maintainer"`
	Summary    string `json:"summary"`
	URL        string `json:"url"`
}

// RegistryDetails describes a single registry package on a branch.
type RegistryDetails struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Release     string `json:"release"`
	Epoch       int    `json:"epoch"`
	Arch        string `json:"arch"`
	Branch      string `json:"branch"`
	Maintainer  string `json:"maintainer"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	License     string `json:"license"`
	URL         string `json:"url"`
	SourceRPM   string `json:"source_rpm"`
	BuildTime   string `json:"build_time"`
	Packager    string `json:"packager"`
}
