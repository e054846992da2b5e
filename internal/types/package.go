package types

import (
	"fmt"
	"net/url"
	"time"

	packageurl "github.com/package-url/packageurl-go"
)

// Status is the aggregator's lifecycle classification of a package in one repository.
type Status string

const (
	StatusOutdated  Status = "outdated"
	StatusNewest    Status = "newest"
	StatusDevel     Status = "devel"
	StatusUnique    Status = "unique"
	StatusLegacy    Status = "legacy"
	StatusIncorrect Status = "incorrect"
	StatusUntrusted Status = "untrusted"
	StatusNoScheme  Status = "noscheme"
	StatusRolling   Status = "rolling"
	StatusUnknown   Status = "unknown"
)

var knownStatuses = map[Status]bool{
	StatusOutdated:  true,
	StatusNewest:    true,
	StatusDevel:     true,
	StatusUnique:    true,
	StatusLegacy:    true,
	StatusIncorrect: true,
	StatusUntrusted: true,
	StatusNoScheme:  true,
	StatusRolling:   true,
	StatusUnknown:   true,
}

// ParseStatus maps a raw status string onto Status. Unrecognised values become StatusUnknown.
func ParseStatus(s string) Status {
	st := Status(s)
	if knownStatuses[st] {
		return st
	}
	return StatusUnknown
}

// Untrusted reports whether versions carrying this status are ignored when picking a newest version.
func (s Status) Untrusted() bool {
	return s == StatusLegacy || s == StatusIncorrect || s == StatusUntrusted
}

// Source names which upstream a record's newest version comes from.
const (
	SourceAggregator = "aggregator"
	SourceRegistry   = "registry"
)

// RegistryRepository is the repository tag given to records known only to the registry.
const RegistryRepository = "altsisyphus"

// PackageRecord is the merged view of one package in one repository for one maintainer.
type PackageRecord struct {
	Name                    string   `json:"name"`
	Repository              string   `json:"repository"`
	InstalledVersion        string   `json:"installed_version"`
	Status                  Status   `json:"status"`
	AggregatorNewestVersion string   `json:"aggregator_newest_version,omitempty"`
	Summary                 string   `json:"summary,omitempty"`
	Licenses                []string `json:"licenses,omitempty"`
	Categories              []string `json:"categories,omitempty"`
	SourceURL               string   `json:"source_url,omitempty"`

	RegistryPackageName   string `json:"registry_package_name,omitempty"`
	RegistryNewestVersion string `json:"registry_newest_version,omitempty"`
	RegistryUpdateURL     string `json:"registry_update_url,omitempty"`
	RegistryUpdateDate    string `json:"registry_update_date,omitempty"`

	// PrefersRegistry marks the registry's newest version as the one to trust.
	// Always implies Status == StatusOutdated.
	PrefersRegistry bool `json:"prefers_registry"`
}

// IsOutdated reports whether the package is behind upstream.
func (r PackageRecord) IsOutdated() bool {
	return r.Status == StatusOutdated
}

// EffectiveNewestVersion returns the newest version from the preferred source,
// falling back to whichever source has one.
func (r PackageRecord) EffectiveNewestVersion() string {
	if r.PrefersRegistry {
		if r.RegistryNewestVersion != "" {
			return r.RegistryNewestVersion
		}
		return r.AggregatorNewestVersion
	}
	if r.AggregatorNewestVersion != "" {
		return r.AggregatorNewestVersion
	}
	return r.RegistryNewestVersion
}

// Source returns SourceRegistry or SourceAggregator.
func (r PackageRecord) Source() string {
	if r.PrefersRegistry {
		return SourceRegistry
	}
	return SourceAggregator
}

// Key returns the (name, repository) natural key.
func (r PackageRecord) Key() RecordKey {
	return RecordKey{Name: r.Name, Repository: r.Repository}
}

// AggregatorURL links to the project's version overview.
func (r PackageRecord) AggregatorURL() string {
	return fmt.Sprintf("https://repology.org/project/%s/versions", url.PathEscape(r.Name))
}

// PackageURL returns a purl for the registry package, or "" when the registry name is unknown.
func (r PackageRecord) PackageURL() string {
	if r.RegistryPackageName == "" {
		return ""
	}
	return packageurl.NewPackageURL(packageurl.TypeRPM, "altlinux", r.RegistryPackageName,
		r.InstalledVersion, nil, "").ToString()
}

// String renders "name: 1.0 -> 2.0 (outdated) [registry]".
func (r PackageRecord) String() string {
	newest := r.EffectiveNewestVersion()
	if r.IsOutdated() && newest != "" {
		return fmt.Sprintf("%s: %s -> %s (%s) [%s]", r.Name, r.InstalledVersion, newest, r.Status, r.Source())
	}
	return fmt.Sprintf("%s: %s (%s) [%s]", r.Name, r.InstalledVersion, r.Status, r.Source())
}

// RecordKey identifies a record within one maintainer's package set.
type RecordKey struct {
	Name       string
	Repository string
}

// CachedRecord is a PackageRecord as persisted for an identifier.
type CachedRecord struct {
	Identifier string
	Record     PackageRecord
	FetchedAt  time.Time
}

// Stats summarises one maintainer's package set.
type Stats struct {
	Identifier string     `json:"identifier"`
	Total      int        `json:"total"`
	Outdated   int        `json:"outdated"`
	Newest     int        `json:"newest"`
	Other      int        `json:"other"`
	LastCheck  *time.Time `json:"last_check,omitempty"`
}

// OutdatedPercentage returns the outdated share in percent, 0 for an empty set.
func (s Stats) OutdatedPercentage() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Outdated) / float64(s.Total) * 100
}
