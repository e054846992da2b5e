package types

// RecordConverter builds PackageRecords from upstream shapes.
type RecordConverter struct{}

// NewRecordConverter creates a new RecordConverter instance.
func NewRecordConverter() *RecordConverter {
	return &RecordConverter{}
}

// FromRepoRecord converts one aggregator repository entry into a PackageRecord.
func (c *RecordConverter) FromRepoRecord(project, newest string, rec RepoRecord) PackageRecord {
	status := rec.Status
	if status == "" {
		status = StatusUnknown
	}
	version := rec.Version
	if version == "" {
		version = "unknown"
	}
	return PackageRecord{
		Name:                    project,
		Repository:              rec.Repo,
		InstalledVersion:        version,
		Status:                  status,
		AggregatorNewestVersion: newest,
		Summary:                 rec.Summary,
		Licenses:                rec.Licenses,
		Categories:              rec.Categories,
		SourceURL:               rec.SourceURL,
	}
}

// FromGroups flattens project groups into PackageRecords in input order.
func (c *RecordConverter) FromGroups(groups []ProjectGroup) []PackageRecord {
	var records []PackageRecord
	for _, g := range groups {
		for _, rec := range g.Records {
			records = append(records, c.FromRepoRecord(g.ProjectName, g.NewestVersion, rec))
		}
	}
	return records
}

// FromRegistryPackage synthesizes a record for a package the aggregator does not know.
// The registry only reports outdated packages, so the record is always outdated.
func (c *RecordConverter) FromRegistryPackage(reg RegistryPackage) PackageRecord {
	rec := PackageRecord{
		Name:             reg.AggregatorName,
		Repository:       RegistryRepository,
		InstalledVersion: reg.OldVersion,
		Status:           StatusOutdated,
		PrefersRegistry:  true,
	}
	c.StampRegistry(&rec, reg)
	return rec
}

// StampRegistry copies the registry's update metadata onto rec.
func (c *RecordConverter) StampRegistry(rec *PackageRecord, reg RegistryPackage) {
	rec.RegistryPackageName = reg.RegistryName
	rec.RegistryNewestVersion = reg.NewVersion
	rec.RegistryUpdateURL = reg.UpdateURL
	rec.RegistryUpdateDate = reg.UpdateDate
}
