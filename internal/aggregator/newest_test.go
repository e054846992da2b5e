package aggregator

import (
	"testing"

	"github.com/daimoniac/pkgwatch/internal/types"
	"github.com/daimoniac/pkgwatch/internal/version"
)

func TestNewestVersion(t *testing.T) {
	tests := []struct {
		name    string
		records []types.RepoRecord
		want    string
	}{
		{
			name: "first newest record wins",
			records: []types.RepoRecord{
				{Repo: "a", Version: "3.0", Status: types.StatusDevel},
				{Repo: "b", Version: "2.0", Status: types.StatusNewest},
				{Repo: "c", Version: "2.1", Status: types.StatusNewest},
			},
			want: "2.0",
		},
		{
			name: "max over trusted statuses",
			records: []types.RepoRecord{
				{Repo: "a", Version: "1.0", Status: types.StatusOutdated},
				{Repo: "b", Version: "1.5", Status: types.StatusUnique},
				{Repo: "c", Version: "9.0", Status: types.StatusLegacy},
				{Repo: "d", Version: "8.0", Status: types.StatusIncorrect},
				{Repo: "e", Version: "7.0", Status: types.StatusUntrusted},
			},
			want: "1.5",
		},
		{
			name: "lexical ordering",
			records: []types.RepoRecord{
				{Repo: "a", Version: "1.10", Status: types.StatusOutdated},
				{Repo: "b", Version: "1.9", Status: types.StatusOutdated},
			},
			want: "1.9",
		},
		{
			name: "only untrusted records",
			records: []types.RepoRecord{
				{Repo: "a", Version: "1.0", Status: types.StatusLegacy},
			},
			want: "",
		},
		{
			name:    "no records",
			records: nil,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewestVersion(tt.records, version.Default); got != tt.want {
				t.Errorf("NewestVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewestVersion_Semver(t *testing.T) {
	records := []types.RepoRecord{
		{Repo: "a", Version: "1.10", Status: types.StatusOutdated},
		{Repo: "b", Version: "1.9", Status: types.StatusOutdated},
	}
	if got := NewestVersion(records, version.Semver{}); got != "1.10" {
		t.Errorf("NewestVersion() = %q, want 1.10", got)
	}
}
