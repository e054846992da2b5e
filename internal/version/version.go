// Package version orders upstream version strings.
//
// The default comparator is plain byte-wise string comparison, so "1.2" sorts
// above "1.10". Cached data and user-visible ordering depend on it; switch to
// the semver comparator only as a deliberate configuration choice.
package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Comparator orders two version strings. It returns -1, 0 or 1.
type Comparator interface {
	Compare(a, b string) int
	Name() string
}

// Mode names accepted by ForMode.
const (
	ModeLexical = "lexical"
	ModeSemver  = "semver"
)

// Lexical compares versions as plain strings.
type Lexical struct{}

func (Lexical) Compare(a, b string) int { return strings.Compare(a, b) }

func (Lexical) Name() string { return ModeLexical }

// Semver compares versions that parse as semantic versions numerically and
// falls back to string order when either side does not parse.
type Semver struct{}

func (Semver) Compare(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return va.Compare(vb)
}

func (Semver) Name() string { return ModeSemver }

// Default is the comparator used when none is configured.
var Default Comparator = Lexical{}

// ForMode returns the comparator for a configuration value. An empty mode means lexical.
func ForMode(mode string) (Comparator, error) {
	switch strings.ToLower(mode) {
	case "", ModeLexical:
		return Lexical{}, nil
	case ModeSemver:
		return Semver{}, nil
	default:
		return nil, fmt.Errorf("unknown version comparator %q (must be %s or %s)", mode, ModeLexical, ModeSemver)
	}
}

// Greater reports whether a orders strictly above b.
func Greater(cmp Comparator, a, b string) bool {
	return cmp.Compare(a, b) > 0
}

// Max returns the greatest of versions, or "" for an empty slice.
func Max(cmp Comparator, versions []string) string {
	var best string
	for i, v := range versions {
		if i == 0 || cmp.Compare(v, best) > 0 {
			best = v
		}
	}
	return best
}
