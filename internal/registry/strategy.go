package registry

import "strings"

// nameStrategy generates candidate registry names for aggregator projects with a given prefix.
type nameStrategy struct {
	prefix     string
	candidates func(base string) []string
}

// nameStrategies is consulted in order; the first matching prefix wins.
// The empty prefix matches everything and must stay last.
var nameStrategies = []nameStrategy{
	{
		prefix: "python:",
		candidates: func(base string) []string {
			return []string{"python3-module-" + base, base}
		},
	},
	{
		prefix: "perl:",
		candidates: func(base string) []string {
			return []string{"perl-" + base, base}
		},
	},
	{
		prefix: "",
		candidates: func(base string) []string {
			return []string{base}
		},
	},
}

// CandidateNames returns the registry names to try, in order, for an aggregator project name.
// The base name is the text after the last colon.
func CandidateNames(aggregatorName string) []string {
	base := aggregatorName
	if i := strings.LastIndex(aggregatorName, ":"); i >= 0 {
		base = aggregatorName[i+1:]
	}
	if base == "" {
		return nil
	}

	for _, s := range nameStrategies {
		if strings.HasPrefix(aggregatorName, s.prefix) {
			return s.candidates(base)
		}
	}
	return []string{base}
}
