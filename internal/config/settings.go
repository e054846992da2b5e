package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/daimoniac/pkgwatch/internal/errors"
	"github.com/daimoniac/pkgwatch/internal/policy"
	"github.com/daimoniac/pkgwatch/internal/types"
	"github.com/daimoniac/pkgwatch/internal/version"
)

// ParseSettings reads and parses a pkgwatch.yml settings file
func ParseSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewTransientf("failed to read settings file: %w", err)
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, errors.NewPermanentf("failed to parse settings YAML: %w", err)
	}

	return &settings, nil
}

// Validate checks intervals, nicknames, comparator mode and policy expressions.
func (s *Settings) Validate() error {
	for field, value := range map[string]string{
		"freshness":            s.Defaults.Freshness,
		"retention":            s.Defaults.Retention,
		"refresh-interval":     s.Defaults.RefreshInterval,
		"worker-poll-interval": s.Defaults.WorkerPollInterval,
		"worker-retry-backoff": s.Defaults.WorkerRetryBackoff,
	} {
		if value == "" {
			continue
		}
		if _, err := ParseInterval(value); err != nil {
			return errors.NewPermanentf("defaults.%s: %w", field, err)
		}
	}

	if s.Defaults.VersionCompare != "" {
		if _, err := version.ForMode(s.Defaults.VersionCompare); err != nil {
			return errors.NewPermanentf("defaults.version-compare: %w", err)
		}
	}
	if err := validatePolicy(s.Defaults.Policy); err != nil {
		return errors.NewPermanentf("defaults.policy: %w", err)
	}

	seen := make(map[string]bool)
	for i, m := range s.Maintainers {
		if !types.ValidNickname(m.Nickname) {
			return errors.NewPermanentf("maintainers[%d]: invalid nickname %q", i, m.Nickname)
		}
		id := m.ResolvedIdentifier()
		if seen[id] {
			return errors.NewPermanentf("maintainers[%d]: duplicate identifier %s", i, id)
		}
		seen[id] = true

		if m.RefreshInterval != "" {
			if _, err := ParseInterval(m.RefreshInterval); err != nil {
				return errors.NewPermanentf("maintainers[%d].refresh-interval: %w", i, err)
			}
		}
		if err := validatePolicy(m.Policy); err != nil {
			return errors.NewPermanentf("maintainers[%d].policy: %w", i, err)
		}
	}

	return nil
}

func validatePolicy(p *PolicyConfig) error {
	if p == nil || p.Expression == "" {
		return nil
	}
	_, err := policy.NewEngine(nil, policy.PolicyConfig{Expression: p.Expression})
	return err
}

// ResolvedIdentifier returns the explicit identifier, or nickname@altlinux.org.
func (m MaintainerEntry) ResolvedIdentifier() string {
	if m.Identifier != "" {
		return m.Identifier
	}
	return types.EmailForNickname(m.Nickname)
}

// GetMaintainer returns the entry whose resolved identifier matches, or nil.
func (s *Settings) GetMaintainer(identifier string) *MaintainerEntry {
	for i := range s.Maintainers {
		if s.Maintainers[i].ResolvedIdentifier() == identifier {
			return &s.Maintainers[i]
		}
	}
	return nil
}

// GetPolicyFor returns the maintainer's policy if specified, otherwise the
// default, otherwise nil.
func (s *Settings) GetPolicyFor(identifier string) *PolicyConfig {
	if m := s.GetMaintainer(identifier); m != nil && m.Policy != nil {
		return m.Policy
	}
	return s.Defaults.Policy
}

// GetRefreshInterval returns the maintainer's refresh interval if specified,
// otherwise the default, otherwise 6h.
func (s *Settings) GetRefreshInterval(identifier string) (time.Duration, error) {
	if m := s.GetMaintainer(identifier); m != nil && m.RefreshInterval != "" {
		return ParseInterval(m.RefreshInterval)
	}
	if s.Defaults.RefreshInterval != "" {
		return ParseInterval(s.Defaults.RefreshInterval)
	}
	return 6 * time.Hour, nil
}

// GetNicknameMapping returns the identifier to nickname overrides.
func (s *Settings) GetNicknameMapping() map[string]string {
	if s.Defaults.NicknameMapping == nil {
		return map[string]string{}
	}
	return s.Defaults.NicknameMapping
}

// GetDistributionRepos returns the repositories enriched with registry names.
func (s *Settings) GetDistributionRepos() []string {
	return s.Defaults.DistributionRepos
}

func (s *Settings) intervalOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := ParseInterval(value)
	if err != nil {
		return fallback
	}
	return d
}
