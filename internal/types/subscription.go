package types

import (
	"regexp"
	"strings"
	"time"
)

// MaintainerDomain is the mail domain registry nicknames map onto.
const MaintainerDomain = "altlinux.org"

var nicknamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Subscription links a user to a registry maintainer.
type Subscription struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Nickname  string    `json:"nickname"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification records one delivered refresh result.
type Notification struct {
	ID            int64     `json:"id"`
	Identifier    string    `json:"identifier"`
	OutdatedCount int       `json:"outdated_count"`
	NotifiedCount int       `json:"notified_count"`
	Kind          string    `json:"kind"`
	SentAt        time.Time `json:"sent_at"`
}

// Notification kinds.
const (
	NotificationScheduled = "scheduled"
	NotificationManual    = "manual"
)

// EmailForNickname derives the aggregator identifier for a registry nickname.
func EmailForNickname(nickname string) string {
	return nickname + "@" + MaintainerDomain
}

// ValidNickname reports whether s looks like a registry nickname.
func ValidNickname(s string) bool {
	return nicknamePattern.MatchString(s)
}

// NicknameForIdentifier resolves the registry nickname for an aggregator identifier.
// An explicit mapping entry wins; otherwise the local part of an altlinux.org address is used.
func NicknameForIdentifier(identifier string, mapping map[string]string) (string, bool) {
	if nick, ok := mapping[identifier]; ok && nick != "" {
		return nick, true
	}
	local, domain, found := strings.Cut(identifier, "@")
	if !found || local == "" || !strings.EqualFold(domain, MaintainerDomain) {
		return "", false
	}
	return local, true
}
