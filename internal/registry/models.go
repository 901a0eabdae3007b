package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/inaiurai/whitelist/internal/clock"
)

const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

// ExtensionPolicy decides how a grant on an existing key computes the new expiry.
type ExtensionPolicy string

const (
	// PolicyReplace sets expiry = now + duration.
	PolicyReplace ExtensionPolicy = "replace"
	// PolicyExtend adds duration to a still-active expiry and falls back to
	// now + duration once the entry has expired.
	PolicyExtend ExtensionPolicy = "extend"
)

func ParsePolicy(s string) (ExtensionPolicy, error) {
	switch p := ExtensionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyReplace, PolicyExtend:
		return p, nil
	case "":
		return PolicyReplace, nil
	default:
		return "", fmt.Errorf("unknown extension policy %q", s)
	}
}

// Key is the identity of an entry.
type Key struct {
	UID    string
	Region string
}

// Record is the stored form of an entry. Status is never stored.
type Record struct {
	UID       string
	Region    string
	ExpiresAt time.Time
}

func (r Record) Key() Key { return Key{UID: r.UID, Region: r.Region} }

// Entry is a Record with status and time remaining derived against one clock reading.
type Entry struct {
	UID           string `json:"uid"`
	Region        string `json:"region"`
	Expiry        int64  `json:"expiry"`
	Status        string `json:"status"`
	TimeRemaining int64  `json:"time_remaining"`
}

// At derives the entry as seen at now.
func (r Record) At(now time.Time) Entry {
	status := StatusExpired
	if r.ExpiresAt.After(now) {
		status = StatusActive
	}
	return Entry{
		UID:           r.UID,
		Region:        r.Region,
		Expiry:        r.ExpiresAt.Unix(),
		Status:        status,
		TimeRemaining: clock.Remaining(r.ExpiresAt, now),
	}
}

func (e Entry) Active() bool { return e.Status == StatusActive }

// UpsertParams carries everything a store needs to apply a grant atomically.
type UpsertParams struct {
	UID      string
	Region   string
	Now      time.Time
	Duration time.Duration
	Policy   ExtensionPolicy
}

// NextExpiry applies the policy to the current expiry. current is nil when no entry exists.
func (p UpsertParams) NextExpiry(current *time.Time) time.Time {
	if p.Policy == PolicyExtend && current != nil && current.After(p.Now) {
		return current.Add(p.Duration)
	}
	return p.Now.Add(p.Duration)
}

// Stats summarises the registry at one instant.
type Stats struct {
	Total    int            `json:"total_entries"`
	Active   int            `json:"active_entries"`
	Expired  int            `json:"expired_entries"`
	ByRegion map[string]int `json:"by_region"`
}
