package domain

import (
	"time"
)

// Tier is the subscription level governing scan allowance
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"

	// TierGuest only ever appears in scan decisions; guests have no
	// server-side entitlement record.
	TierGuest Tier = "guest"
)

// Scan allowances per tier. Guest scans are counted client-side, free
// scans per UTC calendar day, pro is unlimited.
const (
	GuestScanLimit = 2
	FreeScanLimit  = 10
)

// UnlimitedScans marks an unbounded remaining allowance in a ScanDecision.
const UnlimitedScans = -1

// EntitlementRecord is the durable per-user record of what the user is
// allowed to do: tier, expiry, scan usage and the issued OCR API key.
type EntitlementRecord struct {
	UserID                string     `json:"user_id"`
	Email                 string     `json:"email,omitempty"`
	FullName              string     `json:"full_name,omitempty"`
	Tier                  Tier       `json:"tier"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`
	ScanCount             int        `json:"scan_count"`
	ScanCountDate         time.Time  `json:"scan_count_date"`
	APIKey                string     `json:"api_key,omitempty"`
	APIKeyID              string     `json:"api_key_id,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// Expired reports whether a pro subscription has lapsed at the given time.
func (r *EntitlementRecord) Expired(now time.Time) bool {
	return r.Tier == TierPro && r.SubscriptionExpiresAt != nil && r.SubscriptionExpiresAt.Before(now)
}

// EffectiveTier returns the tier all readers must act on: pro with an
// expiry in the past is logically free (lazy expiry, no stored downgrade).
func (r *EntitlementRecord) EffectiveTier(now time.Time) Tier {
	if r.Expired(now) {
		return TierFree
	}
	if r.Tier == "" {
		return TierFree
	}
	return r.Tier
}

// EffectiveScanCount returns the free-tier scan count for the current
// counting window. A count recorded on a previous UTC calendar day reads
// as zero; the stored row is rolled forward on the next increment, not
// here (reads never mutate).
func (r *EntitlementRecord) EffectiveScanCount(now time.Time) int {
	if r.ScanCountDate.Before(dayStartUTC(now)) {
		return 0
	}
	return r.ScanCount
}

// dayStartUTC truncates a time to the start of its UTC calendar day.
func dayStartUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EntitlementUpdate is a partial, last-write-wins update of an
// EntitlementRecord. Nil fields are left untouched.
type EntitlementUpdate struct {
	Tier                  *Tier
	SubscriptionExpiresAt *time.Time
	ScanCount             *int
	APIKey                *string
	APIKeyID              *string
}

// ScanDecision is the Scan Gate's answer to "may this caller scan now".
// Limit-reached outcomes are normal values here, never errors.
type ScanDecision struct {
	Allowed         bool `json:"allowed"`
	Remaining       int  `json:"remaining"` // UnlimitedScans for pro
	Tier            Tier `json:"tier"`
	RequiresLogin   bool `json:"requires_login"`
	RequiresUpgrade bool `json:"requires_upgrade"`
}
