package domain

import "time"

// SubscriptionStatus is the billing lifecycle state mirrored from the
// payment provider, plus the local default "free".
type SubscriptionStatus string

const (
	SubscriptionFree      SubscriptionStatus = "free"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionPaused    SubscriptionStatus = "paused"
)

// Entitled reports whether the subscription grants unlimited messaging at
// the instant now. A cancelled subscription keeps its entitlement until the
// paid period runs out; every other non-active state does not entitle.
func (s Subscription) Entitled(now time.Time) bool {
	switch s.Status {
	case SubscriptionActive:
		return true
	case SubscriptionCancelled:
		return s.EndsAt != nil && s.EndsAt.After(now)
	default:
		return false
	}
}
