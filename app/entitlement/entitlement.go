// Package entitlement derives a company's billing entitlement from its
// subscription snapshot and the wall clock. Expiry is never stored for
// correctness; it is computed here on every read, so a missed sweep or clock
// drift cannot grant access to a lapsed tenant.
package entitlement

import (
	"time"

	"github.com/Rans7ord/Construction-sub000/app/entity"
)

type Entitlement struct {
	IsActive        bool
	IsTrial         bool
	IsExpired       bool
	DaysLeftInTrial int
}

// Evaluate is pure and total: identical inputs always yield identical
// output, and no input panics. A nil subscription evaluates to expired.
func Evaluate(sub *entity.Subscription, now time.Time) Entitlement {
	if sub == nil {
		return Entitlement{IsExpired: true}
	}

	switch sub.Status {
	case entity.SubscriptionStatusTrialing:
		days := daysLeft(sub.TrialEndsAt, now)
		return Entitlement{
			IsActive:        days > 0,
			IsTrial:         true,
			IsExpired:       days <= 0,
			DaysLeftInTrial: days,
		}
	case entity.SubscriptionStatusActive:
		active := sub.CurrentPeriodEnd == nil || sub.CurrentPeriodEnd.After(now)
		return Entitlement{
			IsActive:  active,
			IsExpired: !active,
		}
	default:
		return Entitlement{IsExpired: true}
	}
}

// daysLeft is ceil(remaining / 24h), floored at zero. A trialing row with no
// recorded end is treated as already over rather than open-ended.
func daysLeft(until *time.Time, now time.Time) int {
	if until == nil {
		return 0
	}
	remaining := until.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := remaining / (24 * time.Hour)
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return int(days)
}
