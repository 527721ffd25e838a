package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/bridgeos/internal/adapter/observability"
	"github.com/fairyhunter13/bridgeos/internal/domain"
)

// BillingEvent is the normalized form of one billing webhook delivery.
// Cancelled carries the provider's cancelled flag, which rides along on
// attribute-refresh events instead of a dedicated event kind.
type BillingEvent struct {
	EventName  string
	ManagerID  int64
	ExternalID string
	PortalURL  string
	RenewsAt   *time.Time
	EndsAt     *time.Time
	Cancelled  bool
}

// eventStatus maps provider event names onto subscription states. Unknown
// events are acknowledged and dropped, so new provider events never break
// the receiver.
var eventStatus = map[string]domain.SubscriptionStatus{
	"subscription_created":           domain.SubscriptionActive,
	"subscription_resumed":           domain.SubscriptionActive,
	"subscription_payment_recovered": domain.SubscriptionActive,
	"subscription_cancelled":         domain.SubscriptionCancelled,
	"subscription_expired":           domain.SubscriptionExpired,
	"subscription_payment_failed":    domain.SubscriptionPaused,
	"subscription_paused":            domain.SubscriptionPaused,
}

// refreshEvents carry fresh renewal dates and portal URLs but no status
// transition of their own; the stored status survives unless the payload's
// cancelled flag is set.
var refreshEvents = map[string]bool{
	"subscription_updated":         true,
	"subscription_plan_changed":    true,
	"subscription_payment_success": true,
}

// SubscriptionService answers entitlement questions and applies billing
// events.
type SubscriptionService struct {
	Subscriptions domain.SubscriptionRepository
	Usage         domain.UsageRepository

	CheckoutBaseURL string
	MonthlyPriceUSD float64
}

// Current returns the manager's subscription; a manager the biller has
// never seen is on the free tier.
func (s SubscriptionService) Current(ctx domain.Context, managerID int64) (domain.Subscription, error) {
	sub, err := s.Subscriptions.GetByManager(ctx, managerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Subscription{ManagerID: managerID, Status: domain.SubscriptionFree}, nil
		}
		return domain.Subscription{}, err
	}
	return sub, nil
}

// Entitled reports whether the manager currently has unlimited messaging.
func (s SubscriptionService) Entitled(ctx domain.Context, managerID int64) (bool, error) {
	sub, err := s.Current(ctx, managerID)
	if err != nil {
		return false, err
	}
	return sub.Entitled(time.Now().UTC()), nil
}

// CheckoutURL builds the hosted checkout link with the manager id riding
// along as custom data, so the webhook can route the resulting events.
func (s SubscriptionService) CheckoutURL(managerID int64) string {
	return fmt.Sprintf("%s?checkout[custom][manager_id]=%d", s.CheckoutBaseURL, managerID)
}

// PortalURL returns the stored customer portal link, or "" when the
// provider has not issued one yet.
func (s SubscriptionService) PortalURL(ctx domain.Context, managerID int64) (string, error) {
	sub, err := s.Current(ctx, managerID)
	if err != nil {
		return "", err
	}
	return sub.CustomerPortalURL, nil
}

// ApplyEvent folds one billing event into the stored state. Replays
// converge: the upsert is keyed on manager id and writes the same values.
// Becoming entitled clears the free-tier block.
func (s SubscriptionService) ApplyEvent(ctx domain.Context, ev BillingEvent) error {
	if ev.ManagerID == 0 {
		observability.WebhookEventsTotal.WithLabelValues(ev.EventName, "invalid").Inc()
		return fmt.Errorf("%w: event without manager id", domain.ErrInvalidArgument)
	}
	status, ok := eventStatus[ev.EventName]
	if !ok && !refreshEvents[ev.EventName] {
		slog.Info("ignoring unknown billing event", slog.String("event", ev.EventName), slog.Int64("manager_id", ev.ManagerID))
		observability.WebhookEventsTotal.WithLabelValues(ev.EventName, "ignored").Inc()
		return nil
	}
	if !ok {
		var err error
		status, err = s.refreshedStatus(ctx, ev)
		if err != nil {
			observability.WebhookEventsTotal.WithLabelValues(ev.EventName, "error").Inc()
			return err
		}
	}

	sub := domain.Subscription{
		ManagerID:         ev.ManagerID,
		ExternalID:        ev.ExternalID,
		Status:            status,
		CustomerPortalURL: ev.PortalURL,
		RenewsAt:          ev.RenewsAt,
		EndsAt:            ev.EndsAt,
	}
	if err := s.Subscriptions.Upsert(ctx, sub); err != nil {
		observability.WebhookEventsTotal.WithLabelValues(ev.EventName, "error").Inc()
		return err
	}
	if sub.Entitled(time.Now().UTC()) {
		if err := s.Usage.Reset(ctx, ev.ManagerID); err != nil {
			// The subscription state is already committed; the block will
			// also fall away on the next entitlement check.
			slog.Error("usage reset failed", slog.Int64("manager_id", ev.ManagerID), slog.Any("error", err))
		}
	}
	observability.WebhookEventsTotal.WithLabelValues(ev.EventName, "applied").Inc()
	return nil
}

// refreshedStatus resolves the status an attribute-refresh event leaves
// behind: the stored one, overridden to cancelled when the payload says so.
// A refresh for a manager the biller never introduced behaves like a create.
func (s SubscriptionService) refreshedStatus(ctx domain.Context, ev BillingEvent) (domain.SubscriptionStatus, error) {
	if ev.Cancelled {
		return domain.SubscriptionCancelled, nil
	}
	stored, err := s.Subscriptions.GetByManager(ctx, ev.ManagerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.SubscriptionActive, nil
		}
		return "", err
	}
	if stored.Status == domain.SubscriptionFree {
		return domain.SubscriptionActive, nil
	}
	return stored.Status, nil
}
