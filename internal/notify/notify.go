// Package notify delivers best-effort side effects of committed checkouts:
// inbox notifications and activity-feed entries.
package notify

import (
	"context"
	"errors"
)

// Notification and activity kinds.
const (
	KindPurchase      = "PURCHASE"
	KindGiftSent      = "GIFT_SENT"
	KindGiftReceived  = "GIFT_RECEIVED"
	KindWalletTopUp   = "WALLET_TOP_UP"
	ActivityPurchased = "PURCHASED_GAMES"
	ActivityGifted    = "GIFTED_GAMES"
)

// Notifier delivers a message to a user's inbox.
type Notifier interface {
	Notify(ctx context.Context, userID uint64, message, kind string) error
}

// ActivityLogger appends an entry to a user's activity feed.
type ActivityLogger interface {
	LogActivity(ctx context.Context, userID uint64, kind, message string, metadata map[string]any) error
}

// Sink is both a Notifier and an ActivityLogger.
type Sink interface {
	Notifier
	ActivityLogger
}

// FanOut forwards every call to all sinks and joins their errors.
type FanOut []Sink

// Notify implements Notifier.
func (f FanOut) Notify(ctx context.Context, userID uint64, message, kind string) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, userID, message, kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogActivity implements ActivityLogger.
func (f FanOut) LogActivity(ctx context.Context, userID uint64, kind, message string, metadata map[string]any) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.LogActivity(ctx, userID, kind, message, metadata); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
