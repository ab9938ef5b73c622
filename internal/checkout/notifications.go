package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/playvault/storefront/internal/models"
	"github.com/playvault/storefront/internal/notify"
)

// afterCommit hands the post-commit side effects to the dispatcher. Nothing
// here can fail the checkout.
func (e *Engine) afterCommit(ctx context.Context, p *plan, txn *models.Transaction) {
	if e.sink == nil || e.dispatcher == nil {
		return
	}
	titles := make([]string, 0, len(txn.Items))
	gameIDs := make([]uint64, 0, len(txn.Items))
	for _, item := range txn.Items {
		titles = append(titles, item.Title)
		gameIDs = append(gameIDs, item.GameID)
	}
	list := strings.Join(titles, ", ")
	metadata := map[string]any{
		"transactionId": txn.ID,
		"reference":     txn.Reference,
		"gameIds":       gameIDs,
		"total":         txn.Total.StringFixed(2),
	}

	sink := e.sink
	purchaserID := p.purchaser.ID
	var jobs []notify.Job
	if p.recipient == nil {
		message := fmt.Sprintf("Thanks for your purchase! %s %s been added to your library.", list, verb(len(titles)))
		jobs = append(jobs,
			func(ctx context.Context) error {
				return sink.Notify(ctx, purchaserID, message, notify.KindPurchase)
			},
			func(ctx context.Context) error {
				return sink.LogActivity(ctx, purchaserID, notify.ActivityPurchased, "Purchased "+list, metadata)
			},
		)
	} else {
		recipientID := p.recipient.ID
		recipientName := p.recipient.Name()
		purchaserName := p.purchaser.Name()
		metadata["recipientId"] = recipientID
		jobs = append(jobs,
			func(ctx context.Context) error {
				return sink.Notify(ctx, purchaserID, fmt.Sprintf("Your gift of %s to %s was delivered.", list, recipientName), notify.KindGiftSent)
			},
			func(ctx context.Context) error {
				return sink.Notify(ctx, recipientID, fmt.Sprintf("%s sent you a gift: %s", purchaserName, list), notify.KindGiftReceived)
			},
			func(ctx context.Context) error {
				return sink.LogActivity(ctx, purchaserID, notify.ActivityGifted, fmt.Sprintf("Gifted %s to %s", list, recipientName), metadata)
			},
		)
	}
	e.dispatcher.Dispatch(ctx, "checkout "+txn.Reference, jobs...)
}

func verb(n int) string {
	if n == 1 {
		return "has"
	}
	return "have"
}
