// Package apperr defines the storefront's business error taxonomy. Every
// failure a caller can act on carries a stable Kind plus a human message.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind is a stable, machine-checkable error identifier.
type Kind string

// Checkout precondition failures.
const (
	KindNoGamesSelected      Kind = "NoGamesSelected"
	KindCannotGiftSelf       Kind = "CannotGiftSelf"
	KindGameNotFound         Kind = "GameNotFound"
	KindAlreadyOwned         Kind = "AlreadyOwned"
	KindRecipientNotFound    Kind = "RecipientNotFound"
	KindUserNotFound         Kind = "UserNotFound"
	KindInvalidPaymentMethod Kind = "InvalidPaymentMethod"
)

// Voucher failures, in validation order.
const (
	KindVoucherNotFound      Kind = "VoucherNotFound"
	KindVoucherInactive      Kind = "VoucherInactive"
	KindVoucherExpired       Kind = "VoucherExpired"
	KindVoucherExhausted     Kind = "VoucherExhausted"
	KindVoucherAlreadyUsed   Kind = "VoucherAlreadyUsed"
	KindVoucherNotApplicable Kind = "VoucherNotApplicable"
)

// Wallet, lookup and commit-time failures.
const (
	KindInsufficientFunds   Kind = "InsufficientFunds"
	KindInvalidAmount       Kind = "InvalidAmount"
	KindTransactionNotFound Kind = "TransactionNotFound"
	KindConcurrencyConflict Kind = "ConcurrencyConflict"
)

// Error is a business rule failure.
type Error struct {
	Kind    Kind
	Message string
	GameIDs []uint64 // Offending game ids for GameNotFound and AlreadyOwned.
	Err     error    // Optional cause, e.g. ErrConcurrencyConflict for races caught at commit.
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error with the same Kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrNoGamesSelected      = &Error{Kind: KindNoGamesSelected}
	ErrCannotGiftSelf       = &Error{Kind: KindCannotGiftSelf}
	ErrGameNotFound         = &Error{Kind: KindGameNotFound}
	ErrAlreadyOwned         = &Error{Kind: KindAlreadyOwned}
	ErrRecipientNotFound    = &Error{Kind: KindRecipientNotFound}
	ErrUserNotFound         = &Error{Kind: KindUserNotFound}
	ErrInvalidPaymentMethod = &Error{Kind: KindInvalidPaymentMethod}
	ErrVoucherNotFound      = &Error{Kind: KindVoucherNotFound}
	ErrVoucherInactive      = &Error{Kind: KindVoucherInactive}
	ErrVoucherExpired       = &Error{Kind: KindVoucherExpired}
	ErrVoucherExhausted     = &Error{Kind: KindVoucherExhausted}
	ErrVoucherAlreadyUsed   = &Error{Kind: KindVoucherAlreadyUsed}
	ErrVoucherNotApplicable = &Error{Kind: KindVoucherNotApplicable}
	ErrInsufficientFunds    = &Error{Kind: KindInsufficientFunds}
	ErrInvalidAmount        = &Error{Kind: KindInvalidAmount}
	ErrTransactionNotFound  = &Error{Kind: KindTransactionNotFound}
	ErrConcurrencyConflict  = &Error{Kind: KindConcurrencyConflict, Message: "the purchase conflicted with another request, please retry"}
)

// New builds an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// GameNotFound names the ids that did not resolve to catalog entries.
func GameNotFound(ids []uint64) *Error {
	ids = sortedCopy(ids)
	return &Error{
		Kind:    KindGameNotFound,
		Message: fmt.Sprintf("games not found: %s", joinIDs(ids)),
		GameIDs: ids,
	}
}

// AlreadyOwned names the games the target owner already holds. gift selects
// the wording so a buyer can tell whose library caused the conflict.
func AlreadyOwned(ids []uint64, gift bool) *Error {
	ids = sortedCopy(ids)
	who := "you already own"
	if gift {
		who = "the recipient already owns"
	}
	return &Error{
		Kind:    KindAlreadyOwned,
		Message: fmt.Sprintf("%s games: %s", who, joinIDs(ids)),
		GameIDs: ids,
	}
}

// AlreadyOwnedRace is AlreadyOwned detected by the ownership unique index at
// commit time, after the advisory check passed.
func AlreadyOwnedRace(ids []uint64, gift bool) *Error {
	err := AlreadyOwned(ids, gift)
	err.Err = ErrConcurrencyConflict
	return err
}

// KindOf extracts the Kind of err, or "" for infrastructure errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// HTTPStatus maps an error to the status code the API returns for it.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case "":
		return http.StatusInternalServerError
	case KindGameNotFound, KindRecipientNotFound, KindUserNotFound, KindTransactionNotFound:
		return http.StatusNotFound
	case KindConcurrencyConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func sortedCopy(ids []uint64) []uint64 {
	out := append([]uint64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func joinIDs(ids []uint64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	return strings.Join(parts, ", ")
}
