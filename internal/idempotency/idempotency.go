// Package idempotency replays the stored response of a request that was
// already completed under the same Idempotency-Key.
package idempotency

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Header carries the client-chosen key.
const Header = "Idempotency-Key"

// ReplayedHeader is set on responses served from the store.
const ReplayedHeader = "Idempotent-Replayed"

// DefaultTTL is how long a completed response is kept.
const DefaultTTL = 24 * time.Hour

// PendingTTL bounds a reservation whose request never completed, such as one
// lost with its process.
const PendingTTL = time.Minute

const maxKeyLength = 128

// ErrInFlight reports that the key is reserved by a request still running.
var ErrInFlight = errors.New("idempotency: request in flight")

// Response is a stored HTTP response.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// Store reserves keys and keeps completed responses.
type Store interface {
	// Begin reserves key. It returns the stored response when the key already
	// completed, ErrInFlight when another request holds it, or (nil, nil)
	// when the caller now owns the reservation.
	Begin(ctx context.Context, key string, ttl time.Duration) (*Response, error)
	// Complete stores the response for an owned reservation.
	Complete(ctx context.Context, key string, resp Response, ttl time.Duration) error
	// Release drops an owned reservation so the request can be retried.
	Release(ctx context.Context, key string) error
}

// Key returns the trimmed idempotency key of r.
func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

// Middleware serves replays from store. scope namespaces keys, typically per
// user, so different callers never share responses. Only non-5xx responses are
// stored; server errors and handler panics release the key.
func Middleware(store Store, ttl time.Duration, scope func(c *gin.Context) string) gin.HandlerFunc {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return func(c *gin.Context) {
		key := Key(c.Request)
		if key == "" || store == nil {
			c.Next()
			return
		}
		if len(key) > maxKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "idempotency key is too long"})
			return
		}
		if scope != nil {
			key = scope(c) + ":" + key
		}
		ctx := c.Request.Context()

		stored, err := store.Begin(ctx, key, PendingTTL)
		switch {
		case errors.Is(err, ErrInFlight):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"success": false, "error": "a request with this idempotency key is still in progress"})
			return
		case err != nil:
			log.WithError(err).Warn("idempotency: store unavailable, processing without replay protection")
			c.Next()
			return
		case stored != nil:
			c.Header(ReplayedHeader, "true")
			c.Data(stored.Status, stored.ContentType, stored.Body)
			c.Abort()
			return
		}

		// Runs while a handler panic unwinds, before gin.Recovery answers 500.
		completed := false
		defer func() {
			if completed {
				return
			}
			if errRelease := store.Release(context.WithoutCancel(ctx), key); errRelease != nil {
				log.WithError(errRelease).Warn("idempotency: release key failed")
			}
		}()

		capture := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = capture
		c.Next()

		status := capture.Status()
		if status >= http.StatusInternalServerError {
			return
		}
		resp := Response{Status: status, ContentType: capture.Header().Get("Content-Type"), Body: capture.body.Bytes()}
		if errComplete := store.Complete(context.WithoutCancel(ctx), key, resp, ttl); errComplete != nil {
			log.WithError(errComplete).Warn("idempotency: store response failed")
			return
		}
		completed = true
	}
}

// captureWriter copies the response body while writing it through.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
