package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the raw body
	SignatureHeader = "Linear-Signature"
	// DeliveryHeader carries the unique id of a delivery
	DeliveryHeader = "Linear-Delivery"

	// RawBodyKey is the gin context key holding the verified body
	RawBodyKey = "webhook.rawBody"

	maxWebhookBodySize = 1 << 20
)

var (
	errMissingSignature = errors.New("missing signature")
	errBadSignature     = errors.New("signature mismatch")
)

// WebhookConfig controls inbound webhook verification
type WebhookConfig struct {
	Secret         string
	MaxClockSkew   time.Duration
	DeliveryWindow time.Duration
	Now            func() time.Time
	// OnDuplicate is called for deliveries seen before, e.g. for metrics
	OnDuplicate func()
	// OnRejected is called for requests failing verification
	OnRejected func()
}

// VerifySignature checks a hex HMAC-SHA256 signature of body
func VerifySignature(secret, body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return errMissingSignature
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return errBadSignature
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return errBadSignature
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 signature of body
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// DeliveryTracker remembers delivery ids for a window to drop retries
type DeliveryTracker struct {
	mu         sync.Mutex
	window     time.Duration
	now        func() time.Time
	deliveries map[string]time.Time
}

// NewDeliveryTracker creates a tracker with the given window
func NewDeliveryTracker(window time.Duration, now func() time.Time) *DeliveryTracker {
	if window <= 0 {
		window = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &DeliveryTracker{
		window:     window,
		now:        now,
		deliveries: make(map[string]time.Time),
	}
}

// Seen records id and reports whether it was already recorded within the
// window. A delivery still being handled counts as seen.
func (d *DeliveryTracker) Seen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for existing, receivedAt := range d.deliveries {
		if now.Sub(receivedAt) > d.window {
			delete(d.deliveries, existing)
		}
	}

	if _, exists := d.deliveries[id]; exists {
		return true
	}
	d.deliveries[id] = now
	return false
}

// Forget drops id so a retry of the same delivery is handled again
func (d *DeliveryTracker) Forget(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.deliveries, id)
}

// LinearWebhookMiddleware verifies the signature and freshness of Linear
// webhook deliveries and drops duplicates. The verified body is stored under
// RawBodyKey and restored on the request.
func LinearWebhookMiddleware(cfg WebhookConfig) gin.HandlerFunc {
	secret := []byte(cfg.Secret)
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	tracker := NewDeliveryTracker(cfg.DeliveryWindow, now)
	notify := func(f func()) {
		if f != nil {
			f()
		}
	}

	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "server misconfigured: LINEAR_WEBHOOK_SECRET not set",
			})
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodySize+1))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}
		if len(body) > maxWebhookBodySize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}

		if err := VerifySignature(secret, body, c.GetHeader(SignatureHeader)); err != nil {
			log.Warn().Err(err).Str("ip", c.ClientIP()).Msg("Webhook signature verification failed")
			notify(cfg.OnRejected)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		if cfg.MaxClockSkew > 0 {
			node, err := sonic.Get(body, "webhookTimestamp")
			if err != nil {
				notify(cfg.OnRejected)
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing webhookTimestamp"})
				return
			}
			ms, err := node.Int64()
			if err != nil {
				notify(cfg.OnRejected)
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid webhookTimestamp"})
				return
			}
			skew := now().Sub(time.UnixMilli(ms))
			if skew < 0 {
				skew = -skew
			}
			if skew > cfg.MaxClockSkew {
				log.Warn().Dur("skew", skew).Msg("Webhook timestamp outside allowed window")
				notify(cfg.OnRejected)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "stale webhook"})
				return
			}
		}

		id := c.GetHeader(DeliveryHeader)
		if id != "" && tracker.Seen(id) {
			log.Debug().Str("delivery_id", id).Msg("Duplicate webhook delivery, ignoring")
			notify(cfg.OnDuplicate)
			// 200 so the sender does not retry
			c.AbortWithStatusJSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}

		c.Set(RawBodyKey, body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()

		// unreadable payloads and server errors leave the delivery unhandled
		if status := c.Writer.Status(); id != "" && (status == http.StatusBadRequest || status >= http.StatusInternalServerError) {
			log.Debug().Str("delivery_id", id).Int("status", status).Msg("Webhook delivery failed, accepting retries")
			tracker.Forget(id)
		}
	}
}
