package counter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coursedesk/coursedesk/internal/pkg/cache"
)

const (
	liveCountersKey = "payments:counters:live"
	dailyKeyPrefix  = "payments:counters:daily:"
	dailyTTL        = 30 * 24 * time.Hour
)

// Counter fields surfaced on the admin stats endpoint.
const (
	FieldWebhookReceived     = "webhook_received"
	FieldWebhookDuplicate    = "webhook_duplicate"
	FieldWebhookInvalidSig   = "webhook_invalid_signature"
	FieldPaymentSucceeded    = "payment_succeeded"
	FieldPaymentFailed       = "payment_failed"
	FieldPaymentRefunded     = "payment_refunded"
	FieldCheckoutStarted     = "checkout_started"
	FieldCheckoutResumed     = "checkout_resumed"
	FieldCheckoutCanceled    = "checkout_canceled"
	FieldFreeEnrollmentsMade = "free_enrollments"
)

// Add increments a pending counter field in Redis. Best-effort: callers
// ignore the error, a missed increment never affects payment state.
func Add(field string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, liveCountersKey, field, 1).Err()
}

// Snapshot returns the current live counter values.
func Snapshot() (map[string]int64, error) {
	ctx := context.Background()
	raw, err := cache.GetClient().HGetAll(ctx, liveCountersKey).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(raw))
	for field, value := range raw {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			result[field] = n
		}
	}
	return result, nil
}

// FlushAll drains the live counters into today's daily bucket.
// Uses RENAME to a temporary key for atomic drain without losing in-flight increments.
func FlushAll() error {
	ctx := context.Background()
	rdb := cache.GetClient()

	tmpKey := fmt.Sprintf("%s:tmp:%d", liveCountersKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", liveCountersKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		return err
	}

	drained, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}

	dailyKey := dailyKeyPrefix + time.Now().UTC().Format("2006-01-02")
	pipe := rdb.Pipeline()
	for field, value := range drained {
		n, perr := strconv.ParseInt(value, 10, 64)
		if perr != nil || n == 0 {
			continue
		}
		pipe.HIncrBy(ctx, dailyKey, field, n)
	}
	pipe.Expire(ctx, dailyKey, dailyTTL)
	pipe.Del(ctx, tmpKey)
	_, err = pipe.Exec(ctx)
	return err
}

// Daily returns the flushed counters for a given day.
func Daily(day time.Time) (map[string]int64, error) {
	ctx := context.Background()
	raw, err := cache.GetClient().HGetAll(ctx, dailyKeyPrefix+day.UTC().Format("2006-01-02")).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(raw))
	for field, value := range raw {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			result[field] = n
		}
	}
	return result, nil
}
