package biz

import (
	"testing"
	"time"

	"kaiyue_tech/subscription-sync-service/internal/constants"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name    string
		current string
		event   string
		want    string
	}{
		{"purchased from empty starts trial", "", constants.EventPurchased, constants.StatusTrial},
		{"purchased while active stays active", constants.StatusActive, constants.EventPurchased, constants.StatusActive},
		{"purchased after cancel restarts trial", constants.StatusCancelled, constants.EventPurchased, constants.StatusTrial},
		{"purchased after expiry restarts trial", constants.StatusExpired, constants.EventPurchased, constants.StatusTrial},
		{"purchased while suspended restarts trial", constants.StatusSuspended, constants.EventPurchased, constants.StatusTrial},
		{"purchased while trial stays trial", constants.StatusTrial, constants.EventPurchased, constants.StatusTrial},

		{"activated from trial", constants.StatusTrial, constants.EventActivated, constants.StatusActive},
		{"activated from empty", "", constants.EventActivated, constants.StatusActive},
		{"activated while suspended recovers", constants.StatusSuspended, constants.EventActivated, constants.StatusActive},

		{"renewed keeps active", constants.StatusActive, constants.EventRenewed, constants.StatusActive},
		{"renewed after suspension recovers", constants.StatusSuspended, constants.EventRenewed, constants.StatusActive},
		{"renewed after expiry recovers", constants.StatusExpired, constants.EventRenewed, constants.StatusActive},

		{"cancelled from active", constants.StatusActive, constants.EventCancelled, constants.StatusCancelled},
		{"cancelled is idempotent", constants.StatusCancelled, constants.EventCancelled, constants.StatusCancelled},
		{"expired from trial", constants.StatusTrial, constants.EventExpired, constants.StatusExpired},
		{"expired is idempotent", constants.StatusExpired, constants.EventExpired, constants.StatusExpired},
		{"suspended from active", constants.StatusActive, constants.EventSuspended, constants.StatusSuspended},

		{"unknown event keeps current", constants.StatusActive, "weird_event", constants.StatusActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextStatus(tt.current, tt.event))
		})
	}
}

// 重复投递同一事件不得产生第二次状态变化
func TestNextStatusRedelivery(t *testing.T) {
	for event := range constants.EventTypes {
		first := NextStatus("", event)
		second := NextStatus(first, event)
		third := NextStatus(second, event)
		assert.Equal(t, second, third, "event %s must be stable on redelivery", event)
	}
}

func TestEffectiveSubscription(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id, status string, offset time.Duration) *Subscription {
		return &Subscription{SubscriptionID: id, Status: status, UpdatedAt: base.Add(offset)}
	}

	t.Run("no subscriptions", func(t *testing.T) {
		assert.Nil(t, EffectiveSubscription(nil))
	})

	t.Run("live beats newer terminal", func(t *testing.T) {
		subs := []*Subscription{
			mk("s1", constants.StatusActive, 0),
			mk("s2", constants.StatusCancelled, time.Hour),
		}
		assert.Equal(t, "s1", EffectiveSubscription(subs).SubscriptionID)
	})

	t.Run("most recent live wins", func(t *testing.T) {
		subs := []*Subscription{
			mk("s1", constants.StatusTrial, 0),
			mk("s2", constants.StatusActive, time.Hour),
		}
		assert.Equal(t, "s2", EffectiveSubscription(subs).SubscriptionID)
	})

	t.Run("all terminal falls back to most recent", func(t *testing.T) {
		subs := []*Subscription{
			mk("s1", constants.StatusCancelled, 0),
			mk("s2", constants.StatusExpired, time.Hour),
			mk("s3", constants.StatusSuspended, 30*time.Minute),
		}
		assert.Equal(t, "s2", EffectiveSubscription(subs).SubscriptionID)
	})

	t.Run("equal timestamps break ties deterministically", func(t *testing.T) {
		subs := []*Subscription{
			mk("s1", constants.StatusActive, 0),
			mk("s2", constants.StatusActive, 0),
		}
		got1 := EffectiveSubscription(subs)
		got2 := EffectiveSubscription([]*Subscription{subs[1], subs[0]})
		assert.Equal(t, got1.SubscriptionID, got2.SubscriptionID)
		assert.Equal(t, "s2", got1.SubscriptionID)
	})
}
