package dao

import (
	"context"
	"time"

	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/hookrelay/hookrelay/db/query"
	"github.com/hookrelay/hookrelay/pkg/types"
)

type ReadDAO[T any] interface {
	Get(ctx context.Context, id string) (*T, error)
	Page(ctx context.Context, q query.Queryer) ([]*T, int64, error)
	List(ctx context.Context, q query.Queryer) ([]*T, error)
	Count(ctx context.Context, conditions map[string]interface{}) (int64, error)
}

type BaseDAO[T any] interface {
	ReadDAO[T]
	Insert(ctx context.Context, entity *T) error
	Update(ctx context.Context, entity *T) error
	Delete(ctx context.Context, id string) (bool, error)
}

type WebhookConfigDAO interface {
	BaseDAO[entities.WebhookConfig]
	ListActiveByEvent(ctx context.Context, ownerID string, eventType string) ([]*entities.WebhookConfig, error)
}

type IncomingWebhookConfigDAO interface {
	BaseDAO[entities.IncomingWebhookConfig]
	GetByEndpoint(ctx context.Context, endpoint string) (*entities.IncomingWebhookConfig, error)
}

// DeliveryTransition is the state written by one compare-and-set.
type DeliveryTransition struct {
	Status         entities.DeliveryStatus
	AttemptCount   int
	LastAttemptAt  *types.Time
	NextRetryAt    *types.Time
	ResponseStatus *int
	ResponseBody   *string
	Error          *string
}

type DeliveryDAO interface {
	BaseDAO[entities.Delivery]
	// Transition applies t only if the delivery still has expectedAttempts
	// attempts and is not terminal. It reports whether the row changed.
	Transition(ctx context.Context, id string, expectedAttempts int, t *DeliveryTransition) (bool, error)
	// ListRecoverable lists pending or retrying deliveries that were due
	// before the given time.
	ListRecoverable(ctx context.Context, before time.Time, limit int) ([]*entities.Delivery, error)
}

type DeliveryStats struct {
	TotalDeliveries   int64   `db:"total" json:"total_deliveries"`
	Successes         int64   `db:"successes" json:"-"`
	SuccessRate       float64 `db:"-" json:"success_rate"`
	AvgResponseTimeMs float64 `db:"avg_duration" json:"avg_response_time_ms"`
}

func (s *DeliveryStats) compute() {
	if s.TotalDeliveries > 0 {
		s.SuccessRate = float64(s.Successes) / float64(s.TotalDeliveries)
	}
}

type DeliveryLogDAO interface {
	ReadDAO[entities.DeliveryLog]
	Insert(ctx context.Context, entry *entities.DeliveryLog) error
	// Stats aggregates the outgoing entries of a config created since the given time.
	Stats(ctx context.Context, configID string, since time.Time) (*DeliveryStats, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type InboundEventDAO interface {
	ReadDAO[entities.InboundEvent]
	// InsertIgnoreConflict reports false when (config_id, external_id) exists.
	InsertIgnoreConflict(ctx context.Context, event *entities.InboundEvent) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ComputeStats derives the success rate of aggregated counts.
func ComputeStats(total, successes int64, avg float64) *DeliveryStats {
	stats := &DeliveryStats{TotalDeliveries: total, Successes: successes, AvgResponseTimeMs: avg}
	stats.compute()
	return stats
}
