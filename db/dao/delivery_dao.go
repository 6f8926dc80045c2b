package dao

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/jmoiron/sqlx"
)

type deliveryDAO struct {
	*DAO[entities.Delivery]
}

func NewDeliveryDAO(db *sqlx.DB, fns ...OptionFunc) DeliveryDAO {
	opts := Options{
		Table:          "deliveries",
		EntityName:     "delivery",
		CachePropagate: false,
	}
	return &deliveryDAO{
		DAO: NewDAO[entities.Delivery](db, opts, fns...),
	}
}

var terminalStatuses = []entities.DeliveryStatus{entities.DeliveryStatusDelivered, entities.DeliveryStatusFailed}

func (dao *deliveryDAO) Transition(ctx context.Context, id string, expectedAttempts int, t *DeliveryTransition) (bool, error) {
	statement, args := psql.Update(dao.opts.Table).
		SetMap(map[string]interface{}{
			"status":          t.Status,
			"attempt_count":   t.AttemptCount,
			"last_attempt_at": t.LastAttemptAt,
			"next_retry_at":   t.NextRetryAt,
			"response_status": t.ResponseStatus,
			"response_body":   t.ResponseBody,
			"error":           t.Error,
			"updated_at":      sq.Expr("NOW()"),
		}).
		Where(sq.Eq{"id": id, "attempt_count": expectedAttempts}).
		Where(sq.NotEq{"status": terminalStatuses}).
		MustSql()
	dao.debugSQL(statement, args)
	result, err := dao.DB(ctx).ExecContext(ctx, statement, args...)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (dao *deliveryDAO) ListRecoverable(ctx context.Context, before time.Time, limit int) (list []*entities.Delivery, err error) {
	statement, args := psql.Select("*").From(dao.opts.Table).
		Where(sq.Eq{"status": []entities.DeliveryStatus{entities.DeliveryStatusPending, entities.DeliveryStatusRetrying}}).
		Where(sq.Lt{"COALESCE(next_retry_at, updated_at)": before}).
		OrderBy("id ASC").
		Limit(uint64(limit)).
		MustSql()
	dao.debugSQL(statement, args)
	list = make([]*entities.Delivery, 0)
	err = dao.UnsafeDB(ctx).SelectContext(ctx, &list, statement, args...)
	return
}
