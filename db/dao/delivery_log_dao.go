package dao

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/jmoiron/sqlx"
)

type deliveryLogDAO struct {
	*DAO[entities.DeliveryLog]
}

func NewDeliveryLogDAO(db *sqlx.DB, fns ...OptionFunc) DeliveryLogDAO {
	opts := Options{
		Table:          "delivery_logs",
		EntityName:     "delivery_log",
		CachePropagate: false,
	}
	return &deliveryLogDAO{
		DAO: NewDAO[entities.DeliveryLog](db, opts, fns...),
	}
}

func (dao *deliveryLogDAO) Stats(ctx context.Context, configID string, since time.Time) (*DeliveryStats, error) {
	statement, args := psql.
		Select(
			"COUNT(*) AS total",
			"COUNT(*) FILTER (WHERE kind = 'success') AS successes",
			"COALESCE(AVG(duration_ms), 0) AS avg_duration",
		).
		From(dao.opts.Table).
		Where(sq.Eq{"config_id": configID, "direction": entities.LogDirectionOutgoing}).
		Where(sq.GtOrEq{"created_at": since}).
		MustSql()
	dao.debugSQL(statement, args)
	var stats DeliveryStats
	if err := dao.DB(ctx).GetContext(ctx, &stats, statement, args...); err != nil {
		return nil, err
	}
	stats.compute()
	return &stats, nil
}

func (dao *deliveryLogDAO) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	statement, args := psql.Delete(dao.opts.Table).Where(sq.Lt{"created_at": before}).MustSql()
	dao.debugSQL(statement, args)
	result, err := dao.DB(ctx).ExecContext(ctx, statement, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
