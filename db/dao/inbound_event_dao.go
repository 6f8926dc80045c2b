package dao

import (
	"context"

	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/jmoiron/sqlx"
)

type inboundEventDAO struct {
	*DAO[entities.InboundEvent]
}

func NewInboundEventDAO(db *sqlx.DB, fns ...OptionFunc) InboundEventDAO {
	opts := Options{
		Table:          "inbound_events",
		EntityName:     "inbound_event",
		CachePropagate: false,
	}
	return &inboundEventDAO{
		DAO: NewDAO[entities.InboundEvent](db, opts, fns...),
	}
}

func (dao *inboundEventDAO) InsertIgnoreConflict(ctx context.Context, event *entities.InboundEvent) (bool, error) {
	statement, args := psql.Insert(dao.opts.Table).
		Columns("id", "config_id", "external_id", "event", "status").
		Values(event.ID, event.ConfigID, event.ExternalID, event.Event, event.Status).
		Suffix("ON CONFLICT (config_id, external_id) DO NOTHING").
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
