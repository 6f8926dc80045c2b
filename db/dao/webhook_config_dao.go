package dao

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/hookrelay/hookrelay/constants"
	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/jmoiron/sqlx"
)

type webhookConfigDAO struct {
	*DAO[entities.WebhookConfig]
}

func NewWebhookConfigDAO(db *sqlx.DB, fns ...OptionFunc) WebhookConfigDAO {
	opts := Options{
		Table:          "webhook_configs",
		EntityName:     "webhook_config",
		CachePropagate: true,
		CacheName:      constants.WebhookConfigCacheName,
	}
	return &webhookConfigDAO{
		DAO: NewDAO[entities.WebhookConfig](db, opts, fns...),
	}
}

func (dao *webhookConfigDAO) ListActiveByEvent(ctx context.Context, ownerID string, eventType string) (list []*entities.WebhookConfig, err error) {
	statement, args := psql.Select("*").From(dao.opts.Table).
		Where(sq.Eq{"owner_id": ownerID, "active": true}).
		Where(sq.Expr("? = ANY(events)", eventType)).
		OrderBy("id ASC").
		MustSql()
	dao.debugSQL(statement, args)
	list = make([]*entities.WebhookConfig, 0)
	err = dao.UnsafeDB(ctx).SelectContext(ctx, &list, statement, args...)
	return
}
