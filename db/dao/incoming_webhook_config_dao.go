package dao

import (
	"context"

	"github.com/hookrelay/hookrelay/constants"
	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/jmoiron/sqlx"
)

type incomingWebhookConfigDAO struct {
	*DAO[entities.IncomingWebhookConfig]
}

func NewIncomingWebhookConfigDAO(db *sqlx.DB, fns ...OptionFunc) IncomingWebhookConfigDAO {
	opts := Options{
		Table:          "incoming_webhook_configs",
		EntityName:     "incoming_webhook_config",
		CachePropagate: true,
		CacheName:      constants.IncomingWebhookConfigCacheName,
	}
	return &incomingWebhookConfigDAO{
		DAO: NewDAO[entities.IncomingWebhookConfig](db, opts, fns...),
	}
}

func (dao *incomingWebhookConfigDAO) GetByEndpoint(ctx context.Context, endpoint string) (*entities.IncomingWebhookConfig, error) {
	return dao.selectByField(ctx, "endpoint", endpoint)
}
