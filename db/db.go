package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hookrelay/hookrelay/config/modules"
	"github.com/hookrelay/hookrelay/db/dao"
	"github.com/hookrelay/hookrelay/db/memory"
	"github.com/hookrelay/hookrelay/eventbus"
	"github.com/hookrelay/hookrelay/pkg/clock"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type DB struct {
	DB  *sqlx.DB
	log *zap.SugaredLogger

	WebhookConfigs              dao.WebhookConfigDAO
	WebhookConfigsOwner         dao.WebhookConfigDAO
	IncomingWebhookConfigs      dao.IncomingWebhookConfigDAO
	IncomingWebhookConfigsOwner dao.IncomingWebhookConfigDAO
	Deliveries                  dao.DeliveryDAO
	DeliveriesOwner             dao.DeliveryDAO
	DeliveryLogs                dao.DeliveryLogDAO
	InboundEvents               dao.InboundEventDAO
}

func NewSqlDB(cfg modules.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.GetDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(int(cfg.MaxPoolSize))
	db.SetMaxIdleConns(int(cfg.MaxPoolSize))
	db.SetConnMaxLifetime(time.Second * time.Duration(cfg.MaxLifetime))
	return db, nil
}

func propagateHandler(bus eventbus.Bus) dao.PropagateHandler {
	return func(ctx context.Context, opts *dao.Options, id string, entity interface{}) {
		data := &eventbus.CrudData{
			ID:        id,
			CacheName: opts.CacheName,
			Entity:    opts.EntityName,
		}
		if entity != nil {
			if owner, ok := dao.ColumnValue(entity, "owner_id"); ok {
				data.OwnerID, _ = owner.(string)
			}
		}
		_ = bus.ClusteringBroadcast(ctx, eventbus.EventCRUD, data)
	}
}

// NewDB returns the postgres backed store.
func NewDB(sqlDB *sql.DB, log *zap.SugaredLogger, bus eventbus.Bus) (*DB, error) {
	sqlxDB := sqlx.NewDb(sqlDB, "pgx")

	opts := []dao.OptionFunc{dao.WithPropagateHandler(propagateHandler(bus))}
	owner := append(opts, dao.WithOwner(true))

	db := &DB{
		DB:                          sqlxDB,
		log:                         log,
		WebhookConfigs:              dao.NewWebhookConfigDAO(sqlxDB, opts...),
		WebhookConfigsOwner:         dao.NewWebhookConfigDAO(sqlxDB, owner...),
		IncomingWebhookConfigs:      dao.NewIncomingWebhookConfigDAO(sqlxDB, opts...),
		IncomingWebhookConfigsOwner: dao.NewIncomingWebhookConfigDAO(sqlxDB, owner...),
		Deliveries:                  dao.NewDeliveryDAO(sqlxDB, opts...),
		DeliveriesOwner:             dao.NewDeliveryDAO(sqlxDB, owner...),
		DeliveryLogs:                dao.NewDeliveryLogDAO(sqlxDB, owner...),
		InboundEvents:               dao.NewInboundEventDAO(sqlxDB, opts...),
	}

	return db, nil
}

// NewMemoryDB returns a non-durable store. Owner scoped and unscoped
// views of a table share the same rows.
func NewMemoryDB(log *zap.SugaredLogger, bus eventbus.Bus, c clock.Clock) *DB {
	handler := propagateHandler(bus)
	configs := memory.NewWebhookConfigDAO(c, handler)
	incoming := memory.NewIncomingWebhookConfigDAO(c, handler)
	deliveries := memory.NewDeliveryDAO(c)
	return &DB{
		log:                         log,
		WebhookConfigs:              configs,
		WebhookConfigsOwner:         configs.Scoped(),
		IncomingWebhookConfigs:      incoming,
		IncomingWebhookConfigsOwner: incoming.Scoped(),
		Deliveries:                  deliveries,
		DeliveriesOwner:             deliveries.Scoped(),
		DeliveryLogs:                memory.NewDeliveryLogDAO(c).Scoped(),
		InboundEvents:               memory.NewInboundEventDAO(c),
	}
}

func (db *DB) IsMemory() bool {
	return db.DB == nil
}

func (db *DB) Ping() error {
	if db.IsMemory() {
		return nil
	}
	return db.DB.Ping()
}

func (db *DB) Stats() map[string]interface{} {
	if db.IsMemory() {
		return map[string]interface{}{}
	}
	stats := db.DB.Stats()
	return map[string]interface{}{
		"database.total_connections":  stats.OpenConnections,
		"database.active_connections": stats.InUse,
	}
}

// TX runs fn in a transaction. A nested call joins the outer transaction.
// The memory store has no transactions and runs fn directly.
func (db *DB) TX(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.IsMemory() {
		return fn(ctx)
	}
	if _, ok := dao.TxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := db.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err := recover(); err != nil {
			db.log.Errorf("[db] panic recovered: %v", err)
			if rbErr := tx.Rollback(); rbErr != nil {
				db.log.Errorf("[db] failed to rollback the tx: %v", rbErr)
			}
			panic(err)
		}
	}()

	ctx = dao.WithTx(ctx, tx)

	err = fn(ctx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrap(err, rbErr.Error())
		}
		return err
	}

	return tx.Commit()
}

func (db *DB) SqlDB() *sql.DB {
	if db.IsMemory() {
		return nil
	}
	return db.DB.DB
}

func (db *DB) Close() error {
	if db.IsMemory() {
		return nil
	}
	return db.DB.Close()
}
