package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/hookrelay/hookrelay/constants"
	"github.com/hookrelay/hookrelay/db"
	"github.com/hookrelay/hookrelay/db/entities"
	"github.com/hookrelay/hookrelay/db/query"
	"github.com/hookrelay/hookrelay/eventbus"
	"github.com/hookrelay/hookrelay/utils"
	"golang.org/x/sync/singleflight"
	"go.uber.org/zap"
)

// Registry caches the registration of each owner. Entries are dropped on
// config changes and expire after a minute otherwise.
type Registry struct {
	group singleflight.Group
	lru   *expirable.LRU[string, *Registration]
	db    *db.DB
	log   *zap.SugaredLogger
}

func NewRegistry(db *db.DB, log *zap.SugaredLogger) *Registry {
	return &Registry{
		lru: expirable.NewLRU[string, *Registration](1000, nil, time.Second*60),
		db:  db,
		log: log,
	}
}

// Subscribe invalidates registrations on local and cluster config changes.
func (r *Registry) Subscribe(bus eventbus.Bus) {
	bus.Subscribe(eventbus.EventCRUD, func(data interface{}) {
		if crud, ok := data.(*eventbus.CrudData); ok {
			r.invalidate(crud)
		}
	})
	bus.ClusteringSubscribe(eventbus.EventCRUD, func(data []byte) {
		var crud eventbus.CrudData
		if err := json.Unmarshal(data, &crud); err != nil {
			r.log.Warnf("[dispatcher] failed to decode crud message: %v", err)
			return
		}
		r.invalidate(&crud)
	})
}

func (r *Registry) invalidate(crud *eventbus.CrudData) {
	if crud.CacheName != constants.WebhookConfigCacheName {
		return
	}
	// a deleted row carries no owner
	if crud.OwnerID == "" {
		r.lru.Purge()
		return
	}
	r.Unregister(crud.OwnerID)
}

func (r *Registry) load(ctx context.Context, owner string) (*Registration, error) {
	var q query.WebhookConfigQuery
	q.OwnerID = &owner
	q.Active = utils.Pointer(true)
	configs, err := r.db.WebhookConfigs.List(ctx, &q)
	if err != nil {
		return nil, err
	}
	return NewRegistration(configs), nil
}

func (r *Registry) Unregister(owner string) {
	r.lru.Remove(owner)
}

// LookUp returns the active configs of owner subscribed to eventType.
func (r *Registry) LookUp(ctx context.Context, owner string, eventType string) ([]*entities.WebhookConfig, error) {
	registration, exist := r.lru.Get(owner)
	if !exist {
		v, err, _ := r.group.Do(owner, func() (interface{}, error) {
			v, err := r.load(ctx, owner)
			if err != nil {
				return nil, err
			}
			r.lru.Add(owner, v)
			return v, nil
		})

		if err != nil {
			return nil, err
		}

		registration = v.(*Registration)
	}

	return registration.LookUp(eventType), nil
}
