package eventbus

import (
	"context"
	"encoding/json"
)

const (
	EventCRUD = "crud"
)

type Bus interface {
	ClusteringBroadcast(ctx context.Context, channel string, data interface{}) error
	ClusteringSubscribe(channel string, fn func(data []byte))
	Broadcast(channel string, data interface{})
	Subscribe(channel string, cb Callback)
}

// Message clustering message
type Message struct {
	Event string          `json:"event"`
	Time  int64           `json:"time"`
	Node  string          `json:"node"`
	Data  json.RawMessage `json:"data"`
}

// CrudData announces a change of a cached entity.
type CrudData struct {
	Entity    string `json:"entity"`
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	CacheName string `json:"cache_name"`
}

type Callback func(data interface{})
