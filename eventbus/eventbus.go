package eventbus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/hookrelay/hookrelay/pkg/safe"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const channelName = "hookrelay"

// EventBus publishes in-process events. When created with a database it
// also relays clustering messages to the other nodes through
// LISTEN/NOTIFY.
type EventBus struct {
	ctx      context.Context
	cancel   context.CancelFunc
	nodeID   string
	log      *zap.SugaredLogger
	listener *pq.Listener
	mux      sync.RWMutex
	handlers map[string][]func(data []byte)
	bus      evbus.Bus
	db       *sql.DB
}

func NewEventBus(nodeID string, dsn string, log *zap.SugaredLogger, db *sql.DB) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())

	bus := EventBus{
		ctx:      ctx,
		cancel:   cancel,
		bus:      evbus.New(),
		nodeID:   nodeID,
		handlers: make(map[string][]func(data []byte)),
		log:      log.Named("eventbus"),
		db:       db,
	}
	if db != nil && dsn != "" {
		bus.listener = pq.NewListener(dsn, time.Millisecond*100, time.Second*30, nil)
	}

	return &bus
}

// NewLocalEventBus returns a bus that never leaves the process.
func NewLocalEventBus(log *zap.SugaredLogger) *EventBus {
	return NewEventBus("", "", log, nil)
}

func (bus *EventBus) Start() error {
	if bus.listener == nil {
		return nil
	}
	if err := bus.listener.Listen(channelName); err != nil {
		return fmt.Errorf("failed to listen on channel %s: %w", channelName, err)
	}
	bus.log.Infof(`[eventbus] listening on channel "%s"`, channelName)
	safe.Go(bus.listenClusterLoop)
	return nil
}

func (bus *EventBus) Stop() error {
	bus.cancel()
	if bus.listener == nil {
		return nil
	}
	return bus.listener.Close()
}

func (bus *EventBus) listenClusterLoop() {
	timeoutDuration := 5 * time.Second
	timeout := time.NewTimer(timeoutDuration)
	defer timeout.Stop()
	for {
		timeout.Reset(timeoutDuration)
		select {
		case <-bus.ctx.Done():
			return
		case n := <-bus.listener.NotificationChannel():
			if n == nil {
				// reconnected; notifications sent meanwhile are lost
				continue
			}
			bus.dispatch([]byte(n.Extra))
		case <-timeout.C:
			if err := bus.listener.Ping(); err != nil {
				bus.log.Errorf("[eventbus] failed to ping database: %v", err)
			}
		}
	}
}

func (bus *EventBus) dispatch(payload []byte) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		bus.log.Errorf("[eventbus] failed to unmarshal message: %s", err)
		return
	}
	if msg.Node == bus.nodeID {
		return
	}
	bus.log.Debugf("[eventbus] dispatch cluster message: %s", payload)
	bus.mux.RLock()
	handlers := bus.handlers[msg.Event]
	bus.mux.RUnlock()
	for _, handler := range handlers {
		handler(msg.Data)
	}
}

// ClusteringBroadcast publishes data locally and to the other nodes.
func (bus *EventBus) ClusteringBroadcast(ctx context.Context, channel string, data interface{}) error {
	bus.bus.Publish(channel, data)

	if bus.db == nil {
		return nil
	}

	bytes, err := json.Marshal(data)
	if err != nil {
		bus.log.Errorf("[eventbus] failed to marshal data: %v", err)
		return err
	}
	msg := Message{
		Event: channel,
		Time:  time.Now().UnixMilli(),
		Node:  bus.nodeID,
		Data:  bytes,
	}
	bytes, err = json.Marshal(msg)
	if err != nil {
		bus.log.Errorf("[eventbus] failed to marshal message: %v", err)
		return err
	}

	bus.log.Debugf("[eventbus] broadcasting cluster message: %s", string(bytes))

	statement := fmt.Sprintf("NOTIFY %s, %s", channelName, pq.QuoteLiteral(string(bytes)))
	_, err = bus.db.ExecContext(ctx, statement)
	if err != nil {
		bus.log.Errorf("[eventbus] failed to broadcast message: %v", err)
	}
	return err
}

// ClusteringSubscribe registers fn for messages broadcast by other nodes.
func (bus *EventBus) ClusteringSubscribe(channel string, fn func(data []byte)) {
	bus.mux.Lock()
	defer bus.mux.Unlock()

	bus.handlers[channel] = append(bus.handlers[channel], fn)
}

func (bus *EventBus) Broadcast(channel string, data interface{}) {
	bus.bus.Publish(channel, data)
}

// Subscribe registers cb for local events. Callbacks run synchronously in
// the publishing goroutine.
func (bus *EventBus) Subscribe(channel string, cb Callback) {
	_ = bus.bus.Subscribe(channel, cb)
}
