package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hookrelay/hookrelay/pkg/serializer"
)

var ErrEmptyTaskID = errors.New("task id is empty")

// DeliveryTask references one attempt of one delivery.
type DeliveryTask struct {
	DeliveryID string `json:"delivery_id"`
	ConfigID   string `json:"config_id"`
	Attempt    int    `json:"attempt"`
}

// TaskID is stable for a given attempt, so re-adding the same attempt
// reschedules it instead of duplicating it.
func TaskID(deliveryID string, attempt int) string {
	return fmt.Sprintf("%s:%d", deliveryID, attempt)
}

type TaskMessage struct {
	ID          string
	ScheduledAt time.Time
	Data        interface{}

	data []byte
}

func NewDeliveryTask(task DeliveryTask, scheduledAt time.Time) *TaskMessage {
	return &TaskMessage{
		ID:          TaskID(task.DeliveryID, task.Attempt),
		ScheduledAt: scheduledAt,
		Data:        &task,
	}
}

func (t *TaskMessage) String() string {
	return t.ID + "@" + t.ScheduledAt.Format(time.RFC3339)
}

func (t *TaskMessage) MarshalData() ([]byte, error) {
	if t.data != nil {
		return t.data, nil
	}
	b, err := serializer.MsgPack.Serialize(t.Data)
	if err != nil {
		return nil, err
	}
	t.data = b
	return b, nil
}

func (t *TaskMessage) UnmarshalData(v interface{}) error {
	if t.data == nil {
		if _, err := t.MarshalData(); err != nil {
			return err
		}
	}
	return serializer.MsgPack.Deserialize(t.data, v)
}

// DeliveryTask decodes the task payload.
func (t *TaskMessage) DeliveryTask() (*DeliveryTask, error) {
	if task, ok := t.Data.(*DeliveryTask); ok {
		return task, nil
	}
	var task DeliveryTask
	if err := t.UnmarshalData(&task); err != nil {
		return nil, err
	}
	t.Data = &task
	return &task, nil
}

// DefaultGetCount bounds a Get without options or without a positive Count.
const DefaultGetCount int64 = 100

type GetOptions struct {
	Count int64
}

// Limit is the number of tasks a Get may claim. opts may be nil.
func (opts *GetOptions) Limit() int64 {
	if opts == nil || opts.Count <= 0 {
		return DefaultGetCount
	}
	return opts.Count
}

//go:generate mockgen -destination=mocks/taskqueue.go -package=mocks github.com/hookrelay/hookrelay/pkg/taskqueue TaskQueue

// TaskQueue is a scheduled queue with visibility timeout. Get only
// returns tasks whose ScheduledAt has passed and hides them until they
// are deleted or the visibility timeout expires.
type TaskQueue interface {
	Add(ctx context.Context, tasks []*TaskMessage) error
	Get(ctx context.Context, opts *GetOptions) ([]*TaskMessage, error)
	Delete(ctx context.Context, task *TaskMessage) error
	Size(ctx context.Context) (int64, error)
}
