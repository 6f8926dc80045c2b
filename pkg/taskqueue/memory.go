package taskqueue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/hookrelay/hookrelay/constants"
	"github.com/hookrelay/hookrelay/pkg/clock"
	"github.com/hookrelay/hookrelay/utils"
)

type item struct {
	id          string
	scheduledAt time.Time
	index       int
}

type scheduleHeap []*item

func (h scheduleHeap) Len() int { return len(h) }
func (h scheduleHeap) Less(i, j int) bool {
	if h[i].scheduledAt.Equal(h[j].scheduledAt) {
		return h[i].id < h[j].id
	}
	return h[i].scheduledAt.Before(h[j].scheduledAt)
}
func (h scheduleHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *scheduleHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *scheduleHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

type MemoryTaskQueueOptions struct {
	VisibilityTimeout time.Duration
	Clock             clock.Clock
}

// MemoryTaskQueue is a process local TaskQueue. Scheduled tasks do not
// survive a restart.
type MemoryTaskQueue struct {
	mux               sync.Mutex
	clock             clock.Clock
	visibilityTimeout time.Duration

	visible   scheduleHeap
	items     map[string]*item
	invisible map[string]time.Time
	data      map[string][]byte
}

func NewMemoryQueue(opts MemoryTaskQueueOptions) *MemoryTaskQueue {
	c := opts.Clock
	if c == nil {
		c = clock.Real()
	}
	return &MemoryTaskQueue{
		clock:             c,
		visibilityTimeout: utils.DefaultIfZero(opts.VisibilityTimeout, constants.TaskQueueVisibilityTimeout),
		items:             make(map[string]*item),
		invisible:         make(map[string]time.Time),
		data:              make(map[string][]byte),
	}
}

func (q *MemoryTaskQueue) schedule(id string, at time.Time) {
	if it, ok := q.items[id]; ok {
		it.scheduledAt = at
		heap.Fix(&q.visible, it.index)
		return
	}
	it := &item{id: id, scheduledAt: at}
	heap.Push(&q.visible, it)
	q.items[id] = it
}

func (q *MemoryTaskQueue) unschedule(id string) {
	if it, ok := q.items[id]; ok {
		heap.Remove(&q.visible, it.index)
		delete(q.items, id)
	}
}

func (q *MemoryTaskQueue) Add(ctx context.Context, tasks []*TaskMessage) error {
	encoded := make([][]byte, 0, len(tasks))
	for _, task := range tasks {
		if task.ID == "" {
			return ErrEmptyTaskID
		}
		data, err := task.MarshalData()
		if err != nil {
			return err
		}
		encoded = append(encoded, data)
	}

	q.mux.Lock()
	defer q.mux.Unlock()
	for i, task := range tasks {
		q.data[task.ID] = encoded[i]
		q.schedule(task.ID, task.ScheduledAt)
	}
	return nil
}

// requeue moves tasks whose visibility timeout expired back to the visible set.
func (q *MemoryTaskQueue) requeue(now time.Time) {
	for id, deadline := range q.invisible {
		if !deadline.After(now) {
			delete(q.invisible, id)
			q.schedule(id, now)
		}
	}
}

func (q *MemoryTaskQueue) Get(ctx context.Context, opts *GetOptions) ([]*TaskMessage, error) {
	q.mux.Lock()
	defer q.mux.Unlock()

	count := opts.Limit()

	now := q.clock.Now()
	q.requeue(now)

	var tasks []*TaskMessage
	for q.visible.Len() > 0 && int64(len(tasks)) < count {
		next := q.visible[0]
		if next.scheduledAt.After(now) {
			break
		}
		heap.Pop(&q.visible)
		delete(q.items, next.id)

		data, ok := q.data[next.id]
		if !ok {
			continue
		}
		q.invisible[next.id] = now.Add(q.visibilityTimeout)
		tasks = append(tasks, &TaskMessage{
			ID:          next.id,
			ScheduledAt: next.scheduledAt,
			data:        data,
		})
	}
	return tasks, nil
}

func (q *MemoryTaskQueue) Delete(ctx context.Context, task *TaskMessage) error {
	q.mux.Lock()
	defer q.mux.Unlock()
	q.unschedule(task.ID)
	delete(q.invisible, task.ID)
	delete(q.data, task.ID)
	return nil
}

func (q *MemoryTaskQueue) Size(ctx context.Context) (int64, error) {
	q.mux.Lock()
	defer q.mux.Unlock()
	return int64(q.visible.Len()), nil
}
