package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisQueue(t *testing.T) *RedisTaskQueue {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis is not available: %v", err)
	}
	prefix := "hookrelay:test:" + t.Name()
	q := NewRedisQueue(RedisTaskQueueOptions{
		QueueName:          prefix + ":queue",
		InvisibleQueueName: prefix + ":invisible",
		QueueDataName:      prefix + ":data",
		VisibilityTimeout:  time.Second,
		Client:             client,
	}, zap.S())
	client.Del(context.Background(), q.queue, q.invisibleQueue, q.queueData)
	t.Cleanup(func() {
		q.Stop()
		client.Del(context.Background(), q.queue, q.invisibleQueue, q.queueData)
		_ = client.Close()
	})
	return q
}

func TestRedisQueue(t *testing.T) {
	q := newRedisQueue(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, q.Add(ctx, []*TaskMessage{
		NewDeliveryTask(DeliveryTask{DeliveryID: "a", ConfigID: "c", Attempt: 1}, now.Add(-time.Second)),
		NewDeliveryTask(DeliveryTask{DeliveryID: "b", ConfigID: "c", Attempt: 1}, now.Add(time.Hour)),
	}))
	size, err := q.Size(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, size)

	tasks, err := q.Get(ctx, &GetOptions{Count: 10})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	task, err := tasks[0].DeliveryTask()
	require.NoError(t, err)
	assert.Equal(t, "a", task.DeliveryID)
	assert.Equal(t, 1, task.Attempt)

	tasks2, err := q.Get(ctx, &GetOptions{Count: 10})
	require.NoError(t, err)
	assert.Len(t, tasks2, 0)

	// requeued after the visibility timeout
	assert.Eventually(t, func() bool {
		tasks2, err = q.Get(ctx, &GetOptions{Count: 10})
		return err == nil && len(tasks2) == 1
	}, 5*time.Second, 200*time.Millisecond)

	require.NoError(t, q.Delete(ctx, tasks2[0]))
	size, err = q.Size(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)
}

func TestRedisQueueGetWithoutOptions(t *testing.T) {
	q := newRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Add(ctx, []*TaskMessage{
		NewDeliveryTask(DeliveryTask{DeliveryID: "a", ConfigID: "c", Attempt: 1}, time.Now().Add(-time.Second)),
		NewDeliveryTask(DeliveryTask{DeliveryID: "b", ConfigID: "c", Attempt: 1}, time.Now().Add(-time.Second)),
	}))

	tasks, err := q.Get(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}
