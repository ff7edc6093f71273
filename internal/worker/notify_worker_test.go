package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"tidybeast/internal/domain"
	"tidybeast/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu      sync.Mutex
	nextID  int64
	tasks   map[int64]*models.NotifyTask
	updates []string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{tasks: make(map[int64]*models.NotifyTask)}
}

func (q *fakeQueue) CreateNotifyTask(_ context.Context, task *models.NotifyTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	task.ID = q.nextID
	copied := *task
	q.tasks[task.ID] = &copied
	return nil
}

func (q *fakeQueue) GetNotifyTask(_ context.Context, id int64) (*models.NotifyTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return nil, errors.New("task not found")
	}
	copied := *t
	return &copied, nil
}

func (q *fakeQueue) GetPendingNotifyTasks(_ context.Context, limit int) ([]models.NotifyTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []models.NotifyTask
	for _, t := range q.tasks {
		if t.Status == "pending" || t.Status == "retry" {
			out = append(out, *t)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (q *fakeQueue) UpdateNotifyTaskStatus(_ context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return errors.New("task not found")
	}
	t.Status = status
	if status == "retry" {
		t.RetryCount++
		t.NextRetryAt = nextRetryAt
	}
	if errMsg != "" {
		t.LastError = &errMsg
	}
	q.updates = append(q.updates, status)
	return nil
}

func (q *fakeQueue) GetFailedNotifyTasks(_ context.Context) ([]models.NotifyTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []models.NotifyTask
	for _, t := range q.tasks {
		if t.Status == "failed" {
			out = append(out, *t)
		}
	}
	return out, nil
}

type fakeSink struct {
	mu       sync.Mutex
	err      error
	received []string
}

func (s *fakeSink) Notify(_ context.Context, booking *models.ConfirmedBooking) ([]domain.NotifyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, booking.ID)
	if s.err != nil {
		return []domain.NotifyResult{{Channel: "sheets", Err: s.err}}, s.err
	}
	return []domain.NotifyResult{{Channel: "sheets"}}, nil
}

func testWorker(queue domain.NotifyQueue, sink domain.NotificationSink) *NotifyWorker {
	logger := zerolog.Nop()
	return NewNotifyWorker(queue, sink, nil, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, BackoffFactor: 2}, &logger)
}

func testBooking(id string) *models.ConfirmedBooking {
	return &models.ConfirmedBooking{
		ID:            id,
		ServiceID:     "kitchen-cleaning",
		ServiceName:   "Kitchen Cleaning",
		CustomerName:  "Asha",
		CustomerEmail: "asha@example.com",
		CustomerPhone: "+919876543210",
		Price:         1500,
		TransactionID: "TXN42",
		ConfirmedAt:   time.Now(),
	}
}

func TestNotifyWorker_EnqueueBooking(t *testing.T) {
	queue := newFakeQueue()
	sink := &fakeSink{}
	w := testWorker(queue, sink)

	err := w.EnqueueBooking(context.Background(), testBooking("b-1"))
	require.NoError(t, err)

	// Task persisted before anything else.
	pending, err := queue.GetPendingNotifyTasks(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b-1", pending[0].BookingID)
	assert.Equal(t, "pending", pending[0].Status)

	var decoded models.ConfirmedBooking
	require.NoError(t, json.Unmarshal([]byte(pending[0].Payload), &decoded))
	assert.Equal(t, "TXN42", decoded.TransactionID)

	// Without redis the task also lands on the local channel.
	select {
	case task := <-w.local:
		assert.Equal(t, "b-1", task.BookingID)
	default:
		t.Fatal("expected task on local queue")
	}
}

func TestNotifyWorker_EnqueueBookingRejectsEmptyID(t *testing.T) {
	w := testWorker(newFakeQueue(), &fakeSink{})
	assert.Error(t, w.EnqueueBooking(context.Background(), &models.ConfirmedBooking{}))
	assert.Error(t, w.EnqueueBooking(context.Background(), nil))
}

func TestNotifyWorker_ProcessTaskSuccess(t *testing.T) {
	queue := newFakeQueue()
	sink := &fakeSink{}
	w := testWorker(queue, sink)

	require.NoError(t, w.EnqueueBooking(context.Background(), testBooking("b-2")))
	task := <-w.local

	w.processTask(context.Background(), &task)

	assert.Equal(t, []string{"b-2"}, sink.received)
	assert.Equal(t, "completed", queue.tasks[task.ID].Status)
}

func TestNotifyWorker_SkipsAlreadyHandledTask(t *testing.T) {
	queue := newFakeQueue()
	sink := &fakeSink{}
	w := testWorker(queue, sink)

	require.NoError(t, w.EnqueueBooking(context.Background(), testBooking("b-7")))
	task := <-w.local

	// The poller delivered the row first; the queued copy must be dropped.
	w.processTask(context.Background(), &task)
	require.Equal(t, []string{"b-7"}, sink.received)

	w.processTask(context.Background(), &task)
	assert.Equal(t, []string{"b-7"}, sink.received)
	assert.Equal(t, []string{"completed"}, queue.updates)
}

func TestNotifyWorker_ProcessTaskRetriesThenFails(t *testing.T) {
	queue := newFakeQueue()
	sink := &fakeSink{err: errors.New("all channels down")}
	w := testWorker(queue, sink)

	require.NoError(t, w.EnqueueBooking(context.Background(), testBooking("b-3")))
	task := <-w.local

	// First two attempts schedule a retry, the third exhausts the policy.
	w.processTask(context.Background(), &task)
	assert.Equal(t, "retry", queue.tasks[task.ID].Status)
	require.NotNil(t, queue.tasks[task.ID].NextRetryAt)

	task.RetryCount = queue.tasks[task.ID].RetryCount
	w.processTask(context.Background(), &task)
	assert.Equal(t, "retry", queue.tasks[task.ID].Status)

	task.RetryCount = queue.tasks[task.ID].RetryCount
	w.processTask(context.Background(), &task)
	assert.Equal(t, "failed", queue.tasks[task.ID].Status)

	failed, err := queue.GetFailedNotifyTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b-3", failed[0].BookingID)
}

func TestNotifyWorker_ProcessTaskBadPayloadFailsImmediately(t *testing.T) {
	queue := newFakeQueue()
	w := testWorker(queue, &fakeSink{})

	task := models.NotifyTask{BookingID: "b-4", Payload: "not json", Status: "pending"}
	require.NoError(t, queue.CreateNotifyTask(context.Background(), &task))

	w.processTask(context.Background(), &task)
	assert.Equal(t, "failed", queue.tasks[task.ID].Status)
}

func TestNotifyWorker_StartDrainsLocalQueue(t *testing.T) {
	queue := newFakeQueue()
	sink := &fakeSink{}
	w := testWorker(queue, sink)
	w.pollInterval = 5 * time.Millisecond

	require.NoError(t, w.EnqueueBooking(context.Background(), testBooking("b-5")))
	require.NoError(t, w.EnqueueBooking(context.Background(), testBooking("b-6")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.received) >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.ElementsMatch(t, []string{"b-5", "b-6"}, sink.received)
}
