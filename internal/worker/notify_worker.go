package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tidybeast/internal/domain"
	"tidybeast/internal/events"
	"tidybeast/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NotifyWorker drains the notification queue and hands bookings to the
// sink. Tasks are durably recorded before scheduling, so a crash between
// confirmation and delivery loses nothing: the poller picks the task back
// up from the queue table.
type NotifyWorker struct {
	queue         domain.NotifyQueue
	sink          domain.NotificationSink
	redis         *redis.Client
	eventBus      domain.EventPublisher
	retryPolicy   RetryPolicy
	local         chan models.NotifyTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

// NewNotifyWorker builds a worker with sane defaults.
func NewNotifyWorker(queue domain.NotifyQueue, sink domain.NotificationSink, redisClient *redis.Client, eventBus domain.EventPublisher, retry RetryPolicy, logger *zerolog.Logger) *NotifyWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &NotifyWorker{
		queue:         queue,
		sink:          sink,
		redis:         redisClient,
		eventBus:      eventBus,
		retryPolicy:   retry,
		local:         make(chan models.NotifyTask, models.WorkerQueueSize),
		redisQueueKey: "notify:queue",
		deadLetterKey: "notify:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// EnqueueBooking persists a notification task and schedules it via redis or
// the in-memory queue. The booking itself is already durably stored by the
// caller; enqueue failures are non-fatal to the confirmation.
func (w *NotifyWorker) EnqueueBooking(ctx context.Context, booking *models.ConfirmedBooking) error {
	if booking == nil || booking.ID == "" {
		return errors.New("booking id is required")
	}

	payloadBytes, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.NotifyTask{
		BookingID: booking.ID,
		Payload:   string(payloadBytes),
		Status:    "pending",
		CreatedAt: time.Now(),
	}

	if err := w.queue.CreateNotifyTask(ctx, &task); err != nil {
		return fmt.Errorf("persist notify task: %w", err)
	}

	// Try redis first so a second process can pick the task up.
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Msg("notify_worker: redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.local <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("notify_worker: in-memory queue full, task left to polling")
	}

	return nil
}

// Start launches the main loop; stops when ctx is done.
func (w *NotifyWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("notify_worker: started")
	defer w.logger.Info().Msg("notify_worker: stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.queue.GetPendingNotifyTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("notify_worker: fetch pending")
			w.sleep(ctx)
			continue
		}
		if len(tasks) == 0 {
			w.sleep(ctx)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *NotifyWorker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.pollInterval):
	}
}

func (w *NotifyWorker) tryLocalQueue() (models.NotifyTask, bool) {
	select {
	case t := <-w.local:
		return t, true
	default:
		return models.NotifyTask{}, false
	}
}

func (w *NotifyWorker) tryRedis(ctx context.Context) (models.NotifyTask, bool) {
	if w.redis == nil {
		return models.NotifyTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.NotifyTask{}, false
		}
		w.logger.Error().Err(err).Msg("notify_worker: redis BRPOP error")
		return models.NotifyTask{}, false
	}
	if len(res) != 2 {
		return models.NotifyTask{}, false
	}
	var task models.NotifyTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("notify_worker: decode redis task")
		return models.NotifyTask{}, false
	}
	return task, true
}

func (w *NotifyWorker) processTask(ctx context.Context, task *models.NotifyTask) {
	// The same task can surface twice: once from the redis or memory queue
	// and once from the table poller. The row is the source of truth, so a
	// copy whose row already moved on is dropped.
	if current, err := w.queue.GetNotifyTask(ctx, task.ID); err == nil {
		if current.Status != "pending" && current.Status != "retry" {
			w.logger.Debug().Int64("task_id", task.ID).Str("status", current.Status).Msg("notify_worker: task already handled, skipping")
			return
		}
		task = current
	}

	var booking models.ConfirmedBooking
	if err := json.Unmarshal([]byte(task.Payload), &booking); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	results, err := w.sink.Notify(ctx, &booking)
	for _, r := range results {
		if r.Err != nil {
			w.logger.Warn().Err(r.Err).Str("channel", r.Channel).Str("booking_id", booking.ID).Msg("notify_worker: channel attempt failed")
		}
	}

	if err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.queue.UpdateNotifyTaskStatus(ctx, task.ID, "completed", "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("notify_worker: mark completed")
	}
}

func (w *NotifyWorker) retryOrFail(ctx context.Context, task *models.NotifyTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		w.failTask(ctx, task, cause)
		return
	}

	nextDelay := w.retryPolicy.NextDelay(attempt)
	nextTime := time.Now().Add(nextDelay)
	if err := w.queue.UpdateNotifyTaskStatus(ctx, task.ID, "retry", cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("notify_worker: mark retry")
	}
}

// failTask parks the task for manual handling: failed row in the queue
// table, dead letter entry in redis, and a notify_failed event for anyone
// watching.
func (w *NotifyWorker) failTask(ctx context.Context, task *models.NotifyTask, cause error) {
	if err := w.queue.UpdateNotifyTaskStatus(ctx, task.ID, "failed", cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("notify_worker: mark failed")
	}
	w.pushDeadLetter(ctx, task)

	if w.eventBus != nil {
		_ = w.eventBus.PublishJSON(events.EventNotifyFailed, map[string]any{
			"booking_id": task.BookingID,
			"task_id":    task.ID,
			"error":      cause.Error(),
		})
	}
}

func (w *NotifyWorker) pushRedis(ctx context.Context, task models.NotifyTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *NotifyWorker) pushDeadLetter(ctx context.Context, task *models.NotifyTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("notify_worker: encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("notify_worker: deadletter push")
	}
}
