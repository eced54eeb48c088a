package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"hotel_booking/internal/domain"
)

const TypeBookingConfirmation = "email:booking_confirmation"

func NewBookingConfirmationTask(c domain.BookingConfirmation) (*asynq.Task, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeBookingConfirmation, payload, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue hands confirmation mails to the background worker.
type Queue struct {
	client enqueuer
}

func NewQueue(redisAddr, redisPass string, redisDB int) *Queue {
	return &Queue{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr, Password: redisPass, DB: redisDB})}
}

func NewQueueWithClient(c enqueuer) *Queue { return &Queue{client: c} }

var _ domain.Notifier = (*Queue)(nil)

func (q *Queue) EnqueueBookingConfirmation(ctx context.Context, c domain.BookingConfirmation) error {
	task, err := NewBookingConfirmationTask(c)
	if err != nil {
		return fmt.Errorf("build task: %w", err)
	}
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeBookingConfirmation, err)
	}
	return nil
}

// Close releases the Redis connection when the queue owns one.
func (q *Queue) Close() error {
	if c, ok := q.client.(*asynq.Client); ok {
		return c.Close()
	}
	return nil
}
