package tasks

import (
	"context"
	"errors"
	"time"

	"clinic-sync/core/config"
	"clinic-sync/core/constants"
	"clinic-sync/core/logger"

	"github.com/hibiken/asynq"
)

// Scheduler is the job port the sync services depend on: fire the deferred
// inbound-change job as soon as possible, and manage the one-shot channel
// renewal.
type Scheduler interface {
	EnqueueProcessChanges(ctx context.Context) error
	ScheduleChannelRenewal(ctx context.Context, at time.Time) error
	CancelChannelRenewal(ctx context.Context) error
}

type asynqScheduler struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func redisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewScheduler(cfg config.RedisConfig) Scheduler {
	opt := redisOpt(cfg)
	return &asynqScheduler{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
	}
}

func (s *asynqScheduler) EnqueueProcessChanges(ctx context.Context) error {
	task := asynq.NewTask(constants.TaskProcessCalendarChanges, nil)
	_, err := s.client.EnqueueContext(ctx, task,
		asynq.Queue(constants.TaskQueueSync),
		asynq.MaxRetry(3),
	)
	if err != nil {
		logger.Error("Scheduler:EnqueueProcessChanges:Error", "error", err)
	}
	return err
}

func (s *asynqScheduler) ScheduleChannelRenewal(ctx context.Context, at time.Time) error {
	// A stale pending renewal from a previous channel must not survive; the
	// stable task id makes the newest schedule win.
	if err := s.CancelChannelRenewal(ctx); err != nil {
		return err
	}

	task := asynq.NewTask(constants.TaskRenewWebhookChannel, nil)
	_, err := s.client.EnqueueContext(ctx, task,
		asynq.Queue(constants.TaskQueueSync),
		asynq.TaskID(constants.RenewalTaskID),
		asynq.ProcessAt(at),
		asynq.MaxRetry(5),
	)
	if err != nil {
		logger.Error("Scheduler:ScheduleChannelRenewal:Error", "error", err, "at", at)
		return err
	}

	logger.Info("Scheduler:ScheduleChannelRenewal:Scheduled", "at", at)
	return nil
}

func (s *asynqScheduler) CancelChannelRenewal(ctx context.Context) error {
	err := s.inspector.DeleteTask(constants.TaskQueueSync, constants.RenewalTaskID)
	if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
		logger.Error("Scheduler:CancelChannelRenewal:Error", "error", err)
		return err
	}
	return nil
}

// Handler pairs a task type with its processing function.
type Handler struct {
	Type string
	Fn   func(ctx context.Context, t *asynq.Task) error
}

// RunWorker starts the asynq worker loop in a goroutine.
func RunWorker(cfg config.RedisConfig, handlers []Handler) (*asynq.Server, error) {
	srv := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			constants.TaskQueueSync: 1,
		},
	})

	mux := asynq.NewServeMux()
	for _, h := range handlers {
		mux.HandleFunc(h.Type, h.Fn)
	}

	if err := srv.Start(mux); err != nil {
		logger.Error("Tasks:RunWorker:StartError", "error", err)
		return nil, err
	}

	logger.Info("Tasks:RunWorker:Started", "queue", constants.TaskQueueSync)
	return srv, nil
}
