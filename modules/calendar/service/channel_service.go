package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"clinic-sync/core/config"
	"clinic-sync/core/constants"
	"clinic-sync/core/errors"
	"clinic-sync/core/logger"
	"clinic-sync/core/tasks"
	"clinic-sync/core/utils"
	"clinic-sync/modules/calendar/client"
	"clinic-sync/modules/calendar/entity"
	"clinic-sync/modules/calendar/repository"
	credservice "clinic-sync/modules/credentials/service"

	"github.com/google/uuid"
)

// ChannelService manages the single Google push channel: registration on
// connect, scheduled renewal before expiry, and teardown on disconnect. It
// subscribes to the credential vault's connection lifecycle.
type ChannelService interface {
	RegisterChannel(ctx context.Context) *errors.AppError
	StopChannel(ctx context.Context) *errors.AppError
	// RenewChannel replaces the current channel with a fresh one. Stop
	// failures do not block the re-registration.
	RenewChannel(ctx context.Context) *errors.AppError
	// EnsureRenewalScheduled reconciles the renewal job with the persisted
	// channel on startup, covering downtime that swallowed the scheduled run.
	EnsureRenewalScheduled(ctx context.Context) error
	// VerifyToken checks a webhook delivery's channel token.
	VerifyToken(ctx context.Context, token string) bool
	// Channel returns the persisted registration, or nil when none exists.
	Channel(ctx context.Context) (*entity.WebhookChannel, error)

	credservice.ConnectionObserver
}

type channelService struct {
	api       client.API
	repo      repository.ChannelRepository
	scheduler tasks.Scheduler
	vault     credservice.VaultService
	now       func() time.Time
}

func NewChannelService(api client.API, repo repository.ChannelRepository, scheduler tasks.Scheduler, vault credservice.VaultService) ChannelService {
	return &channelService{
		api:       api,
		repo:      repo,
		scheduler: scheduler,
		vault:     vault,
		now:       time.Now,
	}
}

func (s *channelService) RegisterChannel(ctx context.Context) *errors.AppError {
	cfg, ok := config.GetSafe()
	if !ok {
		return errors.NewAppError(errors.ErrInternalServer, "config not initialized", nil)
	}

	req := &client.WatchRequest{
		ID:      uuid.NewString(),
		Type:    "web_hook",
		Address: config.WebhookCallbackURL(cfg.App.PublicBaseURL),
		Token:   utils.GenerateRandomString(32),
	}
	req.Params.TTL = fmt.Sprintf("%d", int64(constants.WebhookChannelTTL.Seconds()))

	resp, appErr := s.api.Watch(ctx, req)
	if appErr != nil {
		logger.Error("ChannelService:RegisterChannel:WatchError", "error", appErr)
		return appErr
	}

	// Google may grant less than the requested TTL; trust its expiration.
	expiration := time.UnixMilli(resp.Expiration)
	channel := &entity.WebhookChannel{
		ChannelID:    resp.ID,
		ResourceID:   resp.ResourceID,
		Token:        req.Token,
		Expiration:   expiration,
		RegisteredAt: s.now(),
	}
	if err := s.repo.Save(ctx, channel); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to persist channel", err)
	}

	renewAt := channel.RenewalDue(constants.WebhookRenewalLead)
	if err := s.scheduler.ScheduleChannelRenewal(ctx, renewAt); err != nil {
		logger.Error("ChannelService:RegisterChannel:ScheduleError", "error", err)
	}

	logger.Info("ChannelService:RegisterChannel:Success",
		"channel_id", channel.ChannelID,
		"expiration", expiration,
		"renewal_at", renewAt,
	)
	return nil
}

func (s *channelService) StopChannel(ctx context.Context) *errors.AppError {
	channel, err := s.repo.Get(ctx)
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to load channel", err)
	}
	if channel == nil {
		return nil
	}

	// The remote stop is best effort: the local record and the pending
	// renewal must go regardless, or a dead channel would keep renewing.
	if appErr := s.api.StopChannel(ctx, channel.ChannelID, channel.ResourceID); appErr != nil {
		logger.Error("ChannelService:StopChannel:RemoteError", "error", appErr, "channel_id", channel.ChannelID)
	}

	if err := s.repo.Delete(ctx); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to delete channel record", err)
	}
	if err := s.scheduler.CancelChannelRenewal(ctx); err != nil {
		logger.Error("ChannelService:StopChannel:CancelRenewalError", "error", err)
	}

	logger.Info("ChannelService:StopChannel:Success", "channel_id", channel.ChannelID)
	return nil
}

func (s *channelService) RenewChannel(ctx context.Context) *errors.AppError {
	if !s.vault.IsConnected(ctx) {
		logger.Info("ChannelService:RenewChannel:NotConnected")
		return nil
	}
	if appErr := s.StopChannel(ctx); appErr != nil {
		logger.Error("ChannelService:RenewChannel:StopError", "error", appErr)
	}
	return s.RegisterChannel(ctx)
}

func (s *channelService) EnsureRenewalScheduled(ctx context.Context) error {
	channel, err := s.repo.Get(ctx)
	if err != nil {
		return err
	}
	if channel == nil {
		if s.vault.IsConnected(ctx) {
			// Connected but no channel: a registration failed or never ran.
			if appErr := s.RegisterChannel(ctx); appErr != nil {
				return appErr
			}
		}
		return nil
	}

	renewAt := channel.RenewalDue(constants.WebhookRenewalLead)
	if !s.now().Before(renewAt) {
		logger.Info("ChannelService:EnsureRenewalScheduled:RenewalOverdue", "channel_id", channel.ChannelID)
		if appErr := s.RenewChannel(ctx); appErr != nil {
			return appErr
		}
		return nil
	}
	return s.scheduler.ScheduleChannelRenewal(ctx, renewAt)
}

func (s *channelService) Channel(ctx context.Context) (*entity.WebhookChannel, error) {
	return s.repo.Get(ctx)
}

func (s *channelService) VerifyToken(ctx context.Context, token string) bool {
	channel, err := s.repo.Get(ctx)
	if err != nil || channel == nil {
		return false
	}
	return token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(channel.Token)) == 1
}

// Connection lifecycle subscription.

func (s *channelService) OnCalendarConnected(ctx context.Context) {
	// A re-consent while already connected replaces the channel. Stop the old
	// one first or Google keeps pushing to a token the webhook now rejects.
	if appErr := s.StopChannel(ctx); appErr != nil {
		logger.Error("ChannelService:OnCalendarConnected:StopError", "error", appErr)
	}
	if appErr := s.RegisterChannel(ctx); appErr != nil {
		logger.Error("ChannelService:OnCalendarConnected:RegisterError", "error", appErr)
	}
}

func (s *channelService) OnCalendarDisconnecting(ctx context.Context) {
	// Runs before credentials are erased so the stop call can authenticate.
	if appErr := s.StopChannel(ctx); appErr != nil {
		logger.Error("ChannelService:OnCalendarDisconnecting:StopError", "error", appErr)
	}
}

func (s *channelService) OnCalendarDisconnected(ctx context.Context) {}
