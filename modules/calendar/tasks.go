package calendar

import (
	"context"

	"clinic-sync/core/constants"
	"clinic-sync/core/tasks"
	"clinic-sync/modules/calendar/service"

	"github.com/hibiken/asynq"
)

// TaskHandlers maps the sync task types onto their services. Handler errors
// make asynq retry with backoff, which is exactly the cursor semantics the
// inbound processor wants.
func TaskHandlers(inbound service.InboundSyncService, channels service.ChannelService) []tasks.Handler {
	return []tasks.Handler{
		{
			Type: constants.TaskProcessCalendarChanges,
			Fn: func(ctx context.Context, t *asynq.Task) error {
				return inbound.ProcessChanges(ctx)
			},
		},
		{
			Type: constants.TaskRenewWebhookChannel,
			Fn: func(ctx context.Context, t *asynq.Task) error {
				if appErr := channels.RenewChannel(ctx); appErr != nil {
					return appErr
				}
				return nil
			},
		},
	}
}
