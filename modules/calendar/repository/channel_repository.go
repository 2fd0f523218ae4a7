package repository

import (
	"context"
	"database/sql"

	"clinic-sync/core/database"
	"clinic-sync/core/logger"
	"clinic-sync/modules/calendar/entity"
)

// ChannelRepository persists the single webhook channel registration.
type ChannelRepository interface {
	Get(ctx context.Context) (*entity.WebhookChannel, error)
	Save(ctx context.Context, channel *entity.WebhookChannel) error
	Delete(ctx context.Context) error
}

type channelRepository struct {
	db database.IDatabase
}

func NewChannelRepository(db database.IDatabase) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) Get(ctx context.Context) (*entity.WebhookChannel, error) {
	var channel entity.WebhookChannel
	query := `
		SELECT channel_id, resource_id, token, expiration, registered_at
		FROM webhook_channels
		WHERE singleton = true
	`
	err := r.db.GetContext(ctx, &channel, query)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("ChannelRepository:Get:Error", "error", err)
		return nil, err
	}
	return &channel, nil
}

func (r *channelRepository) Save(ctx context.Context, channel *entity.WebhookChannel) error {
	query := `
		INSERT INTO webhook_channels (singleton, channel_id, resource_id, token, expiration, registered_at)
		VALUES (true, $1, $2, $3, $4, $5)
		ON CONFLICT (singleton)
		DO UPDATE SET
			channel_id = EXCLUDED.channel_id,
			resource_id = EXCLUDED.resource_id,
			token = EXCLUDED.token,
			expiration = EXCLUDED.expiration,
			registered_at = EXCLUDED.registered_at
	`
	err := r.db.ExecContext(ctx, query,
		channel.ChannelID, channel.ResourceID, channel.Token, channel.Expiration, channel.RegisteredAt)
	if err != nil {
		logger.Error("ChannelRepository:Save:Error", "error", err, "channel_id", channel.ChannelID)
	}
	return err
}

func (r *channelRepository) Delete(ctx context.Context) error {
	err := r.db.ExecContext(ctx, `DELETE FROM webhook_channels WHERE singleton = true`)
	if err != nil {
		logger.Error("ChannelRepository:Delete:Error", "error", err)
	}
	return err
}
