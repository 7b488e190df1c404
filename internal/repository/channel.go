package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"kidsafe/internal/models"
)

var ErrChannelNotFound = errors.New("channel not found")

// ChannelRepository tracks monitored conversation sources and the
// high-water mark of messages already collected from each.
type ChannelRepository interface {
	ListActive(ctx context.Context) ([]models.Channel, error)
	UpdateLastCollectedMessageID(ctx context.Context, channelID, messageID int64) error
}

type channelRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewChannelRepository(db *sqlx.DB, logger *zap.Logger) ChannelRepository {
	return &channelRepository{db: db, logger: logger}
}

func (r *channelRepository) ListActive(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	query := `SELECT id, child_id, app, external_id, monitoring_active, last_collected_message_id
	          FROM channels WHERE monitoring_active = true ORDER BY id`
	if err := r.db.SelectContext(ctx, &channels, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return channels, nil
}

func (r *channelRepository) UpdateLastCollectedMessageID(ctx context.Context, channelID, messageID int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE channels SET last_collected_message_id = $1 WHERE id = $2`, messageID, channelID)
	if err != nil {
		return fmt.Errorf("failed to update channel high-water mark: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrChannelNotFound
	}
	return nil
}
