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

var ErrAlertNotFound = errors.New("alert not found")

type AlertRepository interface {
	Insert(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id int64) (*models.Alert, error)
	RecentByGuardian(ctx context.Context, guardianID int64, limit int) ([]models.Alert, error)
	UpdateState(ctx context.Context, id int64, state models.AlertState) error
}

type alertRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewAlertRepository(db *sqlx.DB, logger *zap.Logger) AlertRepository {
	return &alertRepository{db: db, logger: logger}
}

func (r *alertRepository) Insert(ctx context.Context, alert *models.Alert) error {
	query := `INSERT INTO alerts (guardian_id, child_id, app, sender, severity, confidence,
	                              flagged_content, reasoning, urgency, dedup_key, state)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          RETURNING id, created_at`
	return r.db.QueryRowxContext(ctx, query, alert.GuardianID, alert.ChildID, alert.App,
		alert.Sender, alert.Severity, alert.Confidence, alert.FlaggedContent,
		alert.Reasoning, alert.Urgency, alert.DedupKey, alert.State).StructScan(alert)
}

func (r *alertRepository) GetByID(ctx context.Context, id int64) (*models.Alert, error) {
	var alert models.Alert
	query := `SELECT id, guardian_id, child_id, app, sender, severity, confidence,
	                 flagged_content, reasoning, urgency, dedup_key, state, created_at
	          FROM alerts WHERE id = $1`
	if err := r.db.GetContext(ctx, &alert, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepository) RecentByGuardian(ctx context.Context, guardianID int64, limit int) ([]models.Alert, error) {
	var alerts []models.Alert
	query := `SELECT id, guardian_id, child_id, app, sender, severity, confidence,
	                 flagged_content, reasoning, urgency, dedup_key, state, created_at
	          FROM alerts WHERE guardian_id = $1 ORDER BY created_at DESC LIMIT $2`
	if err := r.db.SelectContext(ctx, &alerts, query, guardianID, limit); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *alertRepository) UpdateState(ctx context.Context, id int64, state models.AlertState) error {
	result, err := r.db.ExecContext(ctx, `UPDATE alerts SET state = $1 WHERE id = $2`, state, id)
	if err != nil {
		r.logger.Error("Failed to update alert state",
			zap.Int64("alert_id", id),
			zap.String("state", string(state)),
			zap.Error(err))
		return fmt.Errorf("failed to update alert state: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAlertNotFound
	}
	return nil
}
