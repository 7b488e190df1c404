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

var ErrFilterNotFound = errors.New("filter not found")

type FilterRepository interface {
	Upsert(ctx context.Context, filter *models.Filter) error
	Delete(ctx context.Context, filterID int64) error
	ListByGuardian(ctx context.Context, guardianID int64) ([]models.Filter, error)
	ListAllActive(ctx context.Context) ([]models.Filter, error)
}

type filterRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewFilterRepository(db *sqlx.DB, logger *zap.Logger) FilterRepository {
	return &filterRepository{db: db, logger: logger}
}

func (r *filterRepository) Upsert(ctx context.Context, filter *models.Filter) error {
	if filter.ID == 0 {
		query := `INSERT INTO filters (guardian_id, match_text, match_mode, severity, active)
		          VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`
		return r.db.QueryRowxContext(ctx, query, filter.GuardianID, filter.MatchText,
			filter.MatchMode, filter.Severity, filter.Active).StructScan(filter)
	}

	query := `UPDATE filters
	          SET match_text = $1, match_mode = $2, severity = $3, active = $4, updated_at = now()
	          WHERE id = $5 AND guardian_id = $6`
	result, err := r.db.ExecContext(ctx, query, filter.MatchText, filter.MatchMode,
		filter.Severity, filter.Active, filter.ID, filter.GuardianID)
	if err != nil {
		return fmt.Errorf("failed to update filter: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrFilterNotFound
	}
	return nil
}

func (r *filterRepository) Delete(ctx context.Context, filterID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM filters WHERE id = $1`, filterID)
	if err != nil {
		return fmt.Errorf("failed to delete filter: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrFilterNotFound
	}
	return nil
}

func (r *filterRepository) ListByGuardian(ctx context.Context, guardianID int64) ([]models.Filter, error) {
	var filters []models.Filter
	query := `SELECT id, guardian_id, match_text, match_mode, severity, active, created_at, updated_at
	          FROM filters WHERE guardian_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &filters, query, guardianID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return filters, nil
}

func (r *filterRepository) ListAllActive(ctx context.Context) ([]models.Filter, error) {
	var filters []models.Filter
	query := `SELECT id, guardian_id, match_text, match_mode, severity, active, created_at, updated_at
	          FROM filters WHERE active = true`
	if err := r.db.SelectContext(ctx, &filters, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return filters, nil
}
