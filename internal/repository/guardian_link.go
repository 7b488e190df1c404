package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// GuardianLinkRepository reads the guardian/child relation. Links are
// established externally; the engine only resolves recipients from them.
type GuardianLinkRepository interface {
	GuardiansForChild(ctx context.Context, childID int64) ([]int64, error)
	HasLink(ctx context.Context, guardianID, childID int64) (bool, error)
}

type guardianLinkRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewGuardianLinkRepository(db *sqlx.DB, logger *zap.Logger) GuardianLinkRepository {
	return &guardianLinkRepository{db: db, logger: logger}
}

func (r *guardianLinkRepository) GuardiansForChild(ctx context.Context, childID int64) ([]int64, error) {
	var guardians []int64
	query := `SELECT guardian_id FROM guardian_links WHERE child_id = $1 ORDER BY guardian_id`
	if err := r.db.SelectContext(ctx, &guardians, query, childID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return guardians, nil
}

func (r *guardianLinkRepository) HasLink(ctx context.Context, guardianID, childID int64) (bool, error) {
	var count int
	query := `SELECT count(*) FROM guardian_links WHERE guardian_id = $1 AND child_id = $2`
	if err := r.db.GetContext(ctx, &count, query, guardianID, childID); err != nil {
		return false, err
	}
	return count > 0, nil
}
