package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/driveline/driveline/internal/core"
	apperrors "github.com/driveline/driveline/internal/errors"
)

// BindingRepo reads recipient bindings maintained by the binding commands.
type BindingRepo struct {
	DB *sql.DB
}

var _ core.BindingStore = (*BindingRepo)(nil)

// NewBindingRepo creates a BindingRepo.
func NewBindingRepo(db *sql.DB) *BindingRepo {
	return &BindingRepo{DB: db}
}

// ListRecipients implements core.BindingStore.
func (r *BindingRepo) ListRecipients(ctx context.Context, contextID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT DISTINCT recipient_id
		FROM context_bindings
		WHERE context_id = $1
		ORDER BY recipient_id
	`, contextID)
	if err != nil {
		return nil, fmt.Errorf("list bindings: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bindings: %w", err)
	}
	return out, nil
}
