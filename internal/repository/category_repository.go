package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
)

// CategoryRepository reads ticket categories. Administrative writes
// happen outside the core.
type CategoryRepository interface {
	GetByID(ctx context.Context, id string) (*domain.TicketCategory, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.TicketCategory, error)
}

type categoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository instantiates repository.
func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{pool: pool}
}

const categoryColumns = `id, workspace_id, name, description, emoji, support_role_id,
       enabled, position, welcome_template, parent_group_id, created_at, updated_at`

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.TicketCategory, error) {
	query := `SELECT ` + categoryColumns + ` FROM ticket_categories WHERE id=$1`
	var category domain.TicketCategory
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&category.ID,
		&category.WorkspaceID,
		&category.Name,
		&category.Description,
		&category.Emoji,
		&category.SupportRoleID,
		&category.Enabled,
		&category.Position,
		&category.WelcomeTemplate,
		&category.ParentGroupID,
		&category.CreatedAt,
		&category.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.TicketCategory, error) {
	query := `SELECT ` + categoryColumns + `
        FROM ticket_categories WHERE workspace_id=$1 ORDER BY position`
	rows, err := r.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCategories(rows)
}

func scanCategories(rows pgx.Rows) ([]domain.TicketCategory, error) {
	var result []domain.TicketCategory
	for rows.Next() {
		var category domain.TicketCategory
		if err := rows.Scan(
			&category.ID,
			&category.WorkspaceID,
			&category.Name,
			&category.Description,
			&category.Emoji,
			&category.SupportRoleID,
			&category.Enabled,
			&category.Position,
			&category.WelcomeTemplate,
			&category.ParentGroupID,
			&category.CreatedAt,
			&category.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, category)
	}
	return result, rows.Err()
}
