package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
)

// TicketAuditRepository appends to the immutable ticket audit trail.
type TicketAuditRepository interface {
	Create(ctx context.Context, entry *domain.TicketAudit) error
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketAudit, error)
}

type ticketAuditRepository struct {
	pool *pgxpool.Pool
}

// NewTicketAuditRepository instantiates repository.
func NewTicketAuditRepository(pool *pgxpool.Pool) TicketAuditRepository {
	return &ticketAuditRepository{pool: pool}
}

func (r *ticketAuditRepository) Create(ctx context.Context, entry *domain.TicketAudit) error {
	oldValue, err := json.Marshal(entry.OldValue)
	if err != nil {
		return err
	}
	newValue, err := json.Marshal(entry.NewValue)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO ticket_audit (ticket_id, actor_id, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.ActorID,
		entry.ChangeType,
		oldValue,
		newValue,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *ticketAuditRepository) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketAudit, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, ticket_id, actor_id, change_type, old_value, new_value, created_at
        FROM ticket_audit WHERE ticket_id=$1
        ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketAudit
	for rows.Next() {
		var entry domain.TicketAudit
		var oldValue, newValue []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.ActorID,
			&entry.ChangeType,
			&oldValue,
			&newValue,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(oldValue, &entry.OldValue); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(newValue, &entry.NewValue); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
