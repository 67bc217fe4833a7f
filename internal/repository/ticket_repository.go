package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
)

// ErrDuplicateOpenTicket reports that the creator already holds an
// open ticket in the workspace. Raised by the partial unique index
// when concurrent creates race past the application-level check.
var ErrDuplicateOpenTicket = errors.New("creator already has an open ticket in this workspace")

// TicketRepository encapsulates ticket persistence. It is the single
// source of truth for ticket status and claim ownership.
type TicketRepository interface {
	// Create persists a new OPEN ticket and assigns its per-workspace
	// number atomically with the insert.
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error)
	ListOpenByCreator(ctx context.Context, workspaceID, creatorID string) ([]domain.Ticket, error)
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, actorID, reason *string) error
	// ClaimIfUnclaimed atomically sets the claimant when none is set.
	// Returns false when another claimant won the race.
	ClaimIfUnclaimed(ctx context.Context, id, claimantID string) (bool, error)
	// UnclaimIfClaimedBy atomically clears the claimant only while it
	// still equals claimantID. Returns false when the claimant changed
	// since it was read.
	UnclaimIfClaimedBy(ctx context.Context, id, claimantID string) (bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, workspace_id, number, creator_id, channel_id, category_id,
       status, claimant_id, close_reason, closed_by_id, created_at, updated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serializes number assignment per workspace. The unique index on
	// (workspace_id, number) backs this up if the lock is ever bypassed.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ticket.WorkspaceID); err != nil {
		return err
	}

	const query = `
        INSERT INTO tickets (workspace_id, number, creator_id, channel_id, category_id, status)
        SELECT $1, COALESCE(MAX(number), 0) + 1, $2, $3, $4, $5 FROM tickets WHERE workspace_id = $1
        RETURNING id, number, created_at, updated_at`
	if err := tx.QueryRow(ctx, query,
		ticket.WorkspaceID,
		ticket.CreatorID,
		ticket.ChannelID,
		ticket.CategoryID,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.Number, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "idx_tickets_open_per_creator" {
			return ErrDuplicateOpenTicket
		}
		return err
	}

	return tx.Commit(ctx)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE channel_id=$1`
	return r.fetchSingle(ctx, query, channelID)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&ticket.ID,
		&ticket.WorkspaceID,
		&ticket.Number,
		&ticket.CreatorID,
		&ticket.ChannelID,
		&ticket.CategoryID,
		&ticket.Status,
		&ticket.ClaimantID,
		&ticket.CloseReason,
		&ticket.ClosedByID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListOpenByCreator(ctx context.Context, workspaceID, creatorID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets WHERE workspace_id=$1 AND creator_id=$2 AND status=$3
        ORDER BY number`
	rows, err := r.pool.Query(ctx, query, workspaceID, creatorID, domain.TicketStatusOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, actorID, reason *string) error {
	const query = `
        UPDATE tickets SET status=$1, closed_by_id=$2, close_reason=$3,
            closed_at=CASE WHEN $1 = 'OPEN' THEN NULL ELSE NOW() END,
            updated_at=NOW()
        WHERE id=$4`
	cmd, err := r.pool.Exec(ctx, query, status, actorID, reason, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ClaimIfUnclaimed(ctx context.Context, id, claimantID string) (bool, error) {
	const query = `
        UPDATE tickets SET claimant_id=$1, updated_at=NOW()
        WHERE id=$2 AND claimant_id IS NULL`
	cmd, err := r.pool.Exec(ctx, query, claimantID, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) UnclaimIfClaimedBy(ctx context.Context, id, claimantID string) (bool, error) {
	const query = `
        UPDATE tickets SET claimant_id=NULL, updated_at=NOW()
        WHERE id=$1 AND claimant_id=$2`
	cmd, err := r.pool.Exec(ctx, query, id, claimantID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.WorkspaceID,
			&ticket.Number,
			&ticket.CreatorID,
			&ticket.ChannelID,
			&ticket.CategoryID,
			&ticket.Status,
			&ticket.ClaimantID,
			&ticket.CloseReason,
			&ticket.ClosedByID,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.ClosedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
