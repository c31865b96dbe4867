package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smart-care/voice-gateway/internal/domain"
)

// TicketRepository encapsulates support-request persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByNumber(ctx context.Context, ticketNumber string) (*domain.Ticket, error)
	LinkToUser(ctx context.Context, userID string, link domain.TicketLink) error
	UserLinks(ctx context.Context, userID string) ([]domain.TicketLink, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates a Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO support_requests (ticket_number, resident_name, problem_description,
            preferred_service_time, community, unit_number, category, priority, summary,
            status, transcript, user_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.TicketNumber,
		ticket.ResidentName,
		ticket.ProblemDescription,
		ticket.PreferredServiceTime,
		ticket.Community,
		ticket.UnitNumber,
		ticket.Category,
		ticket.Priority,
		ticket.Summary,
		ticket.Status,
		ticket.Transcript,
		ticket.UserID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, ticketNumber string) (*domain.Ticket, error) {
	const query = `
        SELECT id, ticket_number, resident_name, problem_description, preferred_service_time,
               community, unit_number, category, priority, summary, status, transcript,
               user_id, created_at, updated_at
        FROM support_requests WHERE ticket_number=$1`

	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, ticketNumber).Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.ResidentName,
		&ticket.ProblemDescription,
		&ticket.PreferredServiceTime,
		&ticket.Community,
		&ticket.UnitNumber,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Summary,
		&ticket.Status,
		&ticket.Transcript,
		&ticket.UserID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) LinkToUser(ctx context.Context, userID string, link domain.TicketLink) error {
	const query = `
        INSERT INTO user_tickets (user_id, ticket_id, ticket_number, summary, status)
        VALUES ($1,$2,$3,$4,$5)`
	_, err := r.pool.Exec(ctx, query, userID, link.TicketID, link.TicketNumber, link.Summary, link.Status)
	return err
}

func (r *ticketRepository) UserLinks(ctx context.Context, userID string) ([]domain.TicketLink, error) {
	const query = `
        SELECT ticket_id, ticket_number, summary, status, created_at
        FROM user_tickets WHERE user_id=$1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.TicketLink
	for rows.Next() {
		var link domain.TicketLink
		if err := rows.Scan(&link.TicketID, &link.TicketNumber, &link.Summary, &link.Status, &link.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}
