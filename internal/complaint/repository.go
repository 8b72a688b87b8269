package complaint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/db"
)

var (
	ErrComplaintNotFound     = fmt.Errorf("complaint %w", apperr.ErrNotFound)
	ErrActiveComplaintExists = fmt.Errorf("order item already has an active complaint: %w", apperr.ErrConflict)
)

type Repository interface {
	Create(ctx context.Context, c *Complaint) error
	GetByID(ctx context.Context, id uuid.UUID) (*Complaint, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Complaint, error)
	Update(ctx context.Context, c *Complaint) error
	HasActiveForItem(ctx context.Context, orderItemID uuid.UUID) (bool, error)
	CountActiveForOrder(ctx context.Context, orderID uuid.UUID) (int, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Complaint, error)
}

type postgresRepository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &postgresRepository{db: q}
}

const complaintColumns = `id, order_item_id, order_id, buyer_id, seller_id, reason, media, seller_response, admin_notes,
		status, return_required, return_carrier, return_tracking_code, return_proof_image, created_at, updated_at, resolved_at`

func activeStatusStrings() []string {
	active := ActiveStatuses()
	out := make([]string, len(active))
	for i, s := range active {
		out[i] = string(s)
	}
	return out
}

func (r *postgresRepository) Create(ctx context.Context, c *Complaint) error {
	if c.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate complaint ID: %w", err)
		}
		c.ID = id
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Media == nil {
		c.Media = []string{}
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO complaints (`+complaintColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		c.ID, c.OrderItemID, c.OrderID, c.BuyerID, c.SellerID, c.Reason, c.Media, c.SellerResponse, c.AdminNotes,
		string(c.Status), c.ReturnRequired, c.Return.Carrier, c.Return.TrackingCode, c.Return.ProofImageURL,
		c.CreatedAt, c.UpdatedAt, c.ResolvedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			log.Warn().Stringer("order_item_id", c.OrderItemID).Msg("repository: active complaint already exists")
			return ErrActiveComplaintExists
		}
		return fmt.Errorf("repository: failed to insert complaint: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Complaint, error) {
	return r.get(ctx, id, "")
}

func (r *postgresRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Complaint, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *postgresRepository) get(ctx context.Context, id uuid.UUID, lockClause string) (*Complaint, error) {
	c, err := scanComplaint(r.db.QueryRow(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1`+lockClause, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrComplaintNotFound
		}
		return nil, fmt.Errorf("repository: failed to select complaint %s: %w", id, err)
	}
	return c, nil
}

func (r *postgresRepository) Update(ctx context.Context, c *Complaint) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE complaints
		SET seller_response = $1, admin_notes = $2, status = $3, return_required = $4,
			return_carrier = $5, return_tracking_code = $6, return_proof_image = $7,
			updated_at = $8, resolved_at = $9
		WHERE id = $10`,
		c.SellerResponse, c.AdminNotes, string(c.Status), c.ReturnRequired,
		c.Return.Carrier, c.Return.TrackingCode, c.Return.ProofImageURL,
		c.UpdatedAt, c.ResolvedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update complaint %s: %w", c.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrComplaintNotFound
	}
	return nil
}

func (r *postgresRepository) HasActiveForItem(ctx context.Context, orderItemID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM complaints WHERE order_item_id = $1 AND status = ANY($2))`,
		orderItemID, activeStatusStrings()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: failed to check active complaints for item %s: %w", orderItemID, err)
	}
	return exists, nil
}

func (r *postgresRepository) CountActiveForOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM complaints WHERE order_id = $1 AND status = ANY($2)`,
		orderID, activeStatusStrings()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to count active complaints for order %s: %w", orderID, err)
	}
	return n, nil
}

func (r *postgresRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Complaint, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+complaintColumns+`
		FROM complaints
		WHERE order_id = $1
		ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query complaints for order %s: %w", orderID, err)
	}
	defer rows.Close()

	complaints := []Complaint{}
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan complaint: %w", err)
		}
		complaints = append(complaints, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating complaints: %w", err)
	}
	return complaints, nil
}

func scanComplaint(row pgx.Row) (*Complaint, error) {
	var c Complaint
	var status string
	err := row.Scan(
		&c.ID,
		&c.OrderItemID,
		&c.OrderID,
		&c.BuyerID,
		&c.SellerID,
		&c.Reason,
		&c.Media,
		&c.SellerResponse,
		&c.AdminNotes,
		&status,
		&c.ReturnRequired,
		&c.Return.Carrier,
		&c.Return.TrackingCode,
		&c.Return.ProofImageURL,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = Status(status)
	return &c, nil
}
