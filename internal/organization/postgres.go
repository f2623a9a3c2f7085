package organization

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/google/uuid"
)

const orgColumns = `id, name, plan, ai_voice_enabled, stripe_customer_id, subscription_id, subscription_status, created_at, updated_at`

const (
	insertOrgSQL = `INSERT INTO organizations (id, name, plan, ai_voice_enabled, subscription_status)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at`

	selectOrgSQL = `SELECT ` + orgColumns + ` FROM organizations WHERE id = $1`

	selectOrgByCustomerSQL = `SELECT ` + orgColumns + ` FROM organizations WHERE stripe_customer_id = $1`

	setCustomerSQL = `UPDATE organizations SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1`

	// An empty plan keeps the stored one.
	updateSubscriptionSQL = `UPDATE organizations
SET plan = COALESCE(NULLIF($2, ''), plan),
    ai_voice_enabled = $3,
    subscription_status = $4,
    subscription_id = $5,
    updated_at = NOW()
WHERE id = $1`
)

// PostgresRepository stores organizations in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, org *domain.Organization) error {
	const op = "PostgresRepository.Create"
	if err := validateNew(op, org); err != nil {
		return err
	}
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	if org.SubscriptionStatus == "" {
		org.SubscriptionStatus = domain.SubscriptionStatusInactive
	}

	err := r.db.QueryRowContext(ctx, insertOrgSQL,
		org.ID, org.Name, string(org.Plan), org.AIVoiceEnabled, string(org.SubscriptionStatus),
	).Scan(&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate") {
			return domain.Errorf(domain.ECONFLICT, op, "organization %s already exists", org.ID)
		}
		return domain.Internal(err, op, "Failed to create organization")
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	const op = "PostgresRepository.Get"

	org, err := scanOrganization(r.db.QueryRowContext(ctx, selectOrgSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "organization", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve organization")
	}
	return org, nil
}

func (r *PostgresRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.Organization, error) {
	const op = "PostgresRepository.GetByStripeCustomerID"

	org, err := scanOrganization(r.db.QueryRowContext(ctx, selectOrgByCustomerSQL, customerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "organization", customerID)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve organization")
	}
	return org, nil
}

func (r *PostgresRepository) SetStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error {
	const op = "PostgresRepository.SetStripeCustomer"
	return r.execOne(ctx, op, id, setCustomerSQL, id, customerID)
}

func (r *PostgresRepository) UpdateSubscription(ctx context.Context, id uuid.UUID, u domain.SubscriptionUpdate) error {
	const op = "PostgresRepository.UpdateSubscription"
	return r.execOne(ctx, op, id, updateSubscriptionSQL,
		id, string(u.Plan), u.AIVoiceEnabled, string(u.Status), u.SubscriptionID)
}

func (r *PostgresRepository) execOne(ctx context.Context, op string, id uuid.UUID, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Internal(err, op, "Failed to update organization")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Internal(err, op, "Failed to update organization")
	}
	if n == 0 {
		return domain.NotFound(op, "organization", id.String())
	}
	return nil
}

func scanOrganization(row *sql.Row) (*domain.Organization, error) {
	var (
		org      domain.Organization
		plan     string
		status   string
		customer sql.NullString
		subID    sql.NullString
	)
	err := row.Scan(&org.ID, &org.Name, &plan, &org.AIVoiceEnabled,
		&customer, &subID, &status, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, err
	}
	org.Plan = domain.PlanTier(plan)
	org.SubscriptionStatus = domain.SubscriptionStatus(status)
	org.StripeCustomerID = customer.String
	org.SubscriptionID = subID.String
	return &org, nil
}
