package organization

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orgRowColumns = []string{
	"id", "name", "plan", "ai_voice_enabled", "stripe_customer_id",
	"subscription_id", "subscription_status", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgresRepository_Get(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(selectOrgSQL)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(orgRowColumns).
			AddRow(id.String(), "Acme", "premium", true, "cus_1", nil, "active", ts, ts))

	org, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, org.ID)
	assert.Equal(t, domain.PlanTierPremium, org.Plan)
	assert.True(t, org.AIVoiceEnabled)
	assert.Equal(t, "cus_1", org.StripeCustomerID)
	assert.Empty(t, org.SubscriptionID)
	assert.Equal(t, domain.SubscriptionStatusActive, org.SubscriptionStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(sqlmock.Sqlmock)
		code  string
	}{
		{
			name: "not found",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(selectOrgSQL)).WillReturnRows(sqlmock.NewRows(orgRowColumns))
			},
			code: domain.ENOTFOUND,
		},
		{
			name: "query failure",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(selectOrgSQL)).WillReturnError(errors.New("conn refused"))
			},
			code: domain.EINTERNAL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			tt.setup(mock)
			_, err := repo.Get(context.Background(), uuid.New())
			assert.Equal(t, tt.code, domain.ErrorCode(err))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(insertOrgSQL)).
		WithArgs(sqlmock.AnyArg(), "Acme", "pro", false, "inactive").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(ts, ts))

	org := &domain.Organization{Name: "Acme", Plan: domain.PlanTierPro}
	require.NoError(t, repo.Create(context.Background(), org))
	assert.NotEqual(t, uuid.Nil, org.ID)
	assert.Equal(t, ts, org.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(insertOrgSQL)).
		WillReturnError(errors.New(`duplicate key value violates unique constraint "organizations_pkey"`))

	err := repo.Create(context.Background(), &domain.Organization{Name: "Acme", Plan: domain.PlanTierFree})
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
}

func TestPostgresRepository_UpdateSubscription(t *testing.T) {
	id := uuid.New()
	update := domain.SubscriptionUpdate{
		Plan:           domain.PlanTierPro,
		Status:         domain.SubscriptionStatusActive,
		SubscriptionID: "sub_9",
	}

	t.Run("updates row", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(regexp.QuoteMeta(updateSubscriptionSQL)).
			WithArgs(id, "pro", false, "active", "sub_9").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateSubscription(context.Background(), id, update))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing organization", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(regexp.QuoteMeta(updateSubscriptionSQL)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateSubscription(context.Background(), id, update)
		assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	})
}

func TestPostgresRepository_SetStripeCustomer(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(setCustomerSQL)).
		WithArgs(id, "cus_42").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetStripeCustomer(context.Background(), id, "cus_42"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
