package organization

import (
	"context"
	"sync"
	"time"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/google/uuid"
)

// MemoryRepository keeps organizations in process memory. Used in development and tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	orgs map[uuid.UUID]domain.Organization
	now  func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orgs: make(map[uuid.UUID]domain.Organization),
		now:  time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, org *domain.Organization) error {
	const op = "MemoryRepository.Create"
	if err := validateNew(op, org); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	if _, ok := r.orgs[org.ID]; ok {
		return domain.Errorf(domain.ECONFLICT, op, "organization %s already exists", org.ID)
	}
	if org.SubscriptionStatus == "" {
		org.SubscriptionStatus = domain.SubscriptionStatusInactive
	}
	now := r.now().UTC()
	org.CreatedAt, org.UpdatedAt = now, now
	r.orgs[org.ID] = *org
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*domain.Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	org, ok := r.orgs[id]
	if !ok {
		return nil, domain.NotFound("MemoryRepository.Get", "organization", id.String())
	}
	return &org, nil
}

func (r *MemoryRepository) GetByStripeCustomerID(_ context.Context, customerID string) (*domain.Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if customerID != "" {
		for _, org := range r.orgs {
			if org.StripeCustomerID == customerID {
				return &org, nil
			}
		}
	}
	return nil, domain.NotFound("MemoryRepository.GetByStripeCustomerID", "organization", customerID)
}

func (r *MemoryRepository) SetStripeCustomer(_ context.Context, id uuid.UUID, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	org, ok := r.orgs[id]
	if !ok {
		return domain.NotFound("MemoryRepository.SetStripeCustomer", "organization", id.String())
	}
	org.StripeCustomerID = customerID
	org.UpdatedAt = r.now().UTC()
	r.orgs[id] = org
	return nil
}

func (r *MemoryRepository) UpdateSubscription(_ context.Context, id uuid.UUID, update domain.SubscriptionUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	org, ok := r.orgs[id]
	if !ok {
		return domain.NotFound("MemoryRepository.UpdateSubscription", "organization", id.String())
	}
	applyUpdate(&org, update)
	org.UpdatedAt = r.now().UTC()
	r.orgs[id] = org
	return nil
}
