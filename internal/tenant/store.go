package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals no tenant exists for the given subdomain.
	ErrNotFound = errors.New("tenant not found")
	// ErrSubdomainTaken signals the subdomain unique constraint fired.
	ErrSubdomainTaken = errors.New("subdomain already taken")
)

// Tenant is one registered rental company.
type Tenant struct {
	ID           uuid.UUID  `json:"id"`
	CompanyName  string     `json:"company_name"`
	ContactEmail string     `json:"contact_email"`
	Subdomain    string     `json:"subdomain"`
	Domain       string     `json:"domain"`
	Plan         string     `json:"plan"`
	Status       string     `json:"status"`
	TrialEndsAt  *time.Time `json:"trial_ends_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Store is the persistence surface for the tenant registry.
type Store interface {
	GetBySubdomain(ctx context.Context, subdomain string) (Tenant, error)
	Create(ctx context.Context, t Tenant) (Tenant, error)
}

// PGStore implements Store over a pgx pool.
type PGStore struct {
	Pool *pgxpool.Pool
}

const tenantColumns = `id, company_name, contact_email, subdomain, domain, plan, status, trial_ends_at, created_at`

func (s *PGStore) GetBySubdomain(ctx context.Context, subdomain string) (Tenant, error) {
	var t Tenant
	err := s.Pool.QueryRow(ctx, `
		SELECT `+tenantColumns+`
		FROM tenants
		WHERE subdomain = $1`, subdomain).
		Scan(&t.ID, &t.CompanyName, &t.ContactEmail, &t.Subdomain, &t.Domain,
			&t.Plan, &t.Status, &t.TrialEndsAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

// Create inserts the tenant. Subdomain uniqueness is enforced by the
// database; a conflict surfaces as ErrSubdomainTaken rather than a pre-read.
func (s *PGStore) Create(ctx context.Context, t Tenant) (Tenant, error) {
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO tenants (company_name, contact_email, subdomain, domain, plan, status, trial_ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		t.CompanyName, t.ContactEmail, t.Subdomain, t.Domain, t.Plan, t.Status, t.TrialEndsAt).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Tenant{}, ErrSubdomainTaken
		}
		return Tenant{}, err
	}
	return t, nil
}
