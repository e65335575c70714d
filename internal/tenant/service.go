package tenant

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lejio/backend-fleet/internal/common"
)

// RootDomain is the apex under which every tenant gets its subdomain.
const RootDomain = "lejio-fri.dk"

const trialPeriod = 30 * 24 * time.Hour

var subdomainPattern = regexp.MustCompile(`^[a-z0-9-]{3,50}$`)

// SignupInput is the payload for registering a new rental company.
type SignupInput struct {
	CompanyName  string `json:"company_name" validate:"required,min=2,max=200"`
	ContactEmail string `json:"contact_email" validate:"required,email"`
	Subdomain    string `json:"subdomain" validate:"required"`
}

// Service implements tenant signup and lookup.
type Service struct {
	Store Store
	Log   zerolog.Logger

	Now func() time.Time
}

// Signup registers a company under <subdomain>.lejio-fri.dk with a 30-day
// trial. A taken subdomain returns a conflict.
func (s *Service) Signup(ctx context.Context, in SignupInput) (Tenant, error) {
	subdomain := strings.ToLower(strings.TrimSpace(in.Subdomain))
	if !subdomainPattern.MatchString(subdomain) {
		return Tenant{}, common.ErrValidation("subdomain must be 3-50 characters of a-z, 0-9 or hyphen", nil)
	}

	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	trialEnd := now.Add(trialPeriod)

	t := Tenant{
		CompanyName:  strings.TrimSpace(in.CompanyName),
		ContactEmail: strings.ToLower(strings.TrimSpace(in.ContactEmail)),
		Subdomain:    subdomain,
		Domain:       subdomain + "." + RootDomain,
		Plan:         "trial",
		Status:       "active",
		TrialEndsAt:  &trialEnd,
	}

	created, err := s.Store.Create(ctx, t)
	if err != nil {
		if errors.Is(err, ErrSubdomainTaken) {
			return Tenant{}, common.ErrConflict("subdomain is already taken")
		}
		return Tenant{}, err
	}

	s.Log.Info().
		Str("tenant_id", created.ID.String()).
		Str("subdomain", created.Subdomain).
		Msg("tenant signed up")
	return created, nil
}

// Lookup fetches a tenant by subdomain.
func (s *Service) Lookup(ctx context.Context, subdomain string) (Tenant, error) {
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	if !subdomainPattern.MatchString(subdomain) {
		return Tenant{}, common.ErrValidation("invalid subdomain", nil)
	}
	t, err := s.Store.GetBySubdomain(ctx, subdomain)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Tenant{}, common.ErrNotFound("tenant not found")
		}
		return Tenant{}, err
	}
	return t, nil
}
