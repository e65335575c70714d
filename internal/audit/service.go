package audit

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lejio/backend-fleet/internal/obs"
)

// ActorKind represents the source of an audited action.
type ActorKind string

const (
	// ActorKindUser represents an authenticated lessor.
	ActorKindUser ActorKind = "user"
	// ActorKindSystem represents scheduled batch actions.
	ActorKindSystem ActorKind = "system"
	// ActorKindAnonymous represents unauthenticated actors.
	ActorKindAnonymous ActorKind = "anonymous"
)

// Actor describes the entity performing the action.
type Actor struct {
	Kind   ActorKind
	UserID *string
}

// Entry is one persisted audit record.
type Entry struct {
	ActorKind    string
	ActorUserID  *string
	Action       string
	ResourceType string
	ResourceID   *string
	Method       string
	Route        string
	Status       int
	IP           *string
	UserAgent    *string
	RequestID    *string
	Metadata     []byte
}

// Store defines the database operations required for auditing.
type Store interface {
	InsertAuditLog(ctx context.Context, e Entry) error
}

// PGStore implements Store over a pgx pool.
type PGStore struct {
	Pool *pgxpool.Pool
}

func (s *PGStore) InsertAuditLog(ctx context.Context, e Entry) error {
	metadata := e.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO audit_logs (
			actor_kind, actor_user_id, action, resource_type, resource_id,
			method, route, status, ip, user_agent, request_id, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ActorKind, e.ActorUserID, e.Action, e.ResourceType, e.ResourceID,
		e.Method, e.Route, e.Status, e.IP, e.UserAgent, e.RequestID, metadata)
	return err
}

// Service persists audit logs for the money-moving flows: invoice issuance,
// tenant signup, and batch triggers.
type Service struct {
	Store        Store
	Enabled      bool
	SamplingRate float64
}

// Record persists an audit log entry when auditing is enabled.
func (s Service) Record(ctx context.Context, actor Actor, action, resourceType, resourceID string, req *http.Request, status int, metadata map[string]any) error {
	if !s.Enabled {
		return nil
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 {
		if rand.Float64() > s.SamplingRate {
			return nil
		}
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	route := obs.RoutePatternFromContext(req.Context())
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}

	var meta []byte
	if len(metadata) > 0 {
		meta, _ = json.Marshal(metadata)
	}
	if status == 0 {
		status = http.StatusOK
	}

	entry := Entry{
		ActorKind:    string(normalizeActorKind(actor.Kind)),
		ActorUserID:  sanitize(actor.UserID),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   sanitize(&resourceID),
		Method:       req.Method,
		Route:        route,
		Status:       status,
		IP:           sanitize(pointerOf(clientIP(req))),
		UserAgent:    sanitize(pointerOf(req.Header.Get("User-Agent"))),
		RequestID:    sanitize(pointerOf(req.Header.Get("X-Request-ID"))),
		Metadata:     meta,
	}
	return s.Store.InsertAuditLog(ctx, entry)
}

func normalizeActorKind(kind ActorKind) ActorKind {
	switch kind {
	case ActorKindUser, ActorKindSystem, ActorKindAnonymous:
		return kind
	default:
		return ActorKindAnonymous
	}
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		if idx := strings.Index(fwd, ","); idx > 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return fwd
	}
	return r.RemoteAddr
}

func sanitize(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func pointerOf(s string) *string { return &s }
