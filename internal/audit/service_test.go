package audit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lejio/backend-fleet/internal/audit"
	"github.com/lejio/backend-fleet/internal/common"
)

type fakeStore struct {
	entries []audit.Entry
	err     error
}

func (f *fakeStore) InsertAuditLog(_ context.Context, e audit.Entry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

func TestRecordWritesEntry(t *testing.T) {
	store := &fakeStore{}
	svc := audit.Service{Store: store, Enabled: true}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/settlements/invoice", nil)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("X-Request-ID", "req-123")
	userID := "lessor-1"

	err := svc.Record(context.Background(), audit.Actor{Kind: audit.ActorKindUser, UserID: &userID},
		"settlement.invoice.create", "invoice", "inv-1", req, http.StatusOK, map[string]any{"total": 450})
	require.NoError(t, err)

	require.Len(t, store.entries, 1)
	entry := store.entries[0]
	require.Equal(t, "user", entry.ActorKind)
	require.Equal(t, "lessor-1", *entry.ActorUserID)
	require.Equal(t, "settlement.invoice.create", entry.Action)
	require.Equal(t, "invoice", entry.ResourceType)
	require.Equal(t, "inv-1", *entry.ResourceID)
	require.Equal(t, http.StatusOK, entry.Status)
	require.Equal(t, "req-123", *entry.RequestID)
	require.JSONEq(t, `{"total":450}`, string(entry.Metadata))
}

func TestRecordDisabledIsNoop(t *testing.T) {
	store := &fakeStore{}
	svc := audit.Service{Store: store, Enabled: false}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	err := svc.Record(context.Background(), audit.Actor{Kind: audit.ActorKindSystem}, "x", "y", "", req, 0, nil)
	require.NoError(t, err)
	require.Empty(t, store.entries)
}

func TestRecordNormalisesUnknownActor(t *testing.T) {
	store := &fakeStore{}
	svc := audit.Service{Store: store, Enabled: true}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	err := svc.Record(context.Background(), audit.Actor{Kind: "martian"}, "x", "y", "", req, 0, nil)
	require.NoError(t, err)
	require.Equal(t, "anonymous", store.entries[0].ActorKind)
}

func TestMiddlewareRecordsAuthenticatedActor(t *testing.T) {
	store := &fakeStore{}
	recorder := audit.HTTPRecorder{Service: &audit.Service{Store: store, Enabled: true}}

	handler := recorder.Middleware(audit.HTTPConfig{
		Action:       "tenant.signup",
		ResourceType: "tenant",
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants/signup", nil)
	req = req.WithContext(common.WithUserID(req.Context(), "user-9"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Len(t, store.entries, 1)
	require.Equal(t, "user", store.entries[0].ActorKind)
	require.Equal(t, http.StatusCreated, store.entries[0].Status)
	require.Equal(t, "tenant.signup", store.entries[0].Action)
}
