package audit

import (
	"net/http"

	"github.com/lejio/backend-fleet/internal/common"
)

// HTTPRecorder records HTTP requests after they have been handled.
type HTTPRecorder struct {
	Service *Service
	OnError func(error)
}

// HTTPConfig customises how the audit entry is produced for a route.
type HTTPConfig struct {
	Action       string
	ResourceType string
}

// Middleware returns a chi-compatible middleware that records an audit entry
// for each completed request on the wrapped routes.
func (r HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Service == nil || !r.Service.Enabled {
				next.ServeHTTP(w, req)
				return
			}

			recorder := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, req)

			actor := Actor{Kind: ActorKindAnonymous}
			if userID, ok := common.UserID(req.Context()); ok {
				actor = Actor{Kind: ActorKindUser, UserID: &userID}
			}

			err := r.Service.Record(req.Context(), actor, cfg.Action, cfg.ResourceType, "", req, recorder.status, nil)
			if err != nil && r.OnError != nil {
				r.OnError(err)
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(p)
}
