package coremain

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/pprof"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pmkol/gqlx/pkg/auth"
	"github.com/pmkol/gqlx/pkg/gql"
	"github.com/pmkol/gqlx/pkg/gqlerror"
)

const maxRequestBody = 1 << 20

func (m *Gqlx) newAPIRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(m.metricsReg, promhttp.HandlerOpts{}))

	r.Post("/graphql", m.handleGraphQL)

	r.Get("/cache/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, m.executor.Stats())
	})
	r.Delete("/cache", func(w http.ResponseWriter, _ *http.Request) {
		m.executor.ClearCache()
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/auth/token", m.handleLogin)
	r.Delete("/auth/token", m.handleLogout)

	r.Route("/debug", func(r chi.Router) {
		r.Get("/errors", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, m.classifier.Log().Entries())
		})
		r.Delete("/errors", func(w http.ResponseWriter, _ *http.Request) {
			m.classifier.Log().Clear()
			w.WriteHeader(http.StatusNoContent)
		})
		r.HandleFunc("/pprof/*", pprof.Index)
		r.HandleFunc("/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/pprof/profile", pprof.Profile)
		r.HandleFunc("/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/pprof/trace", pprof.Trace)
	})
	return r
}

// errorBody is sent for failures that carry no GraphQL response.
type errorBody struct {
	Errors []gql.Error `json:"errors"`
}

func (m *Gqlx) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	req := new(gql.Request)
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Errors: []gql.Error{{Message: "invalid request body"}}})
		return
	}
	if len(req.Query) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Errors: []gql.Error{{Message: "missing query"}}})
		return
	}

	resp, err := m.executor.Execute(r.Context(), req.Query, req.Variables)
	if err == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	var ge *gqlerror.Error
	if !errors.As(err, &ge) {
		ge = &gqlerror.Error{Kind: gqlerror.KindUnknown, Message: gqlerror.DefaultMessages.Unknown, Cause: err}
	}
	w.Header().Set("X-Gqlx-Error-Kind", ge.Kind.String())
	if resp != nil {
		writeJSON(w, statusOf(ge.Kind), resp)
		return
	}
	writeJSON(w, statusOf(ge.Kind), errorBody{Errors: []gql.Error{{
		Message:    ge.Message,
		Extensions: map[string]any{"kind": ge.Kind.String()},
	}}})
}

func statusOf(k gqlerror.Kind) int {
	switch k {
	case gqlerror.KindValidation:
		return http.StatusOK
	case gqlerror.KindAuthentication:
		return http.StatusUnauthorized
	case gqlerror.KindNetwork:
		return http.StatusGatewayTimeout
	case gqlerror.KindServer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type loginBody struct {
	Token string `json:"token"`
}

func (m *Gqlx) handleLogin(w http.ResponseWriter, r *http.Request) {
	body := new(loginBody)
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := m.session.Login(r.Context(), body.Token); err != nil {
		if errors.Is(err, auth.ErrMalformedToken) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m.logger.Error("failed to store token", zap.Error(err))
		http.Error(w, "failed to store token", http.StatusInternalServerError)
		return
	}
	m.logger.Info("token stored", zap.String("token", auth.Redact(body.Token)))
	w.WriteHeader(http.StatusNoContent)
}

func (m *Gqlx) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := m.session.Logout(r.Context()); err != nil {
		m.logger.Error("failed to remove token", zap.Error(err))
		http.Error(w, "failed to remove token", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
