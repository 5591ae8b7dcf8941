package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/zhouzirui/panelroom/backend/internal/model/persona"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	tests := []struct {
		name   string
		health Pinger
		want   int
	}{
		{"no store", nil, http.StatusOK},
		{"store ok", pinger{}, http.StatusOK},
		{"store down", pinger{err: errors.New("locked")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(Deps{
				Personas: persona.NewMemoryStore(persona.Seed()),
				Health:   tt.health,
				Logger:   zaptest.NewLogger(t),
			})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRouterMountsPersonas(t *testing.T) {
	router := NewRouter(Deps{Personas: persona.NewMemoryStore(persona.Seed())})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/personas/alex", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ai-bots/sessions", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "bot routes need a service")
}
