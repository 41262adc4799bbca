package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"estate_crm_backend/internal/events"
	"estate_crm_backend/internal/leads/lifecycle"
	"estate_crm_backend/internal/leads/repository"
	"estate_crm_backend/platform/logger"
	"estate_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// stubStore counts writes so tests can assert a rejected request never
// reached persistence.
type stubStore struct {
	creates int
}

func (s *stubStore) Create(context.Context, repository.CreateLeadParams) (repository.Lead, error) {
	s.creates++
	return repository.Lead{ID: uuid.New()}, nil
}

func (s *stubStore) CreateAssigned(context.Context, repository.CreateLeadParams, *uuid.UUID, string, func(repository.Lead, uuid.UUID) []repository.OutboxEntry) (repository.Lead, repository.Assignment, error) {
	s.creates++
	return repository.Lead{ID: uuid.New()}, repository.Assignment{}, nil
}

func (s *stubStore) GetByID(context.Context, uuid.UUID) (repository.Lead, error) {
	return repository.Lead{}, repository.ErrNotFound
}

func (s *stubStore) GetByPhone(context.Context, string) (repository.Lead, error) {
	return repository.Lead{}, repository.ErrNotFound
}

func (s *stubStore) GetByPhoneForAgent(context.Context, string, *uuid.UUID) (repository.Lead, error) {
	return repository.Lead{}, repository.ErrNotFound
}

func (s *stubStore) Update(context.Context, uuid.UUID, repository.UpdateLeadParams) (repository.Lead, error) {
	return repository.Lead{}, repository.ErrNotFound
}

func (s *stubStore) Convert(context.Context, uuid.UUID, string) (repository.Lead, bool, error) {
	return repository.Lead{}, false, nil
}

func (s *stubStore) List(context.Context, repository.ListParams) ([]repository.Lead, int, error) {
	return nil, 0, nil
}

func (s *stubStore) Assign(context.Context, repository.AssignParams, func(uuid.UUID) []repository.OutboxEntry) (repository.Lead, repository.Assignment, error) {
	return repository.Lead{}, repository.Assignment{}, repository.ErrNotFound
}

func (s *stubStore) ListAssignments(context.Context, uuid.UUID) ([]repository.Assignment, error) {
	return nil, nil
}

func (s *stubStore) Delete(context.Context, uuid.UUID) error {
	return repository.ErrNotFound
}

type stubAgents struct{}

func (stubAgents) GetAgent(context.Context, uuid.UUID) (lifecycle.Agent, error) {
	return lifecycle.Agent{}, lifecycle.ErrAgentNotFound
}

type stubBus struct{}

func (stubBus) Publish(context.Context, events.Event) {}

func (stubBus) PublishSync(context.Context, events.Event) error { return nil }

func (stubBus) Subscribe(string, events.Handler) {}

type uniquenessConfig struct{}

func (uniquenessConfig) GetLeadPhoneUniqueness() string { return "global" }

func newTestRouter(t *testing.T) (*gin.Engine, *stubStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := &stubStore{}
	svc := lifecycle.New(store, stubAgents{}, stubBus{}, lifecycle.NewPhoneUniquenessPolicy(uniquenessConfig{}), logger.New("test"))
	h := New(svc, validator.New())

	engine := gin.New()
	h.RegisterPublicRoutes(engine.Group("/leads"))
	return engine, store
}

func TestCreateRejectsMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing fullName", `{"identity":{"phone":"+919000000001"}}`},
		{"missing phone", `{"identity":{"fullName":"Amit Verma"}}`},
		{"empty identity", `{"identity":{}}`},
		{"no identity block", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, store := newTestRouter(t)

			req := httptest.NewRequest(http.MethodPost, "/leads", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if store.creates != 0 {
				t.Errorf("creates = %d, want 0 (nothing persisted)", store.creates)
			}
		})
	}
}

func TestCreateAcceptsMinimalLead(t *testing.T) {
	engine, store := newTestRouter(t)

	body := `{"identity":{"fullName":"Amit Verma","phone":"+919000000001"}}`
	req := httptest.NewRequest(http.MethodPost, "/leads", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if store.creates != 1 {
		t.Errorf("creates = %d, want 1", store.creates)
	}
}
