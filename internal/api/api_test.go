package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hray3182/gabay/internal/api"
	"github.com/hray3182/gabay/internal/models"
	"github.com/hray3182/gabay/internal/reminder"
	"github.com/hray3182/gabay/internal/sqlitestore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
)

type wakeCounter struct{ n int }

func (w *wakeCounter) Notify() { w.n++ }

type APITestSuite struct {
	suite.Suite
	router *gin.Engine
	store  *sqlitestore.Store
	waker  *wakeCounter
}

func (s *APITestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	store, err := sqlitestore.Open(context.Background(), sqlitestore.Config{Path: filepath.Join(s.T().TempDir(), "api.db")}, zerolog.Nop())
	s.Require().NoError(err)
	s.store = store
	s.waker = &wakeCounter{}

	svc := reminder.NewService(store, s.waker, zerolog.Nop())
	s.router = api.NewRouter(api.NewHandler(svc, s.waker, zerolog.Nop()), "")
}

func (s *APITestSuite) TearDownTest() {
	_ = s.store.Close()
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func (s *APITestSuite) do(method, url string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *APITestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"ok"}`, w.Body.String())
}

func (s *APITestSuite) TestCreateAndList() {
	w := s.do(http.MethodPost, "/v1/reminders", map[string]any{
		"owner_id":         "9",
		"message":          "drink water",
		"trigger_time":     "2030-05-01T10:00:00Z",
		"interval_seconds": 3600,
		"remaining_count":  2,
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Reminder      models.Reminder `json:"reminder"`
		TriggerSource string          `json:"trigger_source"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &created))
	s.NotEmpty(created.Reminder.ID)
	s.Equal("absolute", created.TriggerSource)
	s.Equal(2, *created.Reminder.RemainingCount)
	s.Equal(1, s.waker.n)

	w = s.do(http.MethodGet, "/v1/reminders?owner_id=9&status=pending", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var listed struct {
		Reminders []models.Reminder `json:"reminders"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &listed))
	s.Require().Len(listed.Reminders, 1)
	s.Equal(created.Reminder.ID, listed.Reminders[0].ID)
}

func (s *APITestSuite) TestCreateValidation() {
	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "missing message", body: map[string]any{"owner_id": "9", "trigger_time": "in 1 hour"}},
		{name: "missing trigger", body: map[string]any{"owner_id": "9", "message": "x"}},
		{name: "bad frequency", body: map[string]any{"owner_id": "9", "message": "x", "trigger_time": "in 1 hour", "frequency": "hourly"}},
		{name: "zero interval", body: map[string]any{"owner_id": "9", "message": "x", "trigger_time": "in 1 hour", "interval_seconds": 0}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.do(http.MethodPost, "/v1/reminders", tt.body)
			s.Equal(http.StatusBadRequest, w.Code)
		})
	}
}

func (s *APITestSuite) TestListRejectsBadStatus() {
	w := s.do(http.MethodGet, "/v1/reminders?status=snoozed", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestDelete() {
	for _, msg := range []string{"Buy milk", "buy MILK and eggs", "call bank"} {
		w := s.do(http.MethodPost, "/v1/reminders", map[string]any{"owner_id": "9", "message": msg, "trigger_time": "in 1 hour"})
		s.Require().Equal(http.StatusCreated, w.Code)
	}

	w := s.do(http.MethodDelete, "/v1/reminders?owner_id=9&match=milk", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"deleted":2}`, w.Body.String())

	w = s.do(http.MethodDelete, "/v1/reminders?owner_id=9", nil)
	s.Equal(http.StatusBadRequest, w.Code)
	w = s.do(http.MethodDelete, "/v1/reminders?match=bank", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestWake() {
	w := s.do(http.MethodPost, "/v1/scheduler/wake", nil)
	s.Equal(http.StatusAccepted, w.Code)
	s.Equal(1, s.waker.n)
}

func (s *APITestSuite) TestTokenGuardsV1() {
	svc := reminder.NewService(s.store, s.waker, zerolog.Nop())
	router := api.NewRouter(api.NewHandler(svc, s.waker, zerolog.Nop()), "s3cret")

	call := func(method, url, auth string, body any) int {
		var buf bytes.Buffer
		if body != nil {
			s.Require().NoError(json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, url, &buf)
		req.Header.Set("Content-Type", "application/json")
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	s.Equal(http.StatusOK, call(http.MethodGet, "/healthz", "", nil))

	create := map[string]any{"owner_id": "9", "message": "x", "trigger_time": "in 1 hour", "action": "email", "payload": `{"to":"a@b.c"}`}
	s.Equal(http.StatusUnauthorized, call(http.MethodPost, "/v1/reminders", "", create))
	s.Equal(http.StatusUnauthorized, call(http.MethodPost, "/v1/reminders", "Bearer wrong", create))
	s.Equal(http.StatusUnauthorized, call(http.MethodPost, "/v1/scheduler/wake", "s3cret", nil))

	stored, err := s.store.List(context.Background(), models.ReminderFilter{})
	s.Require().NoError(err)
	s.Empty(stored)
	s.Zero(s.waker.n)

	s.Equal(http.StatusCreated, call(http.MethodPost, "/v1/reminders", "Bearer s3cret", create))
	s.Equal(http.StatusAccepted, call(http.MethodPost, "/v1/scheduler/wake", "Bearer s3cret", nil))
}
