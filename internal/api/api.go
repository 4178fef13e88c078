// Package api exposes reminder administration over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/hray3182/gabay/internal/models"
	"github.com/hray3182/gabay/internal/reminder"
	"github.com/rs/zerolog"
)

type Waker interface {
	Notify()
}

type Handler struct {
	svc   *reminder.Service
	waker Waker
	log   zerolog.Logger
}

func NewHandler(svc *reminder.Service, waker Waker, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, waker: waker, log: log.With().Str("component", "api").Logger()}
}

// NewRouter builds the routes. A non-empty token guards everything under /v1
// with "Authorization: Bearer <token>"; /healthz stays open.
func NewRouter(h *Handler, token string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log))

	r.GET("/healthz", h.Health)
	v1 := r.Group("/v1")
	if token != "" {
		v1.Use(RequireToken(token))
	}
	{
		v1.POST("/reminders", h.CreateReminder)
		v1.GET("/reminders", h.ListReminders)
		v1.DELETE("/reminders", h.DeleteReminders)
		v1.POST("/scheduler/wake", h.Wake)
	}
	return r
}

// Serve runs the router on addr until ctx is done.
func Serve(ctx context.Context, addr string, router http.Handler, log zerolog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type createReminderRequest struct {
	OwnerID         string `json:"owner_id" binding:"required"`
	Message         string `json:"message" binding:"required"`
	TriggerTime     string `json:"trigger_time" binding:"required"`
	Frequency       string `json:"frequency" binding:"omitempty,oneof=once daily weekly"`
	IntervalSeconds *int   `json:"interval_seconds" binding:"omitempty,gt=0"`
	RemainingCount  *int   `json:"remaining_count" binding:"omitempty,gte=0"`
	Recipient       string `json:"recipient"`
	Action          string `json:"action"`
	Payload         string `json:"payload"`
}

type createReminderResponse struct {
	Reminder      models.Reminder `json:"reminder"`
	TriggerSource string          `json:"trigger_source"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) CreateReminder(c *gin.Context) {
	var req createReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	created, err := h.svc.Create(c.Request.Context(), reminder.CreateInput{
		OwnerID:         req.OwnerID,
		Message:         req.Message,
		TriggerText:     req.TriggerTime,
		Frequency:       req.Frequency,
		IntervalSeconds: req.IntervalSeconds,
		RemainingCount:  req.RemainingCount,
		Recipient:       req.Recipient,
		ActionTag:       req.Action,
		Payload:         req.Payload,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, createReminderResponse{Reminder: created.Reminder, TriggerSource: string(created.Source)})
}

func (h *Handler) ListReminders(c *gin.Context) {
	filter := models.ReminderFilter{
		OwnerID: c.Query("owner_id"),
		Status:  models.Status(c.Query("status")),
	}
	if filter.Status != "" && filter.Status != models.StatusPending && filter.Status != models.StatusCompleted {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "status must be pending or completed"})
		return
	}

	reminders, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if reminders == nil {
		reminders = []models.Reminder{}
	}
	c.JSON(http.StatusOK, gin.H{"reminders": reminders})
}

func (h *Handler) DeleteReminders(c *gin.Context) {
	owner := c.Query("owner_id")
	if owner == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "owner_id is required"})
		return
	}
	n, err := h.svc.Delete(c.Request.Context(), owner, c.Query("match"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h *Handler) Wake(c *gin.Context) {
	if h.waker != nil {
		h.waker.Notify()
	}
	c.Status(http.StatusAccepted)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	if models.IsValidation(err) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func RequireToken(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		var got string
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			got = strings.TrimSpace(header[len("Bearer "):])
		}
		if got == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "access token required"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "invalid access token"})
			return
		}
		c.Next()
	}
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	}
}
