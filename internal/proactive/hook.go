// Package proactive calls out to the triage and meeting-briefing skills.
package proactive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	KindTriage   = "triage"
	KindBriefing = "briefing"
)

// Hook posts {"owner_id", "kind"} to a skill endpoint and expects a 2xx reply.
type Hook struct {
	url    string
	kind   string
	client *http.Client
}

func NewHook(url, kind string, timeout time.Duration) *Hook {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Hook{url: url, kind: kind, client: &http.Client{Timeout: timeout}}
}

type request struct {
	OwnerID string `json:"owner_id"`
	Kind    string `json:"kind"`
}

func (h *Hook) Run(ctx context.Context, ownerID string) error {
	body, err := json.Marshal(request{OwnerID: ownerID, Kind: h.kind})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "build %s request", h.kind)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "call %s hook", h.kind)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf("%s hook returned %s: %s", h.kind, resp.Status, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (h *Hook) String() string {
	return fmt.Sprintf("%s hook (%s)", h.kind, h.url)
}
