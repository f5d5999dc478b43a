package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/guard"
)

// SessionCookie is the dating platform session cookie forwarded to the match service.
const SessionCookie = "dating_session_id"

const matchCircuitKey = "match_service"

// MatchClient lists the caller's matches from the dating platform.
type MatchClient struct {
	baseURL string
	client  *http.Client
	breaker *guard.CircuitBreaker
	logger  *slog.Logger
}

// NewMatchClient creates a match service client.
func NewMatchClient(baseURL string, breaker *guard.CircuitBreaker, logger *slog.Logger) *MatchClient {
	return &MatchClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
		breaker: breaker,
		logger:  logger,
	}
}

// ListMatches returns the dating user ids matched with the session owner.
func (c *MatchClient) ListMatches(ctx context.Context, sessionID string) ([]int64, error) {
	if sessionID == "" {
		return nil, domain.ErrUnauthorized("Missing dating session")
	}

	var ids []int64
	err := c.breaker.Do(ctx, matchCircuitKey, isUpstreamFailure, func(ctx context.Context) error {
		var err error
		ids, err = c.fetch(ctx, sessionID)
		return err
	})
	return ids, err
}

// IsMatched reports whether recipientID is among the session owner's matches.
func (c *MatchClient) IsMatched(ctx context.Context, sessionID string, recipientID int64) (bool, error) {
	ids, err := c.ListMatches(ctx, sessionID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == recipientID {
			return true, nil
		}
	}
	return false, nil
}

func (c *MatchClient) fetch(ctx context.Context, sessionID string) ([]int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/matches", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sessionID})

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.ErrUpstream("Match service unavailable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domain.ErrUnauthorized("Dating session is not valid")
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, domain.ErrUpstream("Match service unavailable",
			fmt.Errorf("match service returned %d: %s", resp.StatusCode, body))
	}

	var payload struct {
		Items []struct {
			ID int64 `json:"id"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, domain.ErrUpstream("Match service unavailable", fmt.Errorf("decode matches: %w", err))
	}

	ids := make([]int64, 0, len(payload.Items))
	for _, m := range payload.Items {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func isUpstreamFailure(err error) bool {
	appErr, ok := domain.AsAppError(err)
	return !ok || !appErr.Operational()
}
