//go:build integration

package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// FakeGateway stands in for the hosted checkout API.
type FakeGateway struct {
	server *httptest.Server

	mu        sync.Mutex
	checkouts []map[string]interface{}
	failWith  int
}

// NewFakeGateway starts a fake checkout API that issues sequential tokens.
func NewFakeGateway(t *testing.T) *FakeGateway {
	t.Helper()
	g := &FakeGateway{}
	g.server = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.server.Close)
	return g
}

func (g *FakeGateway) URL() string { return g.server.URL }

// FailWith makes every following checkout answer with status (0 restores success).
func (g *FakeGateway) FailWith(status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failWith = status
}

// Checkouts returns the decoded checkout requests received so far.
func (g *FakeGateway) Checkouts() []map[string]interface{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]map[string]interface{}(nil), g.checkouts...)
}

func (g *FakeGateway) serve(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != TestShopID || pass != TestShopSecret {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	g.mu.Lock()
	fail := g.failWith
	g.mu.Unlock()
	if fail != 0 {
		w.WriteHeader(fail)
		fmt.Fprint(w, `{"message":"unavailable"}`)
		return
	}

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	g.mu.Lock()
	g.checkouts = append(g.checkouts, body)
	n := len(g.checkouts)
	g.mu.Unlock()

	token := fmt.Sprintf("chk_%04d", n)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"checkout": map[string]string{
			"token":        token,
			"redirect_url": "https://checkout.test/v2/checkout?token=" + token,
		},
	})
}

// FakeMatchService stands in for the dating match API.
type FakeMatchService struct {
	server *httptest.Server

	mu       sync.Mutex
	sessions map[string][]int64
}

// NewFakeMatchService starts a fake match API keyed by session cookie.
func NewFakeMatchService(t *testing.T) *FakeMatchService {
	t.Helper()
	m := &FakeMatchService{sessions: map[string][]int64{}}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.server.Close)
	return m
}

func (m *FakeMatchService) URL() string { return m.server.URL }

// SetMatches registers a session and the user ids it is matched with.
func (m *FakeMatchService) SetMatches(sessionID string, ids ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = ids
}

func (m *FakeMatchService) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/matches" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	c, err := r.Cookie("dating_session_id")
	m.mu.Lock()
	ids, ok := m.sessions[cookieValue(c, err)]
	m.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	items := make([]map[string]int64, 0, len(ids))
	for _, id := range ids {
		items = append(items, map[string]int64{"id": id})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"items": items})
}

func cookieValue(c *http.Cookie, err error) string {
	if err != nil {
		return ""
	}
	return c.Value
}
