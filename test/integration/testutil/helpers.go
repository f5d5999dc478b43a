//go:build integration

package testutil

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Token returns a bearer token for userID.
func (env *TestEnv) Token(userID string) string {
	env.t.Helper()
	token, err := env.JWTMgr.GenerateToken(userID, userID+"@pairly.test")
	if err != nil {
		env.t.Fatalf("generate token: %v", err)
	}
	return token
}

func (env *TestEnv) do(req *http.Request) *http.Response {
	env.t.Helper()
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := client.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	return resp
}

// GET issues an unauthenticated GET. Redirects are not followed.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest(http.MethodGet, env.Server.URL+path, nil)
	if err != nil {
		env.t.Fatalf("GET %s: new request: %v", path, err)
	}
	return env.do(req)
}

// AuthGET issues a GET as userID.
func (env *TestEnv) AuthGET(path, userID string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest(http.MethodGet, env.Server.URL+path, nil)
	if err != nil {
		env.t.Fatalf("AuthGET %s: new request: %v", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+env.Token(userID))
	return env.do(req)
}

// AuthPOST issues a JSON POST as userID. A non-empty sessionID is sent as the dating session cookie.
func (env *TestEnv) AuthPOST(path, userID string, body interface{}, sessionID string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		env.t.Fatalf("AuthPOST %s: encode: %v", path, err)
	}
	req, err := http.NewRequest(http.MethodPost, env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("AuthPOST %s: new request: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+env.Token(userID))
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "dating_session_id", Value: sessionID})
	}
	return env.do(req)
}

// Sign returns the base64 RSA-SHA256 signature the gateway would send for body.
func (env *TestEnv) Sign(body []byte) string {
	env.t.Helper()
	digest := sha256.Sum256(body)
	sig, err := rsa.SignPKCS1v15(rand.Reader, env.signKey, crypto.SHA256, digest[:])
	if err != nil {
		env.t.Fatalf("sign webhook: %v", err)
	}
	return base64.StdEncoding.EncodeToString(sig)
}

// PostWebhook delivers a raw webhook body with the given signature header.
func (env *TestEnv) PostWebhook(body []byte, signature string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest(http.MethodPost, env.Server.URL+"/payments/webhook", bytes.NewReader(body))
	if err != nil {
		env.t.Fatalf("PostWebhook: new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Content-Signature", signature)
	}
	return env.do(req)
}

// WebhookBody builds a gateway notification for a payment token.
func WebhookBody(tokenID uuid.UUID, status, uid string) []byte {
	return []byte(fmt.Sprintf(
		`{"transaction":{"uid":%q,"status":%q,"payment_token_id":%q}}`, uid, status, tokenID))
}

// Purchase starts a purchase as userID and returns the payment token id it created.
func (env *TestEnv) Purchase(userID string, amountEUR float64, presetKey *int) uuid.UUID {
	env.t.Helper()
	body := map[string]interface{}{"amountEur": amountEUR, "consentAccepted": true}
	if presetKey != nil {
		body["presetKey"] = *presetKey
	} else {
		body["pricingMode"] = "custom"
	}
	resp := env.AuthPOST("/api/credits/purchase", userID, body, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		env.t.Fatalf("Purchase: expected 200, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var id uuid.UUID
	err := env.Pool.QueryRow(ctx,
		`SELECT id FROM payment_tokens WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`, userID).Scan(&id)
	if err != nil {
		env.t.Fatalf("Purchase: find token: %v", err)
	}
	return id
}

// SetBalance writes a user's balance directly.
func (env *TestEnv) SetBalance(userID string, balance int64) {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := env.Pool.Exec(ctx, `
		INSERT INTO user_credits (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = EXCLUDED.balance, updated_at = now()`,
		userID, balance)
	if err != nil {
		env.t.Fatalf("SetBalance: %v", err)
	}
}

// SeedGift inserts an active catalog gift and returns its id.
func (env *TestEnv) SeedGift(slug string, price int64) uuid.UUID {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var id uuid.UUID
	err := env.Pool.QueryRow(ctx, `
		INSERT INTO gift_catalog (slug, name, image_path, price_coins)
		VALUES ($1, $1, '/gifts/' || $1 || '.png', $2) RETURNING id`, slug, price).Scan(&id)
	if err != nil {
		env.t.Fatalf("SeedGift: %v", err)
	}
	return id
}
