package provider

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/guard"
	"github.com/pairly/wallet/internal/infra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, cfg infra.SecureProcessorConfig) *SecureProcessorClient {
	t.Helper()
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	c, err := NewSecureProcessorClient(cfg, guard.NewCircuitBreaker(5, time.Minute), testLogger())
	require.NoError(t, err)
	return c
}

func generateKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return key, string(pemKey)
}

func sign(t *testing.T, key *rsa.PrivateKey, body []byte) string {
	t.Helper()
	digest := sha256.Sum256(body)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(sig)
}

// --- CreateCheckout ---

func TestCreateCheckout_SendsPayload(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ctp/api/checkouts", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "shop-1", user)
		assert.Equal(t, "secret-1", pass)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"checkout":{"token":"tok-1","redirect_url":"https://pay.example/tok-1"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, infra.SecureProcessorConfig{
		APIBaseURL: srv.URL, CheckoutTokenPath: "/ctp/api/checkouts",
		ShopID: "shop-1", SecretKey: "secret-1", TestMode: true,
	})

	out, err := c.CreateCheckout(context.Background(), CheckoutRequest{
		AmountCents: 500,
		Currency:    "EUR",
		Description: "Credit purchase: 230 credits",
		ReturnURL:   "https://api.example/payments/return?token=abc",
		CustomerID:  "user-1",
		Metadata:    map[string]string{"payment_token_id": "abc"},
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", out.Token)
	assert.Equal(t, "https://pay.example/tok-1", out.RedirectURL)
	assert.JSONEq(t, `{"checkout":{"token":"tok-1","redirect_url":"https://pay.example/tok-1"}}`, string(out.Raw))

	checkout := got["checkout"].(map[string]interface{})
	assert.Equal(t, 2.1, checkout["version"])
	assert.Equal(t, "payment", checkout["transaction_type"])
	assert.Equal(t, true, checkout["test"])
	order := checkout["order"].(map[string]interface{})
	assert.Equal(t, float64(500), order["amount"])
	assert.Equal(t, "EUR", order["currency"])
	assert.Equal(t, "user-1", checkout["customer"].(map[string]interface{})["id"])
	assert.Equal(t, "abc", checkout["metadata"].(map[string]interface{})["payment_token_id"])
}

func TestCreateCheckout_TopLevelToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"token":"top-level"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, infra.SecureProcessorConfig{APIBaseURL: srv.URL, CheckoutTokenPath: "/ctp/api/checkouts"})
	out, err := c.CreateCheckout(context.Background(), CheckoutRequest{AmountCents: 100, Currency: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, "top-level", out.Token)
	assert.Empty(t, out.RedirectURL)
}

func TestCreateCheckout_FallbackOn404(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path == "/ctp/api/checkouts" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "/checkouts", r.URL.Path)
		_, _ = w.Write([]byte(`{"checkout":{"token":"fallback"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, infra.SecureProcessorConfig{
		APIBaseURL: srv.URL, CheckoutTokenPath: "/ctp/api/checkouts", CheckoutFallbackPath: "/checkouts",
	})
	out, err := c.CreateCheckout(context.Background(), CheckoutRequest{AmountCents: 100, Currency: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", out.Token)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCreateCheckout_NoFallbackConfigured(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := newTestClient(t, infra.SecureProcessorConfig{APIBaseURL: srv.URL, CheckoutTokenPath: "/ctp/api/checkouts"})
	_, err := c.CreateCheckout(context.Background(), CheckoutRequest{AmountCents: 100, Currency: "EUR"})
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusNotFound, gwErr.StatusCode)
}

func TestCreateCheckout_MissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"checkout":{}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, infra.SecureProcessorConfig{APIBaseURL: srv.URL, CheckoutTokenPath: "/ctp/api/checkouts"})
	_, err := c.CreateCheckout(context.Background(), CheckoutRequest{AmountCents: 100, Currency: "EUR"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkout token")
}

func TestCreateCheckout_CircuitOpensOnServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewSecureProcessorClient(
		infra.SecureProcessorConfig{APIBaseURL: srv.URL, CheckoutTokenPath: "/x", Timeout: time.Second},
		guard.NewCircuitBreaker(2, time.Minute), testLogger())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := c.CreateCheckout(context.Background(), CheckoutRequest{AmountCents: 100, Currency: "EUR"})
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

// --- VerifySignature ---

func TestVerifySignature(t *testing.T) {
	key, pemKey := generateKey(t)
	c := newTestClient(t, infra.SecureProcessorConfig{PublicKey: pemKey})
	require.True(t, c.VerifiesSignatures())

	body := []byte(`{"status":"successful","payment_token_id":"abc"}`)

	assert.NoError(t, c.VerifySignature(body, sign(t, key, body)))

	tests := []struct {
		name string
		body []byte
		sig  string
	}{
		{"missing", body, ""},
		{"not base64", body, "%%%"},
		{"tampered body", []byte(`{"status":"successful","payment_token_id":"xyz"}`), sign(t, key, body)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.VerifySignature(tt.body, tt.sig)
			appErr, ok := domain.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, 403, appErr.Status)
		})
	}
}

func TestVerifySignature_DisabledWithoutKey(t *testing.T) {
	c := newTestClient(t, infra.SecureProcessorConfig{})
	assert.False(t, c.VerifiesSignatures())
	assert.NoError(t, c.VerifySignature([]byte(`{}`), ""))
}

func TestParsePublicKey_Formats(t *testing.T) {
	key, pemKey := generateKey(t)

	escaped := strings.ReplaceAll(strings.TrimSpace(pemKey), "\n", `\n`)
	parsed, err := ParsePublicKey(escaped)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey.N, parsed.N)

	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey)})
	parsed, err = ParsePublicKey(string(pkcs1))
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey.E, parsed.E)

	der, _ := x509.MarshalPKIXPublicKey(&key.PublicKey)
	parsed, err = ParsePublicKey(base64.StdEncoding.EncodeToString(der))
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey.N, parsed.N)

	_, err = ParsePublicKey("not a key")
	assert.Error(t, err)
}

// --- ParseNotification ---

func TestParseNotification(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		token  string
		status domain.PaymentTokenStatus
		uid    string
	}{
		{"top level", `{"status":"successful","uid":"u-1","payment_token_id":"t-1"}`, "t-1", domain.PaymentSuccessful, "u-1"},
		{"metadata", `{"status":"DECLINED","metadata":{"payment_token_id":"t-2"}}`, "t-2", domain.PaymentDeclined, ""},
		{"envelope", `{"transaction":{"status":"expired","uid":"u-3","metadata":{"payment_token_id":"t-3"}}}`, "t-3", domain.PaymentExpired, "u-3"},
		{"unknown status", `{"status":"incomplete","payment_token_id":"t-4"}`, "t-4", domain.PaymentPending, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ParseNotification([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.token, n.PaymentTokenID)
			assert.Equal(t, tt.status, n.Status)
			if tt.uid == "" {
				assert.Nil(t, n.UID)
			} else {
				require.NotNil(t, n.UID)
				assert.Equal(t, tt.uid, *n.UID)
			}
			assert.JSONEq(t, tt.body, string(n.Raw))
		})
	}
}

func TestParseNotification_Errors(t *testing.T) {
	_, err := ParseNotification([]byte(`not json`))
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)

	_, err = ParseNotification([]byte(`{"status":"successful"}`))
	appErr, ok = domain.AsAppError(err)
	require.True(t, ok)
	require.Len(t, appErr.Fields, 1)
	assert.Equal(t, "payment_token_id", appErr.Fields[0].Field)
}

func TestMapStatus(t *testing.T) {
	tests := map[string]domain.PaymentTokenStatus{
		"successful": domain.PaymentSuccessful,
		"Successful": domain.PaymentSuccessful,
		"failed":     domain.PaymentFailed,
		"declined":   domain.PaymentDeclined,
		"expired":    domain.PaymentExpired,
		"error":      domain.PaymentError,
		"pending":    domain.PaymentPending,
		"":           domain.PaymentPending,
		"whatever":   domain.PaymentPending,
	}
	for in, want := range tests {
		assert.Equal(t, want, MapStatus(in), in)
	}
}
