package provider

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/guard"
	"github.com/pairly/wallet/internal/infra"
)

const gatewayCircuitKey = "secure_processor"

// CheckoutRequest describes a hosted checkout to open at the gateway.
type CheckoutRequest struct {
	AmountCents int64
	Currency    string
	Description string
	ReturnURL   string
	CustomerID  string
	Metadata    map[string]string
}

// Checkout is the gateway's answer to a checkout request.
type Checkout struct {
	Token       string
	RedirectURL string
	Raw         json.RawMessage
}

// Notification is a parsed gateway status callback.
type Notification struct {
	PaymentTokenID string
	Status         domain.PaymentTokenStatus
	UID            *string
	Raw            json.RawMessage
}

// GatewayError is a non-2xx response from the gateway.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("secure processor checkout failed: %d %s", e.StatusCode, e.Body)
}

// SecureProcessorClient talks to the Secure Processor hosted checkout API and
// verifies its signed webhooks.
type SecureProcessorClient struct {
	cfg       infra.SecureProcessorConfig
	client    *http.Client
	breaker   *guard.CircuitBreaker
	publicKey *rsa.PublicKey
	logger    *slog.Logger
}

// NewSecureProcessorClient creates a gateway client. An empty public key disables
// webhook signature checks.
func NewSecureProcessorClient(cfg infra.SecureProcessorConfig, breaker *guard.CircuitBreaker, logger *slog.Logger) (*SecureProcessorClient, error) {
	c := &SecureProcessorClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}
	if cfg.PublicKey != "" {
		key, err := ParsePublicKey(cfg.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("secure processor public key: %w", err)
		}
		c.publicKey = key
	}
	return c, nil
}

// VerifiesSignatures reports whether webhook signatures are enforced.
func (c *SecureProcessorClient) VerifiesSignatures() bool {
	return c.publicKey != nil
}

// CreateCheckout opens a checkout. When the primary path answers 404 and a
// fallback path is configured, the request is sent once more to the fallback.
func (c *SecureProcessorClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	body, err := json.Marshal(c.checkoutPayload(req))
	if err != nil {
		return nil, fmt.Errorf("marshal checkout: %w", err)
	}

	var raw []byte
	err = c.breaker.Do(ctx, gatewayCircuitKey, countsAsOutage, func(ctx context.Context) error {
		raw, err = c.post(ctx, c.cfg.CheckoutTokenPath, body)
		var gwErr *GatewayError
		if errors.As(err, &gwErr) && gwErr.StatusCode == http.StatusNotFound && c.cfg.CheckoutFallbackPath != "" {
			c.logger.Warn("checkout path not found, retrying fallback",
				"path", c.cfg.CheckoutTokenPath, "fallback", c.cfg.CheckoutFallbackPath)
			raw, err = c.post(ctx, c.cfg.CheckoutFallbackPath, body)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Token    string `json:"token"`
		Checkout struct {
			Token       string `json:"token"`
			RedirectURL string `json:"redirect_url"`
		} `json:"checkout"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode checkout response: %w", err)
	}

	token := resp.Token
	if token == "" {
		token = resp.Checkout.Token
	}
	if token == "" {
		return nil, errors.New("secure processor did not return a checkout token")
	}
	return &Checkout{Token: token, RedirectURL: resp.Checkout.RedirectURL, Raw: raw}, nil
}

func (c *SecureProcessorClient) checkoutPayload(req CheckoutRequest) map[string]interface{} {
	return map[string]interface{}{
		"checkout": map[string]interface{}{
			"version":          2.1,
			"transaction_type": "payment",
			"test":             c.cfg.TestMode,
			"settings": map[string]interface{}{
				"return_url": req.ReturnURL,
			},
			"order": map[string]interface{}{
				"amount":      req.AmountCents,
				"currency":    req.Currency,
				"description": req.Description,
			},
			"customer": map[string]interface{}{
				"id": req.CustomerID,
			},
			"metadata": req.Metadata,
		},
	}
}

func (c *SecureProcessorClient) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	endpoint, err := resolveURL(c.cfg.APIBaseURL, path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.ShopID, c.cfg.SecretKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkout call: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read checkout response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// VerifySignature checks a base64 RSA-SHA256 signature over the raw body.
func (c *SecureProcessorClient) VerifySignature(body []byte, signature string) error {
	if c.publicKey == nil {
		return nil
	}
	if signature == "" {
		return domain.ErrForbidden("Missing webhook signature")
	}
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return domain.ErrForbidden("Invalid webhook signature")
	}
	digest := sha256.Sum256(body)
	if err := rsa.VerifyPKCS1v15(c.publicKey, crypto.SHA256, digest[:], sig); err != nil {
		return domain.ErrForbidden("Invalid webhook signature")
	}
	return nil
}

type notificationFields struct {
	Status         string `json:"status"`
	UID            string `json:"uid"`
	PaymentTokenID string `json:"payment_token_id"`
	Metadata       struct {
		PaymentTokenID string `json:"payment_token_id"`
	} `json:"metadata"`
}

func (f notificationFields) tokenID() string {
	if f.PaymentTokenID != "" {
		return f.PaymentTokenID
	}
	return f.Metadata.PaymentTokenID
}

// ParseNotification decodes a webhook body. The fields may sit at the top level
// or inside a "transaction" envelope.
func ParseNotification(body []byte) (*Notification, error) {
	var payload struct {
		notificationFields
		Transaction *notificationFields `json:"transaction"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.ErrValidation("Invalid webhook payload")
	}

	fields := payload.notificationFields
	if fields.tokenID() == "" && payload.Transaction != nil {
		fields = *payload.Transaction
	}
	tokenID := fields.tokenID()
	if tokenID == "" {
		return nil, domain.ErrFieldValidation("payment_token_id", "Missing payment token id")
	}

	n := &Notification{
		PaymentTokenID: tokenID,
		Status:         MapStatus(fields.Status),
		Raw:            json.RawMessage(body),
	}
	if fields.UID != "" {
		uid := fields.UID
		n.UID = &uid
	}
	return n, nil
}

// MapStatus converts a gateway status string into a token status.
// Unknown or empty values are PENDING.
func MapStatus(status string) domain.PaymentTokenStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "successful":
		return domain.PaymentSuccessful
	case "failed":
		return domain.PaymentFailed
	case "declined":
		return domain.PaymentDeclined
	case "expired":
		return domain.PaymentExpired
	case "error":
		return domain.PaymentError
	default:
		return domain.PaymentPending
	}
}

// ParsePublicKey accepts a PEM block (PKIX or PKCS#1) or bare base64 DER.
// Literal "\n" sequences, as stored in env files, are treated as newlines.
func ParsePublicKey(s string) (*rsa.PublicKey, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, `\n`, "\n"))

	var der []byte
	if block, _ := pem.Decode([]byte(s)); block != nil {
		der = block.Bytes
	} else {
		decoded, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(s), ""))
		if err != nil {
			return nil, errors.New("not a PEM block or base64 DER")
		}
		der = decoded
	}

	if pub, err := x509.ParsePKIXPublicKey(der); err == nil {
		rsaKey, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("unsupported key type %T", pub)
		}
		return rsaKey, nil
	}
	key, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse rsa public key: %w", err)
	}
	return key, nil
}

func resolveURL(base, path string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse gateway base url: %w", err)
	}
	p, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse gateway path: %w", err)
	}
	return b.ResolveReference(p).String(), nil
}

// countsAsOutage keeps 4xx answers from opening the circuit.
func countsAsOutage(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.StatusCode >= 500
	}
	return true
}
