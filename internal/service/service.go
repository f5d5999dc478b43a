// Package service orchestrates the wallet use cases over repositories, the
// ledger engine and external providers.
package service

import (
	"context"

	"github.com/pairly/wallet/internal/provider"
)

// CheckoutGateway opens hosted checkouts at the payment gateway.
type CheckoutGateway interface {
	CreateCheckout(ctx context.Context, req provider.CheckoutRequest) (*provider.Checkout, error)
}

// WebhookVerifier authenticates gateway callbacks.
type WebhookVerifier interface {
	VerifySignature(body []byte, signature string) error
}

// MatchChecker answers whether two dating users are matched.
type MatchChecker interface {
	IsMatched(ctx context.Context, sessionID string, recipientID int64) (bool, error)
}

// Notifier sends user-facing notifications. Failures never fail the caller.
type Notifier interface {
	PaymentSucceeded(ctx context.Context, userID string, credits, balance int64) error
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)
