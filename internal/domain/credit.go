package domain

import (
	"time"

	"github.com/google/uuid"
)

// Currency is the only settlement currency of the wallet.
const Currency = "EUR"

// TransactionType classifies a credit ledger entry.
type TransactionType string

const (
	TxGrant      TransactionType = "grant"
	TxSpend      TransactionType = "spend"
	TxRefund     TransactionType = "refund"
	TxAdjustment TransactionType = "adjustment"
)

// TransactionStatus tracks a credit transaction from creation to settlement.
// PENDING moves to SUCCESSFUL or FAILED; SUCCESSFUL is terminal.
type TransactionStatus string

const (
	TxStatusPending    TransactionStatus = "PENDING"
	TxStatusSuccessful TransactionStatus = "SUCCESSFUL"
	TxStatusFailed     TransactionStatus = "FAILED"
)

// UserCredits is a user_credits row.
type UserCredits struct {
	UserID    string    `json:"userId"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreditTransaction is an append-only credit_transactions row.
// Amount is signed: spends are negative.
type CreditTransaction struct {
	ID             uuid.UUID         `json:"id"`
	UserID         string            `json:"userId"`
	Type           TransactionType   `json:"type"`
	Amount         int64             `json:"amount"`
	Status         TransactionStatus `json:"status"`
	Reason         string            `json:"reason"`
	PaymentTokenID *uuid.UUID        `json:"paymentTokenId,omitempty"`
	GiftID         *uuid.UUID        `json:"giftId,omitempty"`
	GenerationID   *string           `json:"generationId,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// NewTransaction holds the insert parameters for a credit transaction.
type NewTransaction struct {
	UserID         string
	Type           TransactionType
	Amount         int64
	Status         TransactionStatus
	Reason         string
	PaymentTokenID *uuid.UUID
	GiftID         *uuid.UUID
	GenerationID   *string
}

// WalletTotals are the per-user sums derived from the transaction log.
type WalletTotals struct {
	TotalPurchased int64 `json:"totalPurchased"`
	TotalSpent     int64 `json:"totalSpent"`
	PendingCredits int64 `json:"pendingCredits"`
}

// Wallet is the summary returned by GET /wallet.
type Wallet struct {
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
	WalletTotals
}

// WalletView is a wallet summary with a page of recent transactions.
type WalletView struct {
	Wallet       Wallet              `json:"wallet"`
	Transactions []CreditTransaction `json:"transactions"`
	Total        int64               `json:"total"`
}

// SummarizeTransactions folds a transaction log into wallet totals.
// Only grant and spend entries contribute; refunds and adjustments move the
// balance without counting as purchases or spending.
func SummarizeTransactions(txs []CreditTransaction) WalletTotals {
	var t WalletTotals
	for _, tx := range txs {
		switch {
		case tx.Type == TxGrant && tx.Status == TxStatusSuccessful:
			t.TotalPurchased += tx.Amount
		case tx.Type == TxGrant && tx.Status == TxStatusPending:
			t.PendingCredits += tx.Amount
		case tx.Type == TxSpend && tx.Status == TxStatusSuccessful:
			if tx.Amount < 0 {
				t.TotalSpent -= tx.Amount
			} else {
				t.TotalSpent += tx.Amount
			}
		}
	}
	return t
}
