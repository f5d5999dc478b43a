// Package pricing turns a credit purchase request into a charge and a credit grant.
package pricing

import (
	"fmt"
	"math"

	"github.com/pairly/wallet/internal/domain"
	"github.com/shopspring/decimal"
)

// Mode selects how credits are derived from the charged amount.
type Mode string

const (
	ModePreset Mode = "preset"
	ModeCustom Mode = "custom"
)

const (
	// MaxAmountEUR caps a single purchase.
	MaxAmountEUR = 10000
	// CreditsPerEUR is the flat custom-mode rate.
	CreditsPerEUR = 30
)

// Presets maps a preset face value in EUR to the credits it grants.
var Presets = map[int]int64{
	1:  30,
	5:  230,
	10: 460,
}

var (
	maxAmount     = decimal.NewFromInt(MaxAmountEUR)
	creditsPerEUR = decimal.NewFromInt(CreditsPerEUR)
)

// Request is a purchase request as submitted by the caller.
type Request struct {
	AmountEUR float64
	Mode      Mode
	PresetKey *int
}

// Quote is a resolved purchase.
type Quote struct {
	AmountCents int64
	Credits     int64
	Mode        Mode
}

// Resolve validates req and computes the amount to charge and the credits to grant.
// An empty mode means preset when a preset key is given and custom otherwise.
func Resolve(req Request) (Quote, error) {
	amount, err := parseAmount(req.AmountEUR)
	if err != nil {
		return Quote{}, err
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeCustom
		if req.PresetKey != nil {
			mode = ModePreset
		}
	}

	cents := amount.Shift(2).Round(0).IntPart()

	switch mode {
	case ModePreset:
		if req.PresetKey == nil {
			return Quote{}, fieldErr("presetKey", "presetKey is required for preset pricing")
		}
		credits, ok := Presets[*req.PresetKey]
		if !ok {
			return Quote{}, fieldErr("presetKey", "presetKey must be one of 1, 5, 10")
		}
		if !amount.Equal(decimal.NewFromInt(int64(*req.PresetKey))) {
			return Quote{}, fieldErr("amountEur", fmt.Sprintf("amountEur must equal %d for this preset", *req.PresetKey))
		}
		return Quote{AmountCents: cents, Credits: credits, Mode: ModePreset}, nil

	case ModeCustom:
		if req.PresetKey != nil {
			return Quote{}, fieldErr("presetKey", "presetKey is not allowed for custom pricing")
		}
		credits := amount.Mul(creditsPerEUR).Floor().IntPart()
		if credits <= 0 {
			return Quote{}, fieldErr("amountEur", "amountEur is too small to grant any credits")
		}
		return Quote{AmountCents: cents, Credits: credits, Mode: ModeCustom}, nil

	default:
		return Quote{}, fieldErr("pricingMode", "pricingMode must be preset or custom")
	}
}

// parseAmount checks the amount is finite, positive, capped and has at most two decimals.
func parseAmount(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, fieldErr("amountEur", "amountEur must be a finite number")
	}
	amount := decimal.NewFromFloat(v)
	if !amount.IsPositive() {
		return decimal.Zero, fieldErr("amountEur", "amountEur must be positive")
	}
	if amount.GreaterThan(maxAmount) {
		return decimal.Zero, fieldErr("amountEur", fmt.Sprintf("amountEur must not exceed %d", MaxAmountEUR))
	}
	if !amount.Shift(2).IsInteger() {
		return decimal.Zero, fieldErr("amountEur", "amountEur must have at most 2 decimal places")
	}
	return amount, nil
}

func fieldErr(field, msg string) *domain.AppError {
	return domain.ErrFieldValidation(field, msg)
}
