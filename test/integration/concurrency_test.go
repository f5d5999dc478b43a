//go:build integration

package integration

import (
	"net/http"
	"sync"
	"testing"

	"github.com/pairly/wallet/test/integration/testutil"
	"github.com/stretchr/testify/assert"
)

func TestConcurrentGiftBuys_NeverOverdraw(t *testing.T) {
	env := testutil.NewTestEnv(t)
	giftID := env.SeedGift("rose", 30)
	env.SetBalance("user-1", 90)

	const attempts = 8
	statuses := make([]int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := env.AuthPOST("/api/gifts/buy", "user-1", map[string]string{"giftId": giftID.String()}, "")
			statuses[i] = resp.StatusCode
			resp.Body.Close()
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, s := range statuses {
		switch s {
		case http.StatusOK:
			ok++
		case http.StatusBadRequest:
			rejected++
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, attempts-3, rejected)
	env.AssertBalance("user-1", 0)
	assert.Equal(t, int64(3), env.Inventory("user-1", giftID))
	assert.Equal(t, 3, env.CountTransactions("user-1", "spend"))
}

func TestConcurrentWebhooks_CreditOnce(t *testing.T) {
	env := testutil.NewTestEnv(t)
	tokenID := env.Purchase("user-1", 10, intPtr(10))
	body := testutil.WebhookBody(tokenID, "successful", "uid-1")
	sig := env.Sign(body)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := env.PostWebhook(body, sig)
			resp.Body.Close()
		}()
	}
	wg.Wait()

	env.AssertBalance("user-1", 460)
	assert.Equal(t, 1, env.CountOutboxEvents("user-1", "wallet.credits.purchased"))
}
