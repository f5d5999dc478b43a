package infra

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pairly/wallet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	events []domain.OutboxDraft
	marked []int64
}

func (f *fakeSource) FetchUnpublished(_ context.Context, limit int) ([]domain.OutboxDraft, error) {
	if len(f.events) > limit {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func (f *fakeSource) MarkPublished(_ context.Context, ids []int64) error {
	f.marked = append(f.marked, ids...)
	return nil
}

type sentMessage struct {
	topic string
	key   string
	value []byte
}

type fakePublisher struct {
	sent   []sentMessage
	failAt int
}

func (f *fakePublisher) Publish(_ context.Context, topic string, key, value []byte, _ map[string]string) error {
	if f.failAt > 0 && len(f.sent)+1 == f.failAt {
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, sentMessage{topic: topic, key: string(key), value: value})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func draft(seq int64, userID string) domain.OutboxDraft {
	return domain.OutboxDraft{
		SeqID:         seq,
		EventID:       uuid.New(),
		AggregateType: domain.AggregateWallet,
		AggregateID:   userID,
		EventType:     domain.EventCreditsPurchased,
		PartitionKey:  userID,
		Headers:       json.RawMessage(`{}`),
		Payload:       json.RawMessage(`{"credits":30}`),
		OccurredAt:    time.Now(),
	}
}

func TestOutboxPoller_PublishesAndMarks(t *testing.T) {
	src := &fakeSource{events: []domain.OutboxDraft{draft(1, "u1"), draft(2, "u2")}}
	pub := &fakePublisher{}
	p := NewOutboxPoller(src, pub, time.Second, 10, testLogger())

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2}, src.marked)

	require.Len(t, pub.sent, 2)
	assert.Equal(t, "pairly.wallet.wallet.credits.purchased", pub.sent[0].topic)
	assert.Equal(t, "u1", pub.sent[0].key)

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(pub.sent[0].value, &envelope))
	assert.Equal(t, "u1", envelope["aggregate_id"])
	assert.Equal(t, map[string]interface{}{"credits": float64(30)}, envelope["payload"])
}

func TestOutboxPoller_StopsAtFirstFailure(t *testing.T) {
	src := &fakeSource{events: []domain.OutboxDraft{draft(1, "u1"), draft(2, "u1"), draft(3, "u1")}}
	pub := &fakePublisher{failAt: 2}
	p := NewOutboxPoller(src, pub, time.Second, 10, testLogger())

	n, err := p.PollOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{1}, src.marked)
}

func TestOutboxPoller_EmptyBatch(t *testing.T) {
	src := &fakeSource{}
	p := NewOutboxPoller(src, &fakePublisher{}, 0, 0, testLogger())

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, src.marked)
}
