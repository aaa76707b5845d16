//go:build integration

package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"storegate/pkg/testutil/containers"
)

// consumeRecords reads want records from the topic, starting at the
// beginning, and fails the test when they do not arrive in time.
func consumeRecords(t *testing.T, broker, topic string, want int) []*kgo.Record {
	t.Helper()
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	deadline := time.Now().Add(30 * time.Second)
	var records []*kgo.Record
	for len(records) < want && time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		fetches := consumer.PollFetches(ctx)
		cancel()
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}
	require.Len(t, records, want, "expected %d records on %s", want, topic)
	return records
}

func TestKafkaSinkProducesKeyedEvents(t *testing.T) {
	broker := containers.StartRedpanda(t)
	ctx := context.Background()

	sink, err := NewKafkaSink(ctx, []string{broker}, "audit-sink-test")
	require.NoError(t, err)
	t.Cleanup(sink.Close)

	constraintID := uuid.New().String()
	events := []Event{
		{ID: uuid.New(), Action: ActionConstraintCreated, ConstraintID: constraintID},
		{ID: uuid.New(), Action: ActionConstraintUpdated, ConstraintID: constraintID},
	}
	require.NoError(t, sink.Send(ctx, events))

	records := consumeRecords(t, broker, "audit-sink-test", len(events))
	seen := make(map[uuid.UUID]Event, len(records))
	for _, r := range records {
		assert.Equal(t, constraintID, string(r.Key), "events are keyed by constraint id")
		var e Event
		require.NoError(t, json.Unmarshal(r.Value, &e))
		seen[e.ID] = e
	}
	for _, want := range events {
		got, ok := seen[want.ID]
		require.True(t, ok, "event %s not consumed", want.ID)
		assert.Equal(t, want.Action, got.Action)
		assert.Equal(t, want.ConstraintID, got.ConstraintID)
	}
}

func TestKafkaSinkReusesExistingTopic(t *testing.T) {
	broker := containers.StartRedpanda(t)
	ctx := context.Background()

	first, err := NewKafkaSink(ctx, []string{broker}, "audit-topic-reuse")
	require.NoError(t, err)
	first.Close()

	// The topic already exists now; a second sink must not fail creating it.
	second, err := NewKafkaSink(ctx, []string{broker}, "audit-topic-reuse")
	require.NoError(t, err)
	second.Close()
}

func TestWorkerDrainsOutboxIntoKafka(t *testing.T) {
	broker := containers.StartRedpanda(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink, err := NewKafkaSink(ctx, []string{broker}, "audit-worker-test")
	require.NoError(t, err)
	t.Cleanup(sink.Close)

	events := []Event{
		{ID: uuid.New(), Action: ActionMethodBlocked, ConstraintID: uuid.New().String()},
		{ID: uuid.New(), Action: ActionConstraintDeleted, ConstraintID: uuid.New().String()},
	}
	outbox := newFakeOutbox(events...)
	worker := NewWorker(outbox, sink, WithInterval(50*time.Millisecond))

	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	records := consumeRecords(t, broker, "audit-worker-test", len(events))
	assert.Len(t, records, len(events))

	// Drained events get marked, so the outbox empties out.
	assert.Eventually(t, func() bool {
		batch, err := outbox.NextBatch(ctx, 10)
		return err == nil && len(batch) == 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
