package usage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type memStore struct {
	mu      sync.Mutex
	records []*Record
}

func (m *memStore) Insert(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func TestIngestorFlushesFullBatch(t *testing.T) {
	store := &memStore{}
	ing := NewIngestor(zap.NewNop(), store)
	ing.Start(context.Background())

	for i := 0; i < ing.batchSize; i++ {
		ing.Record(&Record{ID: fmt.Sprintf("rec-%d", i), ProviderID: "openai"})
	}

	assert.Eventually(t, func() bool {
		return store.count() == ing.batchSize
	}, 2*time.Second, 10*time.Millisecond, "a full batch flushes without waiting for the ticker")
}

func TestIngestorDrainsOnStop(t *testing.T) {
	store := &memStore{}
	ing := NewIngestor(zap.NewNop(), store)
	ing.Start(context.Background())

	ing.Record(&Record{ID: "rec-1"})
	ing.Record(&Record{ID: "rec-2"})
	ing.Stop()

	// Stop joins the worker, so the final flush has landed by now and the
	// store can be closed without racing the last batch.
	assert.Equal(t, 2, store.count())
}

func TestIngestorDropsWhenBufferFull(t *testing.T) {
	store := &memStore{}
	ing := NewIngestor(zap.NewNop(), store)
	ing.recChan = make(chan *Record, 1)

	// No worker running: the second record has nowhere to go.
	ing.Record(&Record{ID: "kept"})
	ing.Record(&Record{ID: "dropped"})

	assert.Len(t, ing.recChan, 1)
}
