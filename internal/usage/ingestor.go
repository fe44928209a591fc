package usage

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Ingestor buffers records on a channel and drains them to a Store in the
// background, so request handlers never wait on the database.
type Ingestor struct {
	logger    *zap.Logger
	store     Store
	recChan   chan *Record
	done      chan struct{}
	batchSize int
	flushTime time.Duration
}

func NewIngestor(logger *zap.Logger, store Store) *Ingestor {
	return &Ingestor{
		logger:    logger,
		store:     store,
		recChan:   make(chan *Record, 10000),
		done:      make(chan struct{}),
		batchSize: 50,
		flushTime: 5 * time.Second,
	}
}

func (i *Ingestor) Record(rec *Record) {
	select {
	case i.recChan <- rec:
	default:
		i.logger.Warn("Usage buffer full, dropping record", zap.String("id", rec.ID))
	}
}

func (i *Ingestor) Start(ctx context.Context) {
	go i.worker(ctx)
}

// Stop closes the intake and waits for the worker's final flush, so the
// store can be closed safely afterwards.
func (i *Ingestor) Stop() {
	close(i.recChan)
	<-i.done
}

func (i *Ingestor) worker(ctx context.Context) {
	defer close(i.done)

	batch := make([]*Record, 0, i.batchSize)
	ticker := time.NewTicker(i.flushTime)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		for _, rec := range batch {
			if err := i.store.Insert(context.Background(), rec); err != nil {
				i.logger.Error("Failed to persist usage record", zap.String("id", rec.ID), zap.Error(err))
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec, ok := <-i.recChan:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= i.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}
