package usage

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Record captures the token accounting for one completed chat request,
// streamed or not, successful or not.
type Record struct {
	ID           string    `db:"id" json:"id"`
	ProviderID   string    `db:"provider_id" json:"provider_id"`
	Model        string    `db:"model" json:"model"`
	InputTokens  int       `db:"input_tokens" json:"input_tokens"`
	OutputTokens int       `db:"output_tokens" json:"output_tokens"`
	Estimated    bool      `db:"estimated" json:"estimated"`
	LatencyMs    int64     `db:"latency_ms" json:"latency_ms"`
	Streamed     bool      `db:"is_streamed" json:"is_streamed"`
	Success      bool      `db:"success" json:"success"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Recorder accepts usage records. Implementations must not block the
// request path; buffering and persistence happen off the hot path.
type Recorder interface {
	Record(rec *Record)
}

// Nop discards all records.
type Nop struct{}

func (Nop) Record(*Record) {}

// LogRecorder emits each record as a structured log line. Used when no
// database is configured.
type LogRecorder struct {
	Logger *zap.Logger
}

func (l *LogRecorder) Record(rec *Record) {
	l.Logger.Info("usage",
		zap.String("provider", rec.ProviderID),
		zap.String("model", rec.Model),
		zap.Int("input_tokens", rec.InputTokens),
		zap.Int("output_tokens", rec.OutputTokens),
		zap.Bool("estimated", rec.Estimated),
		zap.Int64("latency_ms", rec.LatencyMs),
		zap.Bool("streamed", rec.Streamed),
		zap.Bool("success", rec.Success),
	)
}

// Store persists usage records.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	Close() error
}

// DailyStat is one provider's aggregated traffic for one day.
type DailyStat struct {
	Date          string  `db:"date" json:"date"`
	ProviderID    string  `db:"provider_id" json:"provider_id"`
	TotalRequests int     `db:"total_requests" json:"total_requests"`
	TotalTokens   int     `db:"total_tokens" json:"total_tokens"`
	AvgLatencyMs  float64 `db:"avg_latency" json:"avg_latency"`
}

// Reader serves the admin usage endpoints.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Record, error)
	DailyStats(ctx context.Context, days int) ([]DailyStat, error)
}
