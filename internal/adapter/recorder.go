package adapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeCancelled Outcome = "cancelled"
)

// CallRecord describes one adapter call as seen by the caller.
type CallRecord struct {
	Service   string        `json:"service"`
	Operation string        `json:"operation"`
	Key       string        `json:"key,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	Attempts  int           `json:"attempts"`
	CacheHit  bool          `json:"cache_hit"`
	Coalesced bool          `json:"coalesced"`
	Outcome   Outcome       `json:"outcome"`
	Error     string        `json:"error,omitempty"`
	At        time.Time     `json:"at"`
}

// Recorder receives call records. Implementations must not block the caller.
type Recorder interface {
	Record(ctx context.Context, rec CallRecord)
}

type RecorderFunc func(ctx context.Context, rec CallRecord)

func (f RecorderFunc) Record(ctx context.Context, rec CallRecord) { f(ctx, rec) }

// NopRecorder discards records.
var NopRecorder Recorder = RecorderFunc(func(context.Context, CallRecord) {})

// MultiRecorder fans a record out to every recorder.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, rec CallRecord) {
	for _, r := range m {
		r.Record(ctx, rec)
	}
}

// LogRecorder writes records at debug level, failures at warn.
type LogRecorder struct{}

func (LogRecorder) Record(ctx context.Context, rec CallRecord) {
	level := slog.LevelDebug
	if rec.Outcome == OutcomeFailure {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "adapter call",
		"service", rec.Service,
		"operation", rec.Operation,
		"duration_ms", rec.Duration.Milliseconds(),
		"attempts", rec.Attempts,
		"cache_hit", rec.CacheHit,
		"coalesced", rec.Coalesced,
		"outcome", rec.Outcome,
		"error", rec.Error)
}

// PrometheusRecorder exports call counts, latency and retry counts.
type PrometheusRecorder struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
}

func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assist",
			Subsystem: "adapter",
			Name:      "calls_total",
			Help:      "Adapter calls by service, operation, outcome and cache result.",
		}, []string{"service", "operation", "outcome", "cache"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "assist",
			Subsystem: "adapter",
			Name:      "call_duration_seconds",
			Help:      "Adapter call latency as observed by the caller.",
			Buckets:   []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"service", "operation"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assist",
			Subsystem: "adapter",
			Name:      "retries_total",
			Help:      "Upstream attempts beyond the first.",
		}, []string{"service", "operation"}),
	}
	for _, c := range []prometheus.Collector{r.calls, r.duration, r.retries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) Record(_ context.Context, rec CallRecord) {
	cacheLabel := "miss"
	switch {
	case rec.CacheHit:
		cacheLabel = "hit"
	case rec.Coalesced:
		cacheLabel = "coalesced"
	}
	r.calls.WithLabelValues(rec.Service, rec.Operation, string(rec.Outcome), cacheLabel).Inc()
	r.duration.WithLabelValues(rec.Service, rec.Operation).Observe(rec.Duration.Seconds())
	if rec.Attempts > 1 {
		r.retries.WithLabelValues(rec.Service, rec.Operation).Add(float64(rec.Attempts - 1))
	}
}

// KafkaRecorder publishes records as JSON to a topic. The writer is asynchronous so
// Record never waits on the broker.
type KafkaRecorder struct {
	writer *kafka.Writer
}

func NewKafkaRecorder(brokers []string, topic string) *KafkaRecorder {
	return &KafkaRecorder{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
			Async:    true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					slog.Warn("dropping call records", "count", len(messages), "error", err)
				}
			},
		},
	}
}

func (k *KafkaRecorder) Record(ctx context.Context, rec CallRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return
	}
	msg := kafka.Message{
		Key:   []byte(rec.Service + "." + rec.Operation),
		Value: payload,
		Time:  rec.At,
	}
	// Async writers return immediately; the error path only covers a closed writer.
	if err := k.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		slog.DebugContext(ctx, "call record not published", "error", err)
	}
}

func (k *KafkaRecorder) Close() error {
	return k.writer.Close()
}
