package checkpoint

import (
	"time"

	"github.com/phuslu/log"
)

// EventKind classifies a structured I/O event reported to a Monitor.
type EventKind string

const (
	EventRead      EventKind = "read"
	EventWrite     EventKind = "write"
	EventPartial   EventKind = "write-partial"
	EventPunchHole EventKind = "punch-hole"
	EventFlush     EventKind = "flush"
	EventZerofill  EventKind = "zerofill"
)

// CounterSnapshot mirrors the store's monotonic counters at the time an
// event was reported.
type CounterSnapshot struct {
	ReadBlocks    uint64
	WrittenBlocks uint64
	ReadRetries   uint64
	WriteRetries  uint64
}

// Event is the structured record delivered to a Monitor for every I/O
// operation, per the "opaque I/O monitor sink" of the spec's external
// interfaces section.
type Event struct {
	Kind       EventKind
	FileName   string
	PgID       uint32
	Offset     uint64
	Size       uint64
	Duration   time.Duration
	RetryCount uint64
	Counters   CounterSnapshot
}

// Monitor receives structured I/O events. Implementations decide what
// to do with them (log, aggregate, export as metrics); the store never
// blocks waiting on a Monitor and never fails an operation because a
// Monitor call panics-free path is not guaranteed by this package.
type Monitor interface {
	// Report is called for every I/O operation that dispatches through
	// the engine, regardless of duration. Implementations decide their
	// own severity split based on whether Duration exceeds their
	// configured warning threshold.
	Report(ev Event)
}

// NoopMonitor discards every event. It is the zero-cost default for
// callers that do not care about observability.
type NoopMonitor struct{}

func (NoopMonitor) Report(Event) {}

// LogMonitor reports events through a phuslu/log.Logger, matching the
// leveled-logging convention used throughout this codebase's lineage
// (logger.Error().Err(err).Msg(...) / logger.Info().Msg(...)). Events
// whose Duration meets or exceeds Threshold log at Warn; everything
// else logs at Debug.
type LogMonitor struct {
	Logger    *log.Logger
	Threshold time.Duration
}

// NewLogMonitor builds a LogMonitor backed by logger, warning on any
// event that takes at least thresholdMillis milliseconds.
func NewLogMonitor(logger *log.Logger, thresholdMillis int64) *LogMonitor {
	return &LogMonitor{
		Logger:    logger,
		Threshold: time.Duration(thresholdMillis) * time.Millisecond,
	}
}

func (m *LogMonitor) Report(ev Event) {
	if m == nil || m.Logger == nil {
		return
	}
	if ev.Duration >= m.Threshold {
		m.Logger.Warn().
			Str("kind", string(ev.Kind)).
			Str("file", ev.FileName).
			Uint32("pgId", ev.PgID).
			Uint64("offset", ev.Offset).
			Uint64("size", ev.Size).
			Int64("durationMs", ev.Duration.Milliseconds()).
			Uint64("retryCount", ev.RetryCount).
			Msg("[LONG I/O] checkpoint file operation exceeded warning threshold")
		return
	}
	m.Logger.Debug().
		Str("kind", string(ev.Kind)).
		Str("file", ev.FileName).
		Uint32("pgId", ev.PgID).
		Uint64("offset", ev.Offset).
		Uint64("size", ev.Size).
		Int64("durationMs", ev.Duration.Milliseconds()).
		Msg("checkpoint file operation")
}
