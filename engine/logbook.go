package engine

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogRecord is one human-readable event. Records are immutable once added.
type LogRecord struct {
	Seq      int
	Time     time.Time
	Level    zerolog.Level
	Instance string
	Message  string
}

const defaultLogbookSize = 10_000

// Logbook is an append-only stream of LogRecords. Readers keep their own
// cursor and drain with Since; past the retention limit the oldest records
// are overwritten.
type Logbook struct {
	mu    sync.Mutex
	ring  []LogRecord
	head  int // index of the oldest record
	n     int
	base  int // Seq of the oldest record
	limit int
	now   func() time.Time
}

func NewLogbook(limit int) *Logbook {
	if limit <= 0 {
		limit = defaultLogbookSize
	}
	return &Logbook{limit: limit, now: time.Now}
}

// Append adds a record and returns it with its sequence number set.
func (b *Logbook) Append(level zerolog.Level, instance, msg string) LogRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := LogRecord{
		Seq:      b.base + b.n,
		Time:     b.now().UTC(),
		Level:    level,
		Instance: instance,
		Message:  msg,
	}
	switch {
	case len(b.ring) < b.limit:
		b.ring = append(b.ring, rec)
		b.n++
	default:
		b.ring[b.head] = rec
		b.head = (b.head + 1) % b.limit
		b.base++
	}
	return rec
}

// Since returns the records with Seq >= cursor and the cursor to pass next.
func (b *Logbook) Since(cursor int) ([]LogRecord, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.base + b.n
	if cursor < b.base {
		cursor = b.base
	}
	if cursor >= next {
		return nil, next
	}
	out := make([]LogRecord, 0, next-cursor)
	for k := cursor - b.base; k < b.n; k++ {
		out = append(out, b.ring[(b.head+k)%len(b.ring)])
	}
	return out, next
}

// Len is the sequence number the next record will get.
func (b *Logbook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.base + b.n
}
