// Package telemetry records tool and query usage locally. Nothing is
// reported externally.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketP100   LatencyBucket = "p100"   // <100ms
	BucketP500   LatencyBucket = "p500"   // 100-500ms
	BucketP1000  LatencyBucket = "p1000"  // 500ms-1s
	BucketP5000  LatencyBucket = "p5000"  // 1-5s
	BucketP30000 LatencyBucket = "p30000" // >=5s
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	case ms < 1000:
		return BucketP1000
	case ms < 5000:
		return BucketP5000
	default:
		return BucketP30000
	}
}

// Event is one tool invocation.
type Event struct {
	Tool        string
	Query       string
	ResultCount int
	Success     bool
	Latency     time.Duration
	Timestamp   time.Time
}

// IsZeroResult reports a successful query that matched nothing.
func (e Event) IsZeroResult() bool {
	return e.Query != "" && e.Success && e.ResultCount == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a buffer holding at most capacity items.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

var termSplit = regexp.MustCompile(`[\s,;]+`)

// ExtractTerms lower-cases a query and returns its terms of length >= 2.
func ExtractTerms(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	var terms []string
	for _, w := range termSplit.Split(query, -1) {
		if len(w) >= 2 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount is a term and its frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is an immutable copy of the in-memory metrics.
type Snapshot struct {
	ToolCounts          map[string]int64        `json:"tool_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	FailureCount        int64                   `json:"failure_count"`
	RepeatCount         int64                   `json:"repeat_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of queries that matched nothing.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// Store persists metric deltas.
type Store interface {
	SaveToolCounts(date string, counts map[string]int64) error
	UpsertTermCounts(terms map[string]int64) error
	AddZeroResultQuery(query string, timestamp time.Time) error
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error
	Close() error
}

// Config configures a QueryMetrics collector.
type Config struct {
	TopTermsCapacity      int
	ZeroResultsCapacity   int
	RecentQueriesCapacity int
	// FlushInterval of zero disables background flushing.
	FlushInterval time.Duration
}

// DefaultConfig returns the collector defaults.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   100,
		RecentQueriesCapacity: 500,
		FlushInterval:         60 * time.Second,
	}
}

// QueryMetrics aggregates tool usage in memory and flushes deltas to an
// optional Store. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	toolCounts      map[string]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	latencies       map[LatencyBucket]int64
	recentQueries   *lru.Cache[string, struct{}]
	totalQueries    int64
	zeroResultCount int64
	failureCount    int64
	repeatCount     int64
	startTime       time.Time

	// pending holds counts not yet flushed.
	pendingTools     map[string]int64
	pendingTerms     map[string]int64
	pendingLatencies map[LatencyBucket]int64
	pendingZero      []Event

	store       Store
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

// New creates a collector. A nil store keeps metrics in memory only.
func New(store Store, cfg Config) *QueryMetrics {
	def := DefaultConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	m := &QueryMetrics{
		toolCounts:       map[string]int64{},
		topTerms:         topTerms,
		zeroResults:      NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:        map[LatencyBucket]int64{},
		recentQueries:    recent,
		startTime:        time.Now(),
		pendingTools:     map[string]int64{},
		pendingTerms:     map[string]int64{},
		pendingLatencies: map[LatencyBucket]int64{},
		store:            store,
		stopCh:           make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.flushTicker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}
	return m
}

func (m *QueryMetrics) flushLoop() {
	for {
		select {
		case <-m.flushTicker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record captures one tool invocation.
func (m *QueryMetrics) Record(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.toolCounts[e.Tool]++
	m.pendingTools[e.Tool]++
	bucket := LatencyToBucket(e.Latency)
	m.latencies[bucket]++
	m.pendingLatencies[bucket]++
	if !e.Success {
		m.failureCount++
	}

	if e.Query == "" {
		return
	}
	m.totalQueries++

	for _, term := range ExtractTerms(e.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
		m.pendingTerms[term]++
	}

	if e.IsZeroResult() {
		m.zeroResults.Add(e.Query)
		m.zeroResultCount++
		m.pendingZero = append(m.pendingZero, e)
	}

	h := hashQuery(e.Query)
	if _, seen := m.recentQueries.Get(h); seen {
		m.repeatCount++
	}
	m.recentQueries.Add(h, struct{}{})
}

func hashQuery(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}

// Snapshot returns a copy of the current metrics.
func (m *QueryMetrics) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	tools := make(map[string]int64, len(m.toolCounts))
	for k, v := range m.toolCounts {
		tools[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	terms := make([]TermCount, 0, m.topTerms.Len())
	for _, k := range m.topTerms.Keys() {
		if c, ok := m.topTerms.Peek(k); ok {
			terms = append(terms, TermCount{Term: k, Count: c})
		}
	}
	slices.SortStableFunc(terms, func(a, b TermCount) int {
		if a.Count != b.Count {
			return int(b.Count - a.Count)
		}
		return strings.Compare(a.Term, b.Term)
	})

	return &Snapshot{
		ToolCounts:          tools,
		TopTerms:            terms,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		FailureCount:        m.failureCount,
		RepeatCount:         m.repeatCount,
		Since:               m.startTime,
	}
}

// Flush writes counts accumulated since the previous flush. It is a no-op
// without a store. On failure the deltas are kept for the next attempt.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	tools, terms, latencies, zero := m.pendingTools, m.pendingTerms, m.pendingLatencies, m.pendingZero
	m.pendingTools = map[string]int64{}
	m.pendingTerms = map[string]int64{}
	m.pendingLatencies = map[LatencyBucket]int64{}
	m.pendingZero = nil
	m.mu.Unlock()

	err := m.write(tools, terms, latencies, zero)
	if err != nil {
		m.mu.Lock()
		for k, v := range tools {
			m.pendingTools[k] += v
		}
		for k, v := range terms {
			m.pendingTerms[k] += v
		}
		for k, v := range latencies {
			m.pendingLatencies[k] += v
		}
		m.pendingZero = append(zero, m.pendingZero...)
		m.mu.Unlock()
	}
	return err
}

func (m *QueryMetrics) write(tools, terms map[string]int64, latencies map[LatencyBucket]int64, zero []Event) error {
	today := time.Now().Format(time.DateOnly)
	if len(tools) > 0 {
		if err := m.store.SaveToolCounts(today, tools); err != nil {
			return err
		}
	}
	if err := m.store.UpsertTermCounts(terms); err != nil {
		return err
	}
	if len(latencies) > 0 {
		if err := m.store.SaveLatencyCounts(today, latencies); err != nil {
			return err
		}
	}
	for _, e := range zero {
		if err := m.store.AddZeroResultQuery(e.Query, e.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

// Close stops background flushing, flushes once more and closes the store.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.flushTicker != nil {
		m.flushTicker.Stop()
		close(m.stopCh)
	}
	if err := m.Flush(); err != nil {
		return err
	}
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}
