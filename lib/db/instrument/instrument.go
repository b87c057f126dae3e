// Package instrument wraps a db.KVDB and times every engine call with
// rcrowley/go-metrics timers. The timer snapshot is attached to the wrapped
// engine's DatabaseInfo under Metadata, so `info` shows where time is spent
// (mostly fsync, since every mutation is durable).
package instrument

import (
	"sort"
	"time"

	"github.com/ValentinKolb/tKV/lib/db"
	metrics "github.com/rcrowley/go-metrics"
)

// Timer names, one per KVDB call
const (
	OpFetch    = "fetch"
	OpExists   = "exists"
	OpStore    = "store"
	OpDelete   = "delete"
	OpFirstKey = "first_key"
	OpNextKey  = "next_key"
)

// TimerStats is the JSON friendly snapshot of one timer
type TimerStats struct {
	Count  int64   `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	P99Ms  float64 `json:"p99_ms"`
	MaxMs  float64 `json:"max_ms"`
}

// Info is the metadata returned by an instrumented database
type Info struct {
	Engine interface{}           `json:"engine"`
	Timers map[string]TimerStats `json:"timers"`
}

type instrumented struct {
	db.KVDB
	registry metrics.Registry
}

// Wrap returns a KVDB that records call latencies into registry.
// A nil registry creates a private one.
func Wrap(database db.KVDB, registry metrics.Registry) db.KVDB {
	if registry == nil {
		registry = metrics.NewRegistry()
	}
	return &instrumented{KVDB: database, registry: registry}
}

// Factory wraps every database opened by factory.
func Factory(factory db.Factory, registry metrics.Registry) db.Factory {
	return func(path string) (db.KVDB, error) {
		database, err := factory(path)
		if err != nil {
			return nil, err
		}
		return Wrap(database, registry), nil
	}
}

func (i *instrumented) timer(op string) metrics.Timer {
	return metrics.GetOrRegisterTimer(op, i.registry)
}

func (i *instrumented) Fetch(key []byte) ([]byte, bool, error) {
	defer i.timer(OpFetch).UpdateSince(time.Now())
	return i.KVDB.Fetch(key)
}

func (i *instrumented) Exists(key []byte) (bool, error) {
	defer i.timer(OpExists).UpdateSince(time.Now())
	return i.KVDB.Exists(key)
}

func (i *instrumented) Store(key, value []byte) error {
	defer i.timer(OpStore).UpdateSince(time.Now())
	return i.KVDB.Store(key, value)
}

func (i *instrumented) Delete(key []byte) error {
	defer i.timer(OpDelete).UpdateSince(time.Now())
	return i.KVDB.Delete(key)
}

func (i *instrumented) FirstKey() ([]byte, bool, error) {
	defer i.timer(OpFirstKey).UpdateSince(time.Now())
	return i.KVDB.FirstKey()
}

func (i *instrumented) NextKey(key []byte) ([]byte, bool, error) {
	defer i.timer(OpNextKey).UpdateSince(time.Now())
	return i.KVDB.NextKey(key)
}

// GetInfo returns the engine info with the timer snapshot attached
func (i *instrumented) GetInfo() db.DatabaseInfo {
	info := i.KVDB.GetInfo()
	info.Metadata = Info{
		Engine: info.Metadata,
		Timers: Snapshot(i.registry),
	}
	return info
}

// Snapshot collects all timers of registry
func Snapshot(registry metrics.Registry) map[string]TimerStats {
	out := make(map[string]TimerStats)
	registry.Each(func(name string, m interface{}) {
		t, ok := m.(metrics.Timer)
		if !ok {
			return
		}
		s := t.Snapshot()
		out[name] = TimerStats{
			Count:  s.Count(),
			MeanMs: s.Mean() / float64(time.Millisecond),
			P99Ms:  s.Percentile(0.99) / float64(time.Millisecond),
			MaxMs:  float64(s.Max()) / float64(time.Millisecond),
		}
	})
	return out
}

// TimerNames returns the sorted names of all recorded timers
func TimerNames(registry metrics.Registry) []string {
	var names []string
	for name := range Snapshot(registry) {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
