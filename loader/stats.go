package loader

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// recentCap bounds the per-module history kept for reporting.
const recentCap = 50

// Stats is a point-in-time snapshot of coordinator activity, including
// the sizes of the registries behind it.
type Stats struct {
	Scanned     uint64
	Transformed uint64
	Deduped     uint64
	Excluded    uint64
	Failed      uint64
	Funcs       uint64
	Globals     uint64
	Tags        uint64
	Descriptors uint64
	KindSwaps   uint64

	// Registry sizes and attach outcome.
	Rules           int    // exact redirect rules in the table
	DescriptorCache int    // memoized descriptor substitutions
	DedupSet        int    // identities processed so far
	Strategy        string // attach strategy in effect, "" before Attach
}

// ModuleRecord describes one successful transformation.
type ModuleRecord struct {
	When         time.Time
	Identity     string
	OriginalSize int
	NewSize      int
	Funcs        int
	Globals      int
	Tags         int
	Descriptors  int
	KindSwaps    int
}

type stats struct {
	scanned     atomic.Uint64
	transformed atomic.Uint64
	deduped     atomic.Uint64
	excluded    atomic.Uint64
	failed      atomic.Uint64
	funcs       atomic.Uint64
	globals     atomic.Uint64
	tags        atomic.Uint64
	descriptors atomic.Uint64
	kindSwaps   atomic.Uint64

	mu       sync.Mutex
	recent   []ModuleRecord
	strategy string
}

func (s *stats) recordTransform(rec ModuleRecord) {
	s.transformed.Add(1)
	s.funcs.Add(uint64(rec.Funcs))
	s.globals.Add(uint64(rec.Globals))
	s.tags.Add(uint64(rec.Tags))
	s.descriptors.Add(uint64(rec.Descriptors))
	s.kindSwaps.Add(uint64(rec.KindSwaps))

	s.mu.Lock()
	s.recent = append(s.recent, rec)
	if len(s.recent) > recentCap {
		s.recent = s.recent[len(s.recent)-recentCap:]
	}
	s.mu.Unlock()
}

func (c *Coordinator) setStrategy(name string) {
	c.stats.mu.Lock()
	c.stats.strategy = name
	c.stats.mu.Unlock()
}

// Stats returns a snapshot of the counters and registry sizes.
func (c *Coordinator) Stats() Stats {
	snap := Stats{
		Scanned:         c.stats.scanned.Load(),
		Transformed:     c.stats.transformed.Load(),
		Deduped:         c.stats.deduped.Load(),
		Excluded:        c.stats.excluded.Load(),
		Failed:          c.stats.failed.Load(),
		Funcs:           c.stats.funcs.Load(),
		Globals:         c.stats.globals.Load(),
		Tags:            c.stats.tags.Load(),
		Descriptors:     c.stats.descriptors.Load(),
		KindSwaps:       c.stats.kindSwaps.Load(),
		DescriptorCache: c.rewriter.CacheLen(),
	}
	if c.table != nil {
		snap.Rules = c.table.Len()
	}
	c.seen.Range(func(_, _ any) bool {
		snap.DedupSet++
		return true
	})
	c.stats.mu.Lock()
	snap.Strategy = c.stats.strategy
	c.stats.mu.Unlock()
	return snap
}

// Recent returns the most recent transformations, newest last, capped
// at the last fifty.
func (c *Coordinator) Recent() []ModuleRecord {
	c.stats.mu.Lock()
	defer c.stats.mu.Unlock()
	out := make([]ModuleRecord, len(c.stats.recent))
	copy(out, c.stats.recent)
	return out
}

// Report renders a human-readable activity summary.
func (c *Coordinator) Report() string {
	snap := c.Stats()
	var b strings.Builder

	fmt.Fprintf(&b, "scanned %d, transformed %d, deduped %d, excluded %d, failed %d\n",
		snap.Scanned, snap.Transformed, snap.Deduped, snap.Excluded, snap.Failed)
	fmt.Fprintf(&b, "redirected: %d funcs, %d globals, %d tags, %d descriptors, %d kind swaps\n",
		snap.Funcs, snap.Globals, snap.Tags, snap.Descriptors, snap.KindSwaps)
	strategy := snap.Strategy
	if strategy == "" {
		strategy = "unattached"
	}
	fmt.Fprintf(&b, "registries: %d rules, %d cached descriptors, %d deduped identities; strategy %s\n",
		snap.Rules, snap.DescriptorCache, snap.DedupSet, strategy)

	recent := c.Recent()
	if len(recent) == 0 {
		return b.String()
	}
	b.WriteString("recent:\n")
	for _, rec := range recent {
		fmt.Fprintf(&b, "  %s  %d -> %d bytes  (%d funcs, %d globals, %d tags)\n",
			rec.Identity, rec.OriginalSize, rec.NewSize, rec.Funcs, rec.Globals, rec.Tags)
	}
	return b.String()
}
