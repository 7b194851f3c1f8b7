package loader

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/redirect"
	"github.com/wippyai/wasm-bridge/rewrite"
	"github.com/wippyai/wasm-bridge/wasm"
)

// Config configures a Coordinator. The zero value is usable: no exact
// redirect rules, no exclusions, no-op logging.
type Config struct {
	// Table holds exact redirect rules consulted before namespace
	// substitution. Nil disables tier one.
	Table *redirect.Table

	// ExcludedPrefixes skips identities outright, before dedup and
	// scanning. Used for host-internal and instrumentation modules.
	ExcludedPrefixes []string

	// Logger defaults to the package logger (no-op unless configured).
	Logger *zap.Logger
}

// Coordinator drives the per-module transformation pipeline and
// remembers which identities it has already processed.
type Coordinator struct {
	table    *redirect.Table
	rewriter *redirect.Rewriter
	exclude  []string
	logger   *zap.Logger

	seen  sync.Map // identity -> struct{}
	stats stats
}

// New creates a Coordinator.
func New(cfg Config) *Coordinator {
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	return &Coordinator{
		table:    cfg.Table,
		rewriter: redirect.NewRewriter(),
		exclude:  cfg.ExcludedPrefixes,
		logger:   log,
	}
}

// Transform rewrites one module's bytes if they reference the legacy
// API. It never fails: on any error the original bytes come back with
// changed == false. Each identity is processed at most once; repeated
// loads return the input untouched unless ForceRetransform reset it.
func (c *Coordinator) Transform(identity string, raw []byte) ([]byte, bool) {
	for _, p := range c.exclude {
		if strings.HasPrefix(identity, p) {
			c.stats.excluded.Add(1)
			return raw, false
		}
	}
	if _, dup := c.seen.LoadOrStore(identity, struct{}{}); dup {
		c.stats.deduped.Add(1)
		return raw, false
	}

	c.stats.scanned.Add(1)
	if !rewrite.Scan(raw) {
		return raw, false
	}
	return c.transform(identity, raw)
}

// ForceRetransform clears the dedup entry for an identity so its next
// load runs the full pipeline again.
func (c *Coordinator) ForceRetransform(identity string) {
	c.seen.Delete(identity)
}

// transform runs decode, rewrite and encode behind a recover barrier.
// A panic anywhere inside the pass is an ordinary per-module failure.
func (c *Coordinator) transform(identity string, raw []byte) (out []byte, changed bool) {
	defer func() {
		if r := recover(); r != nil {
			c.stats.failed.Add(1)
			c.logger.Error("module transform panicked",
				zap.String("module", identity),
				zap.Any("panic", r))
			out, changed = raw, false
		}
	}()

	mod, err := wasm.Decode(raw)
	if err != nil {
		c.stats.failed.Add(1)
		c.logger.Warn("module not transformable",
			zap.String("module", identity),
			zap.Error(err))
		return raw, false
	}

	res, err := rewrite.Rewrite(mod, c.table, c.rewriter)
	if err != nil {
		c.stats.failed.Add(1)
		c.logger.Warn("module left untouched",
			zap.String("module", identity),
			zap.Error(err))
		return raw, false
	}
	if !res.Changed {
		return raw, false
	}

	encoded := mod.Encode()
	c.stats.recordTransform(ModuleRecord{
		Identity:     identity,
		OriginalSize: len(raw),
		NewSize:      len(encoded),
		Funcs:        res.Funcs,
		Globals:      res.Globals,
		Tags:         res.Tags,
		Descriptors:  res.Descriptors,
		KindSwaps:    res.KindSwaps,
		When:         time.Now(),
	})
	c.logger.Debug("module transformed",
		zap.String("module", identity),
		zap.Int("funcs", res.Funcs),
		zap.Int("globals", res.Globals),
		zap.Int("tags", res.Tags))
	return encoded, true
}
