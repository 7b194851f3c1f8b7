package loader

import (
	"strings"

	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
)

// sweepBatch is how many resident modules one retransform batch covers.
const sweepBatch = 16

// Attach registers the coordinator with the richest hook surface the
// host supports, falling through to the next strategy when one fails.
// Registration failure never propagates: the bridge degrades to doing
// nothing rather than breaking the host.
func (c *Coordinator) Attach(host any) {
	if h, ok := host.(wasmbridge.RetransformHost); ok {
		err := h.RegisterTransformer(c)
		if err == nil {
			c.setStrategy("retransform-host")
			c.sweep(h)
			return
		}
		c.logger.Error("transformer registration failed",
			zap.String("strategy", "retransform-host"),
			zap.Error(err))
	}

	if h, ok := host.(wasmbridge.TransformerRegistrar); ok {
		err := h.RegisterTransformer(c)
		if err == nil {
			c.setStrategy("registrar")
			return
		}
		c.logger.Warn("transformer registration failed; resident modules keep legacy imports",
			zap.String("strategy", "registrar"),
			zap.Error(err))
	}

	c.logger.Info("host offers no transformer hook; modules load unmodified")
	c.setStrategy("none")
}

// sweep retransforms modules that were resident before attach. Work
// proceeds in batches; a batch with failures is retried per-module so
// one bad binary cannot shadow its neighbours.
func (c *Coordinator) sweep(h wasmbridge.RetransformHost) {
	var candidates []wasmbridge.ActiveModule
	for _, m := range h.ActiveModules() {
		if c.sweepCandidate(m.Identity()) {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return
	}
	c.logger.Debug("sweeping resident modules", zap.Int("candidates", len(candidates)))

	for start := 0; start < len(candidates); start += sweepBatch {
		end := start + sweepBatch
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]
		if c.retransformBatch(h, batch) {
			continue
		}
		for _, m := range batch {
			if err := c.retransformOne(h, m); err != nil {
				c.logger.Warn("module retransform failed",
					zap.String("module", m.Identity()),
					zap.Error(err))
			}
		}
	}
}

// sweepCandidate applies the identity heuristic: skip excluded
// prefixes and anything the coordinator already handled.
func (c *Coordinator) sweepCandidate(identity string) bool {
	for _, p := range c.exclude {
		if strings.HasPrefix(identity, p) {
			return false
		}
	}
	if _, done := c.seen.Load(identity); done {
		return false
	}
	return true
}

func (c *Coordinator) retransformBatch(h wasmbridge.RetransformHost, batch []wasmbridge.ActiveModule) bool {
	for _, m := range batch {
		if err := c.retransformOne(h, m); err != nil {
			// Reset identities the batch may have half-processed, so
			// the per-module retry runs the pipeline again.
			for _, r := range batch {
				c.ForceRetransform(r.Identity())
			}
			return false
		}
	}
	return true
}

func (c *Coordinator) retransformOne(h wasmbridge.RetransformHost, m wasmbridge.ActiveModule) error {
	out, changed := c.Transform(m.Identity(), m.Raw())
	if !changed {
		return nil
	}
	return h.Retransform(m.Identity(), out)
}
