package bridge

import (
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
)

// Audio emulates the legacy push-style audio API over the backend's
// pull model: guests queue buffers, the backend's mixer drains them
// through the need-data callback, and guests poll how many buffers
// finished playing.
type Audio struct {
	backend Backend
	logger  *zap.Logger

	mu       sync.Mutex
	channels map[uint32]*audioChannel
	nextID   uint32
}

type audioChannel struct {
	mu        sync.Mutex
	backend   Channel
	pending   [][]byte
	offset    int // read position inside pending[0]
	processed uint32
}

func newAudio(backend Backend, logger *zap.Logger) *Audio {
	return &Audio{
		backend:  backend,
		logger:   logger,
		channels: make(map[uint32]*audioChannel),
		nextID:   1,
	}
}

// OpenChannel opens an output channel and returns its handle.
func (a *Audio) OpenChannel(sampleRate, channels uint32) (uint32, error) {
	if a.backend == nil {
		return 0, errors.NotInitialized(errors.PhaseBridge, "backend")
	}

	ch := &audioChannel{}
	backendCh, err := a.backend.OpenChannel(sampleRate, channels, ch.pull)
	if err != nil {
		return 0, errors.Backend("open audio channel", err)
	}
	ch.backend = backendCh

	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.channels[id] = ch
	a.mu.Unlock()
	return id, nil
}

// Queue appends one sample buffer to a channel.
func (a *Audio) Queue(id uint32, data []byte) error {
	ch := a.channel(id)
	if ch == nil {
		return errors.NotFound(errors.PhaseBridge, "audio channel", strconv.FormatUint(uint64(id), 10))
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	ch.mu.Lock()
	ch.pending = append(ch.pending, buf)
	ch.mu.Unlock()
	return nil
}

// Processed polls how many queued buffers finished playing since the
// last call, resetting the counter. Unknown handles read as zero;
// the legacy API treats that as best-effort telemetry.
func (a *Audio) Processed(id uint32) uint32 {
	ch := a.channel(id)
	if ch == nil {
		a.logger.Debug("processed poll on unknown channel", zap.Uint32("channel", id))
		return 0
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	n := ch.processed
	ch.processed = 0
	return n
}

// Queued reports how many buffers wait to be mixed.
func (a *Audio) Queued(id uint32) uint32 {
	ch := a.channel(id)
	if ch == nil {
		return 0
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return uint32(len(ch.pending))
}

// CloseChannel closes one channel; unknown handles are ignored.
func (a *Audio) CloseChannel(id uint32) {
	a.mu.Lock()
	ch := a.channels[id]
	delete(a.channels, id)
	a.mu.Unlock()
	if ch == nil {
		return
	}
	if err := ch.backend.Close(); err != nil {
		a.logger.Debug("audio channel close failed", zap.Uint32("channel", id), zap.Error(err))
	}
}

func (a *Audio) channel(id uint32) *audioChannel {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.channels[id]
}

func (a *Audio) closeAll() {
	a.mu.Lock()
	chs := a.channels
	a.channels = make(map[uint32]*audioChannel)
	a.mu.Unlock()
	for id, ch := range chs {
		if err := ch.backend.Close(); err != nil {
			a.logger.Debug("audio channel close failed", zap.Uint32("channel", id), zap.Error(err))
		}
	}
}

// pull feeds the mixer. Partially consumed buffers keep their read
// offset; a buffer counts as processed only once fully drained.
func (ch *audioChannel) pull(max int) []byte {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if len(ch.pending) == 0 || max <= 0 {
		return nil
	}

	head := ch.pending[0][ch.offset:]
	if len(head) > max {
		ch.offset += max
		return head[:max]
	}
	ch.pending = ch.pending[1:]
	ch.offset = 0
	ch.processed++
	return head
}
