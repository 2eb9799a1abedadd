package replication

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrChannelClosed is returned for operations on a shut-down channel.
var ErrChannelClosed = errors.New("replication channel is shut down")

// Channel is the injected pub/sub transport a session rides on. Payloads
// are opaque full-replacement projections scoped by a short session code.
// No ordering or delivery guarantees are assumed; the monitor tolerates
// drops and reordering because every payload is a complete snapshot.
type Channel interface {
	Publish(ctx context.Context, session string, payload []byte) error
	Subscribe(session string) (<-chan []byte, func(), error)
}

// MemoryChannel is an in-process Channel. Sessions are topics; each
// subscriber gets a buffered channel, and a full buffer drops the oldest
// pending payload in favour of the newest, which is safe because payloads
// are full replacements.
type MemoryChannel struct {
	logger *zap.Logger

	mu          sync.RWMutex
	subscribers map[string][]chan []byte
	bufferSize  int

	shutdownMu sync.Mutex
	isShutdown bool
}

// NewMemoryChannel initializes an in-process session channel.
func NewMemoryChannel(logger *zap.Logger, bufferSize int) *MemoryChannel {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &MemoryChannel{
		logger:      logger.Named("memory_channel"),
		subscribers: make(map[string][]chan []byte),
		bufferSize:  bufferSize,
	}
}

// Publish delivers the payload to every subscriber of the session.
func (mc *MemoryChannel) Publish(ctx context.Context, session string, payload []byte) (err error) {
	if session == "" {
		return fmt.Errorf("cannot publish without a session code")
	}
	mc.shutdownMu.Lock()
	if mc.isShutdown {
		mc.shutdownMu.Unlock()
		return ErrChannelClosed
	}
	mc.shutdownMu.Unlock()

	// A send on a channel closed during Shutdown panics; recover and
	// report it as a closed-channel error instead of crashing a session.
	defer func() {
		if r := recover(); r != nil {
			mc.logger.Debug("Recovered from publish during shutdown", zap.Any("panic", r))
			err = ErrChannelClosed
		}
	}()

	mc.mu.RLock()
	subs := mc.subscribers[session]
	subsCopy := make([]chan []byte, len(subs))
	copy(subsCopy, subs)
	mc.mu.RUnlock()

	for _, ch := range subsCopy {
		select {
		case ch <- payload:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Buffer full: evict the oldest pending payload. Every payload
			// is a full replacement, so the subscriber loses nothing it
			// still needs.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- payload:
			default:
			}
		}
	}
	return nil
}

// Subscribe returns a channel of payloads for the session and an
// unsubscribe func.
func (mc *MemoryChannel) Subscribe(session string) (<-chan []byte, func(), error) {
	if session == "" {
		return nil, nil, fmt.Errorf("cannot subscribe without a session code")
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.isShutdownLocked() {
		return nil, nil, ErrChannelClosed
	}

	ch := make(chan []byte, mc.bufferSize)
	mc.subscribers[session] = append(mc.subscribers[session], ch)

	unsubscribe := func() {
		mc.mu.Lock()
		defer mc.mu.Unlock()
		if mc.isShutdownLocked() {
			return
		}
		subs := mc.subscribers[session]
		for i, subscriberCh := range subs {
			if subscriberCh == ch {
				mc.subscribers[session] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
		if len(mc.subscribers[session]) == 0 {
			delete(mc.subscribers, session)
		}
	}
	return ch, unsubscribe, nil
}

func (mc *MemoryChannel) isShutdownLocked() bool {
	mc.shutdownMu.Lock()
	defer mc.shutdownMu.Unlock()
	return mc.isShutdown
}

// Shutdown closes the channel and all subscriber streams.
func (mc *MemoryChannel) Shutdown() {
	mc.shutdownMu.Lock()
	if mc.isShutdown {
		mc.shutdownMu.Unlock()
		return
	}
	mc.isShutdown = true
	mc.shutdownMu.Unlock()

	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, subs := range mc.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	mc.subscribers = make(map[string][]chan []byte)
}
