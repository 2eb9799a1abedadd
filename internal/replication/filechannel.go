package replication

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FileChannel is a Channel backed by a spool directory shared between
// processes (a mounted folder, a synced drive). Each publish atomically
// replaces one file per session; subscribers poll and emit whenever the
// content changes. It keeps only the latest payload, which matches the
// full-replacement projection contract: a monitor that polls late simply
// converges on the newest state.
type FileChannel struct {
	dir          string
	pollInterval time.Duration
	logger       *zap.Logger

	mu      sync.Mutex
	stopped bool
	stops   []func()
}

// NewFileChannel creates the spool directory if needed.
func NewFileChannel(dir string, pollInterval time.Duration, logger *zap.Logger) (*FileChannel, error) {
	if dir == "" {
		return nil, fmt.Errorf("file channel needs a spool directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}
	return &FileChannel{
		dir:          dir,
		pollInterval: pollInterval,
		logger:       logger.Named("file_channel"),
	}, nil
}

func (fc *FileChannel) sessionPath(session string) string {
	return filepath.Join(fc.dir, session+".json")
}

// Publish writes the payload through a temp file and rename so a reader
// never observes a half-written projection.
func (fc *FileChannel) Publish(_ context.Context, session string, payload []byte) error {
	if session == "" {
		return fmt.Errorf("cannot publish without a session code")
	}
	tmp, err := os.CreateTemp(fc.dir, session+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create spool temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write spool temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close spool temp: %w", err)
	}
	if err := os.Rename(tmpName, fc.sessionPath(session)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish projection: %w", err)
	}
	return nil
}

// Subscribe polls the session file and emits each distinct payload.
func (fc *FileChannel) Subscribe(session string) (<-chan []byte, func(), error) {
	if session == "" {
		return nil, nil, fmt.Errorf("cannot subscribe without a session code")
	}
	stop := make(chan struct{})
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() { close(stop) })
	}

	fc.mu.Lock()
	if fc.stopped {
		fc.mu.Unlock()
		return nil, nil, ErrChannelClosed
	}
	fc.stops = append(fc.stops, unsubscribe)
	fc.mu.Unlock()

	out := make(chan []byte, 1)

	go func() {
		defer close(out)
		ticker := time.NewTicker(fc.pollInterval)
		defer ticker.Stop()

		var last []byte
		path := fc.sessionPath(session)
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				payload, err := os.ReadFile(path)
				if err != nil {
					// Absent file just means nothing published yet.
					continue
				}
				if bytes.Equal(payload, last) {
					continue
				}
				last = payload
				select {
				case out <- payload:
				case <-stop:
					return
				default:
					// Drop the stale pending payload for the fresh one.
					select {
					case <-out:
					default:
					}
					select {
					case out <- payload:
					default:
					}
				}
			}
		}
	}()

	return out, unsubscribe, nil
}

// Shutdown stops every poller.
func (fc *FileChannel) Shutdown() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.stopped {
		return
	}
	fc.stopped = true
	for _, stop := range fc.stops {
		stop()
	}
	fc.stops = nil
}
