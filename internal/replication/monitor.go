package replication

import (
	"context"

	"go.uber.org/zap"

	"github.com/calmacil/vitalsim/api/schemas"
	"github.com/calmacil/vitalsim/internal/store"
)

// Monitor is the follower role. It applies every projection it receives as
// a full overwrite of the observed fields; a malformed payload is dropped
// and the next good one converges the display.
type Monitor struct {
	session string
	channel Channel
	st      *store.Store
	logger  *zap.Logger
}

func NewMonitor(session string, channel Channel, st *store.Store, logger *zap.Logger) *Monitor {
	return &Monitor{
		session: session,
		channel: channel,
		st:      st,
		logger:  logger.Named("monitor"),
	}
}

// Run applies incoming projections until the context is cancelled or the
// channel shuts down.
func (m *Monitor) Run(ctx context.Context) error {
	messages, unsubscribe, err := m.channel.Subscribe(m.session)
	if err != nil {
		return err
	}
	defer unsubscribe()

	m.logger.Info("Following session", zap.String("session", m.session))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-messages:
			if !ok {
				return nil
			}
			var proj schemas.Projection
			if err := json.Unmarshal(payload, &proj); err != nil {
				m.logger.Debug("Dropping malformed projection", zap.Error(err))
				continue
			}
			m.st.Dispatch(store.SyncFromMaster{Projection: proj})
		}
	}
}
