package replication

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/calmacil/vitalsim/api/schemas"
	"github.com/calmacil/vitalsim/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PublishCounter receives publish outcomes for instrumentation.
type PublishCounter interface {
	Published()
	PublishFailed()
}

// Broadcaster is the controller-role half of replication: on every local
// state change it serializes the fixed projection and publishes it as a
// full replacement. Publish failures are logged and counted, never
// surfaced; the session continues locally regardless.
type Broadcaster struct {
	session string
	channel Channel
	st      *store.Store
	logger  *zap.Logger
	counter PublishCounter
}

// NewBroadcaster wires the controller role. An empty session code makes
// the broadcaster inert: Run returns immediately and no channel is touched.
func NewBroadcaster(session string, channel Channel, st *store.Store, logger *zap.Logger, counter PublishCounter) *Broadcaster {
	return &Broadcaster{
		session: session,
		channel: channel,
		st:      st,
		logger:  logger.Named("broadcaster"),
		counter: counter,
	}
}

// Run publishes until the context is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	if b.session == "" {
		return
	}
	changes, unsubscribe := b.st.Subscribe()
	defer unsubscribe()

	b.logger.Info("Broadcasting session", zap.String("session", b.session))
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			b.publishLatest(ctx)
		}
	}
}

func (b *Broadcaster) publishLatest(ctx context.Context) {
	state := b.st.State()
	if !state.Loaded || state.Scenario == nil {
		return
	}
	payload, err := json.Marshal(ProjectState(state, b.session))
	if err != nil {
		b.logger.Warn("Failed to encode projection", zap.Error(err))
		return
	}
	if err := b.channel.Publish(ctx, b.session, payload); err != nil {
		if b.counter != nil {
			b.counter.PublishFailed()
		}
		b.logger.Warn("Failed to publish projection", zap.Error(err))
		return
	}
	if b.counter != nil {
		b.counter.Published()
	}
}

// ProjectState flattens the replicated subset of the aggregate. The
// in-memory intervention set becomes an ordered list on the wire.
func ProjectState(s store.State, session string) schemas.Projection {
	title, pathology := "", ""
	if s.Scenario != nil {
		title = s.Scenario.Title
		pathology = s.Scenario.Category
	}
	return schemas.Projection{
		SessionID:           session,
		Vitals:              s.Vitals,
		Rhythm:              s.Rhythm,
		CPRInProgress:       s.CPRInProgress,
		CapnographyEnabled:  s.CapnographyEnabled,
		Flash:               s.Flash,
		CycleRemaining:      s.CycleRemaining,
		ScenarioTitle:       title,
		Pathology:           pathology,
		ActiveInterventions: store.ToWire(s).ActiveInterventions,
		PublishedAt:         time.Now().UTC(),
	}
}
