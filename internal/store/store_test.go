package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/calmacil/vitalsim/api/schemas"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingObserver struct {
	mu      sync.Mutex
	actions []string
}

func (c *countingObserver) ObserveDispatch(action string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = append(c.actions, action)
}

func TestStoreDispatchAndSnapshot(t *testing.T) {
	st := New(zaptest.NewLogger(t))
	obs := &countingObserver{}
	st.SetObserver(obs)

	st.Dispatch(LoadScenario{Scenario: testScenario(), CycleLength: 120, Now: testNow})
	st.Dispatch(StartSim{Now: testNow})

	state := st.State()
	assert.True(t, state.Running)
	assert.Equal(t, []string{"load_scenario", "start_sim"}, obs.actions)

	t.Run("snapshots do not alias store state", func(t *testing.T) {
		snap := st.State()
		snap.Vitals.HR = 1
		snap.ActiveInterventions["tampered"] = struct{}{}
		snap.Scenario.Title = "tampered"

		fresh := st.State()
		assert.NotEqual(t, 1, fresh.Vitals.HR)
		assert.NotContains(t, fresh.ActiveInterventions, "tampered")
		assert.Equal(t, "Anaphylaxis", fresh.Scenario.Title)
	})
}

func TestStoreSubscribeCoalesces(t *testing.T) {
	st := New(zaptest.NewLogger(t))
	changes, unsubscribe := st.Subscribe()
	defer unsubscribe()

	// A burst of dispatches with no reader pending collapses to a single
	// notification; the reader then sees the final state.
	st.Dispatch(LoadScenario{Scenario: testScenario(), CycleLength: 120, Now: testNow})
	st.Dispatch(StartSim{Now: testNow})
	for i := 0; i < 10; i++ {
		st.Dispatch(TickTime{Now: testNow})
	}

	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("expected a pending notification")
	}
	assert.Equal(t, 10, st.State().SimTime)

	select {
	case <-changes:
		t.Fatal("burst should have coalesced into one signal")
	default:
	}
}

func TestStoreUnsubscribeClosesChannel(t *testing.T) {
	st := New(zaptest.NewLogger(t))
	changes, unsubscribe := st.Subscribe()
	unsubscribe()

	_, open := <-changes
	assert.False(t, open)
	// A dispatch after unsubscribe must not panic on the closed channel.
	st.Dispatch(AppendLog{Message: "still fine", Category: schemas.LogSystem, Now: testNow})
}

func TestStoreConcurrentDispatchers(t *testing.T) {
	st := New(zaptest.NewLogger(t))
	st.Dispatch(LoadScenario{Scenario: testScenario(), CycleLength: 120, Now: testNow})
	st.Dispatch(StartSim{Now: testNow})

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				st.Dispatch(TickTime{Now: testNow})
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 200, st.State().SimTime, "every dispatch reduces exactly once")
}
