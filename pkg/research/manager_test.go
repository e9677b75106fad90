package research

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altay/deepresearch/pkg/model"
	"github.com/altay/deepresearch/pkg/workflow"
)

func testManager(t *testing.T, client model.Client, maxSessions int) *Manager {
	t.Helper()
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)

	return NewManager(ManagerConfig{
		Factory: func(cfg workflow.Config) (*Runner, error) {
			r := NewRunner(RunnerConfig{
				Client:     client,
				Dispatcher: nil,
				Config:     cfg,
				Logger:     logger,
			})
			r.retryBase = time.Millisecond
			return r, nil
		},
		MaxSessions: maxSessions,
		Logger:      logger,
	})
}

func TestManagerRunsSessionToCompletion(t *testing.T) {
	client := &scriptedClient{turns: []scriptedTurn{
		{turn: &model.Turn{Content: "answer"}},
	}}
	m := testManager(t, client, 4)

	session, events, err := m.Start(context.Background(), StartRequest{Content: "question"})
	require.NoError(t, err)

	_, found := m.Get(session.ID)
	assert.True(t, found)

	var collected []Event
	for ev := range events {
		collected = append(collected, ev)
	}
	assertStream(t, collected)
	assert.Equal(t, StateDone, session.State())

	m.Release(session.ID)
	_, found = m.Get(session.ID)
	assert.False(t, found)
}

func TestManagerRejectsUnknownOverrideKey(t *testing.T) {
	m := testManager(t, &scriptedClient{}, 4)

	_, _, err := m.Start(context.Background(), StartRequest{
		Content:   "question",
		Overrides: map[string]string{"bogus_key": "1"},
	})
	require.Error(t, err)

	var cfgErr *workflow.ConfigError
	require.ErrorAs(t, err, &cfgErr)

	// No session was created for the rejected request.
	assert.Empty(t, m.sessions)
}

func TestManagerRejectsEmptyContent(t *testing.T) {
	m := testManager(t, &scriptedClient{}, 4)

	_, _, err := m.Start(context.Background(), StartRequest{Content: ""})
	var cfgErr *workflow.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestManagerCapacityLimit(t *testing.T) {
	client := &scriptedClient{block: true}
	m := testManager(t, client, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, events, err := m.Start(ctx, StartRequest{Content: "first"})
	require.NoError(t, err)

	_, _, err = m.Start(ctx, StartRequest{Content: "second"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capacity")

	cancel()
	for range events {
	}
}

func TestManagerSweepRemovesStaleTerminalSessions(t *testing.T) {
	client := &scriptedClient{turns: []scriptedTurn{
		{turn: &model.Turn{Content: "done"}},
	}}
	m := testManager(t, client, 4)
	m.retention = time.Millisecond

	session, events, err := m.Start(context.Background(), StartRequest{Content: "q"})
	require.NoError(t, err)
	for range events {
	}

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, m.sweep())

	_, found := m.Get(session.ID)
	assert.False(t, found)
}

func TestManagerSweeperSchedule(t *testing.T) {
	m := testManager(t, &scriptedClient{}, 4)
	defer m.Close()

	assert.Error(t, m.StartSweeper("not a schedule"))
	require.NoError(t, m.StartSweeper("@every 1m"))
}
