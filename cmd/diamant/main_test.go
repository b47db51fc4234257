package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayyybubu/RoD/internal/game"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func parse(t *testing.T, args ...string) (*CLI, *kong.Context, error) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"})
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	return &cli, ctx, err
}

func TestParseCommands(t *testing.T) {
	cli, ctx, err := parse(t, "--debug", "simulate", "--games", "5", "--strategies", "cautious,greedy", "--timeout", "2s")
	require.NoError(t, err)
	assert.Equal(t, "simulate", ctx.Command())
	assert.True(t, cli.Debug)
	assert.Equal(t, 5, cli.Simulate.Games)
	assert.Equal(t, 4, cli.Simulate.Players)
	assert.Equal(t, []string{"cautious", "greedy"}, cli.Simulate.Strategies)
	assert.Equal(t, 2*time.Second, cli.Simulate.Timeout)

	cli, _, err = parse(t, "serve", "--headless", "--max-rounds", "3", "--seed", "42")
	require.NoError(t, err)
	require.NotNil(t, cli.Serve.MaxRounds)
	assert.Equal(t, 3, *cli.Serve.MaxRounds)
	require.NotNil(t, cli.Serve.Seed)
	assert.Equal(t, int64(42), *cli.Serve.Seed)
	assert.Nil(t, cli.Serve.PlayerLimit)
	assert.Equal(t, 30*time.Second, cli.Serve.RestartWait)

	_, _, err = parse(t, "--log-format", "xml", "serve")
	assert.Error(t, err)
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Globals{LogFormat: "json"})
	logger.Debug("hidden")
	logger.Info("shown", "round", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"round":2`)

	buf.Reset()
	newLogger(&buf, &Globals{Debug: true, LogFormat: "text"}).Debug("now shown")
	assert.Contains(t, buf.String(), "now shown")
}

func TestConfigCommands(t *testing.T) {
	var printed bytes.Buffer
	require.NoError(t, (&PrintConfigCmd{out: &printed}).Run())
	assert.Contains(t, printed.String(), "max_rounds")
	assert.Contains(t, printed.String(), "exit_commands")

	path := filepath.Join(t.TempDir(), "diamant.hcl")
	require.NoError(t, os.WriteFile(path, printed.Bytes(), 0o644))

	var checked bytes.Buffer
	require.NoError(t, (&CheckConfigCmd{File: path, out: &checked}).Run())
	assert.Contains(t, checked.String(), "ok (5 rounds")

	bad := filepath.Join(t.TempDir(), "bad.hcl")
	require.NoError(t, os.WriteFile(bad, []byte("rules {\n  max_rounds = -1\n}\n"), 0o644))
	err := (&CheckConfigCmd{File: bad, out: io.Discard}).Run()
	assert.ErrorIs(t, err, game.ErrInvalidConfig)
}

func TestAutoStartRestartsAfterGameEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := game.New(game.DefaultConfig(), game.WithClock(quartz.NewMock(t)), game.WithLogger(testLogger()))
	started := make(chan struct{}, 8)
	g.Subscribe(game.SubscriberFunc(func(e game.GameEvent) {
		if _, ok := e.(game.GameStartedEvent); ok {
			started <- struct{}{}
		}
	}))
	waitStarted := func() {
		t.Helper()
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("no game was started")
		}
	}

	clock := quartz.NewMock(t)
	done := make(chan error, 1)
	go func() { done <- autoStart(ctx, g, clock, 0, 30*time.Second, testLogger()) }()

	waitStarted()
	assert.Equal(t, game.PhaseJoining, g.Phase())

	require.True(t, g.StopGame())
	require.Eventually(t, func() bool {
		_, ok := clock.Peek()
		return ok
	}, 2*time.Second, 5*time.Millisecond, "pause timer armed")
	clock.Advance(30 * time.Second).MustWait(ctx)

	waitStarted()
	assert.Equal(t, game.PhaseJoining, g.Phase())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("autoStart did not return after cancel")
	}
}
