package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/ayyybubu/RoD/internal/chat"
	"github.com/ayyybubu/RoD/internal/config"
	"github.com/ayyybubu/RoD/internal/game"
	"github.com/ayyybubu/RoD/internal/overlay"
	"github.com/ayyybubu/RoD/internal/randutil"
	"github.com/ayyybubu/RoD/internal/tui"
)

// ServeCmd runs one table: chat in, overlay and dashboard out.
type ServeCmd struct {
	Config      string        `kong:"short='c',default='diamant.hcl',type='path',help='HCL configuration file (defaults when missing)'"`
	MaxRounds   *int          `kong:"help='Rounds per game, overrides the config file'"`
	PlayerLimit *int          `kong:"help='Chat players per game (0 = unlimited), overrides the config file'"`
	Seed        *int64        `kong:"help='Deterministic RNG seed (optional)'"`
	Headless    bool          `kong:"help='Run without the terminal dashboard'"`
	AutoStart   bool          `kong:"help='Start a game right away and another after each one ends'"`
	RestartWait time.Duration `kong:"default='30s',help='Pause between games with --auto-start'"`
	NoColor     bool          `kong:"help='Disable colour in the dashboard'"`
	LogFile     string        `kong:"default='diamant.log',type='path',help='Log file while the dashboard owns the terminal'"`
}

func (c *ServeCmd) Run(globals *Globals) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if c.MaxRounds != nil {
		cfg.RulesBlock.MaxRounds = *c.MaxRounds
	}
	if c.PlayerLimit != nil {
		cfg.RulesBlock.PlayerLimit = *c.PlayerLimit
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The dashboard owns the terminal, so logs go to a file.
	var out io.Writer = os.Stderr
	if !c.Headless {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		out = f
	}
	logger := newLogger(out, globals)

	rng, seed := randutil.FromOptional(c.Seed, time.Now())
	rules := cfg.Rules()
	g := game.New(rules, game.WithLogger(logger), game.WithRand(rng))

	logger.Info("Starting Diamant",
		"seed", seed,
		"max_rounds", rules.MaxRounds,
		"player_limit", rules.PlayerLimit,
		"join_window", rules.JoinWindow,
		"decision_window", rules.DecisionWindow,
		"chat", cfg.ChatEnabled(),
		"overlay", cfg.OverlayEnabled(),
		"dashboard", !c.Headless,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)

	if cfg.OverlayEnabled() {
		hub := overlay.NewHub(cfg.Overlay.Address, g, logger)
		g.Subscribe(hub)
		eg.Go(func() error { return hub.Serve(ctx) })
	}

	if cfg.ChatEnabled() {
		client := chat.New(chat.Options{
			Server:   cfg.Chat.Server,
			Channel:  cfg.Chat.Channel,
			Nick:     cfg.Chat.Nick,
			Password: cfg.Chat.Password,
			TLS:      cfg.Chat.TLS != nil && *cfg.Chat.TLS,
			Cooldown: time.Duration(cfg.Chat.CooldownMs) * time.Millisecond,
			Logger:   logger,
		}, g)
		eg.Go(func() error { return client.Run(ctx) })
	}

	if c.AutoStart {
		eg.Go(func() error {
			return autoStart(ctx, g, quartz.NewReal(), rules.PlayerLimit, c.RestartWait, logger)
		})
	}

	if c.Headless {
		eg.Go(func() error {
			<-ctx.Done()
			logger.Info("Shutting down")
			return nil
		})
	} else {
		tui.SetColor(!c.NoColor)
		dash := tui.NewDashboard(g, rules.PlayerLimit, logger)
		g.Subscribe(dash)
		program := tea.NewProgram(dash, tea.WithAltScreen())
		eg.Go(func() error {
			// Quitting the dashboard shuts the whole table down.
			defer cancel()
			_, err := program.Run()
			return err
		})
		eg.Go(func() error {
			<-ctx.Done()
			dash.Quit()
			return nil
		})
	}

	err = eg.Wait()
	g.StopGame()
	logger.Info("Diamant stopped")
	return err
}

// autoStart keeps a game running: it starts one, waits for it to end or be
// called off, pauses, and starts the next.
func autoStart(ctx context.Context, g *game.Game, clock quartz.Clock, playerLimit int, pause time.Duration, logger *log.Logger) error {
	logger = logger.WithPrefix("autostart")

	over := make(chan struct{}, 1)
	g.Subscribe(game.SubscriberFunc(func(e game.GameEvent) {
		switch e.(type) {
		case game.GameEndedEvent, game.GameAbortedEvent:
			select {
			case over <- struct{}{}:
			default:
			}
		}
	}))

	for {
		if !g.StartGame(playerLimit) {
			logger.Debug("Game already running")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-over:
		}

		logger.Info("Next game soon", "pause", pause)
		timer := clock.NewTimer(pause, "autostart")
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
