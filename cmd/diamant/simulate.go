package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ayyybubu/RoD/internal/config"
	"github.com/ayyybubu/RoD/internal/simulator"
)

// SimulateCmd plays bot games without chat or timers.
type SimulateCmd struct {
	Config     string        `kong:"short='c',type='path',help='HCL file to take the rules from (defaults when empty)'"`
	Games      int           `kong:"default='1000',help='Number of games to simulate'"`
	Players    int           `kong:"default='4',help='Bots per game'"`
	Strategies []string      `kong:"default='cautious,greedy,danger,random,reckless',help='Exit strategies, assigned to seats in rotation'"`
	MaxRounds  *int          `kong:"help='Rounds per game, overrides the config file'"`
	Seed       int64         `kong:"default='0',help='Base RNG seed (0 for random)'"`
	Workers    int           `kong:"default='0',help='Games played in parallel (0 = one per CPU)'"`
	Timeout    time.Duration `kong:"default='10s',help='Give up on a single game after this long'"`
	Output     string        `kong:"short='o',type='path',help='Write the JSON report to this file'"`
}

func (c *SimulateCmd) Run(globals *Globals) error {
	logger := newLogger(os.Stderr, globals)

	cfg := config.Default()
	if c.Config != "" {
		loaded, err := config.Load(c.Config)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if c.MaxRounds != nil {
		cfg.RulesBlock.MaxRounds = *c.MaxRounds
	}

	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := simulator.Run(ctx, simulator.Config{
		Games:      c.Games,
		Players:    c.Players,
		Strategies: c.Strategies,
		Seed:       seed,
		Rules:      cfg.Rules(),
		Timeout:    c.Timeout,
		Workers:    c.Workers,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	simulator.PrintSummary(os.Stdout, report)
	if c.Output != "" {
		if err := report.WriteJSON(c.Output); err != nil {
			return err
		}
		logger.Info("Report written", "path", c.Output)
	}
	return nil
}
