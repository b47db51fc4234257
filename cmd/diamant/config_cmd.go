package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ayyybubu/RoD/internal/config"
)

type ConfigCmd struct {
	Print PrintConfigCmd `cmd:"" help:"Print a configuration with every default filled in"`
	Check CheckConfigCmd `cmd:"" help:"Validate a configuration file"`
}

type PrintConfigCmd struct {
	File string `arg:"" optional:"" type:"path" help:"Configuration file to complete (defaults when omitted)"`

	out io.Writer `kong:"-"`
}

func (c *PrintConfigCmd) Run() error {
	cfg := config.Default()
	if c.File != "" {
		loaded, err := config.Load(c.File)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	return cfg.Write(writerOr(c.out, os.Stdout))
}

type CheckConfigCmd struct {
	File string `arg:"" type:"existingfile" help:"Configuration file to validate"`

	out io.Writer `kong:"-"`
}

func (c *CheckConfigCmd) Run() error {
	cfg, err := config.Load(c.File)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	rules := cfg.Rules()
	fmt.Fprintf(writerOr(c.out, os.Stdout), "%s: ok (%d rounds, chat %v, overlay %v)\n",
		c.File, rules.MaxRounds, cfg.ChatEnabled(), cfg.OverlayEnabled())
	return nil
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}
