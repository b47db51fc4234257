// Package config loads the HCL configuration file for the Diamant server.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"

	"github.com/ayyybubu/RoD/internal/game"
)

// Config represents the complete configuration file.
type Config struct {
	RulesBlock RulesConfig   `hcl:"rules,block"`
	Timers     TimersConfig  `hcl:"timers,block"`
	Chat       ChatConfig    `hcl:"chat,block"`
	Overlay    OverlayConfig `hcl:"overlay,block"`
}

// file mirrors Config with every block optional.
type file struct {
	Rules   *RulesConfig   `hcl:"rules,block"`
	Timers  *TimersConfig  `hcl:"timers,block"`
	Chat    *ChatConfig    `hcl:"chat,block"`
	Overlay *OverlayConfig `hcl:"overlay,block"`
}

// RulesConfig holds the game rules.
type RulesConfig struct {
	MaxRounds        int      `hcl:"max_rounds,optional"`
	TreasureCards    int      `hcl:"treasure_cards,optional"`
	TrapCardsPerType int      `hcl:"trap_cards_per_type,optional"`
	MinScale         float64  `hcl:"min_scale,optional"`
	MaxScale         float64  `hcl:"max_scale,optional"`
	RelicsPerRound   *int     `hcl:"relics_per_round,optional"`
	PlayerLimit      int      `hcl:"player_limit,optional"`
	SafeFirstCard    *bool    `hcl:"safe_first_card,optional"`
	Gamemaster       *bool    `hcl:"gamemaster,optional"`
	JoinCommand      string   `hcl:"join_command,optional"`
	ExitCommands     []string `hcl:"exit_commands,optional"`
}

// TimersConfig holds the pacing of a game.
type TimersConfig struct {
	JoinSeconds     int   `hcl:"join_seconds,optional"`
	DecisionSeconds int   `hcl:"decision_seconds,optional"`
	RevealDelayMs   *int  `hcl:"reveal_delay_ms,optional"`
	RoundBreakMs    *int  `hcl:"round_break_ms,optional"`
	AutoReveal      *bool `hcl:"auto_reveal,optional"`
}

// ChatConfig describes the IRC connection chat commands arrive on.
type ChatConfig struct {
	Enabled    *bool  `hcl:"enabled,optional"`
	Server     string `hcl:"server,optional"`
	Channel    string `hcl:"channel,optional"`
	Nick       string `hcl:"nick,optional"`
	Password   string `hcl:"password,optional"`
	TLS        *bool  `hcl:"tls,optional"`
	CooldownMs int    `hcl:"cooldown_ms,optional"` // per user, 0 disables
}

// OverlayConfig describes the WebSocket endpoint for browser overlays.
type OverlayConfig struct {
	Enabled *bool  `hcl:"enabled,optional"`
	Address string `hcl:"address,optional"`
}

const (
	DefaultChatServer = "irc.chat.twitch.tv:6697"
	DefaultChatNick   = "justinfan12345"
	DefaultOverlay    = ":3000"
)

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads filename and applies DIAMANT_* environment overrides. A
// missing file yields the defaults.
func Load(filename string) (*Config, error) {
	return LoadWithEnv(filename, nil)
}

// LoadWithEnv is Load with an explicit environment. A nil map reads the
// process environment.
func LoadWithEnv(filename string, environ map[string]string) (*Config, error) {
	cfg := &Config{}
	src, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if cfg, err = decode(src, filename); err != nil {
			return nil, err
		}
	}

	overrides, err := ParseEnv(environ)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv(overrides)
	cfg.applyDefaults()
	return cfg, nil
}

// Parse decodes HCL source. filename is only used in diagnostics.
func Parse(src []byte, filename string) (*Config, error) {
	cfg, err := decode(src, filename)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func decode(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var raw file
	diags = gohcl.DecodeBody(f.Body, nil, &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg := &Config{}
	if raw.Rules != nil {
		cfg.RulesBlock = *raw.Rules
	}
	if raw.Timers != nil {
		cfg.Timers = *raw.Timers
	}
	if raw.Chat != nil {
		cfg.Chat = *raw.Chat
	}
	if raw.Overlay != nil {
		cfg.Overlay = *raw.Overlay
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := game.DefaultConfig()

	r := &c.RulesBlock
	if r.MaxRounds == 0 {
		r.MaxRounds = d.MaxRounds
	}
	if r.TreasureCards == 0 {
		r.TreasureCards = d.TreasureCards
	}
	if r.TrapCardsPerType == 0 {
		r.TrapCardsPerType = d.TrapCardsPerType
	}
	if r.MinScale == 0 {
		r.MinScale = d.MinScale
	}
	if r.MaxScale == 0 {
		r.MaxScale = d.MaxScale
	}
	if r.RelicsPerRound == nil {
		r.RelicsPerRound = ptr(d.RelicsPerRound)
	}
	if r.SafeFirstCard == nil {
		r.SafeFirstCard = ptr(d.SafeFirstCard)
	}
	if r.Gamemaster == nil {
		r.Gamemaster = ptr(d.Gamemaster)
	}
	if r.JoinCommand == "" {
		r.JoinCommand = d.JoinCommand
	}
	if len(r.ExitCommands) == 0 {
		r.ExitCommands = d.ExitCommands
	}

	t := &c.Timers
	if t.JoinSeconds == 0 {
		t.JoinSeconds = int(d.JoinWindow / time.Second)
	}
	if t.DecisionSeconds == 0 {
		t.DecisionSeconds = int(d.DecisionWindow / time.Second)
	}
	if t.RevealDelayMs == nil {
		t.RevealDelayMs = ptr(int(d.RevealDelay / time.Millisecond))
	}
	if t.RoundBreakMs == nil {
		t.RoundBreakMs = ptr(int(d.RoundBreak / time.Millisecond))
	}
	if t.AutoReveal == nil {
		t.AutoReveal = ptr(d.AutoReveal)
	}

	if c.Chat.Server == "" {
		c.Chat.Server = DefaultChatServer
	}
	if c.Chat.Nick == "" {
		c.Chat.Nick = DefaultChatNick
	}
	if c.Chat.TLS == nil {
		c.Chat.TLS = ptr(true)
	}
	if c.Chat.Channel != "" && !strings.HasPrefix(c.Chat.Channel, "#") {
		c.Chat.Channel = "#" + c.Chat.Channel
	}
	c.Chat.Channel = strings.ToLower(c.Chat.Channel)
	if c.Chat.Enabled == nil {
		c.Chat.Enabled = ptr(c.Chat.Channel != "")
	}

	if c.Overlay.Enabled == nil {
		c.Overlay.Enabled = ptr(true)
	}
	if c.Overlay.Address == "" {
		c.Overlay.Address = DefaultOverlay
	}
}

// Rules converts the file settings into the engine's configuration.
func (c *Config) Rules() game.Config {
	return game.Config{
		MaxRounds:        c.RulesBlock.MaxRounds,
		TreasureCards:    c.RulesBlock.TreasureCards,
		TrapCardsPerType: c.RulesBlock.TrapCardsPerType,
		MinScale:         c.RulesBlock.MinScale,
		MaxScale:         c.RulesBlock.MaxScale,
		RelicsPerRound:   deref(c.RulesBlock.RelicsPerRound),
		SafeFirstCard:    deref(c.RulesBlock.SafeFirstCard),
		Gamemaster:       deref(c.RulesBlock.Gamemaster),
		PlayerLimit:      c.RulesBlock.PlayerLimit,
		JoinWindow:       time.Duration(c.Timers.JoinSeconds) * time.Second,
		DecisionWindow:   time.Duration(c.Timers.DecisionSeconds) * time.Second,
		AutoReveal:       deref(c.Timers.AutoReveal),
		RevealDelay:      time.Duration(deref(c.Timers.RevealDelayMs)) * time.Millisecond,
		RoundBreak:       time.Duration(deref(c.Timers.RoundBreakMs)) * time.Millisecond,
		JoinCommand:      c.RulesBlock.JoinCommand,
		ExitCommands:     append([]string(nil), c.RulesBlock.ExitCommands...),
	}
}

// Validate validates the configuration. Rule errors wrap game.ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := c.Rules().Validate(); err != nil {
		return err
	}
	if c.ChatEnabled() {
		if c.Chat.Channel == "" {
			return fmt.Errorf("%w: chat channel is required when chat is enabled", game.ErrInvalidConfig)
		}
		if !strings.Contains(c.Chat.Server, ":") {
			return fmt.Errorf("%w: chat server %q needs a port", game.ErrInvalidConfig, c.Chat.Server)
		}
	}
	return nil
}

// Write renders the configuration as HCL.
func (c *Config) Write(w io.Writer) error {
	f := hclwrite.NewEmptyFile()
	gohcl.EncodeIntoBody(c, f.Body())
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ChatEnabled reports whether the IRC transport should run.
func (c *Config) ChatEnabled() bool { return deref(c.Chat.Enabled) }

// OverlayEnabled reports whether the overlay server should run.
func (c *Config) OverlayEnabled() bool { return deref(c.Overlay.Enabled) }

func ptr[T any](v T) *T { return &v }

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
