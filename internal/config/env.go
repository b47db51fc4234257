package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds the settings that may come from the environment. The chat
// password is an OAuth token and is better kept out of the file.
type Env struct {
	ChatChannel    string `env:"DIAMANT_CHAT_CHANNEL"`
	ChatNick       string `env:"DIAMANT_CHAT_NICK"`
	ChatPassword   string `env:"DIAMANT_CHAT_PASSWORD"`
	ChatEnabled    *bool  `env:"DIAMANT_CHAT_ENABLED"`
	OverlayAddress string `env:"DIAMANT_OVERLAY_ADDRESS"`
	PlayerLimit    *int   `env:"DIAMANT_PLAYER_LIMIT"`
}

// ParseEnv reads the overrides from environ, or from the process
// environment when environ is nil.
func ParseEnv(environ map[string]string) (Env, error) {
	var e Env
	if err := env.ParseWithOptions(&e, env.Options{Environment: environ}); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// applyEnv runs before applyDefaults, so a channel from the environment
// also turns chat on.
func (c *Config) applyEnv(e Env) {
	if e.ChatChannel != "" {
		c.Chat.Channel = e.ChatChannel
	}
	if e.ChatNick != "" {
		c.Chat.Nick = e.ChatNick
	}
	if e.ChatPassword != "" {
		c.Chat.Password = e.ChatPassword
	}
	if e.ChatEnabled != nil {
		c.Chat.Enabled = e.ChatEnabled
	}
	if e.OverlayAddress != "" {
		c.Overlay.Address = e.OverlayAddress
	}
	if e.PlayerLimit != nil {
		c.RulesBlock.PlayerLimit = *e.PlayerLimit
	}
}
