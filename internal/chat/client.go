// Package chat connects the game to an IRC channel. Twitch chat speaks IRC,
// so the same client serves a stream chat and a plain IRC network.
package chat

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	irc "github.com/thoj/go-ircevent"

	"github.com/ayyybubu/RoD/internal/game"
)

// CommandHandler receives chat lines. *game.Game implements it.
type CommandHandler interface {
	HandleCommand(user, message string) game.CommandResult
}

// Options configures a Client.
type Options struct {
	Server   string // host:port
	Channel  string // "#channel"
	Nick     string
	Password string
	TLS      bool
	Cooldown time.Duration // minimum gap between two commands from one user
	Logger   *log.Logger
	Clock    quartz.Clock
}

// Client relays channel messages to a CommandHandler.
type Client struct {
	opts    Options
	handler CommandHandler
	logger  *log.Logger
	clock   quartz.Clock

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// New creates a client. Nothing is dialled until Run.
func New(opts Options, handler CommandHandler) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Client{
		opts:     opts,
		handler:  handler,
		logger:   logger.WithPrefix("chat"),
		clock:    clock,
		lastSeen: make(map[string]time.Time),
	}
}

// Run connects, joins the channel and relays messages until ctx is done.
// The IRC library reconnects on its own after network errors.
func (c *Client) Run(ctx context.Context) error {
	conn := irc.IRC(c.opts.Nick, c.opts.Nick)
	conn.Password = c.opts.Password
	conn.UseTLS = c.opts.TLS
	if c.opts.TLS {
		host, _, err := net.SplitHostPort(c.opts.Server)
		if err != nil {
			return fmt.Errorf("chat server %q: %w", c.opts.Server, err)
		}
		conn.TLSConfig = &tls.Config{ServerName: host}
	}
	// display-name keeps the capitalisation the viewer chose.
	conn.RequestCaps = []string{"twitch.tv/tags"}
	conn.QuitMessage = "Diamant is closing"
	conn.Log = c.logger.StandardLog(log.StandardLogOptions{ForceLevel: log.DebugLevel})

	conn.AddCallback("001", func(*irc.Event) {
		c.logger.Info("Connected, joining channel", "server", c.opts.Server, "channel", c.opts.Channel)
		conn.Join(c.opts.Channel)
	})
	conn.AddCallback("JOIN", func(e *irc.Event) {
		if strings.EqualFold(e.Nick, c.opts.Nick) {
			c.logger.Info("Joined channel", "channel", e.Arguments[0])
		}
	})
	conn.AddCallback("PRIVMSG", func(e *irc.Event) { c.onMessage(e) })

	if err := conn.Connect(c.opts.Server); err != nil {
		return fmt.Errorf("failed to connect to chat server: %w", err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.logger.Info("Leaving chat")
			conn.Quit()
		case <-done:
		}
	}()

	conn.Loop()
	close(done)
	return nil
}

func (c *Client) onMessage(e *irc.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Recovered from panic in message handler", "error", r)
		}
	}()

	if len(e.Arguments) == 0 || !strings.EqualFold(e.Arguments[0], c.opts.Channel) {
		return
	}
	user := displayName(e)
	if user == "" || !c.allow(user) {
		return
	}

	res := c.handler.HandleCommand(user, e.Message())
	if res.Applied() {
		c.logger.Debug("Command applied", "user", user, "outcome", res.Outcome)
	}
}

// allow enforces the per-user cooldown. Plain chatter counts too.
func (c *Client) allow(user string) bool {
	if c.opts.Cooldown <= 0 {
		return true
	}
	key := strings.ToLower(user)
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.lastSeen[key]; ok && now.Sub(last) < c.opts.Cooldown {
		c.logger.Warn("Dropping message, user on cooldown", "user", user)
		return false
	}
	c.lastSeen[key] = now
	return true
}

func displayName(e *irc.Event) string {
	if name := strings.TrimSpace(e.Tags["display-name"]); name != "" {
		return name
	}
	return e.Nick
}
