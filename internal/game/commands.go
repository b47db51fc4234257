package game

import (
	"slices"
	"strings"
)

// CommandOutcome is what a chat command did.
type CommandOutcome uint8

const (
	CommandIgnored CommandOutcome = iota
	CommandJoined
	CommandExitQueued
)

func (o CommandOutcome) String() string {
	switch o {
	case CommandJoined:
		return "joined"
	case CommandExitQueued:
		return "exit_queued"
	default:
		return "ignored"
	}
}

// IgnoreReason explains why a command was a no-op.
type IgnoreReason string

const (
	ReasonNone           IgnoreReason = ""
	ReasonNotACommand    IgnoreReason = "not_a_command"
	ReasonEmptyUser      IgnoreReason = "empty_user"
	ReasonWrongPhase     IgnoreReason = "wrong_phase"
	ReasonAlreadyJoined  IgnoreReason = "already_joined"
	ReasonPlayerLimit    IgnoreReason = "player_limit"
	ReasonReservedName   IgnoreReason = "reserved_name"
	ReasonUnknownPlayer  IgnoreReason = "unknown_player"
	ReasonNotInCave      IgnoreReason = "not_in_cave"
	ReasonAlreadyDecided IgnoreReason = "already_decided"
)

// CommandResult reports the effect of HandleCommand. It is informational
// only; invalid commands are never errors.
type CommandResult struct {
	Outcome CommandOutcome
	Reason  IgnoreReason
}

// Applied reports whether the command changed game state.
func (r CommandResult) Applied() bool {
	return r.Outcome != CommandIgnored
}

func ignored(reason IgnoreReason) CommandResult {
	return CommandResult{Outcome: CommandIgnored, Reason: reason}
}

// HandleCommand applies a chat message from user. It is the only way chat
// input reaches the game. Only the first word of the message is considered
// and matching is case-insensitive.
func (g *Game) HandleCommand(user, message string) CommandResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	res := g.handleCommand(strings.TrimSpace(user), message)
	if res.Applied() {
		g.logger.Debug("Command applied", "user", user, "outcome", res.Outcome)
	} else if res.Reason != ReasonNotACommand {
		g.logger.Debug("Command ignored", "user", user, "reason", res.Reason, "phase", g.phase)
	}
	return res
}

func (g *Game) handleCommand(user, message string) CommandResult {
	fields := strings.Fields(message)
	if len(fields) == 0 {
		return ignored(ReasonNotACommand)
	}
	cmd := strings.ToLower(fields[0])

	switch {
	case cmd == strings.ToLower(g.cfg.JoinCommand):
		if user == "" {
			return ignored(ReasonEmptyUser)
		}
		return g.join(user)
	case slices.ContainsFunc(g.cfg.ExitCommands, func(c string) bool { return strings.EqualFold(c, cmd) }):
		if user == "" {
			return ignored(ReasonEmptyUser)
		}
		return g.queueExit(user)
	default:
		return ignored(ReasonNotACommand)
	}
}

func (g *Game) join(user string) CommandResult {
	if g.phase != PhaseJoining {
		return ignored(ReasonWrongPhase)
	}
	if playerKey(user) == playerKey(GamemasterID) {
		return ignored(ReasonReservedName)
	}
	if _, ok := g.byKey[playerKey(user)]; ok {
		return ignored(ReasonAlreadyJoined)
	}
	if g.playerLimit > 0 && g.chatPlayers() >= g.playerLimit {
		return ignored(ReasonPlayerLimit)
	}
	g.register(user, false)
	return CommandResult{Outcome: CommandJoined}
}

func (g *Game) queueExit(user string) CommandResult {
	if g.phase != PhaseDeciding {
		return ignored(ReasonWrongPhase)
	}
	p, ok := g.byKey[playerKey(user)]
	if !ok || p.Gamemaster {
		return ignored(ReasonUnknownPlayer)
	}
	if !p.InCave {
		return ignored(ReasonNotInCave)
	}
	if !g.round.queueExit(p) {
		return ignored(ReasonAlreadyDecided)
	}
	g.publish(PlayersUpdatedEvent{Header: g.header(), Players: viewsOf(g.players)})
	g.narrate("%s decides to leave the cave!", Escape(p.ID))
	return CommandResult{Outcome: CommandExitQueued}
}
