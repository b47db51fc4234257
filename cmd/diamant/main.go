package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

// Globals are the flags every command accepts.
type Globals struct {
	Debug     bool   `kong:"help='Enable debug logging'"`
	LogFormat string `kong:"default='text',enum='text,json,logfmt',help='Log output format (text, json, logfmt)'"`
}

type CLI struct {
	Globals

	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Serve    ServeCmd         `cmd:"" help:"Run a game for a chat channel"`
	Simulate SimulateCmd      `cmd:"" help:"Play bot games offline and compare exit strategies"`
	Config   ConfigCmd        `cmd:"" help:"Print or check configuration files"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("diamant"),
		kong.Description("Push-your-luck cave game played through chat"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
