package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

var version = "dev"

func main() {
	app := cli.App{
		Name:      "gabay",
		HelpName:  "gabay",
		Usage:     "A reminder assistant that fires scheduled messages and actions.",
		Version:   version,
		UsageText: "gabay [--env-file FILE] <command>",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "env-file",
				Usage: "load settings from `FILE` before reading the environment",
				Value: ".env",
			},
		},
		Commands: []cli.Command{
			{
				Name:   "run",
				Usage:  "run the bot, the poller, the heartbeat and the HTTP API",
				Action: runCmd,
			},
			{
				Name:   "migrate",
				Usage:  "apply schema migrations and exit",
				Action: migrateCmd,
			},
			{
				Name:   "tick",
				Usage:  "claim and dispatch every due reminder once, then exit",
				Action: tickCmd,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
