// Command importctl imports portfolio CSV files from the command line.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"

	"github.com/JonMunkholm/portfolio-import/internal/cli"
	"github.com/google/subcommands"
	"github.com/joho/godotenv"
)

func main() {
	// Answers shell completion requests and exits; a no-op otherwise.
	cli.Completion().Complete("importctl")

	// Unlike the server, the CLI keeps variables already set in the shell.
	_ = godotenv.Load()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	app := cli.New()
	app.Register(commander)

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	status := commander.Execute(ctx)
	stop()

	if err := app.Close(); err != nil && status == subcommands.ExitSuccess {
		status = subcommands.ExitFailure
	}
	os.Exit(int(status))
}
