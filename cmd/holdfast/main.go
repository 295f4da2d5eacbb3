package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"

	"github.com/bobmcallan/holdfast/internal/app"
)

// configPath is the global -config flag shared by every subcommand.
var configPath string

// commands lists every subcommand in registration order.
var commands = []subcommands.Command{
	&transactionsCmd{},
	&summaryCmd{},
	&cashflowCmd{},
	&concentrationCmd{},
	&chainCmd{},
	&clearCacheCmd{},
	&serveCmd{},
	&versionCmd{},
}

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "")
	}

	flag.StringVar(&configPath, "config", "", "path to the TOML or YAML config file")
	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// loadApp initializes the app from the global config flag, reporting
// failures on stderr.
func loadApp() (*app.App, bool) {
	a, err := app.NewApp(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		return nil, false
	}
	return a, true
}

// accountArg returns the single positional account argument.
func accountArg(f *flag.FlagSet) (string, bool) {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "exactly one account id is required")
		return "", false
	}
	return f.Arg(0), true
}
