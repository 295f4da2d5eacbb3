package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/bobmcallan/holdfast/internal/models"
)

type concentrationCmd struct {
	positions string
	account   string
	top       int
	json      bool
}

func (*concentrationCmd) Name() string     { return "concentration" }
func (*concentrationCmd) Synopsis() string { return "aggregate position exposure by ultimate underlying" }
func (*concentrationCmd) Usage() string {
	return `holdfast concentration (-positions <file.json> | -account <account>) [-top N] [-json]

  Resolves every position through the exposure_mappings config and sums
  market value times factor per ultimate underlying. Positions come from
  a JSON file (a list, or {"positions": [...]}) or the brokerage.
`
}

func (c *concentrationCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.positions, "positions", "", "JSON file of positions")
	f.StringVar(&c.account, "account", "", "fetch positions for this brokerage account")
	f.IntVar(&c.top, "top", 0, "show only the N largest exposures")
	f.BoolVar(&c.json, "json", false, "print JSON")
}

func (c *concentrationCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if (c.positions == "") == (c.account == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -positions or -account is required")
		return subcommands.ExitUsageError
	}
	a, ok := loadApp()
	if !ok {
		return subcommands.ExitFailure
	}
	defer a.Close()

	var positions []models.Position
	var err error
	if c.positions != "" {
		positions, err = readPositions(c.positions)
	} else {
		positions, err = a.Positions.GetPositions(ctx, c.account)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	items := a.ConcentrationService.CalculateConcentrations(positions, c.top)
	if c.json {
		writeJSON(os.Stdout, items)
		return subcommands.ExitSuccess
	}
	renderConcentrations(os.Stdout, items)
	return subcommands.ExitSuccess
}

// readPositions loads positions from a JSON list or a {"positions": [...]} object.
func readPositions(path string) ([]models.Position, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	var list []models.Position
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Positions []models.Position `json:"positions"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse positions %s: %w", path, err)
	}
	return wrapped.Positions, nil
}

type chainCmd struct {
	json bool
}

func (*chainCmd) Name() string     { return "chain" }
func (*chainCmd) Synopsis() string { return "show how symbols map to their underlyings" }
func (*chainCmd) Usage() string {
	return `holdfast chain [-json] <symbol>...
`
}

func (c *chainCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.json, "json", false, "print JSON")
}

func (c *chainCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "at least one symbol is required")
		return subcommands.ExitUsageError
	}
	a, ok := loadApp()
	if !ok {
		return subcommands.ExitFailure
	}
	defer a.Close()

	result := map[string][][]models.ChainLink{}
	for _, symbol := range f.Args() {
		chains := a.ConcentrationService.GetExposureChain(symbol)
		if c.json {
			result[symbol] = chains
			continue
		}
		renderChains(os.Stdout, symbol, chains, a.ConcentrationService.Resolve(symbol))
	}
	if c.json {
		writeJSON(os.Stdout, result)
	}
	return subcommands.ExitSuccess
}
