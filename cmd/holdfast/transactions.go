package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type transactionsCmd struct {
	days    int
	refresh bool
	json    bool
}

func (*transactionsCmd) Name() string     { return "transactions" }
func (*transactionsCmd) Synopsis() string { return "list an account's cached transactions" }
func (*transactionsCmd) Usage() string {
	return `holdfast transactions [-days N] [-refresh] [-json] <account>

  Lists the account's transactions from the last N days, newest first.
  The local cache is reconciled with the brokerage first; -refresh
  re-fetches the whole window.
`
}

func (c *transactionsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "days", 0, "days of history (defaults to transactions.default_days_back)")
	f.BoolVar(&c.refresh, "refresh", false, "re-fetch the full window from the brokerage")
	f.BoolVar(&c.json, "json", false, "print JSON instead of a table")
}

func (c *transactionsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	account, ok := accountArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}
	a, ok := loadApp()
	if !ok {
		return subcommands.ExitFailure
	}
	defer a.Close()

	txs, err := a.TransactionService.GetTransactions(ctx, account, a.DaysBack(c.days), c.refresh)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if c.json {
		if err := writeJSON(os.Stdout, txs); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	renderTransactions(os.Stdout, txs)
	return subcommands.ExitSuccess
}

type summaryCmd struct {
	days int
	json bool
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "summarize an account's transactions by type" }
func (*summaryCmd) Usage() string {
	return `holdfast summary [-days N] [-json] <account>
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "days", 0, "days of history (defaults to transactions.default_days_back)")
	f.BoolVar(&c.json, "json", false, "print JSON")
}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	account, ok := accountArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}
	a, ok := loadApp()
	if !ok {
		return subcommands.ExitFailure
	}
	defer a.Close()

	summary, err := a.TransactionService.GetTransactionSummary(ctx, account, a.DaysBack(c.days))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if c.json {
		writeJSON(os.Stdout, summary)
		return subcommands.ExitSuccess
	}
	renderSummary(os.Stdout, summary)
	return subcommands.ExitSuccess
}

type cashflowCmd struct {
	days int
	json bool
}

func (*cashflowCmd) Name() string     { return "cashflow" }
func (*cashflowCmd) Synopsis() string { return "show daily external cash flow" }
func (*cashflowCmd) Usage() string {
	return `holdfast cashflow [-days N] [-json] <account>

  Shows deposits, withdrawals, dividends, interest and fees per day.
  Trades and internal transfers are ignored.
`
}

func (c *cashflowCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "days", 0, "days of history (defaults to transactions.default_days_back)")
	f.BoolVar(&c.json, "json", false, "print JSON")
}

func (c *cashflowCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	account, ok := accountArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}
	a, ok := loadApp()
	if !ok {
		return subcommands.ExitFailure
	}
	defer a.Close()

	history, err := a.CashFlowService.GetCashFlowHistory(ctx, account, a.DaysBack(c.days))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if c.json {
		writeJSON(os.Stdout, history)
		return subcommands.ExitSuccess
	}
	renderCashFlow(os.Stdout, history)
	return subcommands.ExitSuccess
}

type clearCacheCmd struct {
	all bool
}

func (*clearCacheCmd) Name() string     { return "clear-cache" }
func (*clearCacheCmd) Synopsis() string { return "delete cached transactions" }
func (*clearCacheCmd) Usage() string {
	return `holdfast clear-cache <account> | holdfast clear-cache -all
`
}

func (c *clearCacheCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.all, "all", false, "delete every account's cache")
}

func (c *clearCacheCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	account := ""
	if !c.all {
		var ok bool
		if account, ok = accountArg(f); !ok {
			return subcommands.ExitUsageError
		}
	}
	a, ok := loadApp()
	if !ok {
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := a.TransactionService.ClearCache(ctx, account); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Println("Cache cleared")
	return subcommands.ExitSuccess
}
