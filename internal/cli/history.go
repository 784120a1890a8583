package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/portfolio-import/internal/core"
	"github.com/google/subcommands"
	"github.com/google/uuid"
)

type historyCmd struct {
	app *App

	account string
	limit   int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list recent imports of an account" }
func (*historyCmd) Usage() string {
	return `importctl history -account <id> [-limit <n>]
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "Account ID.")
	f.IntVar(&c.limit, "limit", 20, "Maximum number of imports to list (1-100).")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	accountID, err := uuid.Parse(c.account)
	if err != nil {
		fmt.Fprintf(c.app.Stderr, "Error: -account must be an account ID: %v\n", err)
		return subcommands.ExitUsageError
	}
	service, err := c.app.Service(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	runs, err := service.History(ctx, accountID, c.limit)
	if err != nil {
		return c.app.fail(err)
	}
	if err := c.app.render(historyMarkdown(runs)); err != nil {
		return c.app.fail(err)
	}
	return subcommands.ExitSuccess
}

func historyMarkdown(runs []core.ImportRun) string {
	if len(runs) == 0 {
		return "No imports yet.\n"
	}
	var b strings.Builder
	b.WriteString("| Started | Kind | File | Status | Processed | Succeeded | Failed |\n")
	b.WriteString("|---|---|---|---|---:|---:|---:|\n")
	for _, r := range runs {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d | %d | %d |\n",
			r.StartedAt.Local().Format(time.DateTime), r.Kind, r.FileName, r.Status,
			r.Processed, r.Succeeded, r.Failed)
	}
	return b.String()
}
