package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/portfolio-import/internal/core"
	"github.com/google/subcommands"
	"github.com/google/uuid"
)

type importCmd struct {
	app *App

	account string
	kind    string
	source  string
	dryRun  bool
	asJSON  bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import a CSV file into an account" }
func (*importCmd) Usage() string {
	return `importctl import -account <id> -kind transactions|holdings [-dry-run] [-source <tag>] [-json] <file.csv>

  Validates every row, resolves securities and commits the file in one
  transaction. Nothing is saved when any row fails or with -dry-run.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "Account ID to import into.")
	f.StringVar(&c.kind, "kind", "transactions", "Import kind: transactions or holdings.")
	f.StringVar(&c.source, "source", "csv", "Source tag stored on every imported record.")
	f.BoolVar(&c.dryRun, "dry-run", false, "Validate and resolve without saving.")
	f.BoolVar(&c.asJSON, "json", false, "Print the result as JSON.")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(c.app.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	accountID, err := uuid.Parse(c.account)
	if err != nil {
		fmt.Fprintf(c.app.Stderr, "Error: -account must be an account ID: %v\n", err)
		return subcommands.ExitUsageError
	}
	kind, err := core.ParseImportKind(c.kind)
	if err != nil {
		return c.app.fail(err)
	}

	path := f.Arg(0)
	file, err := os.Open(path)
	if err != nil {
		return c.app.fail(err)
	}
	defer file.Close()

	service, err := c.app.Service(ctx)
	if err != nil {
		return c.app.fail(err)
	}

	ctx = core.ContextWithActor(ctx, "cli:"+os.Getenv("USER"))
	result, err := service.Import(ctx, core.ImportRequest{
		AccountID: accountID,
		Kind:      kind,
		Body:      file,
		FileName:  filepath.Base(path),
		Source:    c.source,
		DryRun:    c.dryRun,
	})
	if result == nil || errors.Is(err, core.ErrAccountNotFound) {
		return c.app.fail(err)
	}

	out := result.Truncated(c.app.Config.Import.MaxWarnings, c.app.Config.Import.MaxErrors)
	if c.asJSON {
		enc := json.NewEncoder(c.app.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(out); encErr != nil {
			return c.app.fail(encErr)
		}
	} else if renderErr := c.app.render(summaryMarkdown(filepath.Base(path), out)); renderErr != nil {
		return c.app.fail(renderErr)
	}

	if err != nil || !result.Success {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// summaryMarkdown describes a result for the terminal.
func summaryMarkdown(fileName string, r *core.ImportResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Import %s: %s\n\n", r.Kind, fileName)

	switch {
	case r.Success && r.DryRun:
		b.WriteString("**Dry run passed.** Nothing was saved.\n\n")
	case r.Success:
		b.WriteString("**Import committed.**\n\n")
	case r.DryRun:
		b.WriteString("**Dry run found errors.** Nothing was saved.\n\n")
	default:
		b.WriteString("**Import failed.** Nothing was saved.\n\n")
	}

	b.WriteString("| Rows | Count |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Processed | %d |\n", r.Summary.ProcessedCount)
	fmt.Fprintf(&b, "| Succeeded | %d |\n", r.Summary.SuccessCount)
	fmt.Fprintf(&b, "| Failed | %d |\n", r.Summary.ErrorCount)
	fmt.Fprintf(&b, "| Warnings | %d |\n\n", r.Summary.WarningsCount)

	if len(r.CreatedSecurities) > 0 {
		b.WriteString("## Created securities\n\n")
		for _, s := range r.CreatedSecurities {
			fmt.Fprintf(&b, "- **%s** %s (%s, %s)\n", s.Symbol, s.Name, s.Source, s.Status)
		}
		b.WriteString("\n")
	}
	if len(r.FailedSecurities) > 0 {
		b.WriteString("## Failed securities\n\n")
		for _, s := range r.FailedSecurities {
			fmt.Fprintf(&b, "- **%s**: %s\n", s.Symbol, s.Error)
		}
		b.WriteString("\n")
	}
	bulletList(&b, "Errors", r.Errors)
	if r.HasMoreErrors {
		b.WriteString("_More errors were omitted._\n\n")
	}
	bulletList(&b, "Warnings", r.Warnings)
	return b.String()
}

func bulletList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", heading)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}
