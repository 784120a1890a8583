package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/JonMunkholm/portfolio-import/internal/core"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type templateCmd struct {
	app *App

	kind string
	info bool
}

func (*templateCmd) Name() string     { return "template" }
func (*templateCmd) Synopsis() string { return "print the CSV template of an import kind" }
func (*templateCmd) Usage() string {
	return `importctl template -kind transactions|holdings [-info] > template.csv

  Prints the header and example rows. With -info, describes the columns instead.
`
}

func (c *templateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "kind", "transactions", "Import kind: transactions or holdings.")
	f.BoolVar(&c.info, "info", false, "Describe the columns and rules instead of printing the CSV.")
}

func (c *templateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	kind, err := core.ParseImportKind(c.kind)
	if err != nil {
		return c.app.fail(err)
	}

	if c.info {
		info, err := core.DescribeKind(kind)
		if err != nil {
			return c.app.fail(err)
		}
		if err := c.app.render(templateInfoMarkdown(info)); err != nil {
			return c.app.fail(err)
		}
		return subcommands.ExitSuccess
	}

	body, err := core.TemplateCSV(kind)
	if err != nil {
		return c.app.fail(err)
	}
	if _, err := c.app.Stdout.Write(body); err != nil {
		return c.app.fail(err)
	}
	return subcommands.ExitSuccess
}

func templateInfoMarkdown(info core.TemplateInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n\n", info.Kind, info.Description)
	fmt.Fprintf(&b, "**Required:** %s\n\n", strings.Join(info.RequiredColumns, ", "))
	fmt.Fprintf(&b, "**Optional:** %s\n\n", strings.Join(info.OptionalColumns, ", "))
	if len(info.TransactionTypes) > 0 {
		fmt.Fprintf(&b, "**Transaction types:** %s\n\n", strings.Join(info.TransactionTypes, ", "))
	}
	fmt.Fprintf(&b, "**Date formats:** %s\n\n", strings.Join(info.DateFormats, ", "))
	bulletList(&b, "Notes", info.Notes)
	return b.String()
}

type formatsCmd struct {
	app *App
}

func (*formatsCmd) Name() string           { return "formats" }
func (*formatsCmd) Synopsis() string       { return "list supported kinds, transaction types and currencies" }
func (*formatsCmd) Usage() string          { return "importctl formats\n" }
func (*formatsCmd) SetFlags(*flag.FlagSet) {}

func (c *formatsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.render(formatsMarkdown(core.Formats())); err != nil {
		return c.app.fail(err)
	}
	return subcommands.ExitSuccess
}

var sampleAmount = decimal.RequireFromString("1234.5")

func formatsMarkdown(f core.SupportedFormats) string {
	var b strings.Builder
	b.WriteString("# Supported formats\n\n")
	kinds := make([]string, len(f.Kinds))
	for i, k := range f.Kinds {
		kinds[i] = string(k)
	}
	fmt.Fprintf(&b, "**Import kinds:** %s\n\n", strings.Join(kinds, ", "))
	fmt.Fprintf(&b, "**Transaction types:** %s\n\n", strings.Join(f.TransactionTypes, ", "))

	b.WriteString("| Currency | Symbol | Example |\n|---|---|---:|\n")
	for _, cur := range f.Currencies {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", cur.Code, cur.Symbol, core.FormatAmount(sampleAmount, cur.Code))
	}
	return b.String()
}
