package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
)

type accountCmd struct {
	app *App

	create   bool
	name     string
	currency string
}

func (*accountCmd) Name() string     { return "account" }
func (*accountCmd) Synopsis() string { return "create an account to import into" }
func (*accountCmd) Usage() string {
	return `importctl account -create [-name <name>] [-currency <code>]

  Prints the new account ID.
`
}

func (c *accountCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.create, "create", false, "Create a new account.")
	f.StringVar(&c.name, "name", "Default", "Account name.")
	f.StringVar(&c.currency, "currency", "", "Account currency. Defaults to IMPORT_DEFAULT_CURRENCY.")
}

func (c *accountCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.create {
		fmt.Fprint(c.app.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	service, err := c.app.Service(ctx)
	if err != nil {
		return c.app.fail(err)
	}

	currency := strings.TrimSpace(c.currency)
	if currency == "" {
		currency = c.app.Config.Import.DefaultCurrency
	}
	account, err := service.CreateAccount(ctx, strings.TrimSpace(c.name), currency)
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintln(c.app.Stdout, account.ID)
	return subcommands.ExitSuccess
}

type migrateCmd struct {
	app *App
}

func (*migrateCmd) Name() string           { return "migrate" }
func (*migrateCmd) Synopsis() string       { return "apply the database schema" }
func (*migrateCmd) Usage() string          { return "importctl migrate\n" }
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (c *migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, err := c.app.Store(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	if err := store.Migrate(ctx); err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Stdout, "schema applied (%s)\n", c.app.Config.Store.Driver)
	return subcommands.ExitSuccess
}
