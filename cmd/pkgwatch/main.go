package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/daimoniac/pkgwatch/internal/config"
)

type globalOptions struct {
	Config string `long:"config" short:"c" env:"PKGWATCH_CONFIG" default:"pkgwatch.yml" description:"Settings file with defaults and maintainers"`
}

var opts globalOptions

type serveCommand struct{}

func (c *serveCommand) Execute(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return serve(ctx, opts.Config)
}

type checkCommand struct {
	Repo     string `long:"repo" description:"Restrict to one repository"`
	Refresh  bool   `long:"refresh" description:"Bypass the cache"`
	Outdated bool   `long:"outdated" description:"Only list outdated packages"`
	Args     struct {
		Identifier string `positional-arg-name:"identifier" description:"Maintainer identifier, e.g. alice@altlinux.org"`
	} `positional-args:"yes" required:"yes"`
}

func (c *checkCommand) Execute(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(opts.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	get := a.checker.GetPackages
	if c.Outdated {
		get = a.checker.GetOutdatedPackages
	}
	records, err := get(ctx, c.Args.Identifier, c.Repo, c.Refresh)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tREPOSITORY\tINSTALLED\tNEWEST\tSTATUS\tSOURCE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Name, r.Repository, r.InstalledVersion, r.EffectiveNewestVersion(), r.Status, r.Source())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	stats, err := a.checker.GetStats(ctx, c.Args.Identifier, c.Repo)
	if err != nil {
		return err
	}
	fmt.Printf("\n%d packages, %d outdated (%.1f%%)\n", stats.Total, stats.Outdated, stats.OutdatedPercentage())
	return nil
}

type pruneCommand struct {
	Retention string `long:"retention" description:"Retention window, e.g. 7d or 12h (defaults to the configured retention)"`
}

func (c *pruneCommand) Execute(args []string) error {
	a, err := newApp(opts.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	retention := a.cfg.Cache.Retention
	if c.Retention != "" {
		retention, err = config.ParseInterval(c.Retention)
		if err != nil {
			return err
		}
	}

	removed, err := a.checker.Prune(context.Background(), retention)
	if err != nil {
		return err
	}
	a.logger.Info("cache pruned",
		"removed", removed,
		"retention", retention.String())
	return nil
}

func main() {
	_ = godotenv.Load()

	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = true

	mustAdd(parser.AddCommand("serve", "Run the service",
		"Run the refresh watcher, worker pool, API and observability servers.", &serveCommand{}))
	mustAdd(parser.AddCommand("check", "Check a maintainer's packages",
		"Print a maintainer's merged package list and exit.", &checkCommand{}))
	mustAdd(parser.AddCommand("prune", "Prune the package cache",
		"Remove cached records older than the retention window.", &pruneCommand{}))

	// flags.Default prints parse and command errors itself
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}

	// no command given
	if parser.Active == nil {
		if err := (&serveCommand{}).Execute(nil); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

func mustAdd(_ *flags.Command, err error) {
	if err != nil {
		panic(err)
	}
}
