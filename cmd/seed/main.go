// Package main provides the demo data and maintenance CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/habitgraph/internal/app"
	"github.com/thebtf/habitgraph/internal/config"
)

var Version = "dev"

// Context is passed to every command.
type Context struct {
	App *app.App
	Ctx context.Context
}

// SeedCmd loads demo users, habits, goals, checkins, a friendship and diary entries.
type SeedCmd struct {
	ResetGoals bool `help:"Delete every goal and re-seed the catalog before seeding."`
}

func (c *SeedCmd) Run(ctx *Context) error {
	if c.ResetGoals {
		if err := resetGoals(ctx); err != nil {
			return err
		}
	}
	report, err := ctx.App.Core.Seed(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	log.Info().
		Int("users", report.Users).
		Int("habits", report.Habits).
		Int("checkins", report.Checkins).
		Int("diary_entries", report.DiaryEntries).
		Msg("Seed complete")
	return nil
}

// ResetGoalsCmd deletes every goal row and rebuilds the goal nodes of the graph.
type ResetGoalsCmd struct{}

func (c *ResetGoalsCmd) Run(ctx *Context) error {
	return resetGoals(ctx)
}

func resetGoals(ctx *Context) error {
	deleted, err := ctx.App.Core.ResetGoals(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("reset goals: %w", err)
	}
	log.Info().Int64("deleted", deleted).Msg("Goals reset")
	return nil
}

var CLI struct {
	Version kong.VersionFlag
	Timeout time.Duration `help:"Overall deadline." default:"2m"`

	Seed       SeedCmd       `cmd:"" help:"Load demo data. Safe to run repeatedly." default:"1"`
	ResetGoals ResetGoalsCmd `cmd:"" help:"Delete all goals and re-seed the goal catalog."`
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	kctx := kong.Parse(&CLI,
		kong.Name("habitgraph-seed"),
		kong.Description("Demo data and maintenance for habitgraph"),
		kong.UsageOnError(),
		kong.Vars{"version": Version},
	)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, cancel := context.WithTimeout(context.Background(), CLI.Timeout)
	defer cancel()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	err = kctx.Run(&Context{App: a, Ctx: ctx})
	if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
		log.Warn().Err(cerr).Msg("Store close error")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
