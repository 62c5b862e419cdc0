package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/quotedesk/quotedesk/cmd/quotedesk/cli"
	"github.com/quotedesk/quotedesk/internal/app"
	"github.com/quotedesk/quotedesk/jobs"
)

// runJobsCommand implements `quotedesk jobs <regenerate|stats>`.
func runJobsCommand(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: quotedesk jobs <regenerate|stats> [flags]")
		return 2
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}
	redisOpts := cfg.RedisOptions().AsynqOpt()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "regenerate":
		fs := flag.NewFlagSet("regenerate", flag.ContinueOnError)
		quotationID := fs.Int64("quotation", 0, "quotation id to re-render")
		actorID := fs.Int64("actor", 0, "staff id recorded as document author")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		client, err := jobs.NewClient(redisOpts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs client: %v\n", err)
			return 1
		}
		defer client.Close()
		return cli.NewJobsCLI(client, nil).RegenerateCommand(ctx, cli.RegenerateOptions{
			QuotationID: *quotationID,
			ActorID:     *actorID,
			Stdout:      os.Stdout,
			Stderr:      os.Stderr,
		})
	case "stats":
		fs := flag.NewFlagSet("stats", flag.ContinueOnError)
		asJSON := fs.Bool("json", false, "print JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		inspector := asynq.NewInspector(redisOpts)
		defer inspector.Close()
		return cli.NewJobsCLI(nil, inspector).StatsCommand(cli.StatsOptions{
			JSONOutput: *asJSON,
			Stdout:     os.Stdout,
			Stderr:     os.Stderr,
		})
	default:
		fmt.Fprintf(os.Stderr, "unknown jobs command %q\n", args[0])
		return 2
	}
}
