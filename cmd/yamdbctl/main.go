// Command yamdbctl performs maintenance tasks against a YaMDb deployment:
// schema migration, CSV imports and title lookups over gRPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/goccy/go-json"

	"yamdb/internal/clients"
	"yamdb/internal/config"
	"yamdb/internal/importer"
	"yamdb/internal/logging"
	"yamdb/internal/store"
)

const usage = `usage: yamdbctl <command> [arguments]

commands:
  migrate                  create or update the database schema
  import <model> <file>    load a CSV file into the model's table
  import-dir <dir>         load every known CSV file found in dir
  rating [-addr host:port] <title_id>
                           print a title with its rating via gRPC
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "yamdbctl: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: "console", Output: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		logger.Error("Command failed", slog.String("command", os.Args[1]), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "migrate":
		return withStore(ctx, cfg, logger, func(s *store.SQLStore) error {
			return s.Migrate(ctx)
		})
	case "import":
		if len(args) != 2 {
			return fmt.Errorf("import needs <model> <file>")
		}
		return withStore(ctx, cfg, logger, func(s *store.SQLStore) error {
			n, err := importer.New(s, logger).ImportFile(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "imported %d rows\n", n)
			return nil
		})
	case "import-dir":
		if len(args) != 1 {
			return fmt.Errorf("import-dir needs <dir>")
		}
		return withStore(ctx, cfg, logger, func(s *store.SQLStore) error {
			loaded, err := importer.New(s, logger).ImportDir(ctx, args[0])
			for table, n := range loaded {
				fmt.Fprintf(out, "%s: %d rows\n", table, n)
			}
			return err
		})
	case "rating":
		return showRating(ctx, cfg, logger, args, out)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func withStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, fn func(*store.SQLStore) error) error {
	s, err := store.Open(ctx, store.Config{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.URL,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	}, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func showRating(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("rating", flag.ContinueOnError)
	addr := fs.String("addr", cfg.Server.GRPCAddr, "gRPC address of the catalog service")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("rating needs <title_id>")
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid title id %q", fs.Arg(0))
	}

	client, err := clients.NewCatalogClient(*addr, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	title, err := client.GetTitle(ctx, id)
	if err != nil {
		if clients.IsNotFound(err) {
			return fmt.Errorf("title %d not found", id)
		}
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(title)
}
