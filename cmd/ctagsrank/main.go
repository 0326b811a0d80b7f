package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dekelcohen/CTags/internal/mcp"
	"github.com/dekelcohen/CTags/internal/profile"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// Environment variables read when the matching flag is unset
const (
	EnvDBPath   = "CTAGSRANK_DB_PATH"
	EnvSettings = "CTAGSRANK_SETTINGS"
)

// options holds the persistent flags shared by every command
type options struct {
	dbPath   string
	settings string
	verbose  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "ctagsrank",
		Short: "Rank ctags definition candidates for go to definition",
		Long: `ctagsrank indexes ctags tag files and ranks the candidate definitions of a
symbol using the code around the reference: the definition kind implied by the
line, same-file and this/self calls, the receiver chain, and resolved imports.

  ctagsrank index /src/app                      # load tags and .tags files
  ctagsrank goto /src/app web/main.js 12 18     # ranked definitions at a cursor
  ctagsrank serve                               # MCP server on stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.dbPath, "db", "", "index directory (env "+EnvDBPath+", default "+mcp.DefaultDBPath+")")
	flags.StringVar(&opts.settings, "settings", "", "YAML settings merged over the defaults (env "+EnvSettings+")")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newIndexCmd(opts),
		newGotoCmd(opts),
		newVersionCmd(),
	)
	return root
}

// newLogger writes text logs to stderr; stdout is reserved for MCP traffic
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// firstNonEmpty returns the flag value, falling back to the environment
func firstNonEmpty(flag, env string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(env)
}

func loadSettings(path string) (*profile.Settings, error) {
	if path == "" {
		return profile.Default()
	}
	settings, err := profile.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings, nil
}

// openServer builds the application from flags and environment
func openServer(opts *options) (*mcp.Server, *slog.Logger, error) {
	logger := newLogger(opts.verbose)
	slog.SetDefault(logger)

	settings, err := loadSettings(firstNonEmpty(opts.settings, EnvSettings))
	if err != nil {
		return nil, nil, err
	}
	server, err := mcp.NewServer(firstNonEmpty(opts.dbPath, EnvDBPath), settings, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create server: %w", err)
	}
	return server, logger, nil
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
