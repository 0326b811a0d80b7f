package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dekelcohen/CTags/internal/indexer"
	"github.com/dekelcohen/CTags/internal/mcp"
	"github.com/dekelcohen/CTags/internal/navigator"
	"github.com/dekelcohen/CTags/internal/storage"
)

func newServeCmd(opts *options) *cobra.Command {
	var watch []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mcp.ServerVersion = version
			server, logger, err := openServer(opts)
			if err != nil {
				return err
			}

			defer server.Close()

			logger.Info("serve.start", "version", version, "driver", storage.DriverName, "build_mode", storage.BuildMode)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			g, ctx := errgroup.WithContext(ctx)
			for _, root := range watch {
				abs, err := filepath.Abs(root)
				if err != nil {
					return err
				}
				g.Go(func() error {
					if _, err := server.Indexer().IndexProject(ctx, abs, nil); err != nil {
						logger.Warn("watch.initial_index_failed", "root", abs, "error", err)
					}
					return server.WatchProject(ctx, abs, nil)
				})
			}
			g.Go(func() error {
				// stdin closing ends the session and stops the watchers
				defer cancel()
				err := server.Serve(ctx)
				if isCancelled(err) {
					return nil
				}
				return err
			})

			err = g.Wait()
			logger.Info("serve.stopped")
			return err
		},
	}
	cmd.Flags().StringSliceVar(&watch, "watch", nil, "project roots to index and re-index when tag files change")
	return cmd
}

func newIndexCmd(opts *options) *cobra.Command {
	config := indexer.Config{}

	cmd := &cobra.Command{
		Use:   "index [project-root]",
		Short: "Load a project's tag files into the index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}

			server, _, err := openServer(opts)
			if err != nil {
				return err
			}
			defer server.Close()

			stats, err := server.Indexer().IndexProject(cmd.Context(), root, &config)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed %d tag files (%d skipped, %d failed, %d removed): %d tags, %d parse errors in %v\n",
				stats.TagFilesIndexed, stats.TagFilesSkipped, stats.TagFilesFailed, stats.TagFilesRemoved,
				stats.TagsStored, stats.ParseErrors, stats.Duration.Round(time.Millisecond))
			for _, msg := range stats.ErrorMessages {
				fmt.Fprintf(out, "  %s\n", msg)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.BoolVarP(&config.Force, "force", "f", false, "re-index tag files even when unchanged")
	flags.BoolVarP(&config.Recursive, "recursive", "r", true, "also load tag files in subdirectories")
	flags.IntVar(&config.Workers, "workers", 0, "concurrent parsers (default: number of CPUs)")
	flags.StringSliceVar(&config.TagFileNames, "names", nil, "tag file names (default: tags,.tags)")
	return cmd
}

func newGotoCmd(opts *options) *cobra.Command {
	var (
		symbol   string
		receiver string
		limit    int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "goto <project-root> <file> [line column]",
		Short: "Print ranked definitions of the symbol at a cursor",
		Long: `Print ranked definitions of the symbol at a 1-based line and column.
With --symbol the cursor is optional and the symbol is looked up directly.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 && len(args) != 4 {
				return fmt.Errorf("expected <project-root> <file> [line column], got %d args", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			req := navigator.Request{
				ProjectPath: args[0],
				FilePath:    args[1],
				Symbol:      symbol,
				Limit:       limit,
			}
			if receiver != "" {
				req.Receiver = strings.Split(receiver, ".")
			}
			if len(args) == 4 {
				var err error
				if req.Line, err = strconv.Atoi(args[2]); err != nil {
					return fmt.Errorf("invalid line %q: %w", args[2], err)
				}
				if req.Column, err = strconv.Atoi(args[3]); err != nil {
					return fmt.Errorf("invalid column %q: %w", args[3], err)
				}
			}

			server, _, err := openServer(opts)
			if err != nil {
				return err
			}
			defer server.Close()

			resp, err := server.Navigator().GotoDefinition(cmd.Context(), req)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			writeCandidates(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&symbol, "symbol", "", "symbol to look up instead of the one at the cursor")
	flags.StringVar(&receiver, "receiver", "", "dotted receiver chain for --symbol, e.g. list.provider")
	flags.IntVar(&limit, "limit", navigator.DefaultLimit, "maximum candidates")
	flags.BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ctagsrank\n")
			fmt.Fprintf(out, "Version: %s\n", version)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
			fmt.Fprintf(out, "Schema Version: %s\n", storage.CurrentSchemaVersion)
		},
	}
}

func writeCandidates(w io.Writer, resp *navigator.Response) {
	chain := append(append([]string{}, resp.Receiver...), resp.Symbol)
	fmt.Fprintf(w, "%s (%s): %d of %d candidates\n",
		strings.Join(chain, "."), resp.Source, len(resp.Candidates), resp.TotalCandidates)
	if resp.Import != nil {
		fmt.Fprintf(w, "import: %s (exists: %v)\n", resp.Import.Path, resp.Import.Exists)
	}
	for _, c := range resp.Candidates {
		b := c.Breakdown
		fmt.Fprintf(w, "%3d %7.2f  %s:%d  %s  [type %.0f, file %.0f, member %.2f, import %.0f]\n",
			c.Rank, c.RankScore, c.AbsPath, c.Tag.Line, c.Tag.Kind,
			b.Type, b.SameFile, b.Member, b.Import)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
