package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adelyne/pydex/internal/cache"
	"github.com/adelyne/pydex/internal/server"
	"github.com/adelyne/pydex/internal/watcher"
)

var (
	serveWatchRoots []string
	serveNoCache    bool
	serveCachePath  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve extraction over JSON-RPC 2.0 on stdio",
	Long: `Runs a long-lived process answering pydex/load, pydex/search,
pydex/stats and pydex/ping requests on stdin/stdout.

With --watch, the given package roots are watched for changes and their
sources kept extracted in the cache.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringArrayVarP(&dumpSearchPaths, "search", "s", nil, "directory to search packages in (repeatable)")
	serveCmd.Flags().StringVarP(&dumpDocstyle, "docstyle", "d", "", "docstring style to parse (google, rst, none)")
	serveCmd.Flags().IntVar(&dumpParallel, "parallel", 0, "number of concurrent module scans")
	serveCmd.Flags().StringArrayVar(&serveWatchRoots, "watch", nil, "package root to watch for changes (repeatable)")
	serveCmd.Flags().BoolVar(&serveNoCache, "no-cache", false, "disable the sqlite extraction cache")
	serveCmd.Flags().StringVar(&serveCachePath, "cache", "", "path to the sqlite cache database")
}

// cacheDBPath prefers the --cache flag over the configured location.
func cacheDBPath() string {
	if serveCachePath != "" {
		return serveCachePath
	}
	return cfg.Cache.DBPath
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := loaderOptions()
	if err != nil {
		return err
	}

	serverOpts := server.Options{
		SearchPaths: opts.SearchPaths,
		Style:       opts.Style,
		Excludes:    opts.Excludes,
		Workers:     opts.Workers,
	}

	if cfg.Cache.Enabled && !serveNoCache {
		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}
		store, err := cache.NewStore(cacheDBPath())
		if err != nil {
			return err
		}
		defer store.Close()

		worker := cache.NewWorker(store, cfg.WorkerConfig())
		worker.Start()
		defer worker.Stop()

		serverOpts.Store = store
		serverOpts.Worker = worker

		if len(serveWatchRoots) > 0 && cfg.Watcher.Enabled {
			w, err := watcher.New(cfg.Watcher, worker)
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()

			for _, root := range serveWatchRoots {
				if err := w.AddRoot(root); err != nil {
					return err
				}
			}
		}
	}

	srv := server.New(serverOpts)
	err = srv.Serve(ctx, server.Stdio{})
	if err == context.Canceled {
		return nil
	}
	return err
}
