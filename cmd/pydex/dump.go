package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adelyne/pydex/internal/docstring"
	"github.com/adelyne/pydex/internal/loader"
	"github.com/adelyne/pydex/internal/logger"
	"github.com/adelyne/pydex/internal/model"
)

var (
	dumpSearchPaths   []string
	dumpOutput        string
	dumpDocstyle      string
	dumpParallel      int
	dumpAppendSysPath bool
	dumpCompact       bool
)

var dumpCmd = &cobra.Command{
	Use:   "dump PACKAGE [PACKAGE...]",
	Short: "Extract one or more packages and dump them as JSON",
	Long: `Loads each package from the search paths and writes a JSON object
mapping package names to their extracted trees.

Packages that fail to load are reported and skipped; the command exits
non-zero if any package failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringArrayVarP(&dumpSearchPaths, "search", "s", nil, "directory to search packages in (repeatable)")
	dumpCmd.Flags().StringVarP(&dumpOutput, "output", "o", "", "output file; a {package} placeholder writes one file per package")
	dumpCmd.Flags().StringVarP(&dumpDocstyle, "docstyle", "d", "", "docstring style to parse (google, rst, none)")
	dumpCmd.Flags().IntVar(&dumpParallel, "parallel", 0, "number of concurrent module scans")
	dumpCmd.Flags().BoolVarP(&dumpAppendSysPath, "append-syspath", "y", false, "append PYTHONPATH entries to the search paths")
	dumpCmd.Flags().BoolVar(&dumpCompact, "compact", false, "emit compact JSON instead of indented")
}

func loaderOptions() (loader.Options, error) {
	searchPaths := append([]string{}, dumpSearchPaths...)
	searchPaths = append(searchPaths, cfg.Loader.SearchPaths...)
	if dumpAppendSysPath {
		searchPaths = append(searchPaths, filepath.SplitList(os.Getenv("PYTHONPATH"))...)
	}

	styleName := dumpDocstyle
	if styleName == "" {
		styleName = cfg.Loader.DocstringStyle
	}
	style, err := docstring.ParseStyle(styleName)
	if err != nil {
		return loader.Options{}, err
	}

	workers := dumpParallel
	if workers == 0 {
		workers = cfg.Loader.Workers
	}

	return loader.Options{
		SearchPaths: searchPaths,
		Style:       style,
		Excludes:    cfg.Loader.ExcludePatterns,
		Workers:     workers,
	}, nil
}

func runDump(cmd *cobra.Command, args []string) error {
	log := logger.ForComponent("dump")

	opts, err := loaderOptions()
	if err != nil {
		return err
	}
	l := loader.New(opts)

	packages := make(map[string]*model.Object)
	failed := 0
	for _, name := range args {
		obj, err := l.Load(cmd.Context(), name)
		if err != nil {
			log.Error("failed to load package", "package", name, "error", err)
			failed++
			continue
		}
		packages[name] = obj
	}

	if err := writeDump(packages, dumpOutput, dumpCompact); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d package(s) failed to load", failed)
	}
	return nil
}

// writeDump writes the loaded packages to the output path, or stdout when it
// is empty. A {package} placeholder in the path expands per package, each
// tree going to its own file.
func writeDump(packages map[string]*model.Object, output string, compact bool) error {
	if output != "" && strings.ReplaceAll(output, "{package}", "") != output {
		for name, obj := range packages {
			data, err := model.DumpObject(obj, !compact)
			if err != nil {
				return fmt.Errorf("encoding %s: %w", name, err)
			}
			data = append(data, '\n')
			path := strings.ReplaceAll(output, "{package}", name)
			if err := os.WriteFile(path, data, 0644); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
		}
		return nil
	}

	data, err := model.Dump(packages, !compact)
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	data = append(data, '\n')

	if output != "" {
		if err := os.WriteFile(output, data, 0644); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		return nil
	}

	_, err = os.Stdout.Write(data)
	return err
}
