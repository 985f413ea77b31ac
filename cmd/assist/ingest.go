package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"basegraph.app/assist/internal/knowledge"
)

func ingestCmd() *cobra.Command {
	var (
		patterns []string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load script files into the knowledge base",
		Long: `Load YAML script files into the knowledge base. Each file is either a list of
scripts or a document with a category, shared tags and a scripts list.

  assist ingest --glob 'scripts/**/*.yaml'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var paths []string
			for _, p := range append(patterns, args...) {
				abs, err := filepath.Abs(p)
				if err != nil {
					return fmt.Errorf("resolving %s: %w", p, err)
				}
				matches, err := doublestar.FilepathGlob(abs)
				if err != nil {
					return fmt.Errorf("expanding %s: %w", p, err)
				}
				paths = append(paths, matches...)
			}
			if len(paths) == 0 {
				return fmt.Errorf("no script files matched")
			}

			items, err := knowledge.LoadFiles(ctx, paths)
			if err != nil {
				return err
			}
			slog.InfoContext(ctx, "scripts loaded", "files", len(paths), "scripts", len(items))
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d scripts in %d files (dry run, nothing indexed)\n", len(items), len(paths))
				return nil
			}

			services, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			ids, err := services.Knowledge().Add(ctx, items)
			if err != nil {
				return fmt.Errorf("indexing scripts: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d scripts from %d files\n", len(ids), len(paths))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&patterns, "glob", nil, "File glob, ** supported (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate files without indexing")
	return cmd
}
