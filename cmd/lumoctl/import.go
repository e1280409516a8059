package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/lumo-backend/internal/analyses"
	"github.com/joseph-ayodele/lumo-backend/internal/app"
	"github.com/joseph-ayodele/lumo-backend/internal/common"
	"github.com/joseph-ayodele/lumo-backend/internal/ingest"
	"github.com/joseph-ayodele/lumo-backend/internal/repository"
)

var importCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Analyze every report under a directory and save the results",
	Long: `Walks a directory of blood test reports (PDF, JPEG, PNG), runs each through the
analysis pipeline and saves the result as an analysis owned by --user.
With --watch, keeps running and imports files as they are added.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var (
	importUser          string
	importWatch         bool
	importIncludeHidden bool
	importDebounce      time.Duration
)

func init() {
	importCmd.Flags().StringVarP(&importUser, "user", "u", "", "User ID that will own the imported analyses")
	importCmd.Flags().BoolVarP(&importWatch, "watch", "w", false, "Keep watching the directory for new files")
	importCmd.Flags().BoolVar(&importIncludeHidden, "include-hidden", false, "Also import dot files and dot directories")
	importCmd.Flags().DurationVar(&importDebounce, "debounce", 2*time.Second, "Wait this long after the last write before importing a watched file")
	_ = importCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if importUser == "" {
		return common.InvalidInputError("--user is required")
	}
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := requireDB(cfg); err != nil {
		return err
	}
	ctx := cmd.Context()
	db, err := app.OpenDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repository.Close(db, logger)

	cloud, err := app.NewCloud(ctx, cfg)
	if err != nil {
		return err
	}
	p := app.NewProcessor(app.NewExtractor(cloud, cfg, logger), app.NewOpenAI(cfg, logger), logger)
	saver := analyses.NewService(repository.NewAnalysisRepository(db, logger), nil, logger)
	im := ingest.NewImporter(p, saver, logger)

	if importWatch {
		return im.Watch(ctx, importUser, ingest.WatchConfig{
			Roots:       []string{args[0]},
			InitialScan: true,
			SkipHidden:  !importIncludeHidden,
			Debounce:    importDebounce,
		})
	}

	results, stats, err := im.ImportDirectory(ctx, importUser, args[0], !importIncludeHidden)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, r := range results {
		if r.Err != "" {
			fmt.Fprintf(out, "FAIL %s: %s\n", r.Path, r.Err)
			continue
		}
		fmt.Fprintf(out, "OK   %s -> %s (%d markers)\n", r.Path, r.AnalysisID, r.Markers)
	}
	_, err = fmt.Fprintf(out, "scanned=%d matched=%d succeeded=%d failed=%d\n", stats.Scanned, stats.Matched, stats.Succeeded, stats.Failed)
	return err
}
