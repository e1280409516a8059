package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/lumo-backend/constants"
	"github.com/joseph-ayodele/lumo-backend/internal/app"
	"github.com/joseph-ayodele/lumo-backend/internal/common"
	"github.com/joseph-ayodele/lumo-backend/internal/llm"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [file]",
	Short: "Run OCR on a local file and print the prompt body",
	Args:  cobra.ExactArgs(1),
	RunE:  runOCR,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Run the full analysis pipeline on a local file",
	Long:  `Runs OCR and the model on a local blood test report and prints the analyze response as JSON.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(ocrCmd)
	rootCmd.AddCommand(analyzeCmd)
}

// openUpload opens path and resolves its content type from the extension.
func openUpload(path string) (*os.File, string, error) {
	name := filepath.Base(path)
	contentType, ok := constants.CanonicalContentType("", name)
	if !ok {
		return nil, "", common.InvalidInputErrorf("unsupported file %s: allowed types: %s", name, constants.AllowedContentTypeList())
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	return f, contentType, nil
}

func runOCR(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	f, contentType, err := openUpload(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	cloud, err := app.NewCloud(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	res, err := app.NewExtractor(cloud, cfg, logger).Extract(cmd.Context(), f, filepath.Base(args[0]), contentType)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), llm.FormatDocument(res.Document))
	return err
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	f, contentType, err := openUpload(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	cloud, err := app.NewCloud(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	p := app.NewProcessor(app.NewExtractor(cloud, cfg, logger), app.NewOpenAI(cfg, logger), logger)
	out, err := p.Analyze(cmd.Context(), f, filepath.Base(args[0]), contentType)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", args[0], err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
