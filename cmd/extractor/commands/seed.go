package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/church-news-api/internal/app"
	"github.com/noah-isme/church-news-api/internal/dto"
	"github.com/noah-isme/church-news-api/internal/service"
)

var seedFile string

// seedDocument is the YAML layout of a catalogue file:
//
//	issues:
//	  - year: 2025
//	    month: 1
//	    board_id: 26569
type seedDocument struct {
	Issues []dto.SeedIssue `yaml:"issues"`
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert or refresh the issue catalogue",
	Long: `seed upserts catalogue entries and re-counts their pages. Without --file the
built-in 2025 catalogue is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries := service.DefaultCatalogue()
		if seedFile != "" {
			raw, err := os.ReadFile(seedFile)
			if err != nil {
				return fmt.Errorf("read seed file: %w", err)
			}
			entries, err = parseSeedFile(raw)
			if err != nil {
				return fmt.Errorf("parse %s: %w", seedFile, err)
			}
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			result, err := a.Issues.Seed(ctx, entries)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "seeded %d issues, reset %d\n", result.Seeded, result.Reset)
			for _, issue := range result.Issues {
				fmt.Fprintf(out, "  %4d-%02d  %-12s pages=%d  %s\n", issue.Year, issue.Month, issue.Status, issue.ImageCount, issue.URL)
			}
			return nil
		})
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML catalogue file")
	rootCmd.AddCommand(seedCmd)
}

func parseSeedFile(raw []byte) ([]dto.SeedIssue, error) {
	var doc seedDocument
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("seed file is empty")
		}
		return nil, err
	}
	if len(doc.Issues) == 0 {
		return nil, errors.New("seed file lists no issues")
	}
	return doc.Issues, nil
}
