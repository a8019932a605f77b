package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iksnae/ellipsis-codec/internal"
	"github.com/iksnae/ellipsis-codec/internal/codec"
	"github.com/spf13/cobra"
)

var (
	format      string
	outputDir   string
	narrativeID string
	primaryID   string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <story.json>",
	Short: "Export a story to a card, archive or story JSON",
	Long: `Export a native story JSON file to an interchange format (png, byaf, json).

The narrative whose state is written defaults to the first narrative that
carries state; the primary character defaults to the first non-user
character. Portraits are read from the image store, or fetched when the
character's image_url is remote.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := codec.ParseFormat(format)
		if err != nil {
			return err
		}

		story, err := readStoryFile(args[0])
		if err != nil {
			return err
		}

		var narrative *internal.Narrative
		if narrativeID != "" {
			n, ok := story.FindNarrative(narrativeID)
			if !ok {
				return fmt.Errorf("narrative not found: %s", narrativeID)
			}
			narrative = n
		}

		svc, cleanup, err := openService()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := context.Background()
		var res *codec.ExportResult
		err = internal.ShowProgress(ctx, fmt.Sprintf("Exporting %q as %s", story.Name, f), func() error {
			var exportErr error
			res, exportErr = svc.Export(ctx, f, story, narrative, primaryID)
			return exportErr
		})
		if err != nil {
			return err
		}

		path, err := writeOutput(outputDir, res.Filename, res.Data, f.String())
		if err != nil {
			return err
		}
		internal.PrintSuccess(fmt.Sprintf("Export complete: %s (%d bytes)", path, len(res.Data)))
		return nil
	},
}

// readStoryFile loads a native story without regenerating its ids, so that
// narrative and character ids given on the command line still match.
func readStoryFile(path string) (*internal.Story, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read story: %w", err)
	}
	var story internal.Story
	if err := json.Unmarshal(data, &story); err != nil {
		return nil, &internal.ParseError{Source: "native", Key: path, Err: err}
	}
	return &story, nil
}

// writeOutput writes data to dir/name, creating dir when needed.
func writeOutput(dir, name string, data []byte, format string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &internal.ExportError{Format: format, Path: dir, Err: err}
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", &internal.ExportError{Format: format, Path: path, Err: err}
	}
	return path, nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "png", "Export format (png, byaf, json)")
	exportCmd.Flags().StringVarP(&outputDir, "out", "o", "./exports", "Output directory")
	exportCmd.Flags().StringVar(&narrativeID, "narrative", "", "Export the state of this narrative")
	exportCmd.Flags().StringVar(&primaryID, "primary", "", "Primary character id")
}
