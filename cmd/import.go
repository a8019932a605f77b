package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/iksnae/ellipsis-codec/internal"
	"github.com/iksnae/ellipsis-codec/internal/codec"
	"github.com/spf13/cobra"
)

var (
	importOutputDir  string
	importSkipImages bool
	importReportPath string
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import cards, archives or story JSON files",
	Long: `Import one or more files and write each as a native story JSON.

The format is chosen by extension: .png (character card), .byaf or .zip
(archive), .json (story). Files repeating the content of an earlier argument
are skipped. Portraits and backgrounds go to the image store when one is
configured. A YAML report of the run is written with --report.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := openService()
		if err != nil {
			return err
		}
		defer cleanup()

		if cfg.ImageDB == "" && !importSkipImages {
			internal.LogWarn("No image store configured; imported portraits will not be kept")
		}

		ctx := context.Background()
		report := internal.NewImportReport()
		dedup := internal.NewDeduplicator()
		err = internal.ShowProgress(ctx, fmt.Sprintf("Importing %d file(s) to %s", len(args), importOutputDir), func() error {
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					internal.LogError("Failed to read %s: %v", path, err)
					report.AddFailure(path, err)
					continue
				}
				if first, dup := dedup.Check(path, data); dup {
					internal.LogWarn("Skipping %s: same content as %s", path, first)
					report.AddDuplicate(path, first)
					continue
				}

				res, out, err := importFile(ctx, svc, path, data)
				if err != nil {
					internal.LogError("Failed to import %s: %v", path, err)
					report.AddFailure(path, err)
					continue
				}
				report.AddSuccess(path, res.Format.String(), out, res.Story, res.Portrait != nil)
			}
			return nil
		})
		if err != nil {
			return err
		}

		if importReportPath != "" {
			if err := report.Save(importReportPath); err != nil {
				return fmt.Errorf("failed to save report: %w", err)
			}
			internal.PrintInfo("Report written to " + importReportPath)
		}

		fmt.Fprintln(cmd.OutOrStdout(), internal.FormatImportSummary(report))
		ok, failed := report.Counts()
		if ok == 0 {
			return fmt.Errorf("no file could be imported")
		}
		if failed > 0 {
			internal.PrintWarning(fmt.Sprintf("%d of %d file(s) failed to import", failed, len(args)))
		}
		return nil
	},
}

// importFile imports the content of one file and writes the resulting story
// as native JSON.
func importFile(ctx context.Context, svc *codec.Service, path string, data []byte) (*codec.ImportResult, string, error) {
	res, err := svc.Import(ctx, filepath.Base(path), bytes.NewReader(data), codec.ImportOptions{SkipImages: importSkipImages})
	if err != nil {
		return nil, "", err
	}

	out, err := svc.Export(ctx, codec.FormatNative, res.Story, nil, res.PrimaryCharacterID)
	if err != nil {
		return nil, "", err
	}
	written, err := writeNewOutput(importOutputDir, out.Filename, out.Data, codec.FormatNative.String())
	if err != nil {
		return nil, "", err
	}
	return res, written, nil
}

// maxNameAttempts bounds the numbered names tried for one story.
const maxNameAttempts = 1000

// writeNewOutput writes data under name in dir without replacing an existing
// file. When name is taken, "<base> (2)<ext>", "<base> (3)<ext>" and so on
// are tried.
func writeNewOutput(dir, name string, data []byte, format string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &internal.ExportError{Format: format, Path: dir, Err: err}
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; i <= maxNameAttempts; i++ {
		candidate := name
		if i > 1 {
			candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", &internal.ExportError{Format: format, Path: path, Err: err}
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", &internal.ExportError{Format: format, Path: path, Err: err}
		}
		if err := f.Close(); err != nil {
			return "", &internal.ExportError{Format: format, Path: path, Err: err}
		}
		return path, nil
	}
	return "", &internal.ExportError{Format: format, Path: filepath.Join(dir, name), Err: fmt.Errorf("no free file name after %d attempts", maxNameAttempts)}
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&importOutputDir, "out", "o", "./stories", "Output directory for story JSON files")
	importCmd.Flags().BoolVar(&importSkipImages, "skip-images", false, "Do not extract portraits or backgrounds")
	importCmd.Flags().StringVar(&importReportPath, "report", "", "Write a YAML import report to this path")
}
