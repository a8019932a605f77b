package cmd

import (
	"fmt"
	"os"

	"github.com/iksnae/ellipsis-codec/internal"
	"github.com/iksnae/ellipsis-codec/internal/codec"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	envFile string
	imageDB string
	version string = "dev"
	commit  string = "unknown"
	date    string = "unknown"

	cfg *internal.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ellipsis-codec",
	Short: "Convert stories to and from character card interchange formats",
	Long: `A CLI tool to import and export stories and characters.

Supported formats:
  • PNG character cards (V2 "chara" metadata chunk)
  • BYAF archives (zip bundle of character, scenario and images)
  • Native story JSON

Quick Start:
  ellipsis-codec import card.png --out stories/        # Card to story JSON
  ellipsis-codec export stories/story.json --format byaf
  ellipsis-codec inspect card.png                      # Dump PNG chunks
  ellipsis-codec serve                                 # HTTP import/export API

Portraits and backgrounds are kept in a sqlite image store when
CODEC_IMAGE_DB (or --image-db) is set.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}
		loaded, err := internal.LoadConfig(files...)
		if err != nil {
			return err
		}
		if imageDB != "" {
			loaded.ImageDB = imageDB
		}
		if verbose {
			loaded.Verbose = true
		}
		internal.SetLogLevel(loaded.Level())
		cfg = loaded
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		internal.PrintError(fmt.Sprintf("Error: %v", err))
		os.Exit(1)
	}
}

// openService builds the codec service, opening the image store when one is
// configured. The returned cleanup closes the store.
func openService() (*codec.Service, func(), error) {
	if cfg.ImageDB == "" {
		return codec.NewService(cfg, nil), func() {}, nil
	}
	store, err := internal.OpenImageStore(cfg.ImageDB)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			internal.LogWarn("Failed to close image store: %v", err)
		}
	}
	return codec.NewService(cfg, store), cleanup, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load settings from this .env file (default .env when present)")
	rootCmd.PersistentFlags().StringVar(&imageDB, "image-db", "", "Path to the sqlite image store (overrides CODEC_IMAGE_DB)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
