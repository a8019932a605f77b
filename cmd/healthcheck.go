package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"io/fs"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/ellipsis-codec/internal"
	"github.com/iksnae/ellipsis-codec/internal/codec"
	"github.com/spf13/cobra"
)

var (
	healthcheckDetails bool
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check configuration, image store and codecs",
	Long: `Check the health of ellipsis-codec by verifying:
  • Configuration loading and validation
  • Image store availability and contents
  • A story round trip through every codec

This command is useful for debugging deployment issues.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, sectionStyle.Render("🔍 Ellipsis Codec Health Check"))
		fmt.Fprintln(out)

		// Step 1: configuration was loaded by the root command
		fmt.Fprintln(out, infoStyle.Render("Step 1: Checking configuration..."))
		fmt.Fprintln(out, successStyle.Render("✅ Configuration valid"))
		if healthcheckDetails {
			fmt.Fprintf(out, "   Fetch timeout: %s\n", cfg.FetchTimeout)
			fmt.Fprintf(out, "   Fetch limit: %d bytes\n", cfg.FetchMaxBytes)
			fmt.Fprintf(out, "   Portrait: max height %d, quality %d\n", cfg.MaxPortraitHeight, cfg.PortraitQuality)
			fmt.Fprintf(out, "   Log level: %s\n", cfg.LogLevel)
		}
		fmt.Fprintln(out)

		// Step 2: image store
		fmt.Fprintln(out, infoStyle.Render("Step 2: Checking image store..."))
		storeOK := checkImageStore(out)
		fmt.Fprintln(out)

		// Step 3: codecs
		fmt.Fprintln(out, infoStyle.Render("Step 3: Testing codecs..."))
		steps := make([]internal.ProgressStep, 0, len(codec.Formats))
		for _, f := range codec.Formats {
			f := f
			steps = append(steps, internal.ProgressStep{
				Message: fmt.Sprintf("%s codec round trip", f),
				Fn: func() error {
					if err := probeCodec(f); err != nil {
						return err
					}
					fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ %s codec round trip", f)))
					return nil
				},
			})
		}
		codecErr := internal.ShowProgressWithSteps(context.Background(), steps)
		if codecErr != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Codec check failed:"), codecErr)
		}
		fmt.Fprintln(out)

		fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
		fmt.Fprintln(out)
		if codecErr != nil || !storeOK {
			fmt.Fprintln(out, errorStyle.Render("❌ Health check failed"))
			return fmt.Errorf("health check failed: codecs ok: %v, image store ok: %v", codecErr == nil, storeOK)
		}
		fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
		return nil
	},
}

// checkImageStore reports on the configured image store. A missing store is
// not a failure; an unreadable one is.
func checkImageStore(out io.Writer) bool {
	if cfg.ImageDB == "" {
		fmt.Fprintln(out, warningStyle.Render("⚠️  No image store configured"))
		if healthcheckDetails {
			fmt.Fprintln(out, "   Set CODEC_IMAGE_DB or --image-db to keep imported portraits")
		}
		return true
	}
	if _, err := os.Stat(cfg.ImageDB); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(out, warningStyle.Render("⚠️  Image store not created yet"))
		if healthcheckDetails {
			fmt.Fprintf(out, "   Expected: %s\n", cfg.ImageDB)
		}
		return true
	}

	db, err := internal.OpenDatabaseReadOnly(cfg.ImageDB)
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render("❌ Failed to open image store:"), err)
		return false
	}
	store := internal.NewImageStore(db)
	defer store.Close()

	keys, err := store.Keys(context.Background())
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render("❌ Failed to read image store:"), err)
		return false
	}
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Image store holds %d image(s)", len(keys))))
	if healthcheckDetails {
		fmt.Fprintf(out, "   Database: %s\n", cfg.ImageDB)
	}
	return true
}

// probeCodec exports a minimal story in f and parses the result back.
func probeCodec(f codec.Format) error {
	ctx := context.Background()
	deps := codec.Deps{Assets: &codec.AssetResolver{Store: probeImages{}}}
	c, err := codec.NewCodec(f, deps)
	if err != nil {
		return err
	}

	story := &internal.Story{
		ID:   "probe",
		Name: "Probe",
		Characters: []internal.Character{
			{ID: "probe-char", Name: "Probe", Description: "Health check character."},
		},
	}
	res, err := c.Serialize(ctx, codec.ExportRequest{Story: story})
	if err != nil {
		return err
	}
	back, err := c.Parse(ctx, res.Data, codec.ImportOptions{SkipImages: true})
	if err != nil {
		return err
	}
	if _, ok := back.Story.FindCharacter(back.PrimaryCharacterID); !ok {
		return fmt.Errorf("primary character lost in round trip")
	}
	return nil
}

// probeImages serves a generated portrait for every key.
type probeImages struct{}

var probePortrait = func() []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2)))
	return buf.Bytes()
}()

func (probeImages) Get(ctx context.Context, key string) (*internal.StoredImage, error) {
	return &internal.StoredImage{Key: key, MediaType: internal.MediaTypePNG, Data: probePortrait}, nil
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVar(&healthcheckDetails, "details", false, "Show detailed diagnostic information")
}
