package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/ellipsis-codec/internal"
	"github.com/spf13/cobra"
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List images in the image store",
	Long:  `List the portraits and backgrounds kept in the configured image store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.ImageDB == "" {
			return fmt.Errorf("no image store configured (set CODEC_IMAGE_DB or --image-db)")
		}
		db, err := internal.OpenDatabaseReadOnly(cfg.ImageDB)
		if err != nil {
			return &internal.StorageError{Path: cfg.ImageDB, Op: "open", Err: err}
		}
		store := internal.NewImageStore(db)
		defer store.Close()

		images, err := loadStoredImages(context.Background(), store)
		if err != nil {
			return err
		}
		displayImages(cmd.OutOrStdout(), images)
		return nil
	},
}

func loadStoredImages(ctx context.Context, store *internal.ImageStore) ([]*internal.StoredImage, error) {
	keys, err := store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	images := make([]*internal.StoredImage, 0, len(keys))
	for _, key := range keys {
		img, err := store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

func displayImages(out io.Writer, images []*internal.StoredImage) {
	if len(images) == 0 {
		fmt.Fprintln(out, headerStyle.Render("🖼  No images stored"))
		return
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("🖼  Found %d image(s)", len(images))))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, titleStyle.Render("Key")+"\t"+titleStyle.Render("Kind")+"\t"+titleStyle.Render("Type")+"\t"+titleStyle.Render("Size")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 72))
	for _, img := range images {
		kind := "portrait"
		if strings.HasPrefix(img.Key, internal.BackgroundImageKey("")) {
			kind = "background"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n",
			img.Key, idStyle.Render(kind), img.MediaType, countStyle.Render(formatSize(len(img.Data))))
	}
	_ = w.Flush()
}

func formatSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
}
