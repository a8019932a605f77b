package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/ellipsis-codec/internal"
	"github.com/iksnae/ellipsis-codec/internal/codec"
	"github.com/spf13/cobra"
)

var (
	limit int
)

var (
	// Styles for show command
	storyHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	storyMetaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true)

	characterMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2)
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Show the story inside a card, archive or story JSON",
	Long: `Parse a file without importing it and display the resulting story:
characters, lore entries, scenarios and the opening of the chat.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		// no store: show never keeps images
		svc := codec.NewService(cfg, nil)
		res, err := svc.Import(context.Background(), filepath.Base(args[0]), bytes.NewReader(data), codec.ImportOptions{SkipImages: true})
		if err != nil {
			return err
		}
		displayStory(cmd.OutOrStdout(), res, limit)
		return nil
	},
}

func displayStory(out io.Writer, res *codec.ImportResult, limit int) {
	story := res.Story
	fmt.Fprintln(out, storyHeaderStyle.Render(fmt.Sprintf("📖 %s", story.Name)))
	meta := fmt.Sprintf("Format: %s", res.Format)
	if len(story.Tags) > 0 {
		meta += " | Tags: " + strings.Join(story.Tags, ", ")
	}
	fmt.Fprintln(out, storyMetaStyle.Render(meta))
	fmt.Fprintln(out)

	fmt.Fprintln(out, sectionStyle.Render("Characters"))
	for _, c := range story.Characters {
		marker := ""
		switch {
		case c.IsUser:
			marker = idStyle.Render(" (user)")
		case c.ID == res.PrimaryCharacterID:
			marker = idStyle.Render(" (primary)")
		}
		fmt.Fprintf(out, "  %s%s\n", titleStyle.Render(c.Name), marker)
		if c.ShortDescription != "" {
			fmt.Fprintln(out, messageContentStyle.Render(c.ShortDescription))
		}
	}
	fmt.Fprintln(out)

	if len(story.DynamicEntries) > 0 {
		fmt.Fprintln(out, sectionStyle.Render(fmt.Sprintf("Lore (%d)", len(story.DynamicEntries))))
		for _, e := range story.DynamicEntries {
			fmt.Fprintf(out, "  %s %s\n", e.Title, idStyle.Render(e.Triggers))
		}
		fmt.Fprintln(out)
	}

	for _, sc := range story.Scenarios {
		fmt.Fprintf(out, "%s %s\n", sectionStyle.Render("Scenario"), sc.Name)
		if sc.Message != "" {
			fmt.Fprintln(out, messageContentStyle.Render(sc.Message))
		}
	}

	for _, n := range story.Narratives {
		if n.State == nil {
			continue
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, sectionStyle.Render(fmt.Sprintf("Narrative %s (%d messages)", n.Name, len(n.State.ChatHistory))))
		displayMessages(out, story, n.State.ChatHistory, limit)
	}
}

func displayMessages(out io.Writer, story *internal.Story, messages []internal.ChatMessage, limit int) {
	shown := 0
	for _, m := range messages {
		if m.IsHidden {
			continue
		}
		if limit > 0 && shown >= limit {
			fmt.Fprintln(out, storyMetaStyle.Render(fmt.Sprintf("  ... %d more", countVisible(messages)-shown)))
			return
		}
		name, style := "Unknown", characterMessageStyle
		if c, ok := story.FindCharacter(m.CharacterID); ok {
			name = c.Name
			if c.IsUser {
				style = userMessageStyle
			}
		}
		fmt.Fprintln(out, style.Render(name+":"))
		fmt.Fprintln(out, messageContentStyle.Render(m.Content))
		shown++
	}
}

func countVisible(messages []internal.ChatMessage) int {
	n := 0
	for _, m := range messages {
		if !m.IsHidden {
			n++
		}
	}
	return n
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of messages to display (0 for all)")
}
