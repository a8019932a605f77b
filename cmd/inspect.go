package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/iksnae/ellipsis-codec/internal/pngmeta"
	"github.com/spf13/cobra"
)

var (
	inspectFormat string
)

// chunkInfo describes one PNG chunk in inspect output.
type chunkInfo struct {
	Offset   int    `json:"offset"`
	Type     string `json:"type"`
	Length   int    `json:"length"`
	CRC      string `json:"crc"`
	CRCValid bool   `json:"crc_valid"`
}

// textInfo describes one tEXt or zTXt entry in inspect output.
type textInfo struct {
	Keyword    string `json:"keyword"`
	Compressed bool   `json:"compressed"`
	Length     int    `json:"length"`
}

// charaInfo summarizes the embedded character card.
type charaInfo struct {
	Spec        string `json:"spec,omitempty"`
	SpecVersion string `json:"spec_version,omitempty"`
	Name        string `json:"name,omitempty"`
	PayloadSize int    `json:"payload_size"`
	Error       string `json:"error,omitempty"`
}

type inspectReport struct {
	File   string      `json:"file"`
	Chunks []chunkInfo `json:"chunks"`
	Text   []textInfo  `json:"text"`
	Chara  *charaInfo  `json:"chara,omitempty"`
}

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <file.png>",
	Short: "Inspect the chunk structure of a PNG card",
	Long: `Inspect the chunk layout of a PNG file.

This command reports:
  • Every chunk with its offset, length and CRC status
  • tEXt and zTXt entries
  • The embedded character card, when present

Examples:
  ellipsis-codec inspect card.png
  ellipsis-codec inspect card.png --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		report, err := inspectPNG(args[0], data)
		if err != nil {
			return err
		}

		switch inspectFormat {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		case "text", "":
			printInspectReport(cmd.OutOrStdout(), report)
			return nil
		default:
			return fmt.Errorf("unsupported format: %s (supported: text, json)", inspectFormat)
		}
	},
}

func inspectPNG(name string, data []byte) (*inspectReport, error) {
	chunks, err := pngmeta.Chunks(data)
	if err != nil {
		return nil, err
	}
	report := &inspectReport{File: name, Chunks: make([]chunkInfo, 0, len(chunks)), Text: make([]textInfo, 0)}
	for _, c := range chunks {
		report.Chunks = append(report.Chunks, chunkInfo{
			Offset:   c.Offset,
			Type:     c.Type,
			Length:   len(c.Data),
			CRC:      fmt.Sprintf("%08x", c.CRC),
			CRCValid: c.Valid(),
		})
	}

	entries, err := pngmeta.TextEntries(data)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		report.Text = append(report.Text, textInfo{Keyword: e.Keyword, Compressed: e.Compressed, Length: len(e.Text)})
	}

	payload, ok, err := pngmeta.ReadChara(data)
	if err != nil {
		return nil, err
	}
	if ok {
		report.Chara = summarizeChara(payload)
	}
	return report, nil
}

func summarizeChara(payload string) *charaInfo {
	info := &charaInfo{PayloadSize: len(payload)}
	var card struct {
		Spec        string `json:"spec"`
		SpecVersion string `json:"spec_version"`
		Name        string `json:"name"`
		Data        struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := pngmeta.DecodePayload(payload, &card); err != nil {
		info.Error = err.Error()
		return info
	}
	info.Spec = card.Spec
	info.SpecVersion = card.SpecVersion
	info.Name = card.Data.Name
	if info.Name == "" {
		info.Name = card.Name
	}
	return info
}

func printInspectReport(out io.Writer, report *inspectReport) {
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("📊 %s: %d chunk(s)", report.File, len(report.Chunks))))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, titleStyle.Render("Offset")+"\t"+titleStyle.Render("Type")+"\t"+titleStyle.Render("Length")+"\t"+titleStyle.Render("CRC")+"\t")
	fmt.Fprintln(w, strings.Repeat("─", 48))
	for _, c := range report.Chunks {
		crc := successStyle.Render(c.CRC)
		if !c.CRCValid {
			crc = errorStyle.Render(c.CRC + " (bad)")
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t\n", c.Offset, c.Type, c.Length, crc)
	}
	_ = w.Flush()

	if len(report.Text) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, sectionStyle.Render("Text entries"))
		for _, t := range report.Text {
			kind := "tEXt"
			if t.Compressed {
				kind = "zTXt"
			}
			fmt.Fprintf(out, "  %s %s %s\n", t.Keyword, idStyle.Render(kind), countStyle.Render(fmt.Sprintf("%d bytes", t.Length)))
		}
	}

	fmt.Fprintln(out)
	if report.Chara == nil {
		fmt.Fprintln(out, warningStyle.Render("⚠️  No character card embedded"))
		return
	}
	if report.Chara.Error != "" {
		fmt.Fprintln(out, errorStyle.Render("❌ Character card is unreadable:"), report.Chara.Error)
		return
	}
	fmt.Fprintln(out, successStyle.Render("✅ Character card found"))
	fmt.Fprintf(out, "   Name: %s\n", report.Chara.Name)
	if report.Chara.Spec != "" {
		fmt.Fprintf(out, "   Spec: %s %s\n", report.Chara.Spec, report.Chara.SpecVersion)
	}
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format (text, json)")
}
