// Package tui provides the terminal output layer: styled run summaries and
// progress indicators. Simple, streaming, no complex TUI.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	codeStyle    = lipgloss.NewStyle().Background(lipgloss.Color("#1a1a1a")).Foreground(white).Padding(0, 1)
)

// RunSummary holds the figures printed after a completed run.
type RunSummary struct {
	SourceFile   string
	OutputDir    string
	IndexPath    string
	Envelopes    uint64
	SkippedLines uint64
	Dropped      uint64
	CompileCount int
	FailureCount int
	FilesWritten int
	Duration     time.Duration
}

// PrintRunSummary prints the post-run summary block.
func PrintRunSummary(s *RunSummary) {
	fmt.Println()
	fmt.Println(successStyle.Render("  ✓ REPORT GENERATED"))
	fmt.Println()
	fmt.Printf("  %s %s\n", mutedStyle.Render("Source:"), titleStyle.Render(s.SourceFile))
	fmt.Printf("  %s %s\n", mutedStyle.Render("Envelopes:"), titleStyle.Render(formatNumber(int64(s.Envelopes))))
	if s.CompileCount > 0 {
		fmt.Printf("  %s %s\n", mutedStyle.Render("Compilations:"), titleStyle.Render(fmt.Sprintf("%d", s.CompileCount)))
	}
	if s.FailureCount > 0 {
		fmt.Printf("  %s %s\n", mutedStyle.Render("Failures:"), accentStyle.Render(fmt.Sprintf("%d", s.FailureCount)))
	}
	if s.SkippedLines > 0 || s.Dropped > 0 {
		fmt.Printf("  %s %s\n", mutedStyle.Render("Skipped:"),
			mutedStyle.Render(fmt.Sprintf("%d lines, %d unknown envelopes", s.SkippedLines, s.Dropped)))
	}
	fmt.Printf("  %s %s %s\n",
		mutedStyle.Render("Time:"),
		titleStyle.Render(formatDuration(s.Duration)),
		mutedStyle.Render(fmt.Sprintf("(%d files)", s.FilesWritten)))
	fmt.Println()
	fmt.Printf("  %s %s\n", mutedStyle.Render("Open:"), codeStyle.Render(s.IndexPath))
	fmt.Println()
}

// PrintWatchEvent prints one line per watch-triggered rebuild.
func PrintWatchEvent(path string, d time.Duration, err error) {
	if err != nil {
		fmt.Printf("  %s %s %s\n", accentStyle.Render("✗"), path, mutedStyle.Render(err.Error()))
		return
	}
	fmt.Printf("  %s %s %s\n", successStyle.Render("✓"), path,
		mutedStyle.Render(fmt.Sprintf("rebuilt in %s", formatDuration(d))))
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// ShowProgress creates a progress bar for a counted operation.
func ShowProgress(total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// Spinner shows a simple loading indicator.
func Spinner(message string, done chan bool) {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	i := 0
	for {
		select {
		case <-done:
			fmt.Printf("\r%s %s\n", successStyle.Render("✓"), message)
			return
		default:
			fmt.Printf("\r%s %s", accentStyle.Render(frames[i]), message)
			i = (i + 1) % len(frames)
			time.Sleep(80 * time.Millisecond)
		}
	}
}
