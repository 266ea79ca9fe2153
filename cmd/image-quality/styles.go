package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/menta2k/image-quality/pkg/batch"
	"github.com/menta2k/image-quality/pkg/types"
)

var (
	colorRed    = lipgloss.Color("#ff5555")
	colorGreen  = lipgloss.Color("#50fa7b")
	colorYellow = lipgloss.Color("#f1fa8c")
	colorBlue   = lipgloss.Color("#8be9fd")
	colorDim    = lipgloss.Color("#6272a4")
	colorBorder = lipgloss.Color("#44475a")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	scoreStyle = lipgloss.NewStyle().
			Bold(true).
			Width(4).
			Align(lipgloss.Right)

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
)

func tierStyle(t types.Tier) lipgloss.Style {
	switch t {
	case types.TierGood:
		return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	case types.TierStandard:
		return lipgloss.NewStyle().Foreground(colorYellow)
	default:
		return lipgloss.NewStyle().Foreground(colorRed)
	}
}

func renderTier(t types.Tier) string {
	return tierStyle(t).Width(8).Render(string(t))
}

// printAssessment writes a human readable verdict for one image
func printAssessment(w io.Writer, name string, a *types.Assessment) {
	fmt.Fprintf(w, "%s %s %s %s\n",
		titleStyle.Render(name),
		scoreStyle.Foreground(tierStyle(a.Quality).GetForeground()).Render(fmt.Sprint(a.Score)),
		renderTier(a.Quality),
		dimStyle.Render("("+string(a.Method)+")"),
	)
	for _, r := range a.Reasons {
		fmt.Fprintf(w, "  - %s\n", r)
	}

	if l := a.Local; l != nil {
		m := l.Metrics
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf(
			"  brightness %.1f  contrast %.1f  sharpness %.1f  color %.1f  noise %.1f  composition %.1f",
			m.Brightness, m.Contrast, m.Sharpness, m.ColorBalance, m.NoiseLevel, l.Composition.Overall)))
		if tags := contextTags(l.Context); tags != "" {
			fmt.Fprintln(w, dimStyle.Render("  context: "+tags))
		}
	}

	if v := a.Vision; v != nil && len(v.Labels) > 0 {
		names := make([]string, 0, len(v.Labels))
		for _, l := range v.Labels {
			names = append(names, l.Description)
		}
		fmt.Fprintln(w, dimStyle.Render("  labels: "+strings.Join(names, ", ")))
	}
}

func contextTags(c types.ImageContext) string {
	var tags []string
	if c.IsBlackAndWhite {
		tags = append(tags, "black & white")
	}
	if c.IsLowKey {
		tags = append(tags, "low key")
	}
	if c.IsHighKey {
		tags = append(tags, "high key")
	}
	if c.IsPortrait {
		tags = append(tags, "portrait")
	}
	if c.HasBackgroundBlur {
		tags = append(tags, "background blur")
	}
	if r := c.SubjectRegion; r != nil {
		tags = append(tags, fmt.Sprintf("subject %dx%d@%d,%d", r.Width, r.Height, r.X, r.Y))
	}
	return strings.Join(tags, ", ")
}

// printBatch writes every settled item followed by the summary box
func printBatch(w io.Writer, items []batch.ImageFile) {
	for _, item := range items {
		switch item.Status {
		case batch.StatusCompleted:
			printAssessment(w, item.Name, item.Result)
		case batch.StatusError:
			fmt.Fprintf(w, "%s %s\n", titleStyle.Render(item.Name), errorStyle.Render(item.Error))
		}
	}

	s := batch.Summarize(items)
	lines := []string{
		titleStyle.Render("Summary"),
		fmt.Sprintf("images     %d", s.Total),
		fmt.Sprintf("completed  %d", s.Completed),
		fmt.Sprintf("failed     %d", s.Failed),
		fmt.Sprintf("%s %d  %s %d  %s %d",
			tierStyle(types.TierGood).Render("good"), s.Good,
			tierStyle(types.TierStandard).Render("standard"), s.Standard,
			tierStyle(types.TierBad).Render("bad"), s.Bad),
		fmt.Sprintf("average    %.1f", s.AverageScore),
	}
	if s.Pending > 0 {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("pending    %d (interrupted)", s.Pending)))
	}
	fmt.Fprintln(w, summaryStyle.Render(strings.Join(lines, "\n")))
}
