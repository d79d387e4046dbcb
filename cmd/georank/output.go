package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/kass/go-geo-rank/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6"))

	nameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BE9FD"))

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))

	ratingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1FA8C"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(0, 1)
)

type outputMode int

const (
	outputPlain outputMode = iota
	outputStyled
	outputJSON
)

// printer renders command results to w
type printer struct {
	w    io.Writer
	mode outputMode
}

func newPrinter(w io.Writer, asJSON bool) *printer {
	mode := outputPlain
	switch {
	case asJSON:
		mode = outputJSON
	case isTerminal(w):
		mode = outputStyled
	}
	return &printer{w: w, mode: mode}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *printer) writeJSON(v interface{}) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Distance prints a single distance
func (p *printer) Distance(a, b models.GeoPoint, km float64) error {
	switch p.mode {
	case outputJSON:
		return p.writeJSON(struct {
			A          models.GeoPoint `json:"a"`
			B          models.GeoPoint `json:"b"`
			DistanceKm float64         `json:"distance_km"`
		}{a, b, km})
	case outputStyled:
		_, err := fmt.Fprintf(p.w, "%s %s\n",
			dimStyle.Render(fmt.Sprintf("%s -> %s", formatPoint(a), formatPoint(b))),
			statStyle.Render(formatKm(km)))
		return err
	default:
		_, err := fmt.Fprintf(p.w, "%.3f\n", km)
		return err
	}
}

// Results prints a ranked list under a title
func (p *printer) Results(title string, results []models.RankedResult) error {
	switch p.mode {
	case outputJSON:
		if results == nil {
			results = []models.RankedResult{}
		}
		return p.writeJSON(results)
	case outputStyled:
		_, err := fmt.Fprintln(p.w, p.styledResults(title, results))
		return err
	default:
		for i, r := range results {
			if _, err := fmt.Fprintf(p.w, "%d\t%s\t%.3f\t%s\t%s\n",
				i+1, r.POI.Name, r.DistanceKm, formatRating(r.POI.Rating), r.POI.Category); err != nil {
				return err
			}
		}
		return nil
	}
}

func (p *printer) styledResults(title string, results []models.RankedResult) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	if len(results) == 0 {
		b.WriteString("\n" + dimStyle.Render("no results"))
		return boxStyle.Render(b.String())
	}

	for i, r := range results {
		line := fmt.Sprintf("%2d. %s  %s  %s",
			i+1,
			nameStyle.Render(r.POI.Name),
			statStyle.Render(formatKm(r.DistanceKm)),
			ratingStyle.Render(formatRating(r.POI.Rating)))
		if r.POI.Category != "" {
			line += "  " + dimStyle.Render(r.POI.Category)
		}
		b.WriteString("\n" + line)
	}
	return boxStyle.Render(b.String())
}

// Stats prints labelled values in the given order
func (p *printer) Stats(title string, labels []string, values map[string]interface{}) error {
	switch p.mode {
	case outputJSON:
		return p.writeJSON(values)
	case outputStyled:
		var b strings.Builder
		b.WriteString(titleStyle.Render(title))
		for _, label := range labels {
			fmt.Fprintf(&b, "\n%s %s", dimStyle.Render(label+":"), statStyle.Render(fmt.Sprint(values[label])))
		}
		_, err := fmt.Fprintln(p.w, boxStyle.Render(b.String()))
		return err
	default:
		for _, label := range labels {
			if _, err := fmt.Fprintf(p.w, "%s: %v\n", label, values[label]); err != nil {
				return err
			}
		}
		return nil
	}
}

func formatPoint(p models.GeoPoint) string {
	return fmt.Sprintf("(%.4f, %.4f)", p.Lat, p.Lon)
}

func formatKm(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%.0f m", km*1000)
	}
	return fmt.Sprintf("%.2f km", km)
}

func formatRating(r *float64) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *r)
}
