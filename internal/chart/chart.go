// Package chart renders a compact per-second pass/fail density chart of
// a load run. The output is purely diagnostic; nothing in a test's
// verdict depends on it.
package chart

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"loadcheck/internal/loadgen"
)

const (
	SolidGlyph  = "█"
	ShadedGlyph = "░"
)

// ErrNoSamples means there was nothing to render.
var ErrNoSamples = errors.New("no samples to visualize")

var (
	solidStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	shadedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Renderer buckets samples by elapsed second and draws one fixed-width
// row per bucket.
type Renderer struct {
	// Columns is the target row width in cells; 10 when zero.
	Columns int

	// Color styles the glyphs with lipgloss. Leave unset for plain text
	// (log files, tests).
	Color bool
}

// Render produces the chart for samples relative to the run start.
//
// Each cell stands for up to round(max bucket size / columns)
// consecutive requests of its second; a cell is solid when at
// least half of its requests passed.
func (r Renderer) Render(samples []loadgen.Sample, start time.Time) (string, error) {
	if len(samples) == 0 {
		return "", ErrNoSamples
	}

	columns := r.Columns
	if columns <= 0 {
		columns = 10
	}

	buckets := make(map[int][]bool)
	for _, s := range samples {
		sec := int(math.Floor(s.Start.Sub(start).Seconds()))
		buckets[sec] = append(buckets[sec], s.OK)
	}

	secs := make([]int, 0, len(buckets))
	most := 0
	for sec, b := range buckets {
		secs = append(secs, sec)
		if len(b) > most {
			most = len(b)
		}
	}
	sort.Ints(secs)

	cellWeight := int(math.Round(float64(most) / float64(columns)))
	if cellWeight < 1 {
		cellWeight = 1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb,
		"Each row is one second of the run, each cell up to %d requests; "+
			"a solid cell means at least half of its requests passed.\n",
		cellWeight)

	for _, sec := range secs {
		outcomes := buckets[sec]
		ok := 0
		for _, passed := range outcomes {
			if passed {
				ok++
			}
		}
		fmt.Fprintf(&sb, "t+%-3d %5d ok %5d err %s\n",
			sec, ok, len(outcomes)-ok, r.row(outcomes, cellWeight))
	}

	return sb.String(), nil
}

func (r Renderer) row(outcomes []bool, cellWeight int) string {
	var row strings.Builder
	for from := 0; from < len(outcomes); from += cellWeight {
		to := from + cellWeight
		if to > len(outcomes) {
			to = len(outcomes)
		}
		chunk := outcomes[from:to]
		passed := 0
		for _, ok := range chunk {
			if ok {
				passed++
			}
		}
		if float64(passed)/float64(len(chunk)) >= 0.5 {
			row.WriteString(r.glyph(SolidGlyph, solidStyle))
		} else {
			row.WriteString(r.glyph(ShadedGlyph, shadedStyle))
		}
	}
	return row.String()
}

func (r Renderer) glyph(g string, style lipgloss.Style) string {
	if !r.Color {
		return g
	}
	return style.Render(g)
}
