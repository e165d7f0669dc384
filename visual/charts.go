package visual

import (
	"bytes"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"deckforge/brand"
	"deckforge/deck"
)

const (
	chartWidth  = 1024
	chartHeight = 576
)

// RenderMetricChart draws the slide's metrics as a brand-colored bar
// chart and returns it as PNG bytes. Negative values (an allowed loss)
// are drawn by magnitude with the signed figure in the bar label so the
// chart never needs a dual-sign axis.
func RenderMetricChart(title string, points []deck.MetricPoint, kit brand.Kit) ([]byte, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no metric points to chart")
	}

	primary := drawing.ColorFromHex(kit.PrimaryColor)
	secondary := drawing.ColorFromHex(kit.SecondaryColor)

	bars := make([]chart.Value, len(points))
	for i, p := range points {
		fill := primary
		if i%2 == 1 {
			fill = secondary
		}
		bars[i] = chart.Value{
			Label: fmt.Sprintf("%s (%s)", p.Name, deck.FormatMetricValue(p.Value)),
			Value: math.Abs(p.Value),
			Style: chart.Style{FillColor: fill, StrokeColor: fill},
		}
	}

	graph := chart.BarChart{
		Title:    title,
		Width:    chartWidth,
		Height:   chartHeight,
		BarWidth: barWidthFor(len(points)),
		Background: chart.Style{
			Padding: chart.Box{Top: 48, Left: 24, Right: 24, Bottom: 16},
		},
		// Anchors the range at zero so single-bar charts keep a valid
		// axis span.
		UseBaseValue: true,
		BaseValue:    0,
		XAxis:        chart.Style{FontSize: 11},
		YAxis: chart.YAxis{
			Style: chart.Style{FontSize: 10},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return deck.FormatMetricValue(f)
				}
				return ""
			},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %v", err)
	}
	return buf.Bytes(), nil
}

// barWidthFor keeps a few bars wide and many bars readable.
func barWidthFor(n int) int {
	if n <= 0 {
		return 80
	}
	w := 520 / n
	if w > 160 {
		return 160
	}
	if w < 60 {
		return 60
	}
	return w
}
