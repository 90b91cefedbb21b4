package viz

import (
	"github.com/guptarohit/asciigraph"
)

// Plot draws one series as an ascii line chart. Long series are reduced to
// width points by asciigraph itself.
func Plot(values []float64, caption string, width, height int) string {
	if len(values) == 0 {
		return Subtle.Render("no data: " + caption)
	}
	return asciigraph.Plot(values,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}
