package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gengqx/apollo/internal/calibration"
	"github.com/gengqx/apollo/internal/pluginpath"
	"github.com/gengqx/apollo/internal/storage"
)

// table renders rows under header with lipgloss cell styling. Column widths
// follow the widest cell.
func table(header []string, rows [][]string, style func(row, col int, cell string) lipgloss.Style) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, c := range r {
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}

	lines := make([]string, 0, len(rows)+1)
	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = HeaderCell.Width(widths[i] + 2).Render(h)
	}
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))

	for ri, r := range rows {
		cells := make([]string, len(r))
		for ci, c := range r {
			s := Cell
			if style != nil {
				s = style(ri, ci, c)
			}
			cells[ci] = s.Width(widths[ci] + 2).Render(c)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return strings.Join(lines, "\n")
}

// Calibration renders a calibration table grouped by speed.
func Calibration(path string, t calibration.Table) string {
	entries := append([]calibration.Entry(nil), t.Calibration...)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Speed != entries[j].Speed {
			return entries[i].Speed < entries[j].Speed
		}
		return entries[i].Acceleration < entries[j].Acceleration
	})

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			fmt.Sprintf("%.2f", e.Speed),
			fmt.Sprintf("%.2f", e.Acceleration),
			fmt.Sprintf("%.2f", e.Command),
		})
	}
	body := table([]string{"SPEED m/s", "ACCEL m/s²", "COMMAND %"}, rows, func(row, col int, cell string) lipgloss.Style {
		if col != 2 {
			return Cell
		}
		if strings.HasPrefix(cell, "-") {
			return Cell.Inherit(Negative)
		}
		return Cell.Inherit(Positive)
	})

	return Title.Render("calibration") + " " + Subtle.Render(path) + "\n" +
		Panel.Render(body) + "\n" +
		Subtle.Render(fmt.Sprintf("%d entries", len(entries)))
}

// Controllers renders the registered controller names next to any plugin
// descriptor known for them.
func Controllers(names []string, descs []pluginpath.Descriptor) string {
	byName := make(map[string]pluginpath.Descriptor, len(descs))
	for _, d := range descs {
		byName[d.ClassName] = d
	}

	rows := make([][]string, 0, len(names))
	for _, n := range names {
		d, ok := byName[n]
		path, version := "-", "-"
		if ok {
			path = d.Path
			if d.Version != "" {
				version = d.Version
			}
		}
		rows = append(rows, []string{n, version, path})
	}
	return Panel.Render(table([]string{"CONTROLLER", "VERSION", "PLUGIN PATH"}, rows, nil))
}

// RunSummary renders a stored run's metadata and metrics.
func RunSummary(meta *storage.RunMetadata) string {
	var b strings.Builder
	b.WriteString(Title.Render(meta.ID) + "\n")

	kv := func(k, v string) {
		b.WriteString(MetricLabel.Render(fmt.Sprintf("%-12s", k)) + " " + v + "\n")
	}
	kv("scenario", meta.Scenario)
	kv("controllers", strings.Join(meta.Controllers, " -> "))
	kv("integrator", meta.Integrator)
	kv("steps", fmt.Sprintf("%d (dt %.3fs)", meta.Steps, meta.Dt))

	keys := make([]string, 0, len(meta.Metrics))
	for k := range meta.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kv(k, MetricValue.Render(fmt.Sprintf("%.4f", meta.Metrics[k])))
	}
	if n := len(meta.Errors); n > 0 {
		kv("errors", Warning.Render(fmt.Sprintf("%d failed cycles, first: %s", n, meta.Errors[0])))
	}
	return Panel.Render(strings.TrimRight(b.String(), "\n"))
}
