package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/persistorai/screener/client"
	"github.com/persistorai/screener/internal/models"
	"github.com/persistorai/screener/internal/risk"
)

func formatJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func formatTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			width := 0
			if i < len(widths) {
				width = widths[i]
			}
			parts[i] = fmt.Sprintf("%-*s", width, cell)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	printRow(headers)
	seps := make([]string, len(headers))
	for i, width := range widths {
		seps[i] = strings.Repeat("-", width)
	}
	printRow(seps)
	for _, row := range rows {
		printRow(row)
	}
}

// reportView is the printable form shared by local and remote reports.
type reportView struct {
	SearchID       string
	Client         string
	Target         string
	Terminal       string
	Classification string
	Found          bool
	RiskScore      float64
	Hops           *int
	Path           []string
	PairWeight     *float64
	Confidence     float64
	Iterations     int
	Nodes          int
	Edges          int
	Degraded       bool
	Interrupted    bool
	ErroredOut     []string
	Duration       time.Duration
}

func viewOf(r *models.RiskReport) reportView {
	toStrings := func(as []models.Address) []string {
		out := make([]string, len(as))
		for i, a := range as {
			out[i] = a.String()
		}
		return out
	}

	return reportView{
		SearchID:       r.SearchID.String(),
		Client:         r.Client.String(),
		Target:         r.Target.String(),
		Terminal:       string(r.Terminal),
		Classification: string(r.Classification),
		Found:          r.Found,
		RiskScore:      r.RiskScore,
		Hops:           r.ShortestPathLength,
		Path:           toStrings(r.Path),
		PairWeight:     r.PairWeight,
		Confidence:     r.Confidence,
		Iterations:     r.Iterations,
		Nodes:          r.Nodes,
		Edges:          r.Edges,
		Degraded:       r.Degraded,
		Interrupted:    r.Interrupted,
		ErroredOut:     toStrings(r.ErroredOut),
		Duration:       r.Duration,
	}
}

func viewOfRemote(r *client.RiskReport) reportView {
	return reportView{
		SearchID:       r.SearchID,
		Client:         r.Client,
		Target:         r.Target,
		Terminal:       r.Terminal,
		Classification: r.Classification,
		Found:          r.Found,
		RiskScore:      r.RiskScore,
		Hops:           r.ShortestPathLength,
		Path:           r.Path,
		PairWeight:     r.PairWeight,
		Confidence:     r.Confidence,
		Iterations:     r.Iterations,
		Nodes:          r.Nodes,
		Edges:          r.Edges,
		Degraded:       r.Degraded,
		Interrupted:    r.Interrupted,
		ErroredOut:     r.ErroredOut,
		Duration:       r.Duration,
	}
}

func printReport(w io.Writer, v reportView) {
	hops := "-"
	if v.Hops != nil {
		hops = strconv.Itoa(*v.Hops)
	}

	pair := "-"
	if v.PairWeight != nil {
		pair = strconv.FormatFloat(*v.PairWeight, 'f', 4, 64)
	}

	path := "-"
	if len(v.Path) > 0 {
		path = strings.Join(v.Path, " -> ")
	}

	rows := [][]string{
		{"search id", v.SearchID},
		{"client", v.Client},
		{"sanctioned", v.Target},
		{"terminal", v.Terminal},
		{"found", strconv.FormatBool(v.Found)},
		{"risk score", fmt.Sprintf("%.4f%%", v.RiskScore)},
		{"classification", v.Classification},
		{"hops", hops},
		{"path", path},
		{"pair weight", pair},
		{"confidence", fmt.Sprintf("%.4f%%", v.Confidence)},
		{"iterations", strconv.Itoa(v.Iterations)},
		{"graph", fmt.Sprintf("%d nodes, %d edges", v.Nodes, v.Edges)},
		{"duration", v.Duration.Round(time.Millisecond).String()},
	}

	if v.Terminal == string(models.TerminalMaxIters) {
		rows = append(rows, []string{"verdict", "inconclusive"})
	}
	if v.Interrupted {
		rows = append(rows, []string{"interrupted", "true"})
	}
	if v.Degraded {
		rows = append(rows, []string{"errored out", strings.Join(v.ErroredOut, ", ")})
	}

	formatTable(w, []string{"FIELD", "VALUE"}, rows)
}

func printAnalysis(w io.Writer, a *risk.Analysis) {
	path := make([]string, len(a.Path))
	for i, p := range a.Path {
		path[i] = p.String()
	}

	formatTable(w, []string{"FIELD", "VALUE"}, [][]string{
		{"client", a.Client.String()},
		{"sanctioned", a.Sanctioned.String()},
		{"risk score", fmt.Sprintf("%.2f%%", a.Percent)},
		{"classification", string(a.Classification)},
		{"shortest chain", fmt.Sprintf("%d hops", a.Hops)},
		{"path", strings.Join(path, " -> ")},
		{"cutoff", strconv.Itoa(a.Cutoff)},
		{"bands", "HIGH >10%, MODERATE 1-10%, LOW 0.1-1%, MINIMAL <0.1%"},
	})
}
