package reports

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"geopandemic/internal/engine"
	"geopandemic/pkg/domain"
	"sort"
)

// dayReports groups reports of one simulated day, cells in id order.
type dayReports struct {
	Day       int                 `json:"day"`
	Aggregate domain.Report       `json:"aggregate"`
	Cells     []domain.CellReport `json:"cells"`
}

func groupByDay(reports []domain.CellReport) []dayReports {
	byDay := make(map[int][]domain.CellReport)
	for _, r := range reports {
		byDay[r.Day] = append(byDay[r.Day], r)
	}
	days := make([]int, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Ints(days)
	out := make([]dayReports, 0, len(days))
	for _, d := range days {
		cells := byDay[d]
		sort.Slice(cells, func(i, j int) bool { return cells[i].CellID < cells[j].CellID })
		out = append(out, dayReports{Day: d, Aggregate: engine.Summarize(cells), Cells: cells})
	}
	return out
}

func render(f Format, runID string, days []dayReports) ([]byte, error) {
	switch f {
	case FormatCSV:
		return renderCSV(days)
	case FormatJSON:
		return renderJSON(runID, days)
	case FormatLog:
		return renderLog(days), nil
	case FormatPNG:
		return renderChart(runID, days)
	case FormatMJPEG:
		return renderAnimation(days)
	default:
		return nil, fmt.Errorf("unsupported export format %s", f)
	}
}

func renderCSV(days []dayReports) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(append([]string{"day", "cell_id"}, domain.ReportColumns...)); err != nil {
		return nil, err
	}
	for _, d := range days {
		for _, c := range d.Cells {
			if err := w.Write(append([]string{fmt.Sprint(d.Day), c.CellID}, c.Report.Record()...)); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderJSON(runID string, days []dayReports) ([]byte, error) {
	payload, err := json.MarshalIndent(struct {
		RunID string       `json:"run_id"`
		Days  []dayReports `json:"days"`
	}{runID, days}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return payload, nil
}

// renderLog writes the day number on its own line followed by one
// "<cell>;<tuple>" line per cell.
func renderLog(days []dayReports) []byte {
	buf := &bytes.Buffer{}
	for _, d := range days {
		fmt.Fprintf(buf, "%d\n", d.Day)
		for _, c := range d.Cells {
			fmt.Fprintf(buf, "%s;%s\n", c.CellID, c.Report)
		}
	}
	return buf.Bytes()
}
