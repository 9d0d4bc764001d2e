package reports

import (
	"bytes"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	chartWidth  = 1024
	chartHeight = 512
)

var (
	colorSusceptible = drawing.Color{R: 3, G: 67, B: 223, A: 255}
	colorExposed     = drawing.Color{R: 169, G: 86, B: 30, A: 255}
	colorDose1       = drawing.Color{R: 185, G: 31, B: 222, A: 255}
	colorDose2       = drawing.Color{R: 104, G: 13, B: 90, A: 255}
	colorInfected    = drawing.Color{R: 229, G: 0, B: 0, A: 255}
	colorRecovered   = drawing.Color{R: 21, G: 176, B: 26, A: 255}
	colorFatalities  = drawing.Color{R: 0, G: 0, B: 0, A: 255}
)

// renderChart plots the population-weighted compartment curves of a run.
// Vaccination curves are drawn only when some day reports doses.
func renderChart(runID string, days []dayReports) ([]byte, error) {
	if len(days) == 0 {
		return nil, fmt.Errorf("render chart: no reports")
	}
	x := make([]float64, len(days))
	curves := map[string][]float64{}
	names := []string{"Susceptible", "Exposed", "Infected", "Recovered", "Deaths", "Dose 1", "Dose 2"}
	for _, n := range names {
		curves[n] = make([]float64, len(days))
	}
	vaccinated := false
	for i, d := range days {
		a := d.Aggregate
		x[i] = float64(d.Day)
		curves["Susceptible"][i] = a.Susceptible
		curves["Exposed"][i] = a.Exposed
		curves["Infected"][i] = a.Infected
		curves["Recovered"][i] = a.Recovered
		curves["Deaths"][i] = a.Fatalities
		curves["Dose 1"][i] = a.Dose1
		curves["Dose 2"][i] = a.Dose2
		if a.Dose1 > 0 || a.Dose2 > 0 {
			vaccinated = true
		}
	}
	colors := map[string]drawing.Color{
		"Susceptible": colorSusceptible,
		"Exposed":     colorExposed,
		"Infected":    colorInfected,
		"Recovered":   colorRecovered,
		"Deaths":      colorFatalities,
		"Dose 1":      colorDose1,
		"Dose 2":      colorDose2,
	}
	var series []chart.Series
	for _, n := range names {
		if !vaccinated && (n == "Dose 1" || n == "Dose 2") {
			continue
		}
		series = append(series, chart.ContinuousSeries{
			Name:    n,
			XValues: x,
			YValues: curves[n],
			Style:   chart.Style{StrokeColor: colors[n], StrokeWidth: 2.0},
		})
	}
	xMax := math.Max(x[len(x)-1], x[0]+1)
	graph := chart.Chart{
		Title:  "Run " + runID,
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "Day",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: x[0], Max: xMax},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "Population (%)",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%.0f", v.(float64)*100)
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	buf := &bytes.Buffer{}
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}
