package domain

import "testing"

func TestNewReportRoundsAggregates(t *testing.T) {
	s := seirdState()
	r := NewReport(s)
	if r.Population != 1000 {
		t.Fatalf("population: %g", r.Population)
	}
	// 0.4*0.04 + 0.6*0.08 = 0.064
	if r.Infected != 0.064 {
		t.Fatalf("infected: %g", r.Infected)
	}
	if r.NewInfected != s.Round(0.4*0.03+0.6*0.05) {
		t.Fatalf("new infected: %g", r.NewInfected)
	}
	if r.Dose1 != 0 || r.Dose2 != 0 {
		t.Fatalf("doses reported without vaccination: %+v", r)
	}
	for i, v := range r.Values() {
		if v != s.Round(v) && i != 0 {
			t.Fatalf("column %s not on precision grid: %g", ReportColumns[i], v)
		}
	}
}

func TestReportString(t *testing.T) {
	r := Report{
		Population: 5000, Susceptible: 0.9, Exposed: 0.05, Infected: 0.03, Recovered: 0.02,
		NewExposed: 0.01, NewInfected: 0.005, NewRecovered: 0.002, Fatalities: 0.0001,
	}
	want := "<5000,0.9,0.05,0,0,0.03,0.02,0.01,0.005,0.002,0.0001>"
	if got := r.String(); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
	if len(r.Record()) != len(ReportColumns) {
		t.Fatalf("record and columns disagree")
	}
}
