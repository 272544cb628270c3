package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/consolidator/core/model"
)

// TraceChart plots the anytime trace: objective value against elapsed
// seconds since start.
func TraceChart(stats model.Statistics) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Anytime trace", Subtitle: stats.Status.String()}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Elapsed (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Objective"}),
	)
	xAxis := make([]string, len(stats.Scores))
	values := make([]opts.LineData, len(stats.Scores))
	for i, s := range stats.Scores {
		xAxis[i] = fmt.Sprintf("%.3f", s.At.Sub(stats.Start).Seconds())
		values[i] = opts.LineData{Value: s.Value}
	}
	line.SetXAxis(xAxis).AddSeries("Objective", values)
	return line
}

// PowerChart stacks the planned power of every data center per slot.
func PowerChart(plans []model.EascPlan) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Planned power"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Slot"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Power (W)"}),
		charts.WithLegendOpts(opts.Legend{Show: true}),
	)
	if len(plans) == 0 {
		return bar
	}
	r := plans[0].Range
	xAxis := make([]string, r.Slots())
	for i := range xAxis {
		xAxis[i] = r.SlotStart(i).Format("01-02 15:04")
	}
	bar.SetXAxis(xAxis)
	profile := model.PowerProfile(plans)
	dcs := make([]string, 0, len(profile))
	for dc := range profile {
		dcs = append(dcs, dc)
	}
	sort.Strings(dcs)
	for _, dc := range dcs {
		data := make([]opts.BarData, len(profile[dc]))
		for i, p := range profile[dc] {
			data[i] = opts.BarData{Value: p}
		}
		bar.AddSeries(dc, data, charts.WithBarChartOpts(opts.BarChart{Stack: "power"}))
	}
	return bar
}

// WriteHTML renders the trace and planned power charts into one page.
func WriteHTML(w io.Writer, stats model.Statistics, plans []model.EascPlan) error {
	page := components.NewPage()
	page.PageTitle = "Consolidation"
	page.AddCharts(TraceChart(stats), PowerChart(plans))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
