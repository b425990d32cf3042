package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/ride.report/internal/ride/pipeline"
	"github.com/banshee-data/ride.report/internal/ride/risk"
)

// AssetsHost serves the echarts javascript. An empty value keeps the
// library default CDN.
var AssetsHost = ""

// tierLevel maps a timeline tier label onto the chart's y axis.
func tierLevel(label string) int {
	for _, t := range []risk.Tier{risk.Safe, risk.Caution, risk.Danger} {
		if t.String() == label {
			return int(t)
		}
	}
	return 0
}

func initOpts(title string) opts.Initialization {
	return opts.Initialization{PageTitle: title, Width: "100%", Height: "420px", AssetsHost: AssetsHost}
}

// TimelineChart plots the tier of each window against its first frame.
func TimelineChart(res *pipeline.Result) *charts.Line {
	x := make([]int, len(res.Timeline))
	y := make([]opts.LineData, len(res.Timeline))
	for i, p := range res.Timeline {
		x[i] = p.FrameID
		y[i] = opts.LineData{Value: tierLevel(p.Tier), Name: p.Description}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts("Ride Risk Timeline")),
		charts.WithTitleOpts(opts.Title{
			Title:    "Risk Timeline",
			Subtitle: fmt.Sprintf("verdict=%s windows=%d critical=%d", res.Verdict, res.TotalSamples, res.CriticalFrames),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Tier (0 safe, 2 danger)", Min: 0, Max: 2}),
	)
	line.SetXAxis(x).AddSeries("tier", y,
		charts.WithLineChartOpts(opts.LineChart{Step: "end"}),
	)
	return line
}

// HazardChart shows the reported hazard counters.
func HazardChart(res *pipeline.Result) *charts.Bar {
	counts := res.Stats.Breakdown()
	x := make([]string, len(counts))
	y := make([]opts.BarData, len(counts))
	for i, c := range counts {
		x[i] = c.Name
		y[i] = opts.BarData{Value: c.Value}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts("Ride Hazards")),
		charts.WithTitleOpts(opts.Title{Title: "Hazard Breakdown", Subtitle: res.Reason}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 35, Interval: "0"}}),
	)
	bar.SetXAxis(x).AddSeries("count", y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}

// WriteHTML renders the timeline and hazard charts as one page.
func WriteHTML(w io.Writer, res *pipeline.Result) error {
	if res == nil {
		return fmt.Errorf("report: nil result")
	}
	page := components.NewPage()
	if AssetsHost != "" {
		page.SetAssetsHost(AssetsHost)
	}
	page.PageTitle = "Ride Report"
	page.AddCharts(TimelineChart(res), HazardChart(res))
	return page.Render(w)
}
