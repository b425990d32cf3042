package report

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/ride.report/internal/ride/pipeline"
)

// WritePNG draws the tier timeline as a step plot with DANGER windows
// marked, and writes it as a PNG.
func WritePNG(w io.Writer, res *pipeline.Result) error {
	if res == nil {
		return fmt.Errorf("report: nil result")
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Ride risk timeline (%s)", res.Verdict)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Tier"
	p.Y.Min, p.Y.Max = -0.2, 2.2
	p.Y.Tick.Marker = plot.ConstantTicks([]plot.Tick{
		{Value: 0, Label: "SAFE"},
		{Value: 1, Label: "CAUTION"},
		{Value: 2, Label: "DANGER"},
	})
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, 0, len(res.Timeline))
	var danger plotter.XYs
	for _, tp := range res.Timeline {
		pt := plotter.XY{X: float64(tp.FrameID), Y: float64(tierLevel(tp.Tier))}
		pts = append(pts, pt)
		if tp.Tier == "DANGER" {
			danger = append(danger, pt)
		}
	}

	if len(pts) > 0 {
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("timeline line: %w", err)
		}
		line.StepStyle = plotter.PostStep
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add("tier", line)
	}
	if len(danger) > 0 {
		marks, err := plotter.NewScatter(danger)
		if err != nil {
			return fmt.Errorf("danger markers: %w", err)
		}
		marks.GlyphStyle.Radius = vg.Points(3)
		p.Add(marks)
		p.Legend.Add("danger", marks)
	}

	wt, err := p.WriterTo(12*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("png writer: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
