package report

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/ride.report/internal/fsutil"
	"github.com/banshee-data/ride.report/internal/ride/pipeline"
	"github.com/banshee-data/ride.report/internal/security"
)

// Artefact file names inside a ride's report directory.
const (
	TextFile = "report.txt"
	HTMLFile = "report.html"
	PNGFile  = "timeline.png"
	JSONFile = "result.json"
)

// Writer saves report artefacts under Dir/<ride>.
type Writer struct {
	FS  fsutil.FileSystem
	Dir string
}

// NewWriter writes to dir on the host filesystem.
func NewWriter(dir string) *Writer {
	return &Writer{FS: fsutil.OSFileSystem{}, Dir: dir}
}

// Paths lists the files written for one ride.
type Paths struct {
	Dir  string `json:"dir"`
	Text string `json:"text"`
	HTML string `json:"html"`
	PNG  string `json:"png"`
	JSON string `json:"json"`
}

// RideDir is the directory holding a ride's artefacts.
func (w *Writer) RideDir(name string) string {
	return filepath.Join(w.Dir, security.SanitizeFilename(name))
}

// Write renders every artefact for res. name is usually the ride id.
func (w *Writer) Write(name string, res *pipeline.Result, resultJSON []byte) (*Paths, error) {
	dir := w.RideDir(name)
	if err := w.FS.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	p := &Paths{
		Dir:  dir,
		Text: filepath.Join(dir, TextFile),
		HTML: filepath.Join(dir, HTMLFile),
		PNG:  filepath.Join(dir, PNGFile),
		JSON: filepath.Join(dir, JSONFile),
	}

	renders := []struct {
		path   string
		render func(*bytes.Buffer) error
	}{
		{p.Text, func(b *bytes.Buffer) error { return WriteText(b, res) }},
		{p.HTML, func(b *bytes.Buffer) error { return WriteHTML(b, res) }},
		{p.PNG, func(b *bytes.Buffer) error { return WritePNG(b, res) }},
	}
	for _, r := range renders {
		var buf bytes.Buffer
		if err := r.render(&buf); err != nil {
			return nil, fmt.Errorf("render %s: %w", filepath.Base(r.path), err)
		}
		if err := w.FS.WriteFile(r.path, buf.Bytes(), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", r.path, err)
		}
	}
	if resultJSON != nil {
		if err := w.FS.WriteFile(p.JSON, resultJSON, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", p.JSON, err)
		}
	} else {
		p.JSON = ""
	}
	return p, nil
}
