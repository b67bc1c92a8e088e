package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"

	"ais-trajectory/internal/ais"
	"ais-trajectory/internal/trajectory"
)

// Writer persists category summaries as text files in Dir.
type Writer struct {
	Dir string
}

func NewWriter(dir string) *Writer { return &Writer{Dir: dir} }

func VesselsPath(dir string, c ais.Category) string {
	return filepath.Join(dir, "unique_mmsi_"+c.String()+".txt")
}

func LengthsPath(dir string, c ais.Category) string {
	return filepath.Join(dir, "lengths_"+c.String()+".txt")
}

func VesselsText(v trajectory.VesselCounts) string {
	return fmt.Sprintf("%d unique MMSI for original data \n%d unique MMSI for filtered data", v.Original, v.Filtered)
}

func LengthsText(l trajectory.LengthCounts, th trajectory.Thresholds) string {
	return fmt.Sprintf("%d trajectories shorter than %gkm \n%d trajectories longer than %gkm", l.Short, th.ShortKm, l.Long, th.LongKm)
}

// Write stores both reports of one category and returns the written paths.
func (w *Writer) Write(c ais.Category, s trajectory.Summary) ([]string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	files := []struct {
		path string
		body string
	}{
		{VesselsPath(w.Dir, c), VesselsText(s.Vessels)},
		{LengthsPath(w.Dir, c), LengthsText(s.Lengths, s.Thresholds)},
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		if err := os.WriteFile(f.path, []byte(f.body), 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", f.path, err)
		}
		paths = append(paths, f.path)
	}
	return paths, nil
}

type Entry struct {
	Category ais.Category
	Summary  trajectory.Summary
}

// RenderTable prints one row per category to w.
func RenderTable(w io.Writer, entries []Entry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Category", "MMSI (original)", "MMSI (filtered)", "Segments", "Short", "Long"})
	for _, e := range entries {
		s := e.Summary
		t.AppendRow(table.Row{
			e.Category.String(),
			s.Vessels.Original,
			s.Vessels.Filtered,
			s.Segments,
			fmt.Sprintf("%d (<%gkm)", s.Lengths.Short, s.Thresholds.ShortKm),
			fmt.Sprintf("%d (>%gkm)", s.Lengths.Long, s.Thresholds.LongKm),
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
