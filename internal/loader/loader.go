package loader

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"ais-trajectory/internal/ais"
)

// Column order of the normalized position table.
const (
	colTime = iota
	colShipType
	colVesselID
	colLatitude
	colLongitude
	numColumns
)

var headerNames = [numColumns]string{"time", "ship type", "mmsi", "latitude", "longitude"}

// Layout describes how one category's source file is delimited and addressed.
type Layout struct {
	// ExtraSeparators are rewritten to commas before the file is parsed.
	ExtraSeparators string
	// ByHeader resolves columns by header name. Otherwise the header row is
	// skipped and columns are taken by position.
	ByHeader bool
}

// Layouts holds the source layout of each vessel category.
var Layouts = map[ais.Category]Layout{
	ais.Cargo:  {ByHeader: true},
	ais.Tanker: {ExtraSeparators: ";"},
}

// FileSource loads position tables from the files of a data directory.
type FileSource struct {
	dir    string
	files  map[ais.Category]string
	logger *zap.Logger
}

func NewFileSource(dir string, files map[ais.Category]string, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{dir: dir, files: files, logger: logger}
}

// Load reads and parses the source file of category c.
func (s *FileSource) Load(ctx context.Context, c ais.Category) (ais.Table, error) {
	name, ok := s.files[c]
	if !ok || name == "" {
		return ais.Table{}, fmt.Errorf("no source file configured for %s", c)
	}
	layout, ok := Layouts[c]
	if !ok {
		return ais.Table{}, fmt.Errorf("no layout for %s", c)
	}
	path := filepath.Join(s.dir, name)
	s.logger.Debug("reading position file", zap.String("category", c.String()), zap.String("path", path))

	raw, err := os.ReadFile(path)
	if err != nil {
		return ais.Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return ais.Table{}, err
	}
	t, err := Parse(bytes.NewReader(raw), c, layout, s.logger)
	if err != nil {
		return ais.Table{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a delimited position file into a table. Malformed rows are
// counted in Table.Rejected; a missing header is an error.
func Parse(r io.Reader, c ais.Category, layout Layout, logger *zap.Logger) (ais.Table, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if layout.ExtraSeparators != "" {
		raw, err := io.ReadAll(r)
		if err != nil {
			return ais.Table{}, err
		}
		r = strings.NewReader(normalizeSeparators(string(raw), layout.ExtraSeparators))
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return ais.Table{}, errors.New("empty file: missing header")
	}
	if err != nil {
		return ais.Table{}, fmt.Errorf("read header: %w", err)
	}
	index := positionalIndex()
	if layout.ByHeader {
		if index, err = headerIndex(header); err != nil {
			return ais.Table{}, err
		}
	}

	t := ais.Table{Category: c}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				t.Rejected++
				logger.Debug("rejected row", zap.String("category", c.String()), zap.Int("line", perr.Line), zap.Error(err))
				continue
			}
			return ais.Table{}, err
		}
		f, err := parseRecord(rec, index)
		if err != nil {
			line, _ := cr.FieldPos(0)
			t.Rejected++
			logger.Debug("rejected row", zap.String("category", c.String()), zap.Int("line", line), zap.Error(err))
			continue
		}
		t.Fixes = append(t.Fixes, f)
	}
	if t.Rejected > 0 {
		logger.Warn("dropped malformed rows", zap.String("category", c.String()), zap.Int("rows", t.Rejected))
	}
	return t, nil
}

func normalizeSeparators(s, seps string) string {
	pairs := make([]string, 0, 2*len(seps))
	for _, r := range seps {
		pairs = append(pairs, string(r), ",")
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

func positionalIndex() [numColumns]int {
	var idx [numColumns]int
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func headerIndex(header []string) ([numColumns]int, error) {
	var idx [numColumns]int
	for i := range idx {
		idx[i] = -1
	}
	for pos, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for col, want := range headerNames {
			if h == want && idx[col] < 0 {
				idx[col] = pos
			}
		}
	}
	var missing []string
	for col, pos := range idx {
		if pos < 0 {
			missing = append(missing, headerNames[col])
		}
	}
	if len(missing) > 0 {
		return idx, fmt.Errorf("header missing columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseRecord(rec []string, idx [numColumns]int) (ais.Fix, error) {
	for _, pos := range idx {
		if pos >= len(rec) {
			return ais.Fix{}, fmt.Errorf("expected at least %d fields, got %d", pos+1, len(rec))
		}
	}
	field := func(col int) string { return strings.TrimSpace(rec[idx[col]]) }

	ts, err := time.Parse(ais.TimeLayout, field(colTime))
	if err != nil {
		return ais.Fix{}, fmt.Errorf("time: %w", err)
	}
	id, err := strconv.ParseInt(field(colVesselID), 10, 64)
	if err != nil {
		return ais.Fix{}, fmt.Errorf("mmsi: %w", err)
	}
	lat, err := parseCoordinate(field(colLatitude))
	if err != nil {
		return ais.Fix{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := parseCoordinate(field(colLongitude))
	if err != nil {
		return ais.Fix{}, fmt.Errorf("longitude: %w", err)
	}
	return ais.Fix{
		Time:      ts,
		ShipType:  field(colShipType),
		VesselID:  id,
		Latitude:  lat,
		Longitude: lon,
	}, nil
}

func parseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
