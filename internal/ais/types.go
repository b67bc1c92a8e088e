package ais

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the day/month/year timestamp pattern used by both source
// files. Day, month and hour may be written with or without a leading zero.
const TimeLayout = "2/1/2006 15:04:05"

type Category string

const (
	Cargo  Category = "cargo"
	Tanker Category = "tanker"
)

// Categories returns every supported vessel category in processing order.
func Categories() []Category { return []Category{Cargo, Tanker} }

func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case Cargo, Tanker:
		return c, nil
	}
	return "", fmt.Errorf("unknown vessel category %q", s)
}

func (c Category) String() string { return string(c) }

// Fix is one reported vessel position. Fixes are never mutated after loading.
type Fix struct {
	Time      time.Time
	ShipType  string
	VesselID  int64 // MMSI
	Latitude  float64
	Longitude float64
}

// Table is the typed position table handed to the engine for one category.
type Table struct {
	Category Category
	Fixes    []Fix
	Rejected int // malformed rows dropped by the loader
}
