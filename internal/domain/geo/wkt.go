package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// ParsePoint reads a point written as WKT ("POINT(x y)", optionally prefixed
// with "SRID=n;") or as a comma-separated coordinate list ("x,y").
func ParsePoint(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "SRID=") {
		_, rest, ok := strings.Cut(upper, ";")
		if !ok {
			return nil, fmt.Errorf("malformed EWKT %q", s)
		}
		upper = strings.TrimSpace(rest)
	}

	if strings.HasPrefix(upper, "POINT") {
		return parseWKT(upper)
	}
	return parseCoords(strings.Split(s, ","), s)
}

func parseWKT(s string) ([]float64, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("parse WKT %q: %w", s, err)
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return nil, fmt.Errorf("WKT %q is not a point", s)
	}
	if pt.Empty() {
		return nil, errors.New("empty WKT point")
	}
	coords := pt.FlatCoords()
	out := make([]float64, len(coords))
	copy(out, coords)
	return out, nil
}

func parseCoords(parts []string, src string) ([]float64, error) {
	if len(parts) < 2 {
		return nil, fmt.Errorf("point %q needs at least two coordinates", src)
	}
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("point %q: coordinate %d: %w", src, i, err)
		}
		out[i] = v
	}
	return out, nil
}
