package value

import "fmt"

// GeometryKind discriminates the GeoJSON-shaped geometry variants in §3.1.
type GeometryKind uint8

const (
	GeomPoint GeometryKind = iota
	GeomLine
	GeomPolygon
	GeomMultiPoint
	GeomMultiLine
	GeomMultiPolygon
	GeomCollection
)

// Point is a (longitude, latitude) pair, matching GeoJSON coordinate order.
type Point struct {
	Lng, Lat float64
}

// Polygon is an exterior ring plus zero or more interior (hole) rings.
type Polygon struct {
	Exterior []Point
	Holes    [][]Point
}

// Geometry is the sum of the geometry shapes. Only the field matching Kind
// is meaningful.
type Geometry struct {
	Kind GeometryKind

	point    Point
	line     []Point
	polygon  Polygon
	mpoint   []Point
	mline    [][]Point
	mpolygon []Polygon
	coll     []Geometry
}

func NewPoint(lng, lat float64) Geometry { return Geometry{Kind: GeomPoint, point: Point{lng, lat}} }
func NewLine(pts []Point) Geometry       { return Geometry{Kind: GeomLine, line: pts} }
func NewPolygon(p Polygon) Geometry      { return Geometry{Kind: GeomPolygon, polygon: p} }
func NewMultiPoint(pts []Point) Geometry { return Geometry{Kind: GeomMultiPoint, mpoint: pts} }
func NewMultiLine(lines [][]Point) Geometry {
	return Geometry{Kind: GeomMultiLine, mline: lines}
}
func NewMultiPolygon(polys []Polygon) Geometry {
	return Geometry{Kind: GeomMultiPolygon, mpolygon: polys}
}
func NewCollection(geoms []Geometry) Geometry {
	return Geometry{Kind: GeomCollection, coll: geoms}
}

func (g Geometry) Point() Point           { return g.point }
func (g Geometry) Line() []Point          { return g.line }
func (g Geometry) Polygon() Polygon       { return g.polygon }
func (g Geometry) MultiPoint() []Point    { return g.mpoint }
func (g Geometry) MultiLine() [][]Point   { return g.mline }
func (g Geometry) MultiPolygon() []Polygon { return g.mpolygon }
func (g Geometry) Collection() []Geometry { return g.coll }

// Validate enforces the "geometry polygon empty" index error in §7: a
// Polygon must have a non-empty exterior ring.
func (g Geometry) Validate() error {
	switch g.Kind {
	case GeomPolygon:
		if len(g.polygon.Exterior) == 0 {
			return fmt.Errorf("polygon exterior ring is empty")
		}
	case GeomMultiPolygon:
		for _, p := range g.mpolygon {
			if len(p.Exterior) == 0 {
				return fmt.Errorf("polygon exterior ring is empty")
			}
		}
	}
	return nil
}

func geometryCompare(a, b Geometry) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case GeomPoint:
		return pointCompare(a.point, b.point)
	case GeomLine:
		return pointsCompare(a.line, b.line)
	case GeomPolygon:
		return polygonCompare(a.polygon, b.polygon)
	case GeomMultiPoint:
		return pointsCompare(a.mpoint, b.mpoint)
	case GeomMultiLine:
		if len(a.mline) != len(b.mline) {
			return intCompare(int64(len(a.mline)), int64(len(b.mline)))
		}
		for i := range a.mline {
			if c := pointsCompare(a.mline[i], b.mline[i]); c != 0 {
				return c
			}
		}
		return 0
	case GeomMultiPolygon:
		if len(a.mpolygon) != len(b.mpolygon) {
			return intCompare(int64(len(a.mpolygon)), int64(len(b.mpolygon)))
		}
		for i := range a.mpolygon {
			if c := polygonCompare(a.mpolygon[i], b.mpolygon[i]); c != 0 {
				return c
			}
		}
		return 0
	case GeomCollection:
		if len(a.coll) != len(b.coll) {
			return intCompare(int64(len(a.coll)), int64(len(b.coll)))
		}
		for i := range a.coll {
			if c := geometryCompare(a.coll[i], b.coll[i]); c != 0 {
				return c
			}
		}
		return 0
	default:
		return 0
	}
}

func pointCompare(a, b Point) int {
	if c := floatCompare(a.Lng, b.Lng); c != 0 {
		return c
	}
	return floatCompare(a.Lat, b.Lat)
}

func pointsCompare(a, b []Point) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := pointCompare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return intCompare(int64(len(a)), int64(len(b)))
}

func polygonCompare(a, b Polygon) int {
	if c := pointsCompare(a.Exterior, b.Exterior); c != 0 {
		return c
	}
	if len(a.Holes) != len(b.Holes) {
		return intCompare(int64(len(a.Holes)), int64(len(b.Holes)))
	}
	for i := range a.Holes {
		if c := pointsCompare(a.Holes[i], b.Holes[i]); c != 0 {
			return c
		}
	}
	return 0
}
