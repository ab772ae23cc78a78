// Package mapdata holds the shared value types produced by
// mapdata/parser and consumed by mapdata/render: the decoded geometry
// of a Roborock map blob.
//
// Grounded on original_source/.../map_data.py's plain dataclasses,
// translated to Go structs with exported fields.
package mapdata

// MM is the map's millimeters-per-grid-unit scale factor, used to
// translate between image pixel coordinates and map world coordinates.
const MM = 50

// Point is a single map-space coordinate, optionally carrying a
// direction angle (used for the charger and robot positions).
type Point struct {
	X, Y  int32
	Angle *int32
}

// Path is a polyline set: PointLength is the total point count across
// every sub-path (used by mop-path reconstruction, which can split one
// path into several), PointSize and Angle are carried through from the
// block header unmodified.
type Path struct {
	PointLength int32
	PointSize   int32
	Angle       int32
	Paths       [][]Point
}

// Wall is a single virtual-wall line segment.
type Wall struct {
	X0, Y0, X1, Y1 int32
}

// Zone is an axis-aligned cleaning zone rectangle.
type Zone struct {
	X0, Y0, X1, Y1 int32
}

// Area is a general-purpose quadrilateral used for no-go, no-mopping,
// and no-carpet regions.
type Area struct {
	X0, Y0, X1, Y1, X2, Y2, X3, Y3 int32
}

// Obstacle is a single detected obstacle, with optional classification
// fields present only for the larger record-size variants.
type Obstacle struct {
	X, Y int32

	HasType    bool
	Type       int32
	Description string

	HasConfidence   bool
	ConfidenceLevel float64

	PhotoName string
}

// Room is one room id observed in the image block, with its bounding
// box in image pixel coordinates translated back to map (world)
// coordinates.
type Room struct {
	Number         int
	X0, Y0, X1, Y1 int32
}

// ImageBlock is the raw classified pixel grid extracted from the
// IMAGE block, before rendering assigns colors to pixel types. Pixels
// is row-major, width*height bytes, each the original wire byte
// (pixel-type classification happens in mapdata/render).
type ImageBlock struct {
	Top, Left, Height, Width int32
	Pixels                   []byte
}

// MapData is the fully decoded result of parsing one map blob.
type MapData struct {
	MajorVersion, MinorVersion uint16
	MapIndex, MapSequence      uint32
	IsValid                    bool

	Charger        *Point
	VacuumPosition *Point
	Goto           *Point

	Path          *Path
	GotoPath      *Path
	PredictedPath *Path
	MopPath       *Path

	Zones         []Zone
	NoGoAreas     []Area
	NoMoppingAreas []Area
	NoCarpetAreas []Area
	Walls         []Wall

	Obstacles                   []Obstacle
	IgnoredObstacles            []Obstacle
	ObstaclesWithPhoto          []Obstacle
	IgnoredObstaclesWithPhoto   []Obstacle

	CarpetMap map[int]struct{}
	Blocks    []byte

	Image *ImageBlock
	Rooms map[int]Room

	// VacuumRoom is the room id the robot currently occupies, resolved
	// after Rooms and VacuumPosition are both known. Zero when unknown.
	VacuumRoom int
	HasVacuumRoom bool
}
