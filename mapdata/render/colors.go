// Package render composites a decoded mapdata.MapData into a raster
// image: base pixel classification, overlays (paths, zones, walls,
// obstacles, charger, robot, room names), rotation, and text layers.
//
// Grounded on original_source's ImageHandlerRoborock: the COLORS table,
// draw_* overlay functions, the fixed draw order, and the rotate/
// draw_texts post-processing steps. Uses stdlib image/color/draw for
// compositing and golang.org/x/image/draw's nearest-neighbor scaler for
// scaling, as noted in SPEC_FULL.md §2/§3.7.
package render

import "image/color"

// Pixel classification bytes, as documented on the IMAGE block.
const (
	pixelOutside = 0x00
	pixelWall    = 0x01
	pixelInside  = 0xFF
	pixelScan    = 0x07
)

// Palette holds every named color the renderer draws with. A Palette
// equal to the zero value is replaced by DefaultPalette as a whole; in
// any other Palette, zero-value fields are used as they are (fully
// transparent black) and do not fall back to DefaultPalette per slot.
type Palette struct {
	Inside, Outside, Wall, WallV2, GreyWall color.NRGBA
	CleanedArea                             color.NRGBA
	Path, MopPath, GotoPath, PredictedPath  color.NRGBA
	Zones, ZonesOutline                     color.NRGBA
	VirtualWalls                            color.NRGBA
	NoGoZones, NoGoZonesOutline             color.NRGBA
	NoMoppingZones, NoMoppingZonesOutline   color.NRGBA
	NoCarpetZones, NoCarpetZonesOutline     color.NRGBA
	Carpets                                 color.NRGBA
	Charger, ChargerOutline                 color.NRGBA
	Robot, RobotOutline                     color.NRGBA
	RoomNames                               color.NRGBA
	Obstacle, ObstacleOutline                color.NRGBA
	Scan                                    color.NRGBA
	Rooms                                   [16]color.NRGBA
}

// DefaultPalette mirrors the original's COLORS table.
var DefaultPalette = Palette{
	Inside:         color.NRGBA{32, 115, 185, 255},
	Outside:        color.NRGBA{0, 0, 0, 0},
	Wall:           color.NRGBA{109, 110, 112, 255},
	WallV2:         color.NRGBA{109, 110, 112, 255},
	GreyWall:       color.NRGBA{0, 0, 0, 0},
	CleanedArea:    color.NRGBA{127, 127, 127, 127},
	Path:           color.NRGBA{255, 255, 255, 255},
	MopPath:        color.NRGBA{255, 255, 255, 0x5F},
	GotoPath:       color.NRGBA{0, 255, 0, 255},
	PredictedPath:  color.NRGBA{255, 255, 0, 255},
	Zones:          color.NRGBA{0xAD, 0xD8, 0xFF, 0x8F},
	ZonesOutline:   color.NRGBA{0xAD, 0xD8, 0xFF, 255},
	VirtualWalls:   color.NRGBA{255, 0, 0, 255},
	NoGoZones:          color.NRGBA{255, 94, 73, 102},
	NoGoZonesOutline:   color.NRGBA{255, 94, 73, 255},
	NoMoppingZones:        color.NRGBA{163, 130, 211, 127},
	NoMoppingZonesOutline: color.NRGBA{163, 130, 211, 255},
	NoCarpetZones:         color.NRGBA{255, 33, 55, 127},
	NoCarpetZonesOutline:  color.NRGBA{255, 0, 0, 255},
	Carpets:        color.NRGBA{0, 0, 0, 51},
	Charger:        color.NRGBA{86, 85, 210, 255},
	ChargerOutline: color.NRGBA{255, 255, 255, 255},
	Robot:          color.NRGBA{0xff, 0xff, 0xff, 255},
	RobotOutline:   color.NRGBA{0, 0, 0, 255},
	RoomNames:      color.NRGBA{0, 0, 0, 255},
	Obstacle:        color.NRGBA{63, 159, 254, 255},
	ObstacleOutline: color.NRGBA{255, 255, 255, 255},
	Scan:           color.NRGBA{0xDF, 0xDF, 0xDF, 255},
	Rooms: [16]color.NRGBA{
		{240, 178, 122, 255}, {133, 193, 233, 255}, {217, 136, 128, 255}, {52, 152, 219, 255},
		{205, 97, 85, 255}, {243, 156, 18, 255}, {88, 214, 141, 255}, {245, 176, 65, 255},
		{252, 212, 81, 255}, {72, 201, 176, 255}, {84, 153, 199, 255}, {133, 193, 233, 255},
		{245, 176, 65, 255}, {82, 190, 128, 255}, {72, 201, 176, 255}, {165, 105, 189, 255},
	},
}

func roomColor(p Palette, roomID int) color.NRGBA {
	if roomID < 0 || roomID >= len(p.Rooms) {
		return p.Rooms[0]
	}
	return p.Rooms[roomID]
}

// classify returns the base color for one raw IMAGE pixel byte.
func classify(p Palette, b byte) color.NRGBA {
	switch b {
	case pixelOutside:
		return p.Outside
	case pixelWall:
		return p.Wall
	case pixelInside:
		return p.Inside
	case pixelScan:
		return p.Scan
	}
	switch b & 0x07 {
	case 0:
		return p.GreyWall
	case 1:
		return p.WallV2
	case 7:
		return roomColor(p, int(b>>3))
	default:
		return p.Outside
	}
}
