// Package parser decodes a Roborock map blob (the binary payload
// returned by device/command's GetMapV1) into a mapdata.MapData.
//
// Grounded line-for-line on original_source's MapDataParserRoborock:
// a top-level header, then a sequence of tagged blocks dispatched by
// block type, each decoded at fixed offsets within its own header.
// Block decoding is a single switch over the block-type constants in
// Parse, in place of the original's if/elif chain.
package parser

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-roborock/roborock/mapdata"
)

// Block type constants, named exactly as the original parser's class
// constants.
const (
	blockCharger                    = 1
	blockImage                      = 2
	blockPath                       = 3
	blockGotoPath                   = 4
	blockGotoPredictedPath          = 5
	blockCurrentlyCleanedZones      = 6
	blockGotoTarget                 = 7
	blockRobotPosition              = 8
	blockNoGoAreas                  = 9
	blockVirtualWalls               = 10
	blockBlocks                     = 11
	blockNoMoppingAreas             = 12
	blockObstacles                  = 13
	blockIgnoredObstacles           = 14
	blockObstaclesWithPhoto         = 15
	blockIgnoredObstaclesWithPhoto  = 16
	blockCarpetMap                  = 17
	blockMopPath                    = 18
	blockNoCarpetAreas              = 19
	blockDigest                     = 1024
)

// ImageConfig controls how the IMAGE block's bounds are trimmed before
// pixel classification. Percentages are ignored (treated as zero) if
// applying them would shrink either dimension below its minimum.
type ImageConfig struct {
	TrimLeft, TrimRight, TrimTop, TrimBottom int
}

const (
	minimalImageWidth  = 10
	minimalImageHeight = 10
)

var (
	// ErrTruncated is returned when a block header or its data runs past
	// the end of the input.
	ErrTruncated = errors.New("parser: map blob truncated")
)

// Parse decodes a raw map blob into a MapData.
func Parse(raw []byte, cfg ImageConfig) (*mapdata.MapData, error) {
	if len(raw) < 0x14 {
		return nil, ErrTruncated
	}

	md := &mapdata.MapData{
		CarpetMap: make(map[int]struct{}),
	}
	headerLen := int(getUint16(raw, 0x02))
	md.MajorVersion = getUint16(raw, 0x08)
	md.MinorVersion = getUint16(raw, 0x0A)
	md.MapIndex = getUint32(raw, 0x0C)
	md.MapSequence = getUint32(raw, 0x10)

	pos := headerLen
	var imgStart int
	var imgHeader, imgData []byte
	haveImage := false

	for pos < len(raw) {
		if pos+0x04 > len(raw) {
			return nil, ErrTruncated
		}
		blockHeaderLen := int(getUint16(raw, pos+0x02))
		if pos+blockHeaderLen > len(raw) {
			return nil, ErrTruncated
		}
		header := raw[pos : pos+blockHeaderLen]
		blockType := getUint16(header, 0x00)
		blockDataLen := int(getUint32(header, 0x04))
		dataStart := pos + blockHeaderLen
		dataEnd := dataStart + blockDataLen
		if dataEnd > len(raw) {
			return nil, ErrTruncated
		}
		data := raw[dataStart:dataEnd]

		switch blockType {
		case blockCharger:
			p := parseObjectPosition(blockDataLen, data)
			md.Charger = &p
		case blockImage:
			imgStart = pos
			imgHeader = header
			imgData = data
			haveImage = true
		case blockRobotPosition:
			p := parseObjectPosition(blockDataLen, data)
			md.VacuumPosition = &p
		case blockPath:
			path := parsePath(pos, header, raw)
			md.Path = &path
		case blockGotoPath:
			path := parsePath(pos, header, raw)
			md.GotoPath = &path
		case blockGotoPredictedPath:
			path := parsePath(pos, header, raw)
			md.PredictedPath = &path
		case blockCurrentlyCleanedZones:
			md.Zones = parseZones(data, header)
		case blockGotoTarget:
			g := parseGotoTarget(data)
			md.Goto = &g
		case blockDigest:
			md.IsValid = true
		case blockVirtualWalls:
			md.Walls = parseWalls(data, header)
		case blockNoGoAreas:
			md.NoGoAreas = parseArea(header, data)
		case blockNoMoppingAreas:
			md.NoMoppingAreas = parseArea(header, data)
		case blockNoCarpetAreas:
			md.NoCarpetAreas = parseArea(header, data)
		case blockObstacles:
			md.Obstacles = parseObstacles(data, header)
		case blockIgnoredObstacles:
			md.IgnoredObstacles = parseObstacles(data, header)
		case blockObstaclesWithPhoto:
			md.ObstaclesWithPhoto = parseObstacles(data, header)
		case blockIgnoredObstaclesWithPhoto:
			md.IgnoredObstaclesWithPhoto = parseObstacles(data, header)
		case blockBlocks:
			blockPairs := int(getUint16(header, 0x08))
			if blockPairs <= len(data) {
				md.Blocks = append([]byte(nil), data[:blockPairs]...)
			}
		case blockMopPath:
			if md.Path != nil {
				mp := parseMopPath(*md.Path, data)
				md.MopPath = &mp
			}
		case blockCarpetMap:
			md.CarpetMap = parseCarpetMap(data)
		default:
			// Unknown block type: skip, matching the original's
			// debug-log-and-continue behavior.
		}

		// Documented quirk of the format: the trailing +header[2] term is
		// preserved exactly as the original computes the next block offset.
		pos = pos + blockDataLen + int(header[2])
	}

	if haveImage {
		img, rooms, err := parseImage(imgHeader, imgData, cfg)
		if err != nil {
			return nil, fmt.Errorf("parser: decode image block: %w", err)
		}
		md.Image = img
		md.Rooms = rooms

		if len(rooms) > 0 && md.VacuumPosition != nil {
			if room, ok := currentVacuumRoom(imgStart, raw, *md.VacuumPosition); ok {
				md.VacuumRoom = room
				md.HasVacuumRoom = true
			}
		}
	}

	return md, nil
}

func parseObjectPosition(dataLen int, data []byte) mapdata.Point {
	p := mapdata.Point{
		X: int32(getUint32(data, 0x00)),
		Y: int32(getUint32(data, 0x04)),
	}
	if dataLen > 8 {
		a := int32(getUint32(data, 0x08))
		if a > 0xFF {
			a = (a & 0xFF) - 256
		}
		p.Angle = &a
	}
	return p
}

func parseGotoTarget(data []byte) mapdata.Point {
	return mapdata.Point{
		X: int32(getUint16(data, 0x00)),
		Y: int32(getUint16(data, 0x02)),
	}
}

func parsePath(blockStart int, header, raw []byte) mapdata.Path {
	endPos := int(getUint32(header, 0x04))
	pointLength := int32(getUint32(header, 0x08))
	pointSize := int32(getUint32(header, 0x0C))
	angle := int32(getUint32(header, 0x10))

	startPos := blockStart + 0x14
	var points []mapdata.Point
	for p := startPos; p < startPos+endPos && p+4 <= len(raw); p += 4 {
		points = append(points, mapdata.Point{
			X: int32(getUint16(raw, p)),
			Y: int32(getUint16(raw, p+2)),
		})
	}
	return mapdata.Path{
		PointLength: pointLength,
		PointSize:   pointSize,
		Angle:       angle,
		Paths:       [][]mapdata.Point{points},
	}
}

// parseMopPath walks the full PATH point list and the MOP_PATH mask in
// parallel, emitting a new polyline whenever the mask is 1 and breaking
// it on a 1->0 transition.
func parseMopPath(path mapdata.Path, mask []byte) mapdata.Path {
	var mopPaths [][]mapdata.Point
	pointsNum := 0

	for _, pts := range path.Paths {
		var cur []mapdata.Point
		for i, pt := range pts {
			if i >= len(mask) || mask[i] == 0 {
				continue
			}
			cur = append(cur, pt)
			if i+1 < len(mask) && mask[i+1] == 0 {
				pointsNum += len(cur)
				mopPaths = append(mopPaths, cur)
				cur = nil
			}
		}
		pointsNum += len(cur)
		mopPaths = append(mopPaths, cur)
	}

	return mapdata.Path{
		PointLength: int32(pointsNum),
		PointSize:   path.PointSize,
		Angle:       path.Angle,
		Paths:       mopPaths,
	}
}

func parseWalls(data, header []byte) []mapdata.Wall {
	pairs := int(getUint16(header, 0x08))
	walls := make([]mapdata.Wall, 0, pairs)
	for start := 0; start < pairs*8 && start+8 <= len(data); start += 8 {
		walls = append(walls, mapdata.Wall{
			X0: int32(getUint16(data, start+0)),
			Y0: int32(getUint16(data, start+2)),
			X1: int32(getUint16(data, start+4)),
			Y1: int32(getUint16(data, start+6)),
		})
	}
	return walls
}

func parseZones(data, header []byte) []mapdata.Zone {
	pairs := int(getUint16(header, 0x08))
	zones := make([]mapdata.Zone, 0, pairs)
	for start := 0; start < pairs*8 && start+8 <= len(data); start += 8 {
		zones = append(zones, mapdata.Zone{
			X0: int32(getUint16(data, start+0)),
			Y0: int32(getUint16(data, start+2)),
			X1: int32(getUint16(data, start+4)),
			Y1: int32(getUint16(data, start+6)),
		})
	}
	return zones
}

func parseArea(header, data []byte) []mapdata.Area {
	pairs := int(getUint16(header, 0x08))
	areas := make([]mapdata.Area, 0, pairs)
	for start := 0; start < pairs*16 && start+16 <= len(data); start += 16 {
		areas = append(areas, mapdata.Area{
			X0: int32(getUint16(data, start+0)),
			Y0: int32(getUint16(data, start+2)),
			X1: int32(getUint16(data, start+4)),
			Y1: int32(getUint16(data, start+6)),
			X2: int32(getUint16(data, start+8)),
			Y2: int32(getUint16(data, start+10)),
			X3: int32(getUint16(data, start+12)),
			Y3: int32(getUint16(data, start+14)),
		})
	}
	return areas
}

// knownObstacleTypes mirrors the original's KNOWN_OBSTACLE_TYPES table.
var knownObstacleTypes = map[int32]string{
	0: "cable",
	2: "shoes",
	3: "poop",
	5: "extension cord",
	9: "weighting scale",
	10: "clothes",
}

func parseObstacles(data, header []byte) []mapdata.Obstacle {
	pairs := int(getUint16(header, 0x08))
	if pairs == 0 || len(data) == 0 {
		return nil
	}
	size := len(data) / pairs
	obstacles := make([]mapdata.Obstacle, 0, pairs)
	for start := 0; start+size <= len(data); start += size {
		o := mapdata.Obstacle{
			X: int32(getUint16(data, start+0)),
			Y: int32(getUint16(data, start+2)),
		}
		if size >= 6 {
			o.HasType = true
			o.Type = int32(getUint16(data, start+4))
			o.Description = knownObstacleTypes[o.Type]
			if size >= 10 {
				u1 := int32(getUint16(data, start+6))
				u2 := int32(getUint16(data, start+8))
				o.HasConfidence = true
				if u2 == 0 {
					o.ConfidenceLevel = 0
				} else {
					o.ConfidenceLevel = float64(u1) * 10.0 / float64(u2)
				}
				if size == 28 && data[start+12] > 0 {
					o.PhotoName = string(data[start+12 : start+28])
				}
			}
		}
		obstacles = append(obstacles, o)
	}
	return obstacles
}

func parseCarpetMap(data []byte) map[int]struct{} {
	m := make(map[int]struct{})
	for i, v := range data {
		if v != 0 {
			m[i] = struct{}{}
		}
	}
	return m
}

func getUint16(b []byte, offset int) uint16 {
	return binary.LittleEndian.Uint16(b[offset : offset+2])
}

func getUint32(b []byte, offset int) uint32 {
	return binary.LittleEndian.Uint32(b[offset : offset+4])
}
