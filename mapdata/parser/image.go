package parser

import (
	"errors"

	"github.com/go-roborock/roborock/mapdata"
)

// ErrImageTooSmall is returned when the IMAGE block's data is shorter
// than width*height pixels, i.e. the block is truncated.
var ErrImageTooSmall = errors.New("parser: image block too small")

// parseImage decodes the IMAGE block's geometry and pixel grid, and
// derives the set of rooms (ids with their bounding box) observed while
// scanning it.
//
// Geometry lives at fixed offsets counted back from the end of the
// block header, matching the original's img.image_width etc reads at
// header[-4:], header[-8:-4], header[-12:-8], header[-16:-12].
func parseImage(header, data []byte, cfg ImageConfig) (*mapdata.ImageBlock, map[int]mapdata.Room, error) {
	hl := len(header)
	if hl < 0x18 {
		return nil, nil, ErrImageTooSmall
	}

	top := int32(getUint32(header, hl-0x10))
	left := int32(getUint32(header, hl-0x0C))
	height := int32(getUint32(header, hl-0x08))
	width := int32(getUint32(header, hl-0x04))

	top, left, height, width = trimImage(top, left, height, width, cfg)

	if int64(width)*int64(height) > int64(len(data)) {
		return nil, nil, ErrImageTooSmall
	}

	pixels := make([]byte, width*height)
	copy(pixels, data[:width*height])

	img := &mapdata.ImageBlock{
		Top:    top,
		Left:   left,
		Height: height,
		Width:  width,
		Pixels: pixels,
	}

	rooms := roomBounds(img)
	return img, rooms, nil
}

// trimImage shrinks the image rectangle by the configured percentages,
// refusing any trim that would push either dimension below its minimum.
func trimImage(top, left, height, width int32, cfg ImageConfig) (int32, int32, int32, int32) {
	trimLeft := int32(int(width) * cfg.TrimLeft / 100)
	trimRight := int32(int(width) * cfg.TrimRight / 100)
	trimTop := int32(int(height) * cfg.TrimTop / 100)
	trimBottom := int32(int(height) * cfg.TrimBottom / 100)

	newWidth := width - trimLeft - trimRight
	newHeight := height - trimTop - trimBottom
	if newWidth < minimalImageWidth || newHeight < minimalImageHeight {
		return top, left, height, width
	}
	return top + trimTop, left + trimLeft, newHeight, newWidth
}

// roomBounds classifies every pixel whose low 3 bits select the "room"
// case (byte&0x07 == 7, room id = byte>>3) and accumulates each room
// id's bounding box. Bounds are translated back to world coordinates
// via image_to_map = x * MM, per spec.md §4.6.
func roomBounds(img *mapdata.ImageBlock) map[int]mapdata.Room {
	rooms := make(map[int]mapdata.Room)
	for y := int32(0); y < img.Height; y++ {
		for x := int32(0); x < img.Width; x++ {
			b := img.Pixels[y*img.Width+x]
			if b == 0x00 || b == 0x01 || b == 0xFF || b == 0x07 {
				continue
			}
			if b&0x07 != 0x07 {
				continue
			}
			roomID := int(b >> 3)
			wx := (img.Left + x) * mapdata.MM
			wy := (img.Top + y) * mapdata.MM
			r, ok := rooms[roomID]
			if !ok {
				rooms[roomID] = mapdata.Room{Number: roomID, X0: wx, Y0: wy, X1: wx, Y1: wy}
				continue
			}
			if wx < r.X0 {
				r.X0 = wx
			}
			if wy < r.Y0 {
				r.Y0 = wy
			}
			if wx > r.X1 {
				r.X1 = wx
			}
			if wy > r.Y1 {
				r.Y1 = wy
			}
			rooms[roomID] = r
		}
	}
	return rooms
}

// currentVacuumRoom reads the IMAGE block a second time at imgStart to
// recover its geometry, translates pos (map/world coordinates) into
// image pixel space, and classifies the pixel the vacuum sits on.
func currentVacuumRoom(imgStart int, raw []byte, pos mapdata.Point) (int, bool) {
	if imgStart+0x04 > len(raw) {
		return 0, false
	}
	headerLen := int(getUint16(raw, imgStart+0x02))
	if imgStart+headerLen > len(raw) {
		return 0, false
	}
	header := raw[imgStart : imgStart+headerLen]
	dataLen := int(getUint32(header, 0x04))
	dataStart := imgStart + headerLen
	dataEnd := dataStart + dataLen
	if dataEnd > len(raw) || headerLen < 0x18 {
		return 0, false
	}
	data := raw[dataStart:dataEnd]

	top := int32(getUint32(header, headerLen-0x10))
	left := int32(getUint32(header, headerLen-0x0C))
	height := int32(getUint32(header, headerLen-0x08))
	width := int32(getUint32(header, headerLen-0x04))

	px := pos.X/mapdata.MM - left
	py := pos.Y/mapdata.MM - top
	if px < 0 || py < 0 || px >= width || py >= height {
		return 0, false
	}
	idx := py*width + px
	if int64(idx) >= int64(len(data)) {
		return 0, false
	}
	b := data[idx]
	if b&0x07 != 0x07 {
		return 0, false
	}
	return int(b >> 3), true
}
