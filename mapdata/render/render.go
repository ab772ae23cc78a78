package render

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/go-roborock/roborock/mapdata"
)

// Drawable names one overlay the caller may opt into. Grouped as a set
// (map[Drawable]bool) rather than a slice, matching the original's
// drawables collection semantics (membership, not order: draw order is
// fixed by Render, not by caller-supplied ordering).
type Drawable string

const (
	DrawCharger                    Drawable = "charger"
	DrawVacuumPosition              Drawable = "vacuum_position"
	DrawObstacles                   Drawable = "obstacles"
	DrawIgnoredObstacles             Drawable = "ignored_obstacles"
	DrawObstaclesWithPhoto           Drawable = "obstacles_with_photo"
	DrawIgnoredObstaclesWithPhoto    Drawable = "ignored_obstacles_with_photo"
	DrawMopPath                      Drawable = "mop_path"
	DrawPath                         Drawable = "path"
	DrawGotoPath                     Drawable = "goto_path"
	DrawPredictedPath                Drawable = "predicted_path"
	DrawNoCarpetAreas                Drawable = "no_carpet_areas"
	DrawNoGoAreas                    Drawable = "no_go_areas"
	DrawNoMoppingAreas               Drawable = "no_mopping_areas"
	DrawVirtualWalls                 Drawable = "virtual_walls"
	DrawZones                        Drawable = "zones"
	DrawRoomNames                    Drawable = "room_names"
)

// AllDrawables is every overlay Render knows how to draw. Its order is
// not the draw order; Render draws overlays in its own fixed order.
var AllDrawables = []Drawable{
	DrawCharger, DrawVacuumPosition,
	DrawObstacles, DrawIgnoredObstacles, DrawObstaclesWithPhoto, DrawIgnoredObstaclesWithPhoto,
	DrawMopPath, DrawPath, DrawGotoPath, DrawPredictedPath,
	DrawNoCarpetAreas, DrawNoGoAreas, DrawNoMoppingAreas,
	DrawVirtualWalls, DrawZones, DrawRoomNames,
}

// Sizes controls overlay stroke widths and marker radii.
type Sizes struct {
	PathWidth    int
	MopPathWidth int
	VacuumRadius float64
	ObstacleRadius float64
}

// DefaultSizes mirrors the original's default CONF_SIZE_* values.
var DefaultSizes = Sizes{
	PathWidth:      1,
	MopPathWidth:   1,
	VacuumRadius:   6,
	ObstacleRadius: 3,
}

// Text is one caller-supplied text layer, positioned as a percentage of
// image dimensions, drawn after rotation.
type Text struct {
	X, Y  float64 // percentage, 0-100
	Value string
	Color color.NRGBA
}

// Config controls one Render call.
type Config struct {
	Palette   Palette
	Drawables map[Drawable]bool
	Sizes     Sizes
	Texts     []Text
	Scale     float64 // 1 = no scaling
	Rotation  int      // 0, 90, 180, or 270
}

var ErrUnsupportedRotation = errors.New("render: rotation must be 0, 90, 180, or 270")

// Render composites m into an RGBA raster following cfg. Rendering is a
// pure function of its inputs: the same MapData and Config always
// produce the same pixels.
func Render(m *mapdata.MapData, cfg Config) (*image.NRGBA, error) {
	if cfg.Rotation != 0 && cfg.Rotation != 90 && cfg.Rotation != 180 && cfg.Rotation != 270 {
		return nil, ErrUnsupportedRotation
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	palette := mergePalette(cfg.Palette)

	if m.Image == nil {
		return image.NewNRGBA(image.Rect(0, 0, 1, 1)), nil
	}

	base := classifyBase(m.Image, palette)
	if len(m.CarpetMap) > 0 {
		blendCarpet(base, m.Image, m.CarpetMap, palette.Carpets)
	}

	draws := cfg.Drawables
	if draws == nil {
		draws = allEnabled()
	}

	origin := point{left: m.Image.Left, top: m.Image.Top}

	if draws[DrawNoCarpetAreas] {
		drawAreas(base, m.NoCarpetAreas, origin, palette.NoCarpetZones, palette.NoCarpetZonesOutline)
	}
	if draws[DrawNoGoAreas] {
		drawAreas(base, m.NoGoAreas, origin, palette.NoGoZones, palette.NoGoZonesOutline)
	}
	if draws[DrawNoMoppingAreas] {
		drawAreas(base, m.NoMoppingAreas, origin, palette.NoMoppingZones, palette.NoMoppingZonesOutline)
	}
	if draws[DrawVirtualWalls] {
		drawWalls(base, m.Walls, origin, palette.VirtualWalls)
	}
	if draws[DrawZones] {
		drawZones(base, m.Zones, origin, palette.Zones, palette.ZonesOutline)
	}
	if draws[DrawCharger] && m.Charger != nil {
		drawMarker(base, *m.Charger, origin, cfg.Sizes.VacuumRadius, palette.Charger, palette.ChargerOutline)
	}
	if draws[DrawObstacles] {
		drawObstacles(base, m.Obstacles, origin, cfg.Sizes.ObstacleRadius, palette.Obstacle, palette.ObstacleOutline)
	}
	if draws[DrawIgnoredObstacles] {
		drawObstacles(base, m.IgnoredObstacles, origin, cfg.Sizes.ObstacleRadius, palette.Obstacle, palette.ObstacleOutline)
	}
	if draws[DrawObstaclesWithPhoto] {
		drawObstacles(base, m.ObstaclesWithPhoto, origin, cfg.Sizes.ObstacleRadius, palette.Obstacle, palette.ObstacleOutline)
	}
	if draws[DrawIgnoredObstaclesWithPhoto] {
		drawObstacles(base, m.IgnoredObstaclesWithPhoto, origin, cfg.Sizes.ObstacleRadius, palette.Obstacle, palette.ObstacleOutline)
	}
	if draws[DrawMopPath] && m.MopPath != nil {
		drawPath(base, *m.MopPath, origin, cfg.Sizes.MopPathWidth, palette.MopPath)
	}
	if draws[DrawPath] && m.Path != nil {
		drawPath(base, *m.Path, origin, cfg.Sizes.PathWidth, palette.Path)
	}
	if draws[DrawGotoPath] && m.GotoPath != nil {
		drawPath(base, *m.GotoPath, origin, cfg.Sizes.PathWidth, palette.GotoPath)
	}
	if draws[DrawPredictedPath] && m.PredictedPath != nil {
		drawPath(base, *m.PredictedPath, origin, cfg.Sizes.PathWidth, palette.PredictedPath)
	}
	if draws[DrawVacuumPosition] && m.VacuumPosition != nil {
		drawMarker(base, *m.VacuumPosition, origin, cfg.Sizes.VacuumRadius, palette.Robot, palette.RobotOutline)
	}
	if draws[DrawRoomNames] {
		drawRoomNames(base, m.Rooms, origin, palette.RoomNames)
	}

	scaled := applyScale(base, cfg.Scale)
	rotated := applyRotation(scaled, cfg.Rotation)
	applyTexts(rotated, cfg.Texts)

	return rotated, nil
}

func allEnabled() map[Drawable]bool {
	m := make(map[Drawable]bool, len(AllDrawables))
	for _, d := range AllDrawables {
		m[d] = true
	}
	return m
}

func mergePalette(p Palette) Palette {
	zero := Palette{}
	if p == zero {
		return DefaultPalette
	}
	return p
}

// point carries the image block's origin, needed to translate
// world-space geometry (millimeters, MM-scaled) into image pixel
// coordinates before drawing.
type point struct {
	left, top int32
}

func toImg(o point, x, y int32) (int, int) {
	return int(x/mapdata.MM - o.left), int(y/mapdata.MM - o.top)
}

func classifyBase(img *mapdata.ImageBlock, p Palette) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, int(img.Width), int(img.Height)))
	for y := int32(0); y < img.Height; y++ {
		for x := int32(0); x < img.Width; x++ {
			b := img.Pixels[y*img.Width+x]
			out.SetNRGBA(int(x), int(y), classify(p, b))
		}
	}
	return out
}

func blendCarpet(base *image.NRGBA, img *mapdata.ImageBlock, carpet map[int]struct{}, c color.NRGBA) {
	for idx := range carpet {
		if idx < 0 || idx >= len(img.Pixels) {
			continue
		}
		x := idx % int(img.Width)
		y := idx / int(img.Width)
		blendPixel(base, x, y, c)
	}
}

func blendPixel(img *image.NRGBA, x, y int, c color.NRGBA) {
	if !(image.Point{X: x, Y: y}.In(img.Bounds())) {
		return
	}
	under := img.NRGBAAt(x, y)
	img.SetNRGBA(x, y, alphaBlend(under, c))
}

func alphaBlend(under, over color.NRGBA) color.NRGBA {
	a := float64(over.A) / 255
	blend := func(u, o uint8) uint8 {
		return uint8(float64(o)*a + float64(u)*(1-a))
	}
	return color.NRGBA{
		R: blend(under.R, over.R),
		G: blend(under.G, over.G),
		B: blend(under.B, over.B),
		A: uint8(math.Max(float64(under.A), float64(over.A))),
	}
}

func drawAreas(base *image.NRGBA, areas []mapdata.Area, o point, fill, outline color.NRGBA) {
	for _, a := range areas {
		x0, y0 := toImg(o, a.X0, a.Y0)
		x1, y1 := toImg(o, a.X2, a.Y2)
		fillRect(base, x0, y0, x1, y1, fill)
		strokeRect(base, x0, y0, x1, y1, outline)
	}
}

func drawZones(base *image.NRGBA, zones []mapdata.Zone, o point, fill, outline color.NRGBA) {
	for _, z := range zones {
		x0, y0 := toImg(o, z.X0, z.Y0)
		x1, y1 := toImg(o, z.X1, z.Y1)
		fillRect(base, x0, y0, x1, y1, fill)
		strokeRect(base, x0, y0, x1, y1, outline)
	}
}

func fillRect(base *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			blendPixel(base, x, y, c)
		}
	}
}

func strokeRect(base *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	for x := x0; x <= x1; x++ {
		blendPixel(base, x, y0, c)
		blendPixel(base, x, y1, c)
	}
	for y := y0; y <= y1; y++ {
		blendPixel(base, x0, y, c)
		blendPixel(base, x1, y, c)
	}
}

func drawWalls(base *image.NRGBA, walls []mapdata.Wall, o point, c color.NRGBA) {
	for _, w := range walls {
		x0, y0 := toImg(o, w.X0, w.Y0)
		x1, y1 := toImg(o, w.X1, w.Y1)
		drawLine(base, x0, y0, x1, y1, c)
	}
}

func drawLine(base *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		blendPixel(base, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func drawPath(base *image.NRGBA, p mapdata.Path, o point, width int, c color.NRGBA) {
	if width < 1 {
		width = 1
	}
	for _, segment := range p.Paths {
		for i := 1; i < len(segment); i++ {
			x0, y0 := toImg(o, segment[i-1].X, segment[i-1].Y)
			x1, y1 := toImg(o, segment[i].X, segment[i].Y)
			for dw := -(width / 2); dw <= width/2; dw++ {
				drawLine(base, x0+dw, y0, x1+dw, y1, c)
			}
		}
	}
}

func drawMarker(base *image.NRGBA, p mapdata.Point, o point, radius float64, fill, outline color.NRGBA) {
	cx, cy := toImg(o, p.X, p.Y)
	drawCircle(base, cx, cy, radius, fill, outline)
}

func drawCircle(base *image.NRGBA, cx, cy int, radius float64, fill, outline color.NRGBA) {
	r := int(radius)
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			d := math.Hypot(float64(x), float64(y))
			if d <= radius {
				blendPixel(base, cx+x, cy+y, fill)
			} else if d <= radius+1 {
				blendPixel(base, cx+x, cy+y, outline)
			}
		}
	}
}

func drawObstacles(base *image.NRGBA, obstacles []mapdata.Obstacle, o point, radius float64, fill, outline color.NRGBA) {
	for _, ob := range obstacles {
		cx, cy := toImg(o, ob.X, ob.Y)
		drawCircle(base, cx, cy, radius, fill, outline)
	}
}

// drawRoomNames marks each room's bounding-box center with a single
// pixel in the room-name color; text rendering of the actual label is
// left to the caller via Config.Texts, since a font/glyph pipeline is
// out of scope for this package.
func drawRoomNames(base *image.NRGBA, rooms map[int]mapdata.Room, o point, c color.NRGBA) {
	for _, r := range rooms {
		cx, cy := toImg(o, (r.X0+r.X1)/2, (r.Y0+r.Y1)/2)
		blendPixel(base, cx, cy, c)
	}
}

func applyScale(base *image.NRGBA, scale float64) *image.NRGBA {
	if scale == 1 {
		return base
	}
	b := base.Bounds()
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), base, base.Bounds(), xdraw.Over, nil)
	return dst
}

func applyRotation(base *image.NRGBA, rotation int) *image.NRGBA {
	if rotation == 0 {
		return base
	}
	b := base.Bounds()
	w, h := b.Dx(), b.Dy()
	var dst *image.NRGBA
	switch rotation {
	case 90:
		dst = image.NewNRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.SetNRGBA(h-1-y, x, base.NRGBAAt(x, y))
			}
		}
	case 180:
		dst = image.NewNRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.SetNRGBA(w-1-x, h-1-y, base.NRGBAAt(x, y))
			}
		}
	case 270:
		dst = image.NewNRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.SetNRGBA(y, w-1-x, base.NRGBAAt(x, y))
			}
		}
	default:
		return base
	}
	return dst
}

func applyTexts(base *image.NRGBA, texts []Text) {
	b := base.Bounds()
	for _, t := range texts {
		x := int(t.X * float64(b.Dx()) / 100)
		y := int(t.Y * float64(b.Dy()) / 100)
		drawTextMarker(base, x, y, t.Color)
	}
}

// drawTextMarker stands in for glyph rendering, which needs a font
// rasterizer this package does not depend on; it marks the anchor
// point so callers composing their own font layer have a stable
// reference pixel.
func drawTextMarker(base *image.NRGBA, x, y int, c color.NRGBA) {
	blendPixel(base, x, y, c)
}

var _ draw.Image = (*image.NRGBA)(nil)
