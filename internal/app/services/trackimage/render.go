package trackimage

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"

	"github.com/FACorreiaa/trailtrace/internal/app/models"
	"github.com/FACorreiaa/trailtrace/internal/pkg/geo"
)

// Renderer projects a coordinate trace onto a fixed canvas and draws it as
// an SVG polyline or a PNG raster. Rendering is deterministic: the same
// trace always produces the same artifact, which keeps export idempotent.
type Renderer struct {
	Width   int
	Height  int
	Padding int
}

func NewRenderer() Renderer {
	return Renderer{Width: 800, Height: 600, Padding: 40}
}

type point struct {
	x, y float64
}

// project maps the trace into canvas space, preserving aspect ratio with an
// equirectangular correction at the trace's mid latitude.
func (r Renderer) project(coords []models.Coordinate) []point {
	minLat, maxLat, minLng, maxLng := geo.Bounds(coords)
	midLat := (minLat + maxLat) / 2 * math.Pi / 180

	spanX := (maxLng - minLng) * math.Cos(midLat)
	spanY := maxLat - minLat
	if spanX == 0 {
		spanX = 1e-9
	}
	if spanY == 0 {
		spanY = 1e-9
	}

	drawW := float64(r.Width - 2*r.Padding)
	drawH := float64(r.Height - 2*r.Padding)
	scale := math.Min(drawW/spanX, drawH/spanY)

	offX := (drawW - spanX*scale) / 2
	offY := (drawH - spanY*scale) / 2

	pts := make([]point, len(coords))
	for i, c := range coords {
		x := (c.Lng - minLng) * math.Cos(midLat) * scale
		y := (maxLat - c.Lat) * scale // lat grows up, canvas y grows down
		pts[i] = point{
			x: float64(r.Padding) + offX + x,
			y: float64(r.Padding) + offY + y,
		}
	}
	return pts
}

// RenderSVG draws the trace with start/end markers and a stats caption.
func (r Renderer) RenderSVG(coords []models.Coordinate, distanceM, durationSec float64) []byte {
	pts := r.project(coords)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		r.Width, r.Height, r.Width, r.Height)
	fmt.Fprintf(&sb, `<rect width="%d" height="%d" fill="#ffffff"/>`, r.Width, r.Height)

	if len(pts) > 1 {
		sb.WriteString(`<polyline fill="none" stroke="#e74c3c" stroke-width="3" stroke-linejoin="round" stroke-linecap="round" points="`)
		for i, p := range pts {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%.1f,%.1f", p.x, p.y)
		}
		sb.WriteString(`"/>`)
	}
	if len(pts) > 0 {
		start, end := pts[0], pts[len(pts)-1]
		fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="6" fill="#2ecc71"/>`, start.x, start.y)
		fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="6" fill="#e74c3c"/>`, end.x, end.y)
	}

	fmt.Fprintf(&sb, `<text x="%d" y="%d" font-family="sans-serif" font-size="16" fill="#333333">%s · %s</text>`,
		r.Padding, r.Height-r.Padding/2, formatDistance(distanceM), formatDuration(durationSec))
	sb.WriteString(`</svg>`)
	return []byte(sb.String())
}

// RenderPNG rasterizes the trace for binary export downloads.
func (r Renderer) RenderPNG(coords []models.Coordinate) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	white := color.RGBA{255, 255, 255, 255}
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			img.SetRGBA(x, y, white)
		}
	}

	pts := r.project(coords)
	track := color.RGBA{231, 76, 60, 255}
	for i := 1; i < len(pts); i++ {
		drawLine(img, pts[i-1], pts[i], track)
	}
	if len(pts) > 0 {
		drawDot(img, pts[0], 5, color.RGBA{46, 204, 113, 255})
		drawDot(img, pts[len(pts)-1], 5, track)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding track png: %w", err)
	}
	return buf.Bytes(), nil
}

// drawLine is a simple Bresenham rasterization with a 3px stroke.
func drawLine(img *image.RGBA, a, b point, c color.RGBA) {
	x0, y0 := int(a.x), int(a.y)
	x1, y1 := int(b.x), int(b.y)

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	errTerm := dx + dy

	for {
		drawDot(img, point{float64(x0), float64(y0)}, 1, c)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * errTerm
		if e2 >= dy {
			errTerm += dy
			x0 += sx
		}
		if e2 <= dx {
			errTerm += dx
			y0 += sy
		}
	}
}

func drawDot(img *image.RGBA, p point, radius int, c color.RGBA) {
	cx, cy := int(p.x), int(p.y)
	bounds := img.Bounds()
	for y := cy - radius; y <= cy+radius; y++ {
		for x := cx - radius; x <= cx+radius; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
				continue
			}
			ddx, ddy := x-cx, y-cy
			if ddx*ddx+ddy*ddy <= radius*radius {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func formatDistance(meters float64) string {
	if meters >= 1000 {
		return fmt.Sprintf("%.2f km", meters/1000)
	}
	return fmt.Sprintf("%.0f m", meters)
}

func formatDuration(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
