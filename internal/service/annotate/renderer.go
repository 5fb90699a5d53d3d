package annotate

import (
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"

	"birdwatch/internal/model"
)

const (
	// DefaultRadius is the marker radius in pixels.
	DefaultRadius = 12
	// BorderWidth is the width of the contrasting ring drawn around each marker.
	BorderWidth = 3
)

// Tier is the confidence category used to pick a marker color.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

var (
	green  = color.NRGBA{R: 0, G: 200, B: 0, A: 255}
	yellow = color.NRGBA{R: 255, G: 215, B: 0, A: 255}
	orange = color.NRGBA{R: 255, G: 140, B: 0, A: 255}
	white  = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// English and French labels, lower-cased.
var tierWords = map[string]Tier{
	"high":   TierHigh,
	"élevé":  TierHigh,
	"eleve":  TierHigh,
	"medium": TierMedium,
	"moyen":  TierMedium,
	"low":    TierLow,
	"faible": TierLow,
}

// ParseTier maps a confidence label to its tier. Unknown labels are low.
func ParseTier(confidence string) Tier {
	if tier, ok := tierWords[strings.ToLower(strings.TrimSpace(confidence))]; ok {
		return tier
	}
	return TierLow
}

// Color returns the marker fill color of the tier.
func (t Tier) Color() color.NRGBA {
	switch t {
	case TierHigh:
		return green
	case TierMedium:
		return yellow
	default:
		return orange
	}
}

// Renderer draws confidence markers on a copy of a frame.
type Renderer struct {
	radius int
}

func NewRenderer(radius int) *Renderer {
	if radius <= 0 {
		radius = DefaultRadius
	}
	return &Renderer{radius: radius}
}

// PixelRect converts a normalized box into absolute pixels for a width x height frame.
func PixelRect(box model.BoundingBox, width, height int) image.Rectangle {
	x := int(box.X * float64(width) / 100)
	y := int(box.Y * float64(height) / 100)
	w := int(box.Width * float64(width) / 100)
	h := int(box.Height * float64(height) / 100)
	return image.Rect(x, y, x+w, y+h)
}

// Center returns the marker position for a pixel rectangle.
func Center(rect image.Rectangle) image.Point {
	return image.Pt(rect.Min.X+rect.Dx()/2, rect.Min.Y+rect.Dy()/2)
}

// Render returns a new image; frame is never modified. Observations without a
// bounding box are skipped.
func (r *Renderer) Render(frame image.Image, observations []model.Observation) *image.NRGBA {
	canvas := imaging.Clone(frame)
	w, h := canvas.Bounds().Dx(), canvas.Bounds().Dy()

	for _, obs := range observations {
		if obs.BBox == nil {
			continue
		}
		center := Center(PixelRect(*obs.BBox, w, h))
		drawDisc(canvas, center, r.radius+BorderWidth, white)
		drawDisc(canvas, center, r.radius, ParseTier(obs.Confidence).Color())
	}
	return canvas
}

func drawDisc(img *image.NRGBA, c image.Point, radius int, col color.NRGBA) {
	bounds := img.Bounds()
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > r2 {
				continue
			}
			p := image.Pt(c.X+dx, c.Y+dy)
			if p.In(bounds) {
				img.SetNRGBA(p.X, p.Y, col)
			}
		}
	}
}
