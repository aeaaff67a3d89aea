package transform

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	barRatio      = 0.06
	minBarHeight  = 40
	fontRatio     = 0.5
	minFontSize   = 16
	barOpacity    = 0.45
	labelAlpha    = 230
	labelMarginPx = 8
)

// Watermarker composites a translucent label bar along the bottom edge.
type Watermarker struct {
	label string
	font  *opentype.Font
}

func NewWatermarker(label string) (*Watermarker, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse watermark font: %w", err)
	}
	return &Watermarker{label: label, font: f}, nil
}

// BarHeight is 6% of the width, at least 40px.
func BarHeight(width int) int {
	return max(minBarHeight, int(math.Round(float64(width)*barRatio)))
}

// FontSize is half the bar height, at least 16px.
func FontSize(barHeight int) float64 {
	return math.Max(minFontSize, float64(barHeight)*fontRatio)
}

// Apply returns a copy of img with the bar and label drawn in. The image
// size never changes.
func (w *Watermarker) Apply(img image.Image) image.Image {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	barH := min(BarHeight(width), height)

	bar := imaging.New(width, barH, color.NRGBA{A: 255})
	out := imaging.Overlay(img, bar, image.Pt(0, height-barH), barOpacity)

	if w.label == "" {
		return out
	}

	face, err := opentype.NewFace(w.font, &opentype.FaceOptions{
		Size:    FontSize(barH),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return out
	}
	defer face.Close()

	d := &font.Drawer{
		Dst:  out,
		Src:  image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: labelAlpha}),
		Face: face,
	}

	m := face.Metrics()
	textW := d.MeasureString(w.label).Ceil()
	x := max(labelMarginPx, (width-textW)/2)
	baseline := height - barH + (barH+m.Ascent.Ceil()-m.Descent.Ceil())/2

	d.Dot = fixed.P(x, baseline)
	d.DrawString(w.label)
	return out
}
