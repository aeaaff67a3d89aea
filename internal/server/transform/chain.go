// Package transform applies the fixed, ordered effect chain to uploaded
// images and re-encodes the result as JPEG.
package transform

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/dmitrijs2005/photokeeper/internal/common"
)

// Model identifiers accepted in a request.
const (
	ModelColorRestore = "color_restore"
	ModelDehaze       = "dehaze"
	ModelStabilize    = "stabilize"
	ModelSuperRes     = "superres"
)

const (
	// ContentType of every encoded output.
	ContentType = "image/jpeg"
	// JPEGQuality is fixed so outputs are comparable across submissions.
	JPEGQuality = 90

	superResFactor = 1.5
)

type effect func(image.Image) image.Image

type step struct {
	model string
	apply effect
}

// pipeline is the execution order, independent of request order.
// superres stays last so it upscales the already enhanced image.
var pipeline = []step{
	{ModelColorRestore, colorRestore},
	{ModelDehaze, dehaze},
	{ModelStabilize, stabilize},
	{ModelSuperRes, superRes},
}

// Models lists the known identifiers in execution order.
func Models() []string {
	out := make([]string, len(pipeline))
	for i, s := range pipeline {
		out[i] = s.model
	}
	return out
}

// Options selects what the chain does for one submission.
type Options struct {
	Models    []string
	MaxWidth  int
	Watermark bool
}

// Result is an encoded chain output.
type Result struct {
	Data    []byte
	Width   int
	Height  int
	Applied []string
}

// Chain runs decode → bound width → effects → watermark → encode.
type Chain struct {
	watermark *Watermarker
}

// NewChain prepares a chain; the watermark label is rendered with Go Regular.
func NewChain(label string) (*Chain, error) {
	wm, err := NewWatermarker(label)
	if err != nil {
		return nil, err
	}
	return &Chain{watermark: wm}, nil
}

// Apply decodes src, runs the chain and encodes the result.
func (c *Chain) Apply(src []byte, opts Options) (*Result, error) {
	img, err := Decode(src)
	if err != nil {
		return nil, err
	}

	out, applied := c.apply(img, opts)

	data, err := Encode(out)
	if err != nil {
		return nil, err
	}

	b := out.Bounds()
	return &Result{Data: data, Width: b.Dx(), Height: b.Dy(), Applied: applied}, nil
}

// ApplyImage runs the chain on an already decoded, upright image.
func (c *Chain) ApplyImage(img image.Image, opts Options) image.Image {
	out, _ := c.apply(img, opts)
	return out
}

func (c *Chain) apply(img image.Image, opts Options) (image.Image, []string) {
	img = boundWidth(img, opts.MaxWidth)

	requested := make(map[string]bool, len(opts.Models))
	for _, m := range opts.Models {
		requested[m] = true
	}

	var applied []string
	for _, s := range pipeline {
		if !requested[s.model] {
			continue
		}
		img = s.apply(img)
		applied = append(applied, s.model)
	}

	if opts.Watermark && c.watermark != nil {
		img = c.watermark.Apply(img)
	}
	return img, applied
}

// Decode reads any registered format and applies EXIF orientation once.
// Every failure is reported as common.ErrUnsupportedFormat.
func Decode(src []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnsupportedFormat, err)
	}
	return img, nil
}

// Encode writes img as JPEG at JPEGQuality.
func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func boundWidth(img image.Image, maxWidth int) image.Image {
	if maxWidth <= 0 || img.Bounds().Dx() <= maxWidth {
		return img
	}
	return imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
}

func colorRestore(img image.Image) image.Image {
	out := imaging.AdjustSaturation(img, 25)
	out = imaging.AdjustContrast(out, 10)
	return imaging.AdjustBrightness(out, 3)
}

func dehaze(img image.Image) image.Image {
	return imaging.Sharpen(img, 1.2)
}

func stabilize(img image.Image) image.Image {
	return imaging.Sharpen(img, 0.6)
}

func superRes(img image.Image) image.Image {
	w := int(math.Round(float64(img.Bounds().Dx()) * superResFactor))
	return imaging.Resize(img, w, 0, imaging.Lanczos)
}
