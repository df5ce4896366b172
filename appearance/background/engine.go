// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package background

import (
	"image"
	"image/color"
	"os"
	"time"

	// decoders for image.Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	dutils "github.com/linuxdeepin/go-lib/utils"
	"golang.org/x/xerrors"
)

const (
	// edge of the cached source thumbnails, like the freedesktop "large" size
	sourceThumbSize = 256

	defaultScreenWidth  = 1920
	defaultScreenHeight = 1080
)

// ThumbnailCache keeps downscaled copies of wallpaper files keyed by URI and
// modification time, together with the original image size.
type ThumbnailCache interface {
	Lookup(uri string, mtime int64) (thumb image.Image, width, height int, ok bool)
	Save(uri string, mtime int64, width, height int, thumb image.Image) error
}

// Engine renders a desktop background: a shaded color fill with an optional
// image or slideshow placed on top.
type Engine struct {
	filename  string
	slideshow *Slideshow

	placement Placement
	shading   Shading
	primary   color.NRGBA
	secondary color.NRGBA

	screen image.Point
	now    func() time.Time
}

func NewEngine() *Engine {
	return &Engine{
		placement: PlacementScaled,
		shading:   ShadingSolid,
		primary:   color.NRGBA{A: 0xff},
		secondary: color.NRGBA{A: 0xff},
		screen:    image.Pt(defaultScreenWidth, defaultScreenHeight),
		now:       time.Now,
	}
}

// SetFilename points the engine at an image or a slideshow document.
func (e *Engine) SetFilename(filename string) {
	if filename == e.filename {
		return
	}
	e.filename = filename
	e.slideshow = nil
	if filename == "" || filename == NoneFilename {
		return
	}
	head := make([]byte, 256)
	f, err := os.Open(filename)
	if err != nil {
		return
	}
	n, _ := f.Read(head)
	_ = f.Close()
	if !looksLikeSlideshow(head[:n]) {
		return
	}
	show, err := loadSlideshow(filename)
	if err != nil {
		logger.Debugf("skip slideshow %s: %v", filename, err)
		return
	}
	e.slideshow = show
}

func (e *Engine) SetColor(shading Shading, primary, secondary color.NRGBA) {
	e.shading = shading
	e.primary = primary
	e.secondary = secondary
}

func (e *Engine) SetPlacement(placement Placement) {
	e.placement = placement
}

// SetScreenSize sets the size of the screen the thumbnails stand for.
func (e *Engine) SetScreenSize(width, height int) {
	if width > 0 && height > 0 {
		e.screen = image.Pt(width, height)
	}
}

func (e *Engine) ChangesWithTime() bool {
	return e.slideshow != nil && e.slideshow.ChangesWithTime()
}

func (e *Engine) HasMultipleSizes() bool {
	return e.slideshow != nil && e.slideshow.HasMultipleSizes()
}

func (e *Engine) hasImage() bool {
	return e.filename != "" && e.filename != NoneFilename
}

// CreateThumbnail renders the background as it currently looks.
func (e *Engine) CreateThumbnail(cache ThumbnailCache, width, height int) *image.NRGBA {
	return e.CreateFrameThumbnail(cache, width, height, -1)
}

// CreateFrameThumbnail renders the given static frame of a slideshow, -1
// meaning the frame shown right now. It returns nil when the image is
// missing or cannot be decoded.
func (e *Engine) CreateFrameThumbnail(cache ThumbnailCache, width, height, frame int) *image.NRGBA {
	if width <= 0 || height <= 0 {
		return nil
	}
	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	e.drawColor(canvas)
	if !e.hasImage() {
		return canvas
	}

	if e.slideshow == nil {
		src, size, err := loadSource(cache, e.filename)
		if err != nil {
			logger.Debugf("thumbnail %s: %v", e.filename, err)
			return nil
		}
		e.drawImage(canvas, src, size)
		return canvas
	}

	var slide *Slide
	progress := 0.0
	if frame >= 0 {
		slide = e.slideshow.staticFrame(frame)
		if slide == nil {
			return nil
		}
	} else {
		slide, progress = e.slideshow.current(e.now())
	}

	from := bestRendition(slide.From, e.screen.X, e.screen.Y)
	src, size, err := loadSource(cache, from.Path)
	if err != nil {
		logger.Debugf("thumbnail %s: %v", from.Path, err)
		return nil
	}
	e.drawImage(canvas, src, size)

	if !slide.Static && progress > 0 {
		to := bestRendition(slide.To, e.screen.X, e.screen.Y)
		next, nextSize, err := loadSource(cache, to.Path)
		if err == nil {
			layer := image.NewNRGBA(canvas.Bounds())
			e.drawColor(layer)
			e.drawImage(layer, next, nextSize)
			mask := image.NewUniform(color.Alpha{A: uint8(progress * 0xff)})
			draw.DrawMask(canvas, canvas.Bounds(), layer, image.Point{}, mask, image.Point{}, draw.Over)
		}
	}
	return canvas
}

// ImageSize reports the size of the image behind the thumbnail, 0x0 when
// there is none.
func (e *Engine) ImageSize(cache ThumbnailCache) (int, int) {
	if !e.hasImage() {
		return 0, 0
	}
	file := e.filename
	if e.slideshow != nil {
		slide, _ := e.slideshow.current(e.now())
		file = bestRendition(slide.From, e.screen.X, e.screen.Y).Path
	}
	_, size, err := loadSource(cache, file)
	if err != nil {
		return 0, 0
	}
	return size.X, size.Y
}

func (e *Engine) drawColor(dst *image.NRGBA) {
	b := dst.Bounds()
	if e.shading == ShadingSolid {
		draw.Draw(dst, b, image.NewUniform(e.primary), image.Point{}, draw.Src)
		return
	}
	span := b.Dx()
	if e.shading == ShadingVertical {
		span = b.Dy()
	}
	for i := 0; i < span; i++ {
		c := mixColor(e.primary, e.secondary, i, span)
		line := image.Rect(b.Min.X+i, b.Min.Y, b.Min.X+i+1, b.Max.Y)
		if e.shading == ShadingVertical {
			line = image.Rect(b.Min.X, b.Min.Y+i, b.Max.X, b.Min.Y+i+1)
		}
		draw.Draw(dst, line, image.NewUniform(c), image.Point{}, draw.Src)
	}
}

func mixColor(a, b color.NRGBA, i, span int) color.NRGBA {
	if span <= 1 {
		return a
	}
	mix := func(x, y uint8) uint8 {
		return uint8((int(x)*(span-1-i) + int(y)*i) / (span - 1))
	}
	return color.NRGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 0xff}
}

// drawImage places src on dst following the placement. src may be a
// downscaled copy of an image of size orig.
func (e *Engine) drawImage(dst *image.NRGBA, src image.Image, orig image.Point) {
	b := dst.Bounds()
	sw, sh := orig.X, orig.Y
	if sw == 0 || sh == 0 || src.Bounds().Empty() {
		return
	}
	// thumbnail pixels per screen pixel
	ratio := float64(b.Dx()) / float64(e.screen.X)

	switch e.placement {
	case PlacementStretched:
		draw.BiLinear.Scale(dst, b, src, src.Bounds(), draw.Over, nil)
	case PlacementScaled, PlacementZoom:
		fx := float64(b.Dx()) / float64(sw)
		fy := float64(b.Dy()) / float64(sh)
		f := fx
		if (e.placement == PlacementScaled) == (fy < fx) {
			f = fy
		}
		w, h := int(float64(sw)*f+0.5), int(float64(sh)*f+0.5)
		r := centerRect(b, w, h)
		draw.BiLinear.Scale(dst, r, src, src.Bounds(), draw.Over, nil)
	case PlacementCentered:
		w, h := int(float64(sw)*ratio+0.5), int(float64(sh)*ratio+0.5)
		draw.BiLinear.Scale(dst, centerRect(b, w, h), src, src.Bounds(), draw.Over, nil)
	case PlacementTiled:
		w, h := int(float64(sw)*ratio+0.5), int(float64(sh)*ratio+0.5)
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		tile := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.BiLinear.Scale(tile, tile.Bounds(), src, src.Bounds(), draw.Src, nil)
		for y := b.Min.Y; y < b.Max.Y; y += h {
			for x := b.Min.X; x < b.Max.X; x += w {
				draw.Draw(dst, image.Rect(x, y, x+w, y+h), tile, image.Point{}, draw.Over)
			}
		}
	}
}

// centerRect returns a w x h rectangle centered on b, possibly larger than b.
func centerRect(b image.Rectangle, w, h int) image.Rectangle {
	x := b.Min.X + (b.Dx()-w)/2
	y := b.Min.Y + (b.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// loadSource returns a downscaled copy of file plus the original size,
// going through cache when one is given.
func loadSource(cache ThumbnailCache, file string) (image.Image, image.Point, error) {
	info, err := os.Stat(file)
	if err != nil {
		return nil, image.Point{}, err
	}
	uri := dutils.EncodeURI(file, dutils.SCHEME_FILE)
	mtime := info.ModTime().Unix()
	if cache != nil {
		if thumb, w, h, ok := cache.Lookup(uri, mtime); ok {
			return thumb, image.Pt(w, h), nil
		}
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, image.Point{}, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, image.Point{}, xerrors.Errorf("decode %s: %w", file, err)
	}
	size := img.Bounds().Size()
	thumb := downscale(img, sourceThumbSize)
	if cache != nil {
		err = cache.Save(uri, mtime, size.X, size.Y, thumb)
		if err != nil {
			logger.Warning("failed to save thumbnail:", err)
		}
	}
	return thumb, size, nil
}

// downscale fits img into a limit x limit box, keeping the aspect ratio.
func downscale(img image.Image, limit int) image.Image {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w <= limit && h <= limit {
		return img
	}
	if w >= h {
		h = h * limit / w
		w = limit
	} else {
		w = w * limit / h
		h = limit
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
