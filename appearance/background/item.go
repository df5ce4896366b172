// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package background

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/linuxdeepin/go-lib/gettext"
	"github.com/linuxdeepin/go-lib/imgutil"
)

const (
	// NoneFilename is the "no wallpaper" sentinel, never checked on disk.
	NoneFilename = "(none)"

	MimeNoData = "image/x-no-data"
	MimeXML    = "application/xml"

	defaultColor = "#000000000000"
)

// Item is one wallpaper choice. Items handed out by a Monitor belong to it;
// the deleted flag changes through Monitor.AddItem and Monitor.RemoveItem
// only. The exported attributes are set before the item is added.
type Item struct {
	Name           string
	Filename       string
	Placement      string
	Shading        string
	PrimaryColor   string
	SecondaryColor string

	mu          sync.Mutex
	deleted     bool
	description string
	engine      *Engine
	mimeType    string
	width       int
	height      int
}

func NewItem(filename string) *Item {
	return &Item{
		Filename:       filename,
		Placement:      PlacementScaled.String(),
		Shading:        ShadingSolid.String(),
		PrimaryColor:   defaultColor,
		SecondaryColor: defaultColor,
		engine:         NewEngine(),
	}
}

// IsDeleted reports a soft-deleted item.
func (it *Item) IsDeleted() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.deleted
}

func (it *Item) setDeleted(deleted bool) {
	it.mu.Lock()
	it.deleted = deleted
	it.mu.Unlock()
}

// Description is the markup shown under the thumbnail, as of the last
// Load or thumbnail.
func (it *Item) Description() string {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.description
}

func (it *Item) MimeType() string {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.mimeType
}

// Size is the size of the image as seen by the last rendered thumbnail.
func (it *Item) Size() (width, height int) {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.width, it.height
}

// Load probes the file and refreshes the derived fields. It always
// succeeds; an unidentifiable file ends up with MimeNoData.
func (it *Item) Load() bool {
	it.mu.Lock()
	defer it.mu.Unlock()

	it.mimeType = probeMimeType(it.Filename)
	if it.mimeType == "" {
		it.mimeType = MimeNoData
		if it.Filename == NoneFilename {
			it.Name = gettext.Tr("No Desktop Background")
		}
	} else if it.Name == "" {
		it.Name = filenameToUTF8(filepath.Base(it.Filename))
	}

	if strings.HasPrefix(it.mimeType, "image/") || it.mimeType == MimeXML {
		it.syncEngine()
	}
	it.updateDescription()
	return true
}

func (it *Item) syncEngine() {
	if it.engine == nil {
		it.engine = NewEngine()
	}
	it.engine.SetFilename(it.Filename)
	primary, err := ParseColor(it.PrimaryColor)
	if err != nil {
		logger.Debugf("bad primary color %q of %s", it.PrimaryColor, it.Filename)
	}
	secondary, err := ParseColor(it.SecondaryColor)
	if err != nil {
		logger.Debugf("bad secondary color %q of %s", it.SecondaryColor, it.Filename)
	}
	it.engine.SetColor(ParseShading(it.Shading), primary, secondary)
	it.engine.SetPlacement(ParsePlacement(it.Placement))
}

// ChangesWithTime reports a slideshow that shows more than one image.
func (it *Item) ChangesWithTime() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.engine != nil && it.engine.ChangesWithTime()
}

// SetScreenSize sets the screen the thumbnails are scaled for.
func (it *Item) SetScreenSize(width, height int) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.engine == nil {
		it.engine = NewEngine()
	}
	it.engine.SetScreenSize(width, height)
}

func (it *Item) Thumbnail(cache ThumbnailCache, width, height int) *image.NRGBA {
	return it.FrameThumbnail(cache, width, height, -1)
}

// FrameThumbnail renders a thumbnail; frame selects a static slideshow
// frame, -1 the current one. Slideshows get a stacked sheets frame, so
// the result is 6 pixels larger in both directions. Size and Description
// are refreshed as a side effect.
func (it *Item) FrameThumbnail(cache ThumbnailCache, width, height, frame int) *image.NRGBA {
	it.mu.Lock()
	defer it.mu.Unlock()

	it.syncEngine()
	var img *image.NRGBA
	if frame != -1 {
		img = it.engine.CreateFrameThumbnail(cache, width, height, frame)
	} else {
		img = it.engine.CreateThumbnail(cache, width, height)
	}
	if img != nil && it.engine.ChangesWithTime() {
		img = addSlideshowFrame(img)
	}

	it.width, it.height = it.engine.ImageSize(cache)
	it.updateDescription()
	return img
}

// addSlideshowFrame puts two blank sheets behind img, offset by 3 and 6
// pixels, to mark it as a slideshow.
func addSlideshowFrame(img *image.NRGBA) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	sheet := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(sheet, sheet.Bounds(), image.NewUniform(color.NRGBA{A: 0xff}), image.Point{}, draw.Src)
	if w > 2 && h > 2 {
		draw.Draw(sheet, image.Rect(1, 1, w-1, h-1), image.White, image.Point{}, draw.Src)
	}

	result := image.NewNRGBA(image.Rect(0, 0, w+6, h+6))
	draw.Draw(result, image.Rect(6, 6, w+6, h+6), sheet, image.Point{}, draw.Over)
	draw.Draw(result, image.Rect(3, 3, w+3, h+3), sheet, image.Point{}, draw.Over)
	draw.Draw(result, image.Rect(0, 0, w, h), img, img.Bounds().Min, draw.Over)
	return result
}

var uiSupportedFormats = []string{"jpeg", "png", "bmp", "tiff", "gif", "webp"}

// IsBackgroundFile reports whether file is an image format wallpapers may use.
func IsBackgroundFile(file string) bool {
	format, err := imgutil.SniffFormat(file)
	if err != nil {
		return false
	}
	for _, f := range uiSupportedFormats {
		if f == format {
			return true
		}
	}
	return false
}

// probeMimeType returns "" when the type cannot be determined.
func probeMimeType(file string) string {
	if file == NoneFilename {
		return ""
	}
	f, err := os.Open(file)
	if err != nil {
		return ""
	}
	defer f.Close()
	head := make([]byte, 256)
	n, _ := f.Read(head)

	if format, err := imgutil.SniffFormat(file); err == nil && format != "" {
		return "image/" + format
	}
	if looksLikeSlideshow(head[:n]) {
		return MimeXML
	}
	if n == 0 {
		return "application/x-zerosize"
	}
	return "application/octet-stream"
}

var mimeDescriptions = map[string]string{
	"image/png":  "PNG image",
	"image/jpeg": "JPEG image",
	"image/gif":  "GIF image",
	"image/bmp":  "BMP image",
	"image/tiff": "TIFF image",
	"image/webp": "WebP image",
}

func describeMimeType(mimeType string) string {
	if desc, ok := mimeDescriptions[mimeType]; ok {
		return gettext.Tr(desc)
	}
	return mimeType
}

var markupEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
)

func pixels(n int) string {
	return gettext.NTr("pixel", "pixels", n)
}

// updateDescription is called with mu held.
func (it *Item) updateDescription() {
	if it.Filename == NoneFilename {
		it.description = it.Name
		return
	}

	dirname := filenameToUTF8(filepath.Dir(it.Filename))
	var description, size string
	switch {
	case it.mimeType == MimeXML:
		if it.engine != nil && it.engine.ChangesWithTime() {
			description = gettext.Tr("Slide Show")
		} else if it.width > 0 && it.height > 0 {
			description = gettext.Tr("Image")
		}
	case it.mimeType != "" && it.mimeType != MimeNoData:
		description = describeMimeType(it.mimeType)
	}

	if it.engine != nil && it.engine.HasMultipleSizes() {
		size = gettext.Tr("multiple sizes")
	} else if it.width > 0 && it.height > 0 {
		// TRANSLATORS: x pixel(s) by y pixel(s)
		size = fmt.Sprintf(gettext.Tr("%d %s by %d %s"),
			it.width, pixels(it.width), it.height, pixels(it.height))
	}

	if description != "" && size != "" {
		it.description = fmt.Sprintf(gettext.Tr("<b>%s</b>\n%s, %s\nFolder: %s"),
			markupEscaper.Replace(it.Name),
			markupEscaper.Replace(description),
			markupEscaper.Replace(size),
			markupEscaper.Replace(dirname))
		return
	}
	it.description = fmt.Sprintf(gettext.Tr("<b>%s</b>\n%s\nFolder: %s"),
		markupEscaper.Replace(it.Name),
		markupEscaper.Replace(gettext.Tr("Image missing")),
		markupEscaper.Replace(dirname))
}
