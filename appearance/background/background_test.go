// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package background

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, file string, w, h int, c color.NRGBA) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0755))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(file)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func writeSlideshow(t *testing.T, dir string) string {
	t.Helper()
	red := filepath.Join(dir, "red.png")
	blue := filepath.Join(dir, "blue.png")
	writePNG(t, red, 8, 6, color.NRGBA{R: 0xff, A: 0xff})
	writePNG(t, blue, 8, 6, color.NRGBA{B: 0xff, A: 0xff})
	doc := fmt.Sprintf(`<?xml version="1.0"?>
<background>
  <starttime><year>2010</year><month>1</month><day>1</day>
    <hour>0</hour><minute>0</minute><second>0</second></starttime>
  <static><duration>100.0</duration><file>%s</file></static>
  <transition type="overlay"><duration>10.0</duration><from>%s</from><to>blue.png</to></transition>
  <static><duration>100.0</duration><file>blue.png</file></static>
</background>
`, red, red)
	file := filepath.Join(dir, "slideshow.xml")
	require.NoError(t, os.WriteFile(file, []byte(doc), 0644))
	return file
}

func Test_ItemDefaults(t *testing.T) {
	item := NewItem("/tmp/none.png")
	assert.Equal(t, "scaled", item.Placement)
	assert.Equal(t, "solid", item.Shading)
	assert.Equal(t, "#000000000000", item.PrimaryColor)
	assert.Equal(t, "#000000000000", item.SecondaryColor)
	assert.False(t, item.IsDeleted())
}

func Test_LoadNone(t *testing.T) {
	item := NewItem(NoneFilename)
	assert.True(t, item.Load())
	assert.Equal(t, MimeNoData, item.MimeType())
	assert.Equal(t, "No Desktop Background", item.Name)
	assert.Equal(t, item.Name, item.Description())

	thumb := item.Thumbnail(nil, 16, 12)
	require.NotNil(t, thumb)
	assert.Equal(t, image.Rect(0, 0, 16, 12), thumb.Bounds())
	w, h := item.Size()
	assert.Equal(t, 0, w)
	assert.Equal(t, 0, h)
}

func Test_LoadImage(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sunset.png")
	writePNG(t, file, 4, 2, color.NRGBA{G: 0xff, A: 0xff})

	item := NewItem(file)
	assert.True(t, item.Load())
	assert.Equal(t, "image/png", item.MimeType())
	assert.Equal(t, "sunset.png", item.Name)
	assert.False(t, item.ChangesWithTime())

	named := NewItem(file)
	named.Name = "Sunset"
	named.Load()
	assert.Equal(t, "Sunset", named.Name)

	thumb := item.Thumbnail(nil, 64, 48)
	require.NotNil(t, thumb)
	assert.Equal(t, image.Rect(0, 0, 64, 48), thumb.Bounds())
	w, h := item.Size()
	assert.Equal(t, 4, w)
	assert.Equal(t, 2, h)
	assert.Equal(t, fmt.Sprintf("<b>sunset.png</b>\nPNG image, 4 pixels by 2 pixels\nFolder: %s", dir),
		item.Description())
}

func Test_LoadMissing(t *testing.T) {
	item := NewItem("/nonexistent/dir/a&b.png")
	assert.True(t, item.Load())
	assert.Equal(t, MimeNoData, item.MimeType())
	assert.Nil(t, item.Thumbnail(nil, 32, 32))
	assert.Equal(t, "<b></b>\nImage missing\nFolder: /nonexistent/dir", item.Description())

	item.Name = "a&b"
	item.Thumbnail(nil, 32, 32)
	assert.True(t, strings.HasPrefix(item.Description(), "<b>a&amp;b</b>"))
}

func Test_Slideshow(t *testing.T) {
	file := writeSlideshow(t, t.TempDir())

	item := NewItem(file)
	item.Load()
	assert.Equal(t, MimeXML, item.MimeType())
	assert.True(t, item.ChangesWithTime())

	thumb := item.Thumbnail(nil, 40, 30)
	require.NotNil(t, thumb)
	assert.Equal(t, image.Rect(0, 0, 46, 36), thumb.Bounds())
	assert.Contains(t, item.Description(), "Slide Show, 8 pixels by 6 pixels")

	// sheet border at the far corner, transparent top right corner
	assert.Equal(t, uint8(0xff), thumb.NRGBAAt(45, 35).A)
	assert.Equal(t, uint8(0), thumb.NRGBAAt(45, 0).A)

	frame := item.FrameThumbnail(nil, 40, 30, 1)
	require.NotNil(t, frame)
	c := frame.NRGBAAt(20, 15)
	assert.Equal(t, uint8(0xff), c.B)
	assert.Equal(t, uint8(0), c.R)
	assert.Nil(t, item.FrameThumbnail(nil, 40, 30, 5))
}

func Test_SlideshowCurrent(t *testing.T) {
	show, err := parseSlideshow([]byte(`<background>
  <starttime><year>2020</year><month>1</month><day>1</day></starttime>
  <static><duration>60</duration><file><size width="1920" height="1080">a.png</size>
    <size width="1024" height="768">b.png</size></file></static>
  <static><duration>60</duration><file>c.png</file></static>
</background>`), "/base")
	require.NoError(t, err)
	assert.True(t, show.HasMultipleSizes())
	assert.True(t, show.ChangesWithTime())

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.Local)
	slide, _ := show.current(start.Add(90 * time.Second))
	assert.Equal(t, "/base/c.png", slide.From[0].Path)
	slide, progress := show.current(start.Add(150 * time.Second))
	assert.Equal(t, "/base/a.png", bestRendition(slide.From, 1920, 1080).Path)
	assert.Equal(t, "/base/b.png", bestRendition(slide.From, 1024, 768).Path)
	assert.InDelta(t, 0.5, progress, 0.001)
}

func Test_ParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
		ok   bool
	}{
		{"#112233445566", color.NRGBA{R: 0x11, G: 0x33, B: 0x55, A: 0xff}, true},
		{"#ff8000", color.NRGBA{R: 0xff, G: 0x80, A: 0xff}, true},
		{"#fff", color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, true},
		{"#000000000000", color.NRGBA{A: 0xff}, true},
		{"red", color.NRGBA{A: 0xff}, false},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, err == nil, tt.in)
	}
}

func Test_PlacementShading(t *testing.T) {
	for _, name := range []string{"centered", "stretched", "scaled", "zoom", "wallpaper"} {
		assert.Equal(t, name, ParsePlacement(name).String())
	}
	assert.Equal(t, PlacementTiled, ParsePlacement("wallpaper"))
	assert.Equal(t, PlacementScaled, ParsePlacement("spanned"))
	for _, name := range []string{"solid", "horizontal-gradient", "vertical-gradient"} {
		assert.Equal(t, name, ParseShading(name).String())
	}
	assert.Equal(t, ShadingSolid, ParseShading(""))
}

func Test_EnginePlacement(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "wide.png")
	// 2:1 image on a 16:9 screen
	writePNG(t, file, 200, 100, color.NRGBA{R: 0xff, A: 0xff})

	engine := NewEngine()
	engine.SetFilename(file)
	engine.SetColor(ShadingSolid, color.NRGBA{B: 0xff, A: 0xff}, color.NRGBA{A: 0xff})

	engine.SetPlacement(PlacementScaled)
	img := engine.CreateThumbnail(nil, 160, 90)
	require.NotNil(t, img)
	// letterbox shows the color at the top, image in the middle
	assert.Equal(t, uint8(0xff), img.NRGBAAt(80, 1).B)
	assert.Equal(t, uint8(0xff), img.NRGBAAt(80, 45).R)

	engine.SetPlacement(PlacementZoom)
	img = engine.CreateThumbnail(nil, 160, 90)
	assert.Equal(t, uint8(0xff), img.NRGBAAt(80, 1).R)

	engine.SetColor(ShadingHorizontal, color.NRGBA{A: 0xff}, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
	engine.SetFilename(NoneFilename)
	img = engine.CreateThumbnail(nil, 11, 4)
	assert.Equal(t, uint8(0), img.NRGBAAt(0, 0).G)
	assert.Equal(t, uint8(0xff), img.NRGBAAt(10, 0).G)
}

type memCache struct {
	saved   int
	entries map[string]image.Image
	sizes   map[string]image.Point
}

func (c *memCache) Lookup(uri string, mtime int64) (image.Image, int, int, bool) {
	key := fmt.Sprint(uri, mtime)
	img, ok := c.entries[key]
	return img, c.sizes[key].X, c.sizes[key].Y, ok
}

func (c *memCache) Save(uri string, mtime int64, w, h int, img image.Image) error {
	key := fmt.Sprint(uri, mtime)
	c.saved++
	c.entries[key] = img
	c.sizes[key] = image.Pt(w, h)
	return nil
}

func Test_ThumbnailCache(t *testing.T) {
	file := filepath.Join(t.TempDir(), "big.png")
	writePNG(t, file, 512, 300, color.NRGBA{G: 0xff, A: 0xff})
	cache := &memCache{entries: map[string]image.Image{}, sizes: map[string]image.Point{}}

	item := NewItem(file)
	item.Load()
	require.NotNil(t, item.Thumbnail(cache, 64, 36))
	require.NotNil(t, item.Thumbnail(cache, 64, 36))
	assert.Equal(t, 1, cache.saved)
	for _, img := range cache.entries {
		assert.Equal(t, 256, img.Bounds().Dx())
	}
	w, h := item.Size()
	assert.Equal(t, 512, w)
	assert.Equal(t, 300, h)
}
