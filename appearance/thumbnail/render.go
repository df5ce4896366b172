// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package thumbnail

import (
	"encoding/xml"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/linuxdeepin/dde-appearance/appearance/background"
	dutils "github.com/linuxdeepin/go-lib/utils"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Renderer turns a request into a Width x Height preview.
type Renderer interface {
	Render(req Request) (*image.NRGBA, error)
}

// Palette holds the colors a gtk theme paints widgets with.
type Palette struct {
	Bg         color.NRGBA
	Fg         color.NRGBA
	Base       color.NRGBA
	SelectedBg color.NRGBA
	SelectedFg color.NRGBA
}

var defaultPalette = Palette{
	Bg:         color.NRGBA{R: 0xed, G: 0xed, B: 0xed, A: 0xff},
	Fg:         color.NRGBA{A: 0xff},
	Base:       color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	SelectedBg: color.NRGBA{R: 0x86, G: 0xab, B: 0xd9, A: 0xff},
	SelectedFg: color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
}

var (
	colorSchemeReg = regexp.MustCompile(`gtk[-_]color[-_]scheme\s*=\s*"([^"]*)"`)
	schemeEntryReg = regexp.MustCompile(`(\w+)\s*:\s*(#[0-9a-fA-F]+)`)
	styleColorReg  = regexp.MustCompile(`(?m)^\s*(bg|fg|base)\[(NORMAL|SELECTED)\]\s*=\s*"(#[0-9a-fA-F]+)"`)
	defineColorReg = regexp.MustCompile(`@define-color\s+(\w+)\s+(#[0-9a-fA-F]+)\s*;`)
)

func (p *Palette) set(name, value string) {
	c, err := background.ParseColor(value)
	if err != nil {
		return
	}
	switch name {
	case "bg_color", "theme_bg_color", "bg[NORMAL]":
		p.Bg = c
	case "fg_color", "theme_fg_color", "fg[NORMAL]":
		p.Fg = c
	case "base_color", "theme_base_color", "base[NORMAL]":
		p.Base = c
	case "selected_bg_color", "theme_selected_bg_color", "bg[SELECTED]":
		p.SelectedBg = c
	case "selected_fg_color", "theme_selected_fg_color", "fg[SELECTED]":
		p.SelectedFg = c
	}
}

// parseGtkrc reads the color scheme and the first style colors of a gtk-2.0
// gtkrc.
func parseGtkrc(data string, p *Palette) {
	for _, scheme := range colorSchemeReg.FindAllStringSubmatch(data, -1) {
		body := strings.ReplaceAll(scheme[1], `\n`, "\n")
		for _, entry := range schemeEntryReg.FindAllStringSubmatch(body, -1) {
			p.set(entry[1], entry[2])
		}
	}
	seen := make(map[string]bool)
	for _, m := range styleColorReg.FindAllStringSubmatch(data, -1) {
		key := m[1] + "[" + m[2] + "]"
		if seen[key] {
			continue
		}
		seen[key] = true
		p.set(key, m[3])
	}
}

func parseGtkCSS(data string, p *Palette) {
	for _, m := range defineColorReg.FindAllStringSubmatch(data, -1) {
		p.set(m[1], m[2])
	}
}

// frameGeometry is the part of a metacity theme the frame preview uses.
type frameGeometry struct {
	BorderWidth int
	TitleHeight int
}

var defaultGeometry = frameGeometry{BorderWidth: 2, TitleHeight: 20}

type metacityXML struct {
	Geometries []struct {
		Name      string `xml:"name,attr"`
		Distances []struct {
			Name  string `xml:"name,attr"`
			Value string `xml:"value,attr"`
		} `xml:"distance"`
	} `xml:"frame_geometry"`
}

func parseMetacity(data []byte) (frameGeometry, error) {
	var doc metacityXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return defaultGeometry, err
	}
	geo := defaultGeometry
	if len(doc.Geometries) == 0 {
		return geo, nil
	}
	// the first geometry is the one normal windows use
	pad := -1
	for _, d := range doc.Geometries[0].Distances {
		v, err := strconv.Atoi(d.Value)
		if err != nil || v < 0 {
			continue
		}
		switch d.Name {
		case "left_width":
			geo.BorderWidth = v
		case "title_vertical_pad":
			pad = v
		}
	}
	if pad >= 0 {
		geo.TitleHeight = basicfont.Face7x13.Height + 2*pad
	}
	return geo, nil
}

// fontSize returns the trailing point size of a pango font description.
func fontSize(desc string) int {
	fields := strings.Fields(desc)
	if len(fields) == 0 {
		return 10
	}
	size, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil || size <= 0 {
		return 10
	}
	return size
}

// PreviewRenderer paints a window with a frame, a button and a folder icon
// using the colors and geometry it finds in the named themes.
type PreviewRenderer struct {
	ThemeDirs []string
	Icons     IconLookup
}

func (r *PreviewRenderer) themeFile(name, rel string) string {
	if name == "" {
		return ""
	}
	for _, dir := range r.ThemeDirs {
		file := filepath.Join(dir, name, rel)
		if dutils.IsFileExist(file) {
			return file
		}
	}
	return ""
}

func (r *PreviewRenderer) palette(gtkTheme string) Palette {
	p := defaultPalette
	if file := r.themeFile(gtkTheme, "gtk-2.0/gtkrc"); file != "" {
		if data, err := os.ReadFile(file); err == nil {
			parseGtkrc(string(data), &p)
		}
	}
	if file := r.themeFile(gtkTheme, "gtk-3.0/gtk.css"); file != "" {
		if data, err := os.ReadFile(file); err == nil {
			parseGtkCSS(string(data), &p)
		}
	}
	return p
}

func (r *PreviewRenderer) geometry(wmTheme string) frameGeometry {
	file := r.themeFile(wmTheme, "metacity-1/metacity-theme-1.xml")
	if file == "" {
		return defaultGeometry
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return defaultGeometry
	}
	geo, err := parseMetacity(data)
	if err != nil {
		logger.Debugf("bad metacity theme %s: %v", file, err)
	}
	return geo
}

func (r *PreviewRenderer) Render(req Request) (*image.NRGBA, error) {
	canvas := image.NewNRGBA(image.Rect(0, 0, Width, Height))
	pal := r.palette(req.GtkTheme)

	switch req.Kind {
	case KindIcon:
		if icon := r.Icons.folderIcon(req.IconTheme); icon != nil {
			at := image.Pt((Width-folderIconSize)/2, (Height-folderIconSize)/2)
			draw.Draw(canvas, icon.Bounds().Add(at), icon, image.Point{}, draw.Over)
		}
		return canvas, nil
	case KindMetacity:
		r.paintFrame(canvas, canvas.Bounds(), pal, r.geometry(req.WMTheme))
		return canvas, nil
	}

	// window
	fill(canvas, canvas.Bounds(), pal.Bg)
	content := canvas.Bounds()
	if req.Kind == KindMeta {
		// frame preview
		content = r.paintFrame(canvas, canvas.Bounds(), pal, r.geometry(req.WMTheme))
	}
	// the button sits in a 5px bordered box
	box := content.Inset(5)
	paintButton(canvas, box.Min, pal, fontSize(req.font()))

	if req.Kind == KindMeta {
		if icon := r.Icons.folderIcon(req.IconTheme); icon != nil {
			size := icon.Bounds().Size()
			at := image.Pt(box.Max.X-size.X-5, box.Max.Y-size.Y-5)
			draw.Draw(canvas, icon.Bounds().Add(at), icon, image.Point{}, draw.Over)
		}
	}
	return canvas, nil
}

func fill(dst draw.Image, r image.Rectangle, c color.NRGBA) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func shade(c color.NRGBA, factor float64) color.NRGBA {
	scale := func(v uint8) uint8 {
		f := float64(v) * factor
		if f > 0xff {
			return 0xff
		}
		return uint8(f)
	}
	return color.NRGBA{R: scale(c.R), G: scale(c.G), B: scale(c.B), A: c.A}
}

// paintFrame draws a focused window frame and returns its client area.
func (r *PreviewRenderer) paintFrame(dst *image.NRGBA, bounds image.Rectangle, pal Palette, geo frameGeometry) image.Rectangle {
	border := shade(pal.SelectedBg, 0.7)
	fill(dst, bounds, border)

	title := image.Rect(bounds.Min.X+geo.BorderWidth, bounds.Min.Y+geo.BorderWidth,
		bounds.Max.X-geo.BorderWidth, bounds.Min.Y+geo.BorderWidth+geo.TitleHeight)
	fill(dst, title, pal.SelectedBg)

	// close, maximize and minimize buttons, right aligned
	size := geo.TitleHeight - 8
	if size > 2 {
		x := title.Max.X - 4
		for i := 0; i < 3; i++ {
			btn := image.Rect(x-size, title.Min.Y+4, x, title.Min.Y+4+size)
			fill(dst, btn, pal.SelectedFg)
			fill(dst, btn.Inset(1), pal.SelectedBg)
			x -= size + 3
		}
	}

	client := image.Rect(title.Min.X, title.Max.Y, title.Max.X, bounds.Max.Y-geo.BorderWidth)
	fill(dst, client, pal.Bg)
	return client
}

func paintButton(dst *image.NRGBA, at image.Point, pal Palette, size int) {
	face := basicfont.Face7x13
	const label = "Open"
	textWidth := font.MeasureString(face, label).Ceil()
	iconSize := size + 2
	width := 6 + iconSize + 4 + textWidth + 6
	height := face.Height + size
	if height < iconSize+6 {
		height = iconSize + 6
	}
	btn := image.Rectangle{Min: at, Max: at.Add(image.Pt(width, height))}

	fill(dst, btn, shade(pal.Bg, 0.6))
	fill(dst, btn.Inset(1), shade(pal.Bg, 1.08))
	inner := btn.Inset(1)
	inner.Min.Y += inner.Dy() / 2
	fill(dst, inner, pal.Bg)

	// button contents: a stock icon square then the label
	icon := image.Rect(btn.Min.X+6, btn.Min.Y+(height-iconSize)/2,
		btn.Min.X+6+iconSize, btn.Min.Y+(height-iconSize)/2+iconSize)
	fill(dst, icon, pal.SelectedBg)
	fill(dst, icon.Inset(2), pal.Base)

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(pal.Fg),
		Face: face,
		Dot: fixed.P(icon.Max.X+4,
			btn.Min.Y+(height+face.Ascent-face.Descent)/2),
	}
	d.DrawString(label)
}
