// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package subthemes

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/linuxdeepin/go-lib/gettext"
	"golang.org/x/xerrors"
)

const (
	xcursorMagic     = "Xcur"
	xcursorImageType = 0xfffd0002
	xcursorMaxDim    = 0x7fff

	// header, type, subtype, version, width, height, xhot, yhot, delay
	xcursorImageHeaderSize = 36

	previewCursorSize = 24
	defaultCursorSize = 24

	defaultCursorName = "default"

	// synthetic entries lose against anything found on disk
	builtinPriority = 1000
)

// left_ptr is what X shows on the root window, the rest are fallbacks found
// in older themes.
var previewCursorFiles = []string{"left_ptr", "default", "arrow"}

var errBadXcursor = errors.New("not a Xcursor file")

type xcursorTOC struct {
	typ      uint32
	subtype  uint32
	position uint32
}

// xcursorFile keeps the raw file so images are only decoded on demand.
type xcursorFile struct {
	data []byte
	toc  []xcursorTOC
}

func parseXcursor(data []byte) (*xcursorFile, error) {
	if len(data) < 16 || string(data[:4]) != xcursorMagic {
		return nil, errBadXcursor
	}
	le := binary.LittleEndian
	headerSize := le.Uint32(data[4:])
	ntoc := le.Uint32(data[12:])
	if headerSize < 16 || uint64(headerSize)+uint64(ntoc)*12 > uint64(len(data)) {
		return nil, errBadXcursor
	}

	f := &xcursorFile{data: data}
	off := headerSize
	for i := uint32(0); i < ntoc; i++ {
		f.toc = append(f.toc, xcursorTOC{
			typ:      le.Uint32(data[off:]),
			subtype:  le.Uint32(data[off+4:]),
			position: le.Uint32(data[off+8:]),
		})
		off += 12
	}
	return f, nil
}

// sizes returns the distinct nominal sizes, ascending.
func (f *xcursorFile) sizes() []int {
	seen := make(map[int]bool)
	var result []int
	for _, entry := range f.toc {
		if entry.typ != xcursorImageType || seen[int(entry.subtype)] {
			continue
		}
		seen[int(entry.subtype)] = true
		result = append(result, int(entry.subtype))
	}
	sort.Ints(result)
	return result
}

// image decodes the first image whose nominal size is closest to size.
func (f *xcursorFile) image(size int) (*image.NRGBA, error) {
	best := -1
	bestDist := 0
	for i, entry := range f.toc {
		if entry.typ != xcursorImageType {
			continue
		}
		dist := int(entry.subtype) - size
		if dist < 0 {
			dist = -dist
		}
		if best < 0 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return nil, xerrors.New("no image chunk")
	}

	le := binary.LittleEndian
	pos := uint64(f.toc[best].position)
	if pos+xcursorImageHeaderSize > uint64(len(f.data)) {
		return nil, xerrors.Errorf("image chunk at %d past end of file", pos)
	}
	chunk := f.data[pos:]
	headerSize := uint64(le.Uint32(chunk))
	typ := le.Uint32(chunk[4:])
	width := le.Uint32(chunk[16:])
	height := le.Uint32(chunk[20:])
	if headerSize < xcursorImageHeaderSize || typ != xcursorImageType ||
		width == 0 || height == 0 || width > xcursorMaxDim || height > xcursorMaxDim {
		return nil, errBadXcursor
	}
	// the header is trusted only after the file is known to hold the pixels
	if pos+headerSize+4*uint64(width)*uint64(height) > uint64(len(f.data)) {
		return nil, xerrors.Errorf("truncated %dx%d image chunk", width, height)
	}

	pixels := chunk[headerSize:]
	img := image.NewNRGBA(image.Rect(0, 0, int(width), int(height)))
	for i := 0; i < int(width*height); i++ {
		argb := le.Uint32(pixels[4*i:])
		// pixels are premultiplied ARGB
		c := color.RGBA{
			A: uint8(argb >> 24),
			R: uint8(argb >> 16),
			G: uint8(argb >> 8),
			B: uint8(argb),
		}
		n := color.NRGBAModel.Convert(c).(color.NRGBA)
		img.SetNRGBA(i%int(width), i/int(width), n)
	}
	return img, nil
}

// readCursorPreview returns the sizes and a preview of a cursors/ dir.
// Failures leave both empty.
func readCursorPreview(cursorsDir string) ([]int, *image.NRGBA) {
	for _, name := range previewCursorFiles {
		data, err := os.ReadFile(filepath.Join(cursorsDir, name))
		if err != nil {
			continue
		}
		f, err := parseXcursor(data)
		if err != nil {
			logger.Debugf("skip cursor %s: %v", name, err)
			continue
		}
		img, err := f.image(previewCursorSize)
		if err != nil {
			logger.Debugf("no preview in cursor %s: %v", name, err)
		}
		return f.sizes(), img
	}
	return nil, nil
}

func cursorSizeFromEnv() int {
	size, err := strconv.Atoi(os.Getenv("XCURSOR_SIZE"))
	if err != nil || size <= 0 {
		return defaultCursorSize
	}
	return size
}

func builtinPath(name string) string {
	return "builtin:" + name
}

func newDefaultCursorTheme() *CursorTheme {
	return &CursorTheme{
		ThemeInfo: ThemeInfo{
			Path:         builtinPath(defaultCursorName),
			Name:         defaultCursorName,
			ReadableName: gettext.Tr("Default Pointer"),
			Priority:     builtinPriority,
			order:        -1,
		},
		Sizes: []int{cursorSizeFromEnv()},
	}
}

// newCursorFontThemes returns the entries used when cursor themes are not
// supported and the X core cursor font is all there is.
func newCursorFontThemes() []*CursorTheme {
	fonts := []struct {
		name     string
		readable string
		size     int
	}{
		{"mouse-default", gettext.Tr("Default Pointer"), 16},
		{"mouse-white", gettext.Tr("White Pointer"), 16},
		{"mouse-large", gettext.Tr("Large Pointer"), 32},
		{"mouse-large-white", gettext.Tr("Large White Pointer"), 32},
	}
	result := make([]*CursorTheme, 0, len(fonts))
	for _, font := range fonts {
		result = append(result, &CursorTheme{
			ThemeInfo: ThemeInfo{
				Path:         builtinPath(font.name),
				Name:         font.name,
				ReadableName: font.readable,
				Priority:     builtinPriority,
				order:        -1,
			},
			Sizes: []int{font.size},
		})
	}
	return result
}
