// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package subthemes

import (
	"bytes"
	"image"
)

type Kind int

const (
	KindRegular Kind = iota
	KindIcon
	KindCursor
	KindMeta
)

var kindNames = map[Kind]string{
	KindRegular: "gtk",
	KindIcon:    "icon",
	KindCursor:  "cursor",
	KindMeta:    "meta",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind accepts the names used by the D-Bus surface and theme-thumb-tool.
func ParseKind(name string) (Kind, bool) {
	for k, v := range kindNames {
		if v == name {
			return k, true
		}
	}
	return 0, false
}

// Element is one independently present part of a regular theme.
type Element uint

const (
	ElementGtk Element = 1 << iota
	ElementKeybinding
	ElementMetacity

	ElementAll = ElementGtk | ElementKeybinding | ElementMetacity
)

type ThemeInfo struct {
	// file:// URI of the theme directory
	Path         string
	Name         string
	ReadableName string
	// 0 is the user override, bigger numbers are more "system"
	Priority int

	// position of the top level directory in scan order, breaks ties
	// between directories sharing a priority
	order int
}

func (info *ThemeInfo) Info() *ThemeInfo {
	return info
}

func (info *ThemeInfo) equalInfo(other *ThemeInfo) bool {
	return info.Path == other.Path &&
		info.Name == other.Name &&
		info.ReadableName == other.ReadableName &&
		info.Priority == other.Priority
}

// Theme is one of *RegularTheme, *IconTheme, *CursorTheme or *MetaTheme.
type Theme interface {
	Info() *ThemeInfo
	Kind() Kind
	equal(Theme) bool
}

type RegularTheme struct {
	ThemeInfo
	HasGtk        bool
	HasKeybinding bool
	HasMetacity   bool
}

func (*RegularTheme) Kind() Kind { return KindRegular }

func (t *RegularTheme) equal(other Theme) bool {
	o, ok := other.(*RegularTheme)
	if !ok {
		return false
	}
	return t.equalInfo(&o.ThemeInfo) &&
		t.HasGtk == o.HasGtk &&
		t.HasKeybinding == o.HasKeybinding &&
		t.HasMetacity == o.HasMetacity
}

// Elements returns the element mask the theme provides.
func (t *RegularTheme) Elements() Element {
	var e Element
	if t.HasGtk {
		e |= ElementGtk
	}
	if t.HasKeybinding {
		e |= ElementKeybinding
	}
	if t.HasMetacity {
		e |= ElementMetacity
	}
	return e
}

type IconTheme struct {
	ThemeInfo
	Comment string
}

func (*IconTheme) Kind() Kind { return KindIcon }

func (t *IconTheme) equal(other Theme) bool {
	o, ok := other.(*IconTheme)
	if !ok {
		return false
	}
	return t.equalInfo(&o.ThemeInfo) && t.Comment == o.Comment
}

type CursorTheme struct {
	ThemeInfo
	Sizes     []int
	Thumbnail *image.NRGBA `json:"-"`
}

func (*CursorTheme) Kind() Kind { return KindCursor }

func (t *CursorTheme) equal(other Theme) bool {
	o, ok := other.(*CursorTheme)
	if !ok {
		return false
	}
	if !t.equalInfo(&o.ThemeInfo) || len(t.Sizes) != len(o.Sizes) {
		return false
	}
	for i := range t.Sizes {
		if t.Sizes[i] != o.Sizes[i] {
			return false
		}
	}
	if (t.Thumbnail == nil) != (o.Thumbnail == nil) {
		return false
	}
	if t.Thumbnail != nil {
		return t.Thumbnail.Rect == o.Thumbnail.Rect &&
			bytes.Equal(t.Thumbnail.Pix, o.Thumbnail.Pix)
	}
	return true
}

type MetaTheme struct {
	ThemeInfo
	Comment  string
	IconFile string

	GtkThemeName      string
	GtkColorScheme    string
	MetacityThemeName string
	IconThemeName     string
	CursorThemeName   string
	CursorSize        int

	ApplicationFont string
	DesktopFont     string
	MonospaceFont   string
	BackgroundImage string
}

func (*MetaTheme) Kind() Kind { return KindMeta }

func (t *MetaTheme) equal(other Theme) bool {
	o, ok := other.(*MetaTheme)
	if !ok {
		return false
	}
	return *t == *o
}
