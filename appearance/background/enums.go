// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package background

import (
	"errors"
	"image/color"
	"regexp"
	"strconv"
	"strings"
)

type Placement int

const (
	PlacementCentered Placement = iota
	PlacementStretched
	PlacementScaled
	PlacementZoom
	PlacementTiled
)

// catalog spelling, "wallpaper" means tiled
var placementNames = []string{"centered", "stretched", "scaled", "zoom", "wallpaper"}

func (p Placement) String() string {
	if p < 0 || int(p) >= len(placementNames) {
		return placementNames[PlacementScaled]
	}
	return placementNames[p]
}

// ParsePlacement falls back to PlacementScaled for unknown strings.
func ParsePlacement(s string) Placement {
	for i, name := range placementNames {
		if name == s {
			return Placement(i)
		}
	}
	return PlacementScaled
}

type Shading int

const (
	ShadingSolid Shading = iota
	ShadingHorizontal
	ShadingVertical
)

var shadingNames = []string{"solid", "horizontal-gradient", "vertical-gradient"}

func (s Shading) String() string {
	if s < 0 || int(s) >= len(shadingNames) {
		return shadingNames[ShadingSolid]
	}
	return shadingNames[s]
}

// ParseShading falls back to ShadingSolid for unknown strings.
func ParseShading(s string) Shading {
	for i, name := range shadingNames {
		if name == s {
			return Shading(i)
		}
	}
	return ShadingSolid
}

var hexColorReg = regexp.MustCompile(`^#([0-9A-F]{3}|[0-9A-F]{6}|[0-9A-F]{9}|[0-9A-F]{12})$`)

var errInvalidColor = errors.New("invalid hex color format")

// ParseColor accepts #rgb, #rrggbb, #rrrgggbbb and #rrrrggggbbbb.
func ParseColor(hexColor string) (color.NRGBA, error) {
	match := hexColorReg.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(hexColor)))
	if match == nil {
		return color.NRGBA{A: 0xff}, errInvalidColor
	}
	hexNums := match[1]
	width := len(hexNums) / 3
	var channels [3]uint8
	for i := range channels {
		v, err := strconv.ParseUint(hexNums[i*width:(i+1)*width], 16, 16)
		if err != nil {
			return color.NRGBA{A: 0xff}, err
		}
		// keep the most significant byte, scaling short forms up
		switch width {
		case 1:
			channels[i] = uint8(v * 0x11)
		case 2:
			channels[i] = uint8(v)
		case 3:
			channels[i] = uint8(v >> 4)
		case 4:
			channels[i] = uint8(v >> 8)
		}
	}
	return color.NRGBA{R: channels[0], G: channels[1], B: channels[2], A: 0xff}, nil
}
