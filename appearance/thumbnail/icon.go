// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package thumbnail

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"github.com/linuxdeepin/go-lib/keyfile"
	dutils "github.com/linuxdeepin/go-lib/utils"
	"golang.org/x/image/draw"
)

const (
	folderIconSize  = 48
	fallbackTheme   = "hicolor"
	iconThemeGroup  = "Icon Theme"
	maxInheritDepth = 8
)

var folderIconNames = []string{"folder", "gnome-fs-directory"}

// iconDir is one Directories entry of an icon theme.
type iconDir struct {
	path string
	size int
}

// iconTheme is the part of an index.theme the lookup needs.
type iconTheme struct {
	dirs     []iconDir
	inherits []string
}

// IconLookup finds themed icons below a list of icon base dirs.
type IconLookup struct {
	BaseDirs []string
}

func (l *IconLookup) loadTheme(name string) *iconTheme {
	for _, base := range l.BaseDirs {
		root := filepath.Join(base, name)
		index := filepath.Join(root, "index.theme")
		if !dutils.IsFileExist(index) {
			continue
		}
		kf := keyfile.NewKeyFile()
		if err := kf.LoadFromFile(index); err != nil {
			logger.Debugf("failed to load %s: %v", index, err)
			continue
		}
		theme := &iconTheme{}
		theme.inherits, _ = kf.GetStringList(iconThemeGroup, "Inherits")
		dirs, _ := kf.GetStringList(iconThemeGroup, "Directories")
		for _, dir := range dirs {
			sizeStr, _ := kf.GetString(dir, "Size")
			size, err := strconv.Atoi(sizeStr)
			if err != nil {
				continue
			}
			theme.dirs = append(theme.dirs, iconDir{path: filepath.Join(root, dir), size: size})
		}
		return theme
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// findInTheme returns the PNG for one of names with the size closest to
// size in a single theme. Earlier names win over better sizes.
func findInTheme(theme *iconTheme, names []string, size int) string {
	for _, name := range names {
		best := ""
		bestDist := -1
		for _, dir := range theme.dirs {
			file := filepath.Join(dir.path, name+".png")
			if !dutils.IsFileExist(file) {
				continue
			}
			dist := abs(dir.size - size)
			if bestDist < 0 || dist < bestDist {
				best, bestDist = file, dist
			}
		}
		if best != "" {
			return best
		}
	}
	return ""
}

// Lookup walks theme, its Inherits chain and hicolor. It returns "" when
// no PNG is found.
func (l *IconLookup) Lookup(themeName string, names []string, size int) string {
	visited := make(map[string]bool)
	queue := []string{themeName}
	for depth := 0; len(queue) > 0 && depth < maxInheritDepth; depth++ {
		var next []string
		for _, name := range queue {
			if name == "" || visited[name] {
				continue
			}
			visited[name] = true
			theme := l.loadTheme(name)
			if theme == nil {
				continue
			}
			if file := findInTheme(theme, names, size); file != "" {
				return file
			}
			next = append(next, theme.inherits...)
		}
		queue = next
	}
	if !visited[fallbackTheme] {
		if theme := l.loadTheme(fallbackTheme); theme != nil {
			return findInTheme(theme, names, size)
		}
	}
	return ""
}

// LoadIcon decodes file and scales it to size x size.
func LoadIcon(file string, size int) (*image.NRGBA, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src, err := png.Decode(f)
	if err != nil {
		return nil, err
	}
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

func (l *IconLookup) folderIcon(themeName string) *image.NRGBA {
	file := l.Lookup(themeName, folderIconNames, folderIconSize)
	if file == "" {
		return nil
	}
	icon, err := LoadIcon(file, folderIconSize)
	if err != nil {
		logger.Debugf("failed to load %s: %v", file, err)
		return nil
	}
	return icon
}
