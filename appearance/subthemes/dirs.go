// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package subthemes

import (
	"path/filepath"
	"sort"

	"github.com/linuxdeepin/go-lib/xdg/basedir"
)

// DirType tells which theme kinds may live below a top level directory.
type DirType int

const (
	// regular and meta themes
	DirThemes DirType = iota
	// icon and cursor themes
	DirIcons
)

func (t DirType) kinds() []Kind {
	if t == DirIcons {
		return []Kind{KindIcon, KindCursor}
	}
	return []Kind{KindRegular, KindMeta}
}

// TopDir is a directory whose immediate children are theme directories.
type TopDir struct {
	Path     string
	Priority int
	Type     DirType
	// Create the directory (mode 0775) when it does not exist yet.
	Create bool
}

// Dirs lists the top level directories in scan order.
type Dirs []TopDir

const (
	defaultDataDir     = "/usr/share"
	compiledIconPrefix = "/usr/share/icons"
)

// DefaultDirs returns the standard layout: the system theme dir, ~/.themes,
// /usr/share/icons, $datadir/icons (plus cursorDir when set) and ~/.icons.
func DefaultDirs(dataDir, cursorDir string) Dirs {
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	home := basedir.GetUserHomeDir()
	dirs := Dirs{
		{Path: filepath.Join(dataDir, "themes"), Priority: 1, Type: DirThemes},
		{Path: filepath.Join(home, ".themes"), Priority: 0, Type: DirThemes, Create: true},
		{Path: compiledIconPrefix, Priority: 2, Type: DirIcons},
		{Path: filepath.Join(dataDir, "icons"), Priority: 1, Type: DirIcons},
	}
	if cursorDir != "" {
		dirs = append(dirs, TopDir{Path: cursorDir, Priority: 1, Type: DirIcons})
	}
	dirs = append(dirs, TopDir{Path: filepath.Join(home, ".icons"), Priority: 0,
		Type: DirIcons, Create: true})
	return dirs
}

// normalize drops duplicated paths. When the same directory is listed
// twice the most specific (lowest) priority wins, the first position is kept.
func (dirs Dirs) normalize() Dirs {
	var result Dirs
	index := make(map[string]int)
	for _, dir := range dirs {
		dir.Path = filepath.Clean(dir.Path)
		if i, ok := index[dir.Path]; ok {
			if dir.Priority < result[i].Priority {
				result[i].Priority = dir.Priority
			}
			result[i].Create = result[i].Create || dir.Create
			continue
		}
		index[dir.Path] = len(result)
		result = append(result, dir)
	}
	return result
}

// Paths lists the directories of type t, most specific priority first.
func (dirs Dirs) Paths(t DirType) []string {
	var picked Dirs
	for _, dir := range dirs.normalize() {
		if dir.Type == t {
			picked = append(picked, dir)
		}
	}
	sort.SliceStable(picked, func(i, j int) bool {
		return picked[i].Priority < picked[j].Priority
	})
	result := make([]string, len(picked))
	for i, dir := range picked {
		result[i] = dir.Path
	}
	return result
}
