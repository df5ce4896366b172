// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package background

import (
	"os"
	"path/filepath"
	"sort"
)

type fileEntry struct {
	path string
	info os.FileInfo
}

// sort newest first, then by name
func sortByTime(files []fileEntry) {
	sort.Slice(files, func(i, j int) bool {
		ti, tj := files[i].info.ModTime(), files[j].info.ModTime()
		if ti.After(tj) {
			return true
		} else if ti.Equal(tj) {
			return files[i].info.Name() < files[j].info.Name()
		}
		return false
	})
}

// ListImageFiles returns the wallpaper images found directly in dirs,
// newest first within each dir.
func ListImageFiles(dirs ...string) []string {
	var walls []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Debug(err)
			continue
		}

		var files []fileEntry
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			files = append(files, fileEntry{path: filepath.Join(dir, entry.Name()), info: info})
		}
		sortByTime(files)

		for _, f := range files {
			if !IsBackgroundFile(f.path) {
				continue
			}
			walls = append(walls, f.path)
		}
	}
	return walls
}
