// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxdeepin/dde-appearance/appearance"
)

func writeFile(t *testing.T, file, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0755))
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))
}

func Test_moveThumbFiles(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "dest1")
	f1 := filepath.Join(src, "f1")
	writeFile(t, f1, "thumb")

	defer func(old string) { _destDir = old }(_destDir)
	_destDir = dest
	moveThumbFiles([]string{f1})

	assert.FileExists(t, filepath.Join(dest, "f1"))
	assert.NoFileExists(t, f1)
}

func testConfig(t *testing.T) *appearance.Config {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "themes", "Red", "gtk-2.0", "gtkrc"),
		"gtk-color-scheme = \"bg_color:#ff0000\"\n")
	writeFile(t, filepath.Join(root, "themes", "Classic", "index.theme"), `[Desktop Entry]
Name=Classic

[X-GNOME-Metatheme]
GtkTheme=Red
MetacityTheme=Red
IconTheme=hicolor
`)
	pics := filepath.Join(root, "pics")
	require.NoError(t, os.MkdirAll(pics, 0755))
	img := image.NewNRGBA(image.Rect(0, 0, 32, 18))
	f, err := os.Create(filepath.Join(pics, "a.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	cfg := appearance.DefaultConfig()
	cfg.DataDir = root
	cfg.ImageDirs = []string{pics}
	cfg.CacheDB = ":memory:"
	cfg.ThumbnailDir = filepath.Join(root, "thumbs")
	return cfg
}

func Test_generate(t *testing.T) {
	cfg := testConfig(t)

	// ~/.themes is scanned too, so only look for the fixture themes
	gtkThumb := filepath.Join(cfg.ThumbnailDir, "gtk-Red.png")
	files, err := generate(context.Background(), cfg, TypeGtk, false)
	require.NoError(t, err)
	assert.Contains(t, files, gtkThumb)

	metaThumb := filepath.Join(cfg.ThumbnailDir, "meta-Classic.png")
	files, err = generate(context.Background(), cfg, TypeMeta, false)
	require.NoError(t, err)
	require.Contains(t, files, metaThumb)
	f, err := os.Open(metaThumb)
	require.NoError(t, err)
	defer f.Close()
	conf, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 150, conf.Width)

	files, err = generate(context.Background(), cfg, TypeBackground, false)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	// existing files are reported without rendering again
	require.NoError(t, os.WriteFile(gtkThumb, []byte("kept"), 0644))
	files, err = generate(context.Background(), cfg, TypeGtk, false)
	require.NoError(t, err)
	assert.Contains(t, files, gtkThumb)
	data, err := os.ReadFile(gtkThumb)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(data))

	_, err = generate(context.Background(), cfg, "sound", false)
	assert.Error(t, err)
}

func Test_listEntries(t *testing.T) {
	cfg := testConfig(t)
	entries, err := listEntries(cfg, TypeMeta)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "Classic")

	entries, err = listEntries(cfg, TypeBackground)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.png", entries[0].Name)
}
