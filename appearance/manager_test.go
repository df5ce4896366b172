// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package appearance

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxdeepin/dde-appearance/appearance/background"
	"github.com/linuxdeepin/dde-appearance/appearance/subthemes"
	"github.com/linuxdeepin/dde-appearance/appearance/thumbnail"
)

const classicIndex = `[Desktop Entry]
Type=X-GNOME-Metatheme
Name=Clearlooks Classic

[X-GNOME-Metatheme]
GtkTheme=Clearlooks
MetacityTheme=Clearlooks
IconTheme=gnome
`

type signalRecorder struct {
	mu      sync.Mutex
	signals []string
}

func (r *signalRecorder) record(signal string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, arg := range args {
		signal += " " + arg.(string)
	}
	r.signals = append(r.signals, signal)
}

func (r *signalRecorder) has(signal string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.signals {
		if s == signal {
			return true
		}
	}
	return false
}

func writeTestFile(t *testing.T, file, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0755))
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))
}

func writeTestPNG(t *testing.T, file string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0755))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	f, err := os.Create(file)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func newTestManager(t *testing.T) (*Manager, *signalRecorder, string) {
	root := t.TempDir()
	themes := filepath.Join(root, "themes")
	icons := filepath.Join(root, "icons")
	writeTestFile(t, filepath.Join(themes, "Clearlooks", "gtk-2.0", "gtkrc"),
		"gtk-color-scheme = \"bg_color:#ff0000\"\n")
	writeTestFile(t, filepath.Join(themes, "Classic", "index.theme"), classicIndex)
	writeTestFile(t, filepath.Join(icons, "gnome", "index.theme"),
		"[Icon Theme]\nName=GNOME\nDirectories=48x48/places\n\n[48x48/places]\nSize=48\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pics"), 0755))

	cfg := DefaultConfig()
	cfg.ImageDirs = []string{filepath.Join(root, "pics")}
	cfg.CacheDB = ":memory:"
	cfg.ThumbnailDir = filepath.Join(root, "thumbs")

	dirs := subthemes.Dirs{
		{Path: themes, Priority: 1, Type: subthemes.DirThemes},
		{Path: icons, Priority: 1, Type: subthemes.DirIcons},
	}
	renderer := &thumbnail.PreviewRenderer{
		ThemeDirs: dirs.Paths(subthemes.DirThemes),
		Icons:     thumbnail.IconLookup{BaseDirs: dirs.Paths(subthemes.DirIcons)},
	}
	paths := background.Paths{HomeCatalog: filepath.Join(root, ".gnome2", "backgrounds.xml")}

	m := newManagerWith(nil, cfg, dirs, paths, thumbnail.PipeSpawner(renderer, thumbnail.FramingFramed))
	rec := &signalRecorder{}
	m.onEmit = rec.record
	require.NoError(t, m.init())
	t.Cleanup(m.destroy)
	return m, rec, root
}

func listIDs(t *testing.T, m *Manager, type0 string) []string {
	t.Helper()
	data, dbusErr := m.List(type0)
	require.Nil(t, dbusErr)
	var entries []struct{ Id string }
	require.NoError(t, json.Unmarshal([]byte(data), &entries))
	ids := []string{}
	for _, entry := range entries {
		ids = append(ids, entry.Id)
	}
	return ids
}

func Test_ManagerList(t *testing.T) {
	m, _, _ := newTestManager(t)

	assert.Equal(t, []string{"Clearlooks"}, listIDs(t, m, TypeGtkTheme))
	assert.Equal(t, []string{"Classic"}, listIDs(t, m, TypeMetaTheme))
	assert.Equal(t, []string{"gnome"}, listIDs(t, m, TypeIconTheme))
	assert.Contains(t, listIDs(t, m, TypeCursorTheme), "default")
	assert.Equal(t, []string{background.NoneFilename}, listIDs(t, m, TypeBackground))

	_, dbusErr := m.List("sound")
	assert.NotNil(t, dbusErr)
}

func Test_ManagerShow(t *testing.T) {
	m, _, _ := newTestManager(t)

	data, err := m.show(TypeMetaTheme, []string{"Classic", "Missing"})
	require.NoError(t, err)
	var metas []subthemes.MetaTheme
	require.NoError(t, json.Unmarshal([]byte(data), &metas))
	require.Len(t, metas, 1)
	assert.Equal(t, "Clearlooks Classic", metas[0].ReadableName)
	assert.Equal(t, "gnome", metas[0].IconThemeName)

	data, err = m.show(TypeBackground, []string{background.NoneFilename})
	require.NoError(t, err)
	var items []backgroundJSON
	require.NoError(t, json.Unmarshal([]byte(data), &items))
	require.Len(t, items, 1)
	assert.Equal(t, background.MimeNoData, items[0].MimeType)

	_, err = m.show("sound", nil)
	assert.ErrorIs(t, err, errUnknownType)
}

func Test_ManagerBackgrounds(t *testing.T) {
	m, rec, root := newTestManager(t)
	file := filepath.Join(root, "pics", "a.png")
	writeTestPNG(t, file, 32, 18)
	text := filepath.Join(root, "notes.txt")
	writeTestFile(t, text, "hello")

	added, err := m.addBackground(file)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = m.addBackground(file)
	require.NoError(t, err)
	assert.False(t, added)
	_, err = m.addBackground(text)
	assert.Error(t, err)
	_, err = m.addBackground(filepath.Join(root, "missing.png"))
	assert.Error(t, err)
	assert.Contains(t, listIDs(t, m, TypeBackground), file)

	thumb, err := m.backgroundThumbnail(file, 64, 36)
	require.NoError(t, err)
	assert.FileExists(t, thumb)
	n, err := m.cache.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = m.backgroundThumbnail(file, 0, 36)
	assert.Error(t, err)
	_, dbusErr := m.BackgroundThumbnail(file, math.MaxInt32, math.MaxInt32)
	assert.NotNil(t, dbusErr)
	_, err = m.backgroundThumbnail(file, maxThumbnailSize+1, 36)
	assert.Error(t, err)

	removed, dbusErr := m.RemoveBackground(file)
	require.Nil(t, dbusErr)
	assert.True(t, removed)
	assert.NotContains(t, listIDs(t, m, TypeBackground), file)
	assert.Nil(t, m.SaveBackgrounds())
	assert.FileExists(t, filepath.Join(root, ".gnome2", "backgrounds.xml"))

	assert.True(t, rec.has("BackgroundAdded "+file))
	assert.True(t, rec.has("BackgroundRemoved "+file))
	assert.Eventually(t, func() bool {
		return rec.has("Refreshed " + TypeBackground)
	}, 3*time.Second, 20*time.Millisecond)
}

func Test_ManagerThumbnail(t *testing.T) {
	m, _, _ := newTestManager(t)

	file, err := m.thumbnail("Classic")
	require.NoError(t, err)
	f, err := os.Open(file)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, thumbnail.Width, thumbnail.Height), img.Bounds())
	// the gtkrc background shows inside the frame
	r, g, b, _ := img.At(140, 60).RGBA()
	assert.Equal(t, color.RGBA64{R: 0xffff}, color.RGBA64{R: uint16(r), G: uint16(g), B: uint16(b)})

	_, err = m.thumbnail("Missing")
	assert.Error(t, err)
}

func Test_ManagerRefreshOnThemeChange(t *testing.T) {
	m, rec, root := newTestManager(t)
	if m.registry.Init() {
		t.Skip("theme directory monitoring unavailable")
	}
	staging := filepath.Join(root, "staging", "Mist")
	writeTestFile(t, filepath.Join(staging, "gtk-2.0", "gtkrc"), "# gtkrc\n")
	require.NoError(t, os.Rename(staging, filepath.Join(root, "themes", "Mist")))
	assert.Eventually(t, func() bool {
		return rec.has("Refreshed " + TypeGtkTheme)
	}, 3*time.Second, 20*time.Millisecond)
}
