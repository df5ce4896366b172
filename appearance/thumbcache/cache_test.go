// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package thumbcache

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxdeepin/dde-appearance/appearance/background"
)

var _ background.ThumbnailCache = (*Cache)(nil)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func Test_SaveLookup(t *testing.T) {
	cache, err := Open(":memory:")
	require.NoError(t, err)
	defer cache.Close()

	const uri = "file:///usr/share/backgrounds/a.png"
	_, _, _, ok := cache.Lookup(uri, 10)
	assert.False(t, ok)

	require.NoError(t, cache.Save(uri, 10, 1920, 1080, solid(4, 3, color.NRGBA{R: 0xff, A: 0xff})))
	thumb, w, h, ok := cache.Lookup(uri, 10)
	require.True(t, ok)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
	assert.Equal(t, image.Rect(0, 0, 4, 3), thumb.Bounds())
	r, _, _, _ := thumb.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)

	// a newer source invalidates the entry
	_, _, _, ok = cache.Lookup(uri, 11)
	assert.False(t, ok)

	require.NoError(t, cache.Save(uri, 11, 800, 600, solid(2, 2, color.NRGBA{A: 0xff})))
	n, err := cache.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, w, _, ok = cache.Lookup(uri, 11)
	assert.True(t, ok)
	assert.Equal(t, 800, w)

	require.NoError(t, cache.Delete(uri))
	require.NoError(t, cache.Delete(uri))
	_, _, _, ok = cache.Lookup(uri, 11)
	assert.False(t, ok)
}

func Test_Persistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "thumbnails.db")
	cache, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, cache.Save("file:///a", 1, 2, 2, solid(2, 2, color.NRGBA{G: 0xff, A: 0xff})))
	require.NoError(t, cache.Close())

	cache, err = Open(path)
	require.NoError(t, err)
	defer cache.Close()
	_, w, h, ok := cache.Lookup("file:///a", 1)
	assert.True(t, ok)
	assert.Equal(t, 2, w)
	assert.Equal(t, 2, h)
}
