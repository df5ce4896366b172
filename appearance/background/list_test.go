// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package background

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ListImageFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "fakeimage1.png")
	recent := filepath.Join(dir, "fakeimage2.png")
	writePNG(t, old, 2, 2, color.NRGBA{A: 0xff})
	writePNG(t, recent, 2, 2, color.NRGBA{A: 0xff})
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "empty"), 0755))

	tests := []struct {
		name string
		dirs []string
		want []string
	}{
		{
			name: "ListImageFiles",
			dirs: []string{dir},
			want: []string{recent, old},
		},
		{
			name: "ListImageFiles empty",
			dirs: []string{filepath.Join(dir, "empty")},
			want: nil,
		},
		{
			name: "ListImageFiles missing",
			dirs: []string{filepath.Join(dir, "missing"), dir},
			want: []string{recent, old},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ListImageFiles(tt.dirs...))
		})
	}
}

func Test_IsBackgroundFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.png")
	writePNG(t, file, 1, 1, color.NRGBA{A: 0xff})
	assert.True(t, IsBackgroundFile(file))
	assert.False(t, IsBackgroundFile(filepath.Join(dir, "missing.png")))
}
