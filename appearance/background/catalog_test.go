// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package background

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_selectName(t *testing.T) {
	names := []nameXML{
		{Value: " Forest "},
		{Lang: "de", Value: "Wald"},
		{Lang: "fr", Value: "Forêt"},
		{Value: "Other"},
	}
	tests := []struct {
		languages []string
		want      string
	}{
		{[]string{"fr_FR", "fr", "C"}, "Forêt"},
		{[]string{"de", "fr"}, "Wald"},
		{[]string{"fr", "de"}, "Forêt"},
		{[]string{"ja", "C"}, "Forest"},
		{nil, "Forest"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, selectName(names, tt.languages), "%v", tt.languages)
	}
	assert.Equal(t, "", selectName(nil, []string{"C"}))
}

func Test_parseBool(t *testing.T) {
	for _, v := range []string{"true", "TRUE", "True", "1"} {
		assert.True(t, parseBool(v), v)
	}
	for _, v := range []string{"", "false", "0", "yes"} {
		assert.False(t, parseBool(v), v)
	}
}

func Test_parseCatalog(t *testing.T) {
	entries, err := parseCatalog([]byte(`<?xml version="1.0"?>
<wallpapers>
  <wallpaper>
    <name>Plain</name>
    <name xml:lang="pt_BR">Simples</name>
    <filename>  /nonexistent/plain.jpg </filename>
  </wallpaper>
  <wallpaper deleted="true">
    <name>No file</name>
  </wallpaper>
  <wallpaper deleted="true">
    <filename>(none)</filename>
  </wallpaper>
</wallpapers>`), []string{"pt_BR", "pt"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "/nonexistent/plain.jpg", entries[0].Filename)
	assert.Equal(t, "Simples", entries[0].Name)
	assert.False(t, entries[0].Deleted)

	item := itemFromEntry(entries[0])
	assert.Equal(t, "scaled", item.Placement)
	assert.Equal(t, "solid", item.Shading)
	assert.Equal(t, defaultColor, item.PrimaryColor)

	assert.Equal(t, NoneFilename, entries[1].Filename)
	assert.True(t, entries[1].Deleted)

	_, err = parseCatalog([]byte("<wallpapers><wallpaper>"), nil)
	assert.Error(t, err)
}

func Test_FilenameCharset(t *testing.T) {
	t.Setenv("G_FILENAME_ENCODING", "ISO-8859-1")
	assert.Equal(t, "café.png", filenameToUTF8("caf\xe9.png"))
	assert.Equal(t, "caf\xe9.png", filenameFromUTF8("café.png"))

	entries, err := parseCatalog([]byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n"+
		"<wallpapers><wallpaper><name>Caf\xe9</name>"+
		"<filename>/nonexistent/caf\xe9.png</filename></wallpaper></wallpapers>"), nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Café", entries[0].Name)
	// the text is UTF-8, the on-disk name is Latin-1
	assert.Equal(t, "/nonexistent/caf\xe9.png", entries[0].Filename)

	t.Setenv("G_FILENAME_ENCODING", "@locale")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_CTYPE", "")
	t.Setenv("LANG", "ru_RU.KOI8-R")
	assert.Equal(t, "KOI8-R", filenameCharset())
}

func Test_marshalCatalog(t *testing.T) {
	item := NewItem("/wall/a <b>.png")
	item.Name = "A & B"
	item.setDeleted(true)
	data, err := marshalCatalog([]*Item{item})
	require.NoError(t, err)

	entries, err := parseCatalog(data, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, catalogEntry{
		Filename:       "/wall/a <b>.png",
		Name:           "A & B",
		Placement:      "scaled",
		Shading:        "solid",
		PrimaryColor:   defaultColor,
		SecondaryColor: defaultColor,
		Deleted:        true,
	}, entries[0])
}
