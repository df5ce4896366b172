// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package background

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/linuxdeepin/go-lib/locale"
	dutils "github.com/linuxdeepin/go-lib/utils"
	"golang.org/x/xerrors"
)

const catalogHeader = `<?xml version="1.0"?>
<!DOCTYPE wallpapers SYSTEM "gnome-wp-list.dtd">
`

type wallpapersXML struct {
	XMLName    xml.Name       `xml:"wallpapers"`
	Wallpapers []wallpaperXML `xml:"wallpaper"`
}

type wallpaperXML struct {
	Deleted   string    `xml:"deleted,attr"`
	Names     []nameXML `xml:"name"`
	Filename  *string   `xml:"filename"`
	Options   *string   `xml:"options"`
	ShadeType *string   `xml:"shade_type"`
	PColor    *string   `xml:"pcolor"`
	SColor    *string   `xml:"scolor"`
}

type nameXML struct {
	Lang  string `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

// catalogEntry is one parsed <wallpaper> record.
type catalogEntry struct {
	Filename       string
	Name           string
	Placement      string
	Shading        string
	PrimaryColor   string
	SecondaryColor string
	Deleted        bool
}

func parseBool(value string) bool {
	return strings.EqualFold(value, "true") || value == "1"
}

func formatBool(value bool) string {
	if value {
		return "true"
	}
	return "false"
}

func trimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

// selectName picks the name whose xml:lang ranks best in languages, the
// first untranslated name otherwise.
func selectName(names []nameXML, languages []string) string {
	fallback := ""
	hasFallback := false
	best := ""
	bestRank := len(languages)
	for _, n := range names {
		value := strings.TrimSpace(n.Value)
		if n.Lang == "" {
			if !hasFallback {
				fallback, hasFallback = value, true
			}
			continue
		}
		for rank, lang := range languages {
			if rank >= bestRank {
				break
			}
			if lang == n.Lang {
				best, bestRank = value, rank
				break
			}
		}
	}
	if bestRank < len(languages) {
		return best
	}
	return fallback
}

// catalogFilename turns the text of a <filename> element into a path.
func catalogFilename(content string) string {
	if content == NoneFilename {
		return content
	}
	if utf8.ValidString(content) && dutils.IsFileExist(content) {
		return content
	}
	return filenameFromUTF8(content)
}

func parseCatalog(data []byte, languages []string) ([]catalogEntry, error) {
	var doc wallpapersXML
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = xmlCharsetReader
	if err := dec.Decode(&doc); err != nil {
		return nil, xerrors.Errorf("parse catalog: %w", err)
	}

	var entries []catalogEntry
	for _, wp := range doc.Wallpapers {
		content := trimmed(wp.Filename)
		if content == "" {
			continue
		}
		entries = append(entries, catalogEntry{
			Filename:       catalogFilename(content),
			Name:           selectName(wp.Names, languages),
			Placement:      trimmed(wp.Options),
			Shading:        trimmed(wp.ShadeType),
			PrimaryColor:   trimmed(wp.PColor),
			SecondaryColor: trimmed(wp.SColor),
			Deleted:        parseBool(wp.Deleted),
		})
	}
	return entries, nil
}

func readCatalog(file string) ([]catalogEntry, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return parseCatalog(data, locale.GetLanguageNames())
}

// itemFromEntry builds an item, keeping the defaults for missing fields.
func itemFromEntry(entry catalogEntry) *Item {
	item := NewItem(entry.Filename)
	item.Name = entry.Name
	if entry.Placement != "" {
		item.Placement = entry.Placement
	}
	if entry.Shading != "" {
		item.Shading = entry.Shading
	}
	if entry.PrimaryColor != "" {
		item.PrimaryColor = entry.PrimaryColor
	}
	if entry.SecondaryColor != "" {
		item.SecondaryColor = entry.SecondaryColor
	}
	item.deleted = entry.Deleted
	return item
}

// savedFilename is what goes into <filename>: UTF-8 text.
func savedFilename(filename string) string {
	if filename == NoneFilename ||
		(utf8.ValidString(filename) && dutils.IsFileExist(filename)) {
		return filename
	}
	return filenameToUTF8(filename)
}

func marshalCatalog(items []*Item) ([]byte, error) {
	doc := wallpapersXML{}
	for _, item := range items {
		str := func(s string) *string { return &s }
		doc.Wallpapers = append(doc.Wallpapers, wallpaperXML{
			Deleted:   formatBool(item.IsDeleted()),
			Names:     []nameXML{{Value: item.Name}},
			Filename:  str(savedFilename(item.Filename)),
			Options:   str(item.Placement),
			ShadeType: str(item.Shading),
			PColor:    str(item.PrimaryColor),
			SColor:    str(item.SecondaryColor),
		})
	}
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(catalogHeader)
	buf.Write(data)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func writeCatalog(file string, items []*Item) error {
	data, err := marshalCatalog(items)
	if err != nil {
		return xerrors.Errorf("marshal catalog: %w", err)
	}
	err = os.MkdirAll(filepath.Dir(file), 0755)
	if err != nil {
		return err
	}
	return os.WriteFile(file, data, 0644)
}

// readLegacyList returns the paths listed one per line in file.
func readLegacyList(file string) ([]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var result []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		result = append(result, line)
	}
	return result, scanner.Err()
}
