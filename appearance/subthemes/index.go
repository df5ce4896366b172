// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package subthemes

import (
	"path/filepath"
	"strconv"

	"github.com/linuxdeepin/go-lib/keyfile"
	"github.com/linuxdeepin/go-lib/utils"
)

const (
	indexThemeFile = "index.theme"

	kfSectionDesktop   = "Desktop Entry"
	kfSectionMeta      = "X-GNOME-Metatheme"
	kfSectionIconTheme = "Icon Theme"

	kfKeyName    = "Name"
	kfKeyComment = "Comment"
	kfKeyIcon    = "Icon"
	kfKeyHidden  = "Hidden"
	kfKeyDirs    = "Directories"

	gtkElementFile        = "gtk-2.0/gtkrc"
	keybindingElementFile = "gtk-2.0-key/gtkrc"
	metacityElementFile   = "metacity-1/metacity-theme-1.xml"

	cursorsSubdir = "cursors"
)

// element sub directories that get a watch of their own
var elementDirs = []string{"gtk-2.0", "gtk-2.0-key", "metacity-1"}

func themeURI(dir string) string {
	return utils.EncodeURI(dir, utils.SCHEME_FILE)
}

func newInfo(dir string, top *TopDir, order int) ThemeInfo {
	name := filepath.Base(dir)
	return ThemeInfo{
		Path:         themeURI(dir),
		Name:         name,
		ReadableName: name,
		Priority:     top.Priority,
		order:        order,
	}
}

func loadIndexTheme(dir string) (*keyfile.KeyFile, error) {
	kf := keyfile.NewKeyFile()
	err := kf.LoadFromFile(filepath.Join(dir, indexThemeFile))
	if err != nil {
		return nil, err
	}
	return kf, nil
}

// readTheme parses the theme of the given kind stored in dir. A nil result
// means "no theme of that kind here", which is never an error.
func readTheme(kind Kind, dir string, top *TopDir, order int) Theme {
	var theme Theme
	switch kind {
	case KindRegular:
		theme = readRegularTheme(dir, top, order)
	case KindMeta:
		theme = readMetaTheme(dir, top, order)
	case KindIcon:
		theme = readIconTheme(dir, top, order)
	case KindCursor:
		theme = readCursorTheme(dir, top, order)
	}
	return theme
}

func readRegularTheme(dir string, top *TopDir, order int) Theme {
	theme := &RegularTheme{
		ThemeInfo:     newInfo(dir, top, order),
		HasGtk:        utils.IsFileExist(filepath.Join(dir, gtkElementFile)),
		HasKeybinding: utils.IsFileExist(filepath.Join(dir, keybindingElementFile)),
		HasMetacity:   utils.IsFileExist(filepath.Join(dir, metacityElementFile)),
	}
	if theme.Elements() == 0 {
		return nil
	}
	return theme
}

func readMetaTheme(dir string, top *TopDir, order int) Theme {
	kf, err := loadIndexTheme(dir)
	if err != nil {
		return nil
	}

	theme := &MetaTheme{ThemeInfo: newInfo(dir, top, order)}
	theme.ReadableName, err = kf.GetLocaleString(kfSectionDesktop, kfKeyName, "")
	if err != nil || theme.ReadableName == "" {
		logger.Debug("meta theme without name:", dir)
		return nil
	}
	theme.Comment, _ = kf.GetLocaleString(kfSectionDesktop, kfKeyComment, "")
	theme.IconFile, _ = kf.GetString(kfSectionDesktop, kfKeyIcon)

	required := []struct {
		key string
		dst *string
	}{
		{"GtkTheme", &theme.GtkThemeName},
		{"MetacityTheme", &theme.MetacityThemeName},
		{"IconTheme", &theme.IconThemeName},
	}
	for _, r := range required {
		*r.dst, err = kf.GetString(kfSectionMeta, r.key)
		if err != nil || *r.dst == "" {
			logger.Debugf("meta theme %s lacks %s", dir, r.key)
			return nil
		}
	}

	optional := []struct {
		key string
		dst *string
	}{
		{"GtkColorScheme", &theme.GtkColorScheme},
		{"CursorTheme", &theme.CursorThemeName},
		{"ApplicationFont", &theme.ApplicationFont},
		{"DesktopFont", &theme.DesktopFont},
		{"MonospaceFont", &theme.MonospaceFont},
		{"BackgroundImage", &theme.BackgroundImage},
	}
	for _, o := range optional {
		*o.dst, _ = kf.GetString(kfSectionMeta, o.key)
	}
	if value, _ := kf.GetString(kfSectionMeta, "CursorSize"); value != "" {
		theme.CursorSize, _ = strconv.Atoi(value)
	}
	if theme.BackgroundImage != "" && !filepath.IsAbs(theme.BackgroundImage) {
		theme.BackgroundImage = filepath.Join(dir, theme.BackgroundImage)
	}
	return theme
}

func readIconTheme(dir string, top *TopDir, order int) Theme {
	kf, err := loadIndexTheme(dir)
	if err != nil {
		return nil
	}
	if hidden, _ := kf.GetBool(kfSectionIconTheme, kfKeyHidden); hidden {
		return nil
	}
	name, err := kf.GetLocaleString(kfSectionIconTheme, kfKeyName, "")
	if err != nil || name == "" {
		return nil
	}
	// cursor-only themes also ship an [Icon Theme] section
	subdirs, _ := kf.GetStringList(kfSectionIconTheme, kfKeyDirs)
	if len(subdirs) == 0 {
		return nil
	}

	theme := &IconTheme{ThemeInfo: newInfo(dir, top, order)}
	theme.ReadableName = name
	theme.Comment, _ = kf.GetLocaleString(kfSectionIconTheme, kfKeyComment, "")
	return theme
}

func readCursorTheme(dir string, top *TopDir, order int) Theme {
	if !utils.IsDir(filepath.Join(dir, cursorsSubdir)) {
		return nil
	}
	theme := &CursorTheme{ThemeInfo: newInfo(dir, top, order)}
	if kf, err := loadIndexTheme(dir); err == nil {
		name, _ := kf.GetLocaleString(kfSectionIconTheme, kfKeyName, "")
		if name != "" {
			theme.ReadableName = name
		}
	}
	theme.Sizes, theme.Thumbnail = readCursorPreview(filepath.Join(dir, cursorsSubdir))
	return theme
}
