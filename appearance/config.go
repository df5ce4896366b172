// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package appearance

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/linuxdeepin/go-lib/xdg/basedir"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"

	"github.com/linuxdeepin/dde-appearance/appearance/thumbnail"
)

var configFile = filepath.Join(basedir.GetUserConfigDir(), "deepin/dde-appearance/config.yaml")

type ThumbnailConfig struct {
	// "framed" or "legacy"
	Framing     string `yaml:"framing"`
	MaxRestarts int    `yaml:"max_restarts"`
	// render helper executable and its arguments
	Helper     string   `yaml:"helper"`
	HelperArgs []string `yaml:"helper_args"`
}

type Config struct {
	// prefix holding themes/ and icons/
	DataDir     string `yaml:"data_dir"`
	CursorDir   string `yaml:"cursor_dir"`
	CursorFonts bool   `yaml:"cursor_fonts"`
	// packaged wallpaper catalogs
	WallpaperDir string `yaml:"wallpaper_dir"`
	// image directories whose changes emit Refreshed("background")
	ImageDirs []string        `yaml:"image_dirs"`
	Thumbnail ThumbnailConfig `yaml:"thumbnail"`
	CacheDB   string          `yaml:"cache_db"`
	// where Thumbnail writes meta theme previews
	ThumbnailDir string `yaml:"thumbnail_dir"`
}

func DefaultConfig() *Config {
	cacheDir := filepath.Join(basedir.GetUserCacheDir(), "deepin/dde-appearance")
	return &Config{
		DataDir:      "/usr/share",
		WallpaperDir: "/usr/share/gnome-background-properties",
		ImageDirs: []string{
			"/usr/share/backgrounds",
			filepath.Join(basedir.GetUserDataDir(), "backgrounds"),
		},
		Thumbnail: ThumbnailConfig{
			Framing:     thumbnail.FramingFramed.String(),
			MaxRestarts: thumbnail.DefaultMaxRestarts,
			Helper:      "/usr/lib/deepin-daemon/theme-thumb-tool",
			HelperArgs:  []string{"render-helper"},
		},
		CacheDB:      filepath.Join(cacheDir, "thumbnails.db"),
		ThumbnailDir: filepath.Join(cacheDir, "themes"),
	}
}

// LoadConfig reads file over the defaults. A missing file is not an error.
func LoadConfig(file string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(file)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, xerrors.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	err = dec.Decode(cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, xerrors.Errorf("parse config %s: %w", file, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("invalid config %s: %w", file, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := thumbnail.ParseFraming(c.Thumbnail.Framing); err != nil {
		return err
	}
	if c.Thumbnail.MaxRestarts < 0 {
		return xerrors.Errorf("thumbnail.max_restarts must not be negative, got %d",
			c.Thumbnail.MaxRestarts)
	}
	if c.DataDir == "" {
		c.DataDir = "/usr/share"
	}
	if c.Thumbnail.Helper == "" {
		return xerrors.New("thumbnail.helper is empty")
	}
	return nil
}

func (c *Config) thumbnailConfig() thumbnail.Config {
	framing, _ := thumbnail.ParseFraming(c.Thumbnail.Framing)
	return thumbnail.Config{Framing: framing, MaxRestarts: c.Thumbnail.MaxRestarts}
}

// helperArgs appends the framing so both sides of the pipe agree.
func (c *Config) helperArgs() []string {
	args := append([]string(nil), c.Thumbnail.HelperArgs...)
	return append(args, "--framing", c.Thumbnail.Framing)
}
