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
	"runtime"
	"sort"
	"sync"

	dutils "github.com/linuxdeepin/go-lib/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/linuxdeepin/dde-appearance/appearance"
	"github.com/linuxdeepin/dde-appearance/appearance/background"
	"github.com/linuxdeepin/dde-appearance/appearance/subthemes"
	"github.com/linuxdeepin/dde-appearance/appearance/thumbcache"
	"github.com/linuxdeepin/dde-appearance/appearance/thumbnail"
)

const (
	bgThumbWidth  = 160
	bgThumbHeight = 90
)

var allTypes = []string{TypeGtk, TypeMeta, TypeIcon, TypeCursor, TypeBackground}

type entry struct {
	Type string
	Name string
	Path string
}

func themeDirs(cfg *appearance.Config) subthemes.Dirs {
	return subthemes.DefaultDirs(cfg.DataDir, cfg.CursorDir)
}

func newRenderer(cfg *appearance.Config) *thumbnail.PreviewRenderer {
	dirs := themeDirs(cfg)
	return &thumbnail.PreviewRenderer{
		ThemeDirs: dirs.Paths(subthemes.DirThemes),
		Icons:     thumbnail.IconLookup{BaseDirs: dirs.Paths(subthemes.DirIcons)},
	}
}

func newRegistry(cfg *appearance.Config, dirs subthemes.Dirs) *subthemes.Registry {
	r := subthemes.NewRegistry(dirs, subthemes.WithCursorFonts(cfg.CursorFonts))
	r.Init()
	return r
}

func expandType(type0 string) ([]string, error) {
	if type0 == TypeAll {
		return allTypes, nil
	}
	for _, t := range allTypes {
		if t == type0 {
			return []string{t}, nil
		}
	}
	return nil, xerrors.Errorf("unknown type %q", type0)
}

func themeEntries(registry *subthemes.Registry, type0 string) []entry {
	var themes []subthemes.Theme
	switch type0 {
	case TypeGtk:
		for _, t := range registry.FindByType(subthemes.ElementGtk) {
			themes = append(themes, t)
		}
	case TypeMeta:
		themes = registry.FindAll(subthemes.KindMeta)
	case TypeIcon:
		themes = registry.FindAll(subthemes.KindIcon)
	case TypeCursor:
		themes = registry.FindAll(subthemes.KindCursor)
	}
	var result []entry
	for _, t := range themes {
		info := t.Info()
		result = append(result, entry{Type: type0, Name: info.Name, Path: info.Path})
	}
	return result
}

func listEntries(cfg *appearance.Config, type0 string) ([]entry, error) {
	types, err := expandType(type0)
	if err != nil {
		return nil, err
	}
	registry := newRegistry(cfg, themeDirs(cfg))
	defer registry.Close()

	var result []entry
	for _, t := range types {
		if t == TypeBackground {
			for _, file := range background.ListImageFiles(cfg.ImageDirs...) {
				result = append(result, entry{Type: t, Name: filepath.Base(file), Path: file})
			}
			continue
		}
		result = append(result, themeEntries(registry, t)...)
	}
	return result, nil
}

func savePNG(file string, img image.Image) error {
	err := os.MkdirAll(filepath.Dir(file), 0755)
	if err != nil {
		return err
	}
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	err = png.Encode(f, img)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

type generator struct {
	cfg      *appearance.Config
	force    bool
	registry *subthemes.Registry
	renderer thumbnail.Renderer
	cache    background.ThumbnailCache

	g     *errgroup.Group
	ctx   context.Context
	mu    sync.Mutex
	files []string
}

func (gen *generator) done(file string) {
	gen.mu.Lock()
	gen.files = append(gen.files, file)
	gen.mu.Unlock()
}

// add schedules render for file unless it already exists. A failed theme is
// logged and skipped; only write errors abort the run.
func (gen *generator) add(file string, render func() (image.Image, error)) {
	if !gen.force && dutils.IsFileExist(file) {
		gen.done(file)
		return
	}
	gen.g.Go(func() error {
		if err := gen.ctx.Err(); err != nil {
			return err
		}
		img, err := render()
		if err != nil {
			logger.Warningf("failed to render %s: %v", file, err)
			return nil
		}
		if img == nil {
			return nil
		}
		if err := savePNG(file, img); err != nil {
			return xerrors.Errorf("save %s: %w", file, err)
		}
		logger.Debug("generated", file)
		gen.done(file)
		return nil
	})
}

func (gen *generator) renderRequest(req thumbnail.Request) func() (image.Image, error) {
	return func() (image.Image, error) {
		return gen.renderer.Render(req)
	}
}

func (gen *generator) addThemes(type0 string) {
	dir := gen.cfg.ThumbnailDir
	switch type0 {
	case TypeGtk:
		for _, t := range gen.registry.FindByType(subthemes.ElementGtk) {
			gen.add(filepath.Join(dir, "gtk-"+t.Name+".png"),
				gen.renderRequest(thumbnail.Request{GtkTheme: t.Name, Kind: thumbnail.KindGtk}))
		}
	case TypeMeta:
		for _, meta := range gen.registry.FindAllMetas() {
			gen.add(filepath.Join(dir, "meta-"+meta.Name+".png"),
				gen.renderRequest(thumbnail.MetaRequest(meta)))
		}
	case TypeIcon:
		for _, t := range gen.registry.FindAllIcons() {
			gen.add(filepath.Join(dir, "icon-"+t.Name+".png"),
				gen.renderRequest(thumbnail.Request{IconTheme: t.Name, Kind: thumbnail.KindIcon}))
		}
	case TypeCursor:
		for _, t := range gen.registry.FindAllCursors() {
			thumb := t.Thumbnail
			gen.add(filepath.Join(dir, "cursor-"+t.Name+".png"), func() (image.Image, error) {
				if thumb == nil {
					return nil, nil
				}
				return thumb, nil
			})
		}
	}
}

func (gen *generator) addBackgrounds() {
	for _, file := range background.ListImageFiles(gen.cfg.ImageDirs...) {
		file := file
		sum, _ := dutils.SumStrMd5(file)
		out := filepath.Join(gen.cfg.ThumbnailDir, "backgrounds", sum+".png")
		gen.add(out, func() (image.Image, error) {
			item := background.NewItem(file)
			item.Load()
			thumb := item.Thumbnail(gen.cache, bgThumbWidth, bgThumbHeight)
			if thumb == nil {
				return nil, xerrors.Errorf("unreadable image %s", file)
			}
			return thumb, nil
		})
	}
}

// generate writes the thumbnails of type0 below the configured thumbnail
// directory and returns their paths, sorted.
func generate(ctx context.Context, cfg *appearance.Config, type0 string, force bool) ([]string, error) {
	types, err := expandType(type0)
	if err != nil {
		return nil, err
	}

	gen := &generator{
		cfg:      cfg,
		force:    force,
		registry: newRegistry(cfg, themeDirs(cfg)),
		renderer: newRenderer(cfg),
	}
	defer gen.registry.Close()

	if cfg.CacheDB != "" {
		cache, err := thumbcache.Open(cfg.CacheDB)
		if err != nil {
			logger.Warning("thumbnail cache disabled:", err)
		} else {
			defer cache.Close()
			gen.cache = cache
		}
	}

	gen.g, gen.ctx = errgroup.WithContext(ctx)
	gen.g.SetLimit(runtime.NumCPU())
	for _, t := range types {
		if t == TypeBackground {
			gen.addBackgrounds()
			continue
		}
		gen.addThemes(t)
	}
	err = gen.g.Wait()
	sort.Strings(gen.files)
	return gen.files, err
}
