// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package appearance

import (
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/fsnotify/fsnotify"
	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/go-lib/dbusutil"
	dutils "github.com/linuxdeepin/go-lib/utils"
	"golang.org/x/xerrors"

	"github.com/linuxdeepin/dde-appearance/appearance/background"
	"github.com/linuxdeepin/dde-appearance/appearance/subthemes"
	"github.com/linuxdeepin/dde-appearance/appearance/thumbcache"
	"github.com/linuxdeepin/dde-appearance/appearance/thumbnail"
)

// The types accepted by List and Show, also the argument of Refreshed.
const (
	TypeGtkTheme    = "gtk"
	TypeIconTheme   = "icon"
	TypeCursorTheme = "cursor"
	TypeMetaTheme   = "meta"
	TypeBackground  = "background"
)

const (
	dbusServiceName = "org.deepin.dde.Appearance1"
	dbusPath        = "/org/deepin/dde/Appearance1"
	dbusInterface   = dbusServiceName
)

var errUnknownType = errors.New("unknown type")

// Manager exports the theme registry and the wallpaper catalog, emits
// 'Refreshed' when a list changes.
type Manager struct {
	service *dbusutil.Service
	cfg     *Config

	registry *subthemes.Registry
	monitor  *background.Monitor
	factory  *thumbnail.Factory
	cache    *thumbcache.Cache

	themeHandler   subthemes.HandlerID
	addedHandler   background.HandlerID
	removedHandler background.HandlerID

	watcher    *fsnotify.Watcher
	endWatcher chan struct{}
	refreshCh  chan string
	wg         sync.WaitGroup

	// called instead of the bus when there is no service
	onEmit func(signal string, args ...interface{})

	//nolint
	signals *struct {
		// Theme or background list refreshed
		Refreshed struct {
			type0 string
		}

		BackgroundAdded struct {
			file string
		}

		BackgroundRemoved struct {
			file string
		}
	}
}

// newManager builds a manager on the standard directories.
func newManager(service *dbusutil.Service, cfg *Config) *Manager {
	dirs := subthemes.DefaultDirs(cfg.DataDir, cfg.CursorDir)
	spawn := thumbnail.ExecSpawner(cfg.Thumbnail.Helper, cfg.helperArgs()...)
	return newManagerWith(service, cfg, dirs, background.DefaultPaths(cfg.WallpaperDir), spawn)
}

func newManagerWith(service *dbusutil.Service, cfg *Config, dirs subthemes.Dirs,
	paths background.Paths, spawn thumbnail.Spawner) *Manager {
	m := &Manager{
		service:    service,
		cfg:        cfg,
		registry:   subthemes.NewRegistry(dirs, subthemes.WithCursorFonts(cfg.CursorFonts)),
		monitor:    background.NewMonitor(paths),
		factory:    thumbnail.New(cfg.thumbnailConfig(), spawn),
		refreshCh:  make(chan string, 16),
		endWatcher: make(chan struct{}),
	}

	var err error
	m.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		logger.Warning("New file watcher failed:", err)
	}
	return m
}

func (m *Manager) init() error {
	if m.registry.Init() {
		logger.Warning("theme directory monitoring is degraded")
	}
	m.themeHandler = m.registry.RegisterThemeChange(m.handleThemeEvent)

	m.monitor.Load()
	m.addedHandler = m.monitor.ConnectItemAdded(func(item *background.Item) {
		m.emit("BackgroundAdded", item.Filename)
		m.queueRefresh(TypeBackground)
	})
	m.removedHandler = m.monitor.ConnectItemRemoved(func(item *background.Item) {
		m.emit("BackgroundRemoved", item.Filename)
		m.queueRefresh(TypeBackground)
	})

	if m.cfg.CacheDB != "" {
		cache, err := thumbcache.Open(m.cfg.CacheDB)
		if err != nil {
			// thumbnails still work, uncached
			logger.Warning("failed to open thumbnail cache:", err)
		} else {
			m.cache = cache
		}
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.handleThemeChanged()
	}()
	return nil
}

func (m *Manager) destroy() {
	m.registry.UnregisterThemeChange(m.themeHandler)
	m.monitor.Disconnect(m.addedHandler)
	m.monitor.Disconnect(m.removedHandler)

	close(m.endWatcher)
	m.wg.Wait()
	if m.watcher != nil {
		err := m.watcher.Close()
		if err != nil {
			logger.Warning(err)
		}
	}

	m.registry.Close()
	m.monitor.Close()
	m.factory.Close()
	if m.cache != nil {
		err := m.cache.Close()
		if err != nil {
			logger.Warning(err)
		}
	}
}

func (*Manager) GetInterfaceName() string {
	return dbusInterface
}

func (m *Manager) GetExportedMethods() dbusutil.ExportedMethods {
	return dbusutil.ExportedMethods{
		{
			Name:    "List",
			Fn:      m.List,
			InArgs:  []string{"type0"},
			OutArgs: []string{"list"},
		},
		{
			Name:    "Show",
			Fn:      m.Show,
			InArgs:  []string{"type0", "names"},
			OutArgs: []string{"detail"},
		},
		{
			Name:    "AddBackground",
			Fn:      m.AddBackground,
			InArgs:  []string{"file"},
			OutArgs: []string{"added"},
		},
		{
			Name:    "RemoveBackground",
			Fn:      m.RemoveBackground,
			InArgs:  []string{"file"},
			OutArgs: []string{"removed"},
		},
		{
			Name: "SaveBackgrounds",
			Fn:   m.SaveBackgrounds,
		},
		{
			Name:    "Thumbnail",
			Fn:      m.Thumbnail,
			InArgs:  []string{"metaTheme"},
			OutArgs: []string{"file"},
		},
		{
			Name:    "BackgroundThumbnail",
			Fn:      m.BackgroundThumbnail,
			InArgs:  []string{"file", "width", "height"},
			OutArgs: []string{"thumbnail"},
		},
	}
}

type themeJSON struct {
	Id           string
	Name         string
	Path         string
	Priority     int
	ReadableName string `json:",omitempty"`
}

type backgroundJSON struct {
	Id             string
	Name           string
	Placement      string
	Shading        string
	PrimaryColor   string
	SecondaryColor string
	Deleted        bool
	MimeType       string `json:",omitempty"`
	Description    string `json:",omitempty"`
}

func toThemeJSON(theme subthemes.Theme) themeJSON {
	info := theme.Info()
	return themeJSON{
		Id:           info.Name,
		Name:         info.Name,
		Path:         info.Path,
		Priority:     info.Priority,
		ReadableName: info.ReadableName,
	}
}

func toBackgroundJSON(item *background.Item, detail bool) backgroundJSON {
	result := backgroundJSON{
		Id:             item.Filename,
		Name:           item.Name,
		Placement:      item.Placement,
		Shading:        item.Shading,
		PrimaryColor:   item.PrimaryColor,
		SecondaryColor: item.SecondaryColor,
		Deleted:        item.IsDeleted(),
	}
	if detail {
		result.MimeType = item.MimeType()
		result.Description = item.Description()
	}
	return result
}

// themes returns the preferred entry per name of type0.
func (m *Manager) themes(type0 string) ([]subthemes.Theme, error) {
	switch type0 {
	case TypeGtkTheme:
		var result []subthemes.Theme
		for _, theme := range m.registry.FindByType(subthemes.ElementGtk) {
			result = append(result, theme)
		}
		return result, nil
	case TypeIconTheme:
		return m.registry.FindAll(subthemes.KindIcon), nil
	case TypeCursorTheme:
		return m.registry.FindAll(subthemes.KindCursor), nil
	case TypeMetaTheme:
		return m.registry.FindAll(subthemes.KindMeta), nil
	}
	return nil, xerrors.Errorf("%w: %q", errUnknownType, type0)
}

func marshalString(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (m *Manager) list(type0 string) (string, error) {
	if type0 == TypeBackground {
		result := []backgroundJSON{}
		for _, item := range background.ActiveItems(m.monitor.GetItems()) {
			result = append(result, toBackgroundJSON(item, false))
		}
		return marshalString(result)
	}
	themes, err := m.themes(type0)
	if err != nil {
		return "", err
	}
	result := []themeJSON{}
	for _, theme := range themes {
		result = append(result, toThemeJSON(theme))
	}
	return marshalString(result)
}

func (m *Manager) List(type0 string) (string, *dbus.Error) {
	result, err := m.list(type0)
	return result, dbusutil.ToError(err)
}

func (m *Manager) show(type0 string, names []string) (string, error) {
	logger.Debugf("Show %s: %s", type0, spew.Sdump(names))
	if type0 == TypeBackground {
		result := []backgroundJSON{}
		for _, name := range names {
			item := m.monitor.Find(name)
			if item == nil {
				continue
			}
			result = append(result, toBackgroundJSON(item, true))
		}
		return marshalString(result)
	}

	kind, ok := subthemes.ParseKind(type0)
	if !ok {
		return "", xerrors.Errorf("%w: %q", errUnknownType, type0)
	}
	result := []subthemes.Theme{}
	for _, name := range names {
		theme := m.registry.Find(kind, name, -1)
		if theme == nil {
			continue
		}
		result = append(result, theme)
	}
	return marshalString(result)
}

// Show returns the full entries of names; unknown names are skipped.
func (m *Manager) Show(type0 string, names []string) (string, *dbus.Error) {
	result, err := m.show(type0, names)
	return result, dbusutil.ToError(err)
}

func (m *Manager) addBackground(file string) (bool, error) {
	if file != background.NoneFilename && !dutils.IsFileExist(file) {
		return false, xerrors.Errorf("%s does not exist", file)
	}
	item := background.NewItem(file)
	item.Load()
	mimeType := item.MimeType()
	if file != background.NoneFilename && mimeType != background.MimeXML &&
		!strings.HasPrefix(mimeType, "image/") {
		return false, xerrors.Errorf("%s is not a background: %s", file, mimeType)
	}
	return m.monitor.AddItem(item), nil
}

func (m *Manager) AddBackground(file string) (bool, *dbus.Error) {
	added, err := m.addBackground(file)
	return added, dbusutil.ToError(err)
}

func (m *Manager) RemoveBackground(file string) (bool, *dbus.Error) {
	item := m.monitor.Find(file)
	if item == nil {
		return false, nil
	}
	return m.monitor.RemoveItem(item), nil
}

func (m *Manager) SaveBackgrounds() *dbus.Error {
	return dbusutil.ToError(m.monitor.Save())
}

func writePNG(file string, img image.Image) error {
	err := os.MkdirAll(filepath.Dir(file), 0755)
	if err != nil {
		return err
	}
	tmp := file + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = png.Encode(f, img)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, file)
}

func (m *Manager) thumbnail(name string) (string, error) {
	meta := m.registry.FindMeta(name)
	if meta == nil {
		return "", xerrors.Errorf("no meta theme %q", name)
	}
	img := m.factory.GenerateThemeThumbnail(meta, false)
	if img == nil {
		return "", xerrors.Errorf("failed to render %q", name)
	}
	file := filepath.Join(m.cfg.ThumbnailDir, "meta-"+name+".png")
	if err := writePNG(file, img); err != nil {
		return "", xerrors.Errorf("save thumbnail: %w", err)
	}
	return file, nil
}

// Thumbnail renders the meta theme preview and returns the PNG path.
func (m *Manager) Thumbnail(metaTheme string) (string, *dbus.Error) {
	file, err := m.thumbnail(metaTheme)
	return file, dbusutil.ToError(err)
}

// largest background thumbnail edge a caller may ask for
const maxThumbnailSize = 4096

func (m *Manager) backgroundThumbnail(file string, width, height int) (string, error) {
	if width <= 0 || height <= 0 || width > maxThumbnailSize || height > maxThumbnailSize {
		return "", xerrors.Errorf("invalid size %dx%d", width, height)
	}
	item := m.monitor.Find(file)
	if item == nil {
		return "", xerrors.Errorf("unknown background %s", file)
	}
	var cache background.ThumbnailCache
	if m.cache != nil {
		cache = m.cache
	}
	img := item.Thumbnail(cache, width, height)
	if img == nil {
		return "", xerrors.Errorf("failed to render %s", file)
	}
	sum, _ := dutils.SumStrMd5(file)
	out := filepath.Join(m.cfg.ThumbnailDir, "backgrounds", sum+".png")
	if err := writePNG(out, img); err != nil {
		return "", xerrors.Errorf("save thumbnail: %w", err)
	}
	return out, nil
}

// BackgroundThumbnail renders a known background and returns the PNG path.
func (m *Manager) BackgroundThumbnail(file string, width, height int32) (string, *dbus.Error) {
	out, err := m.backgroundThumbnail(file, int(width), int(height))
	return out, dbusutil.ToError(err)
}

func (m *Manager) emit(signal string, args ...interface{}) {
	if m.service == nil {
		if m.onEmit != nil {
			m.onEmit(signal, args...)
		}
		return
	}
	err := m.service.Emit(m, signal, args...)
	if err != nil {
		logger.Warningf("emit signal %s failed: %v", signal, err)
	}
}
