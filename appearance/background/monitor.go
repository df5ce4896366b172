// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package background

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/linuxdeepin/go-lib/log"
	dutils "github.com/linuxdeepin/go-lib/utils"
	"github.com/linuxdeepin/go-lib/xdg/basedir"
)

var logger = log.NewLogger("daemon/appearance/background")

func SetLogger(value *log.Logger) {
	logger = value
}

const (
	catalogDirName        = "gnome-background-properties"
	defaultWallpaperDir   = "/usr/share/gnome-background-properties"
	homeCatalogName       = "backgrounds.xml"
	legacyHomeCatalogName = "wp-list.xml"
	legacyListName        = "wallpapers.list"
)

// Paths are the on-disk sources of a Monitor.
type Paths struct {
	// primary catalog, also where Save writes
	HomeCatalog string
	// read when HomeCatalog does not exist
	LegacyHomeCatalog string
	// one path per line
	LegacyList string
	// directories full of catalogs, watched for changes
	CatalogDirs []string
}

// DefaultPaths returns the ~/.gnome2 files, the user and system data dir
// catalogs and wallpaperDir (the packaged catalog dir when empty).
func DefaultPaths(wallpaperDir string) Paths {
	gnome2 := filepath.Join(basedir.GetUserHomeDir(), ".gnome2")
	paths := Paths{
		HomeCatalog:       filepath.Join(gnome2, homeCatalogName),
		LegacyHomeCatalog: filepath.Join(gnome2, legacyHomeCatalogName),
		LegacyList:        filepath.Join(gnome2, legacyListName),
	}
	paths.CatalogDirs = append(paths.CatalogDirs,
		filepath.Join(basedir.GetUserDataDir(), catalogDirName))
	for _, dir := range basedir.GetSystemDataDirs() {
		paths.CatalogDirs = append(paths.CatalogDirs, filepath.Join(dir, catalogDirName))
	}
	if wallpaperDir == "" {
		wallpaperDir = defaultWallpaperDir
	}
	paths.CatalogDirs = append(paths.CatalogDirs, wallpaperDir)
	return paths
}

type ItemFunc func(item *Item)

type HandlerID uint

type itemHandler struct {
	id      HandlerID
	added   bool
	handler ItemFunc
}

// Monitor owns every known wallpaper, keyed by filename.
type Monitor struct {
	paths Paths

	mu       sync.Mutex
	items    map[string]*Item
	order    []*Item
	handlers []itemHandler
	nextID   HandlerID
	watched  map[string]bool

	watcher   *fsnotify.Watcher
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewMonitor(paths Paths) *Monitor {
	return &Monitor{
		paths:   paths,
		items:   make(map[string]*Item),
		watched: make(map[string]bool),
		quit:    make(chan struct{}),
	}
}

// Load reads every source. Catalogs come first so the attributes saved in
// the home catalog win over packaged ones, then the legacy list; the
// "(none)" item always ends up present and active.
func (m *Monitor) Load() {
	switch {
	case dutils.IsFileExist(m.paths.HomeCatalog):
		m.loadCatalog(m.paths.HomeCatalog)
	case dutils.IsFileExist(m.paths.LegacyHomeCatalog):
		m.loadCatalog(m.paths.LegacyHomeCatalog)
	}

	for _, dir := range m.paths.CatalogDirs {
		m.loadCatalogDir(dir)
	}

	m.loadLegacyList()
	m.ensureNone()
	m.startWatch()
}

func (m *Monitor) loadCatalog(file string) {
	entries, err := readCatalog(file)
	if err != nil {
		logger.Debugf("skip catalog %s: %v", file, err)
		return
	}
	for _, entry := range entries {
		m.mu.Lock()
		_, exists := m.items[entry.Filename]
		m.mu.Unlock()
		if exists {
			continue
		}
		item := itemFromEntry(entry)
		item.Load()
		if m.AddItem(item) {
			logger.Debug("added item", item.Name)
		}
	}
}

func (m *Monitor) loadCatalogDir(dir string) {
	if !dutils.IsDir(dir) {
		return
	}
	logger.Debug("loading from directory", dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warningf("unable to check directory %s: %v", dir, err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m.loadCatalog(filepath.Join(dir, entry.Name()))
	}

	m.mu.Lock()
	if _, ok := m.watched[dir]; !ok {
		m.watched[dir] = false
	}
	m.mu.Unlock()
}

func (m *Monitor) loadLegacyList() {
	if m.paths.LegacyList == "" {
		return
	}
	lines, err := readLegacyList(m.paths.LegacyList)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Debugf("skip %s: %v", m.paths.LegacyList, err)
		}
		return
	}
	for _, file := range lines {
		m.mu.Lock()
		_, exists := m.items[file]
		m.mu.Unlock()
		if exists {
			continue
		}
		if !dutils.IsFileExist(file) {
			logger.Debug("legacy wallpaper is gone:", file)
			continue
		}
		item := NewItem(file)
		item.Load()
		m.AddItem(item)
	}
}

func (m *Monitor) ensureNone() {
	m.mu.Lock()
	none := m.items[NoneFilename]
	m.mu.Unlock()
	if none == nil {
		none = NewItem(NoneFilename)
		none.Load()
	}
	// AddItem also undeletes an existing entry
	m.AddItem(none)
}

// AddItem indexes item by filename. A present but soft-deleted filename is
// undeleted instead, keeping the attributes it was indexed with. Both
// cases fire ItemAdded; adding an active filename does nothing and
// returns false.
func (m *Monitor) AddItem(item *Item) bool {
	if item == nil {
		return false
	}
	m.mu.Lock()
	existing := m.items[item.Filename]
	switch {
	case existing == nil:
		logger.Debug("inserting", item.Filename)
		m.items[item.Filename] = item
		m.order = append(m.order, item)
		existing = item
	case existing.IsDeleted():
		logger.Debug("undeleting", item.Filename)
		existing.setDeleted(false)
	default:
		m.mu.Unlock()
		return false
	}
	handlers := m.handlersFor(true)
	m.mu.Unlock()

	m.emit(handlers, existing)
	return true
}

// RemoveItem soft-deletes the indexed item with the same filename. The
// item stays in GetItems.
func (m *Monitor) RemoveItem(item *Item) bool {
	if item == nil {
		return false
	}
	m.mu.Lock()
	existing := m.items[item.Filename]
	if existing == nil || existing.IsDeleted() {
		m.mu.Unlock()
		return false
	}
	existing.setDeleted(true)
	handlers := m.handlersFor(false)
	m.mu.Unlock()

	m.emit(handlers, existing)
	return true
}

// Find returns the indexed item for filename, or nil.
func (m *Monitor) Find(filename string) *Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[filename]
}

// GetItems lists every item, soft-deleted ones included, in insertion order.
func (m *Monitor) GetItems() []*Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*Item, len(m.order))
	copy(result, m.order)
	return result
}

// ActiveItems filters out soft-deleted items.
func ActiveItems(items []*Item) []*Item {
	var result []*Item
	for _, item := range items {
		if !item.IsDeleted() {
			result = append(result, item)
		}
	}
	return result
}

// Save writes every item, soft-deleted ones included, to the home catalog.
func (m *Monitor) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return writeCatalog(m.paths.HomeCatalog, m.order)
}

func (m *Monitor) connect(added bool, fn ItemFunc) HandlerID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.handlers = append(m.handlers, itemHandler{id: m.nextID, added: added, handler: fn})
	return m.nextID
}

func (m *Monitor) ConnectItemAdded(fn ItemFunc) HandlerID {
	return m.connect(true, fn)
}

func (m *Monitor) ConnectItemRemoved(fn ItemFunc) HandlerID {
	return m.connect(false, fn)
}

func (m *Monitor) Disconnect(id HandlerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, h := range m.handlers {
		if h.id == id {
			m.handlers = append(m.handlers[:i], m.handlers[i+1:]...)
			return
		}
	}
}

// handlersFor is called with mu held.
func (m *Monitor) handlersFor(added bool) []ItemFunc {
	var result []ItemFunc
	for _, h := range m.handlers {
		if h.added == added {
			result = append(result, h.handler)
		}
	}
	return result
}

func (m *Monitor) emit(handlers []ItemFunc, item *Item) {
	for _, fn := range handlers {
		fn(item)
	}
}

// Close stops watching the catalog directories.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() {
		close(m.quit)
		if m.watcher != nil {
			err := m.watcher.Close()
			if err != nil {
				logger.Warning(err)
			}
		}
		m.wg.Wait()
	})
}
