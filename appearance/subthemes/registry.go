// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package subthemes

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/linuxdeepin/go-lib/log"
	"github.com/linuxdeepin/go-lib/utils"
)

var logger = log.NewLogger("daemon/appearance/subthemes")

func SetLogger(l *log.Logger) {
	logger = l
}

type ChangeType int

const (
	ChangeCreated ChangeType = iota
	ChangeChanged
	ChangeDeleted
)

func (t ChangeType) String() string {
	switch t {
	case ChangeCreated:
		return "created"
	case ChangeChanged:
		return "changed"
	case ChangeDeleted:
		return "deleted"
	}
	return "unknown"
}

// ChangeEvent carries the new entry for Created/Changed and the removed
// one for Deleted.
type ChangeEvent struct {
	Type  ChangeType
	Theme Theme
}

type ChangeFunc func(ev ChangeEvent)

type HandlerID uint

type listener struct {
	id HandlerID
	fn ChangeFunc
}

// themeTable indexes one kind of theme both by directory URI and by name.
type themeTable struct {
	byURI map[string]Theme
	// ascending priority, one entry per priority
	byName map[string][]Theme
}

func newThemeTable() *themeTable {
	return &themeTable{
		byURI:  make(map[string]Theme),
		byName: make(map[string][]Theme),
	}
}

func (t *themeTable) put(theme Theme) {
	t.byURI[theme.Info().Path] = theme
	t.relink(theme.Info().Name)
}

func (t *themeTable) remove(theme Theme) {
	delete(t.byURI, theme.Info().Path)
	t.relink(theme.Info().Name)
}

// relink rebuilds the by-name bucket from the by-URI map. When two
// directories share a priority the one scanned first keeps the slot.
func (t *themeTable) relink(name string) {
	var list []Theme
	for _, theme := range t.byURI {
		if theme.Info().Name == name {
			list = append(list, theme)
		}
	}
	if len(list) == 0 {
		delete(t.byName, name)
		return
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i].Info(), list[j].Info()
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.order != b.order {
			return a.order < b.order
		}
		return a.Path < b.Path
	})
	result := list[:1]
	for _, theme := range list[1:] {
		if theme.Info().Priority != result[len(result)-1].Info().Priority {
			result = append(result, theme)
		}
	}
	t.byName[name] = result
}

func (t *themeTable) find(name string, priority int) Theme {
	list := t.byName[name]
	if len(list) == 0 {
		return nil
	}
	if priority == -1 {
		return list[0]
	}
	for _, theme := range list {
		if theme.Info().Priority == priority {
			return theme
		}
	}
	return nil
}

// preferred returns the first entry of every name, sorted by name.
func (t *themeTable) preferred() []Theme {
	names := make([]string, 0, len(t.byName))
	for name := range t.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	result := make([]Theme, 0, len(names))
	for _, name := range names {
		result = append(result, t.byName[name][0])
	}
	return result
}

type Option func(*Registry)

// WithCursorFonts makes the registry offer the X cursor font entries in
// place of the synthetic "default" cursor theme.
func WithCursorFonts(enabled bool) Option {
	return func(r *Registry) {
		r.cursorFonts = enabled
	}
}

// Registry is the in-memory catalog of installed themes.
type Registry struct {
	dirs        Dirs
	cursorFonts bool

	initOnce  sync.Once
	closeOnce sync.Once

	mu        sync.Mutex
	tables    map[Kind]*themeTable
	listeners []listener
	nextID    HandlerID
	degraded  bool

	watcher *fsnotify.Watcher
	quit    chan struct{}
	wg      sync.WaitGroup
}

func NewRegistry(dirs Dirs, opts ...Option) *Registry {
	r := &Registry{
		dirs: dirs.normalize(),
		tables: map[Kind]*themeTable{
			KindRegular: newThemeTable(),
			KindIcon:    newThemeTable(),
			KindCursor:  newThemeTable(),
			KindMeta:    newThemeTable(),
		},
		quit: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Init scans every top level directory once and starts watching them.
// It returns true when some directory could not be watched; the scan
// result is complete either way.
func (r *Registry) Init() (monitoringDegraded bool) {
	r.initOnce.Do(r.init)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}

func (r *Registry) init() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warning("failed to create theme watcher:", err)
		r.setDegraded()
	} else {
		r.watcher = watcher
	}

	for i := range r.dirs {
		r.scanTopDir(i)
	}

	r.mu.Lock()
	r.ensureDefaultCursor()
	r.mu.Unlock()

	if r.watcher != nil {
		r.wg.Add(1)
		go r.watchLoop()
	}
}

func (r *Registry) setDegraded() {
	r.mu.Lock()
	r.degraded = true
	r.mu.Unlock()
}

func (r *Registry) scanTopDir(order int) {
	top := &r.dirs[order]
	if top.Create && !utils.IsFileExist(top.Path) {
		err := os.MkdirAll(top.Path, 0775)
		if err != nil {
			logger.Debugf("mkdir %q failed: %v", top.Path, err)
		}
	}
	entries, err := os.ReadDir(top.Path)
	if err != nil {
		logger.Debugf("skip theme dir %q: %v", top.Path, err)
		return
	}
	r.addWatch(top.Path)

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(top.Path, entry.Name())
		// symlinked theme dirs are common
		if !utils.IsDir(dir) {
			continue
		}
		r.addThemeWatches(top, dir)
		r.mu.Lock()
		r.reindex(order, dir)
		r.mu.Unlock()
	}
}

func (r *Registry) addWatch(dir string) {
	if r.watcher == nil {
		return
	}
	err := r.watcher.Add(dir)
	if err != nil {
		logger.Warningf("watch %q failed: %v", dir, err)
		r.setDegraded()
	}
}

func (r *Registry) addThemeWatches(top *TopDir, dir string) {
	r.addWatch(dir)
	subdirs := elementDirs
	if top.Type == DirIcons {
		subdirs = []string{cursorsSubdir}
	}
	for _, sub := range subdirs {
		subdir := filepath.Join(dir, sub)
		if utils.IsDir(subdir) {
			r.addWatch(subdir)
		}
	}
}

// reindex recomputes every kind the top level dir can hold for one theme
// directory, from disk. Called with mu held.
func (r *Registry) reindex(order int, dir string) []ChangeEvent {
	top := &r.dirs[order]
	uri := themeURI(dir)
	var events []ChangeEvent
	for _, kind := range top.Type.kinds() {
		table := r.tables[kind]
		old := table.byURI[uri]
		theme := readTheme(kind, dir, top, order)

		switch {
		case old == nil && theme == nil:
		case old == nil:
			table.put(theme)
			events = append(events, ChangeEvent{Type: ChangeCreated, Theme: theme})
		case theme == nil:
			table.remove(old)
			events = append(events, ChangeEvent{Type: ChangeDeleted, Theme: old})
		case old.equal(theme):
			// duplicate event, nothing changed on disk
		default:
			table.put(theme)
			events = append(events, ChangeEvent{Type: ChangeChanged, Theme: theme})
		}
	}
	return events
}

// ensureDefaultCursor is called with mu held.
func (r *Registry) ensureDefaultCursor() {
	table := r.tables[KindCursor]
	if r.cursorFonts {
		for _, theme := range newCursorFontThemes() {
			if table.find(theme.Name, -1) == nil {
				table.put(theme)
			}
		}
		return
	}
	if table.find(defaultCursorName, -1) == nil {
		table.put(newDefaultCursorTheme())
	}
}

// topDirOf returns the index of the deepest top level dir holding path.
func (r *Registry) topDirOf(path string) int {
	found := -1
	for i, top := range r.dirs {
		if path != top.Path && !strings.HasPrefix(path, top.Path+string(filepath.Separator)) {
			continue
		}
		if found < 0 || len(top.Path) > len(r.dirs[found].Path) {
			found = i
		}
	}
	return found
}

// handleFileChanged maps path to its theme directory and re-derives that
// directory's entries from disk. The event payload itself is not trusted,
// so duplicated or reordered events are harmless.
func (r *Registry) handleFileChanged(path string) {
	path = filepath.Clean(path)
	order := r.topDirOf(path)
	if order < 0 {
		return
	}
	top := &r.dirs[order]
	rel, err := filepath.Rel(top.Path, path)
	if err != nil || rel == "." {
		return
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if strings.HasPrefix(parts[0], ".") {
		return
	}
	dir := filepath.Join(top.Path, parts[0])

	// new theme dirs and element dirs need watches of their own
	if utils.IsDir(path) {
		switch len(parts) {
		case 1:
			r.addThemeWatches(top, dir)
		case 2:
			r.addWatch(path)
		}
	}

	r.mu.Lock()
	events := r.reindex(order, dir)
	if len(events) > 0 && !r.cursorFonts {
		r.ensureDefaultCursor()
	}
	listeners := make([]listener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	for _, ev := range events {
		logger.Debugf("%s theme %s %s", ev.Theme.Kind(), ev.Theme.Info().Name, ev.Type)
		for _, l := range listeners {
			l.fn(ev)
		}
	}
}

// RegisterThemeChange adds fn to the listeners called after every
// committed change. Listeners run on the watcher goroutine.
func (r *Registry) RegisterThemeChange(fn ChangeFunc) HandlerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.listeners = append(r.listeners, listener{id: r.nextID, fn: fn})
	return r.nextID
}

func (r *Registry) UnregisterThemeChange(id HandlerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.listeners {
		if l.id == id {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// Close stops watching. Lookups keep working on the last known state.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.quit)
		if r.watcher != nil {
			err := r.watcher.Close()
			if err != nil {
				logger.Warning(err)
			}
		}
		r.wg.Wait()
	})
}

// Find returns the entry of kind called name. Priority -1 selects the most
// specific one.
func (r *Registry) Find(kind Kind, name string, priority int) Theme {
	r.mu.Lock()
	defer r.mu.Unlock()
	table, ok := r.tables[kind]
	if !ok {
		return nil
	}
	return table.find(name, priority)
}

func (r *Registry) FindRegular(name string) *RegularTheme {
	theme, _ := r.Find(KindRegular, name, -1).(*RegularTheme)
	return theme
}

func (r *Registry) FindIcon(name string) *IconTheme {
	theme, _ := r.Find(KindIcon, name, -1).(*IconTheme)
	return theme
}

func (r *Registry) FindCursor(name string) *CursorTheme {
	theme, _ := r.Find(KindCursor, name, -1).(*CursorTheme)
	return theme
}

func (r *Registry) FindMeta(name string) *MetaTheme {
	theme, _ := r.Find(KindMeta, name, -1).(*MetaTheme)
	return theme
}

// FindByType lists the preferred regular themes that provide at least one
// of the given elements.
func (r *Registry) FindByType(elements Element) []*RegularTheme {
	var result []*RegularTheme
	for _, theme := range r.FindAll(KindRegular) {
		regular := theme.(*RegularTheme)
		if regular.Elements()&elements != 0 {
			result = append(result, regular)
		}
	}
	return result
}

// FindAll returns the preferred entry of every theme name, sorted by name.
func (r *Registry) FindAll(kind Kind) []Theme {
	r.mu.Lock()
	defer r.mu.Unlock()
	table, ok := r.tables[kind]
	if !ok {
		return nil
	}
	return table.preferred()
}

func (r *Registry) FindAllIcons() []*IconTheme {
	var result []*IconTheme
	for _, theme := range r.FindAll(KindIcon) {
		result = append(result, theme.(*IconTheme))
	}
	return result
}

func (r *Registry) FindAllCursors() []*CursorTheme {
	var result []*CursorTheme
	for _, theme := range r.FindAll(KindCursor) {
		result = append(result, theme.(*CursorTheme))
	}
	return result
}

func (r *Registry) FindAllMetas() []*MetaTheme {
	var result []*MetaTheme
	for _, theme := range r.FindAll(KindMeta) {
		result = append(result, theme.(*MetaTheme))
	}
	return result
}
