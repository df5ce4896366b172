// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package appearance

import (
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	dutils "github.com/linuxdeepin/go-lib/utils"

	"github.com/linuxdeepin/dde-appearance/appearance/subthemes"
)

// events closer than this are reported as one Refreshed
const refreshDelay = 100 * time.Millisecond

func kindType(kind subthemes.Kind) string {
	switch kind {
	case subthemes.KindRegular:
		return TypeGtkTheme
	case subthemes.KindIcon:
		return TypeIconTheme
	case subthemes.KindCursor:
		return TypeCursorTheme
	case subthemes.KindMeta:
		return TypeMetaTheme
	}
	return ""
}

func (m *Manager) handleThemeEvent(ev subthemes.ChangeEvent) {
	info := ev.Theme.Info()
	logger.Debugf("[Registry] %s theme %s %s", ev.Theme.Kind(), info.Name, ev.Type)
	m.invalidateThumbnails(ev.Theme)
	m.queueRefresh(kindType(ev.Theme.Kind()))
}

// invalidateThumbnails drops the cached previews that show theme.
func (m *Manager) invalidateThumbnails(theme subthemes.Theme) {
	name := theme.Info().Name
	if theme.Kind() == subthemes.KindMeta {
		m.factory.InvalidateCache(name)
		return
	}
	for _, meta := range m.registry.FindAllMetas() {
		var uses bool
		switch theme.Kind() {
		case subthemes.KindRegular:
			uses = meta.GtkThemeName == name || meta.MetacityThemeName == name
		case subthemes.KindIcon:
			uses = meta.IconThemeName == name
		}
		if uses {
			m.factory.InvalidateCache(meta.Name)
		}
	}
}

func (m *Manager) queueRefresh(type0 string) {
	if type0 == "" {
		return
	}
	select {
	case m.refreshCh <- type0:
	default:
		logger.Debug("refresh queue full, dropped", type0)
	}
}

func (m *Manager) handleThemeChanged() {
	var events <-chan fsnotify.Event
	var errs <-chan error
	if m.watcher != nil {
		m.watchDirs(m.cfg.ImageDirs)
		events = m.watcher.Events
		errs = m.watcher.Errors
	}

	pending := make(map[string]bool)
	var timer <-chan time.Time
	for {
		select {
		case <-m.endWatcher:
			logger.Debug("[Fsnotify] quit watch")
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warning("Receive file watcher error:", err)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Op&fsnotify.Chmod != 0 || !hasEventOccurred(ev.Name, m.cfg.ImageDirs) {
				continue
			}
			logger.Debug("[Fsnotify] changed file:", ev.Name)
			if m.cache != nil && ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				err := m.cache.Delete(dutils.EncodeURI(ev.Name, dutils.SCHEME_FILE))
				if err != nil {
					logger.Warning(err)
				}
			}
			m.queueRefresh(TypeBackground)
		case type0 := <-m.refreshCh:
			pending[type0] = true
			if timer == nil {
				timer = time.After(refreshDelay)
			}
		case <-timer:
			timer = nil
			var types []string
			for type0 := range pending {
				types = append(types, type0)
			}
			sort.Strings(types)
			for _, type0 := range types {
				m.emitSignalRefreshed(type0)
			}
			pending = make(map[string]bool)
		}
	}
}

func (m *Manager) watchDirs(dirs []string) {
	for _, dir := range dirs {
		if !dutils.IsDir(dir) {
			logger.Debugf("skip watching '%s': not a directory", dir)
			continue
		}
		err := m.watcher.Add(dir)
		if err != nil {
			logger.Debugf("Watch dir '%s' failed: %v", dir, err)
		}
	}
}

func hasEventOccurred(ev string, list []string) bool {
	for _, v := range list {
		if strings.Contains(ev, v) {
			return true
		}
	}
	return false
}

func (m *Manager) emitSignalRefreshed(type0 string) {
	m.emit("Refreshed", type0)
}
