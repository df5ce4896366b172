// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package background

import (
	"github.com/fsnotify/fsnotify"
)

// startWatch watches every catalog dir found by Load. Running Load again
// only adds the new dirs.
func (m *Monitor) startWatch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watcher == nil {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			logger.Warning("unable to monitor catalog dirs:", err)
			return
		}
		m.watcher = watcher
		m.wg.Add(1)
		go m.watchLoop()
	}

	for dir, added := range m.watched {
		if added {
			continue
		}
		err := m.watcher.Add(dir)
		if err != nil {
			logger.Warningf("unable to monitor directory %s: %v", dir, err)
			continue
		}
		m.watched[dir] = true
	}
}

func (m *Monitor) watchLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.quit:
			logger.Debug("[Fsnotify] quit catalog watch")
			return
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			logger.Warning("Receive catalog watcher error:", err)
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			// re-parse only the file that changed
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				logger.Debug("[Fsnotify] catalog changed:", ev.Name)
				m.loadCatalog(ev.Name)
			}
		}
	}
}
