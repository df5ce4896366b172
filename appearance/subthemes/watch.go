// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package subthemes

import (
	"github.com/fsnotify/fsnotify"
)

func (r *Registry) watchLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.quit:
			logger.Debug("[Fsnotify] quit theme watch")
			return
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			logger.Warning("Receive theme watcher error:", err)
			r.setDegraded()
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			logger.Debug("[Fsnotify] theme event:", ev)
			r.handleFileChanged(ev.Name)
		}
	}
}
