// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package loader

import (
	"fmt"
	"sync"

	"github.com/linuxdeepin/go-lib/log"
)

type Module interface {
	Name() string
	IsEnable() bool
	Enable(bool) error
	GetDependencies() []string
	SetLogLevel(log.Priority)
	LogLevel() log.Priority
	// WaitEnable returns once the first Start attempt finished, with its error.
	WaitEnable() error
	ModuleImpl
}

type Modules map[string]Module

type ModuleImpl interface {
	// Start runs synchronously; the loader logs the returned error.
	Start() error
	Stop() error
}

type ModuleBase struct {
	impl    ModuleImpl
	name    string
	log     *log.Logger
	mu      sync.Mutex
	enabled bool

	// closed after the first Start attempt, dependents block on it
	started   chan struct{}
	startOnce sync.Once
	startErr  error
}

func NewModuleBase(name string, impl ModuleImpl, logger *log.Logger) *ModuleBase {
	return &ModuleBase{
		name:    name,
		impl:    impl,
		log:     logger,
		started: make(chan struct{}),
	}
}

func (d *ModuleBase) doEnable(enable bool) error {
	var err error
	if d.impl != nil {
		if enable {
			err = d.impl.Start()
		} else {
			err = d.impl.Stop()
		}
	}
	if err == nil {
		d.enabled = enable
	}
	if enable {
		d.finishStart(err)
	}
	return err
}

func (d *ModuleBase) finishStart(err error) {
	d.startOnce.Do(func() {
		d.startErr = err
		close(d.started)
	})
}

func (d *ModuleBase) Enable(enable bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enabled == enable {
		if enable {
			return fmt.Errorf("%s daemon is already started", d.name)
		}
		return fmt.Errorf("%s daemon is not running", d.name)
	}
	return d.doEnable(enable)
}

func (d *ModuleBase) IsEnable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

func (d *ModuleBase) WaitEnable() error {
	<-d.started
	return d.startErr
}

func (d *ModuleBase) Name() string {
	return d.name
}

func (d *ModuleBase) SetLogLevel(pri log.Priority) {
	d.log.SetLogLevel(pri)
}

func (d *ModuleBase) LogLevel() log.Priority {
	return d.log.GetLogLevel()
}
