// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package loader

import (
	"fmt"
	"sync"
	"time"

	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/log"
)

type EnableFlag int

const (
	EnableFlagNone EnableFlag = 1 << iota
	EnableFlagIgnoreMissingModule
	EnableFlagForceStart
)

func (flags EnableFlag) HasFlag(flag EnableFlag) bool {
	return flags&flag != 0
}

const (
	ErrorNoDependencies int = iota
	ErrorCircleDependencies
	ErrorMissingModule
	ErrorInternalError
	ErrorConflict
)

type EnableError struct {
	ModuleName string
	Code       int
	detail     string
}

func (e *EnableError) Error() string {
	switch e.Code {
	case ErrorNoDependencies:
		return fmt.Sprintf("%s's dependencies is not meet, %s is need", e.ModuleName, e.detail)
	case ErrorCircleDependencies:
		return "dependency circle"
		// return fmt.Sprintf("%s and %s dependency each other.", e.ModuleName, e.detail)
	case ErrorMissingModule:
		return fmt.Sprintf("%s is missing", e.ModuleName)
	case ErrorInternalError:
		return fmt.Sprintf("%s started failed: %s", e.ModuleName, e.detail)
	case ErrorConflict:
		return fmt.Sprintf("tring to enable disabled module(%s)", e.ModuleName)
	}
	panic("EnableError: Unknown Error, Should not be reached")
}

type Loader struct {
	modules Modules
	log     *log.Logger
	lock    sync.Mutex
	service *dbusutil.Service
}

func (l *Loader) SetLogLevel(pri log.Priority) {
	l.log.SetLogLevel(pri)

	l.lock.Lock()
	defer l.lock.Unlock()

	for _, module := range l.modules {
		module.SetLogLevel(pri)
	}
}

func (l *Loader) AddModule(m Module) {
	l.lock.Lock()
	defer l.lock.Unlock()
	name := m.Name()
	_, exist := l.modules[name]
	if exist {
		l.log.Debug("Register", name, "is already registered")
		return
	}
	l.log.Debug("Register module:", name)
	l.modules[name] = m
}

func (l *Loader) DeleteModule(name string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	delete(l.modules, name)
}

func (l *Loader) List() []Module {
	l.lock.Lock()
	defer l.lock.Unlock()
	modules := make([]Module, 0, len(l.modules))
	for _, m := range l.modules {
		modules = append(modules, m)
	}
	return modules
}

func (l *Loader) GetModule(name string) Module {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.modules[name]
}

// WaitDependencies blocks until every known dependency of module tried to
// start, and returns the first failure.
func (l *Loader) WaitDependencies(module Module) error {
	for _, dependencyName := range module.GetDependencies() {
		dependency, ok := l.modules[dependencyName]
		if !ok {
			continue
		}
		if err := dependency.WaitEnable(); err != nil {
			return &EnableError{ModuleName: module.Name(), Code: ErrorNoDependencies,
				detail: dependencyName}
		}
	}
	return nil
}

func (l *Loader) EnableModules(enablingModules []string, disableModules []string, flag EnableFlag) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	startTime := time.Now()
	builder := NewDAGBuilder(l, enablingModules, disableModules, flag)
	names, err := builder.Execute()
	if err != nil {
		return err
	}
	l.log.Infof("dependency order %v, cost %s", names, time.Since(startTime))

	// enable modules
	for _, name := range names {
		module := l.modules[name]
		name := name

		go func() {
			l.log.Info("enable module", name)
			startTime := time.Now()

			err := l.WaitDependencies(module)
			if err == nil {
				l.log.Info("module", name, "wait done, cost", time.Since(startTime))
				err = module.Enable(true)
			} else {
				// unblock the modules waiting for this one
				if f, ok := module.(interface{ finishStart(error) }); ok {
					f.finishStart(err)
				}
			}
			if err != nil {
				l.log.Errorf("enable module %s failed: %s, cost %s", name, err, time.Since(startTime))
			} else {
				l.log.Infof("enable module %s done cost %s", name, time.Since(startTime))
			}
		}()
	}

	var firstErr error
	for _, name := range names {
		if err := l.modules[name].WaitEnable(); err != nil && firstErr == nil {
			firstErr = &EnableError{ModuleName: name, Code: ErrorInternalError, detail: err.Error()}
		}
	}

	l.log.Infof("enable modules done, cost add up to %s", time.Since(startTime))
	return firstErr
}
