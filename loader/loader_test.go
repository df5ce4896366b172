// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package loader

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linuxdeepin/go-lib/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type startRecorder struct {
	mu      sync.Mutex
	started []string
	stopped []string
}

func (r *startRecorder) add(list *[]string, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*list = append(*list, name)
}

type Test_Module struct {
	*ModuleBase
	dependencies string
	fail         bool
	rec          *startRecorder
}

func NewTestModule(name, dependencies string, rec *startRecorder) *Test_Module {
	daemon := new(Test_Module)
	logger := log.NewLogger(name)
	daemon.ModuleBase = NewModuleBase(name, daemon, logger)
	daemon.dependencies = dependencies
	daemon.rec = rec
	return daemon
}

func (d *Test_Module) GetDependencies() []string {
	if d.dependencies == "" {
		return nil
	}
	return strings.Split(d.dependencies, " ")
}

func (d *Test_Module) Start() error {
	time.Sleep(10 * time.Millisecond)
	if d.fail {
		return errors.New("boom")
	}
	d.rec.add(&d.rec.started, d.Name())
	return nil
}

func (d *Test_Module) Stop() error {
	d.rec.add(&d.rec.stopped, d.Name())
	return nil
}

func resetLoader() {
	_loader = &Loader{
		modules: Modules{},
		log:     log.NewLogger("daemon/loader"),
	}
}

func indexOf(list []string, name string) int {
	for i, v := range list {
		if v == name {
			return i
		}
	}
	return -1
}

func Test_Loader(t *testing.T) {
	tests := []struct {
		deps map[string]string
		err  error
	}{
		{map[string]string{"1": "", "2": "", "3": ""}, nil},
		{map[string]string{"1": "2", "2": "3", "3": "4", "4": ""}, nil},
		{map[string]string{"1": "2", "2": "3", "3": "1"}, &EnableError{Code: ErrorCircleDependencies}},
	}
	for _, tt := range tests {
		resetLoader()
		rec := &startRecorder{}
		var names []string
		for name, deps := range tt.deps {
			Register(NewTestModule(name, deps, rec))
			names = append(names, name)
		}
		err := EnableModules(names, nil, EnableFlagNone)
		assert.Equal(t, tt.err, err)
		if err != nil {
			continue
		}
		// dependencies start first
		for name, deps := range tt.deps {
			if deps != "" {
				assert.Less(t, indexOf(rec.started, deps), indexOf(rec.started, name))
			}
		}
	}
}

func Test_LoaderMissingAndFailed(t *testing.T) {
	resetLoader()
	rec := &startRecorder{}
	Register(NewTestModule("a", "missing", rec))
	err := EnableModules([]string{"a"}, nil, EnableFlagNone)
	assert.Equal(t, &EnableError{ModuleName: "missing", Code: ErrorMissingModule}, err)

	resetLoader()
	rec = &startRecorder{}
	broken := NewTestModule("broken", "", rec)
	broken.fail = true
	Register(broken)
	Register(NewTestModule("user", "broken", rec))
	err = EnableModules([]string{"user"}, nil, EnableFlagNone)
	require.Error(t, err)
	assert.Empty(t, rec.started)
}

func Test_StopAll(t *testing.T) {
	resetLoader()
	rec := &startRecorder{}
	Register(NewTestModule("base", "", rec))
	Register(NewTestModule("top", "base", rec))
	require.NoError(t, StartAll())
	StopAll()
	assert.Equal(t, []string{"top", "base"}, rec.stopped)
}
