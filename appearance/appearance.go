// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Manage desktop appearance: themes, wallpapers and their previews.
package appearance

import (
	"github.com/linuxdeepin/go-lib/log"

	"github.com/linuxdeepin/dde-appearance/appearance/background"
	"github.com/linuxdeepin/dde-appearance/appearance/subthemes"
	"github.com/linuxdeepin/dde-appearance/appearance/thumbcache"
	"github.com/linuxdeepin/dde-appearance/appearance/thumbnail"
	"github.com/linuxdeepin/dde-appearance/loader"
)

var (
	_m     *Manager
	logger = log.NewLogger("daemon/appearance")
)

type Module struct {
	*loader.ModuleBase
}

func init() {
	background.SetLogger(logger)
	subthemes.SetLogger(logger)
	thumbnail.SetLogger(logger)
	thumbcache.SetLogger(logger)
	loader.Register(NewModule(logger))
}

func NewModule(logger *log.Logger) *Module {
	var d = new(Module)
	d.ModuleBase = loader.NewModuleBase("appearance", d, logger)
	return d
}

// DefaultConfigFile is the user config read unless SetConfigFile was called.
func DefaultConfigFile() string {
	return configFile
}

// SetConfigFile replaces the config file read when the module starts.
func SetConfigFile(file string) {
	configFile = file
}

func (*Module) GetDependencies() []string {
	return []string{}
}

func (*Module) start() error {
	service := loader.GetService()

	cfg, err := LoadConfig(configFile)
	if err != nil {
		return err
	}
	logger.Debug("config:", configFile)

	_m = newManager(service, cfg)
	err = _m.init()
	if err != nil {
		logger.Warning(err)
		_m.destroy()
		_m = nil
		return err
	}

	err = service.Export(dbusPath, _m)
	if err != nil {
		_m.destroy()
		_m = nil
		return err
	}

	err = service.RequestName(dbusServiceName)
	if err != nil {
		_m.destroy()
		stopErr := service.StopExport(_m)
		if stopErr != nil {
			logger.Warning(stopErr)
		}
		_m = nil
		return err
	}
	return nil
}

func (m *Module) Start() error {
	if _m != nil {
		return nil
	}
	return m.start()
}

func (*Module) Stop() error {
	if _m == nil {
		return nil
	}

	_m.destroy()
	service := loader.GetService()
	err := service.StopExport(_m)
	if err != nil {
		return err
	}
	_m = nil
	return nil
}
