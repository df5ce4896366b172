// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package loader

import (
	"github.com/linuxdeepin/go-lib/log"

	"github.com/linuxdeepin/dde-appearance/graph"
)

type DAGBuilder struct {
	modules         Modules
	enablingModules []string
	disableModules  map[string]struct{}
	flag            EnableFlag

	log *log.Logger

	dag *graph.Data
}

func NewDAGBuilder(loader *Loader, enablingModules []string, disableModules []string, flag EnableFlag) *DAGBuilder {
	disableModulesMap := map[string]struct{}{}
	for _, name := range disableModules {
		if _, ok := loader.modules[name]; !ok {
			loader.log.Warningf("disabled module(%s) does not exist", name)
			continue
		}
		disableModulesMap[name] = struct{}{}
	}

	return &DAGBuilder{
		modules:         loader.modules,
		enablingModules: enablingModules,
		disableModules:  disableModulesMap,
		flag:            flag,
		log:             loader.log,
		dag:             graph.New(),
	}
}

func (builder *DAGBuilder) buildDAG() error {
	queue := make([]*graph.Node, 0, len(builder.enablingModules))
	for _, name := range builder.enablingModules {
		node := graph.NewNode(name)
		if builder.dag.AddNode(node) {
			queue = append(queue, node)
		}
	}
	for len(queue) != 0 {
		node := queue[0]
		queue = queue[1:]
		name := node.ID
		module, ok := builder.modules[name]
		if !ok {
			if !builder.flag.HasFlag(EnableFlagIgnoreMissingModule) {
				return &EnableError{ModuleName: name, Code: ErrorMissingModule}
			}
			builder.log.Debug("no such a module named", name)
			continue
		}
		if _, ok := builder.disableModules[name]; ok && !builder.flag.HasFlag(EnableFlagForceStart) {
			return &EnableError{ModuleName: name, Code: ErrorConflict}
		}
		for _, dependency := range module.GetDependencies() {
			depNode := graph.NewNode(dependency)
			if builder.dag.AddNode(depNode) {
				queue = append(queue, depNode)
			}
			builder.dag.UpdateEdgeWeight(builder.dag.GetNodeByID(dependency), node, 0)
		}
	}
	return nil
}

// Execute returns the modules to enable, dependencies first.
func (builder *DAGBuilder) Execute() ([]string, error) {
	err := builder.buildDAG()
	if err != nil {
		return nil, err
	}
	nodes, err := builder.dag.TopologicalSort()
	if err != nil {
		return nil, &EnableError{Code: ErrorCircleDependencies}
	}

	// missing modules were tolerated above
	result := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if _, ok := builder.modules[node.ID]; ok {
			result = append(result, node.ID)
		}
	}
	return result, nil
}
