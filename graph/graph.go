// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package graph is a small directed graph used to order module startup.
package graph

import (
	"errors"
	"sort"
)

var ErrCycle = errors.New("graph has a cycle")

type Node struct {
	ID string
}

func NewNode(id string) *Node {
	return &Node{ID: id}
}

// Data holds nodes in insertion order; an edge from a to b means a comes
// before b.
type Data struct {
	nodes []*Node
	index map[string]*Node
	edges map[string]map[string]float64
}

func New() *Data {
	return &Data{
		index: make(map[string]*Node),
		edges: make(map[string]map[string]float64),
	}
}

// AddNode returns false when a node with the same ID already exists.
func (d *Data) AddNode(node *Node) bool {
	if _, ok := d.index[node.ID]; ok {
		return false
	}
	d.index[node.ID] = node
	d.nodes = append(d.nodes, node)
	return true
}

func (d *Data) GetNodeByID(id string) *Node {
	return d.index[id]
}

func (d *Data) NodeCount() int {
	return len(d.nodes)
}

// UpdateEdgeWeight adds the edge src -> dst or updates its weight.
func (d *Data) UpdateEdgeWeight(src, dst *Node, weight float64) {
	if src == nil || dst == nil {
		return
	}
	out, ok := d.edges[src.ID]
	if !ok {
		out = make(map[string]float64)
		d.edges[src.ID] = out
	}
	out[dst.ID] = weight
}

// Targets returns the IDs src has an edge to, sorted.
func (d *Data) Targets(src *Node) []string {
	ids := make([]string, 0, len(d.edges[src.ID]))
	for id := range d.edges[src.ID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TopologicalSort orders every node after the nodes with edges to it.
// Ready nodes are taken in ID order so the result is stable.
func (d *Data) TopologicalSort() ([]*Node, error) {
	inDegree := make(map[string]int, len(d.nodes))
	for _, out := range d.edges {
		for id := range out {
			inDegree[id]++
		}
	}
	var queue []string
	for _, node := range d.nodes {
		if inDegree[node.ID] == 0 {
			queue = append(queue, node.ID)
		}
	}
	sort.Strings(queue)

	result := make([]*Node, 0, len(d.nodes))
	for len(queue) != 0 {
		id := queue[0]
		queue = queue[1:]
		node := d.index[id]
		result = append(result, node)
		for _, next := range d.Targets(node) {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if len(result) != len(d.nodes) {
		return nil, ErrCycle
	}
	return result, nil
}
