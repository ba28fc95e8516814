// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dag

import "sort"

// Graph is the validated, immutable stage graph for one pipeline shape.
//
// Thread Safety:
//
//	Graph is safe for concurrent read access after building. Do not modify
//	task definitions after Build().
type Graph struct {
	name       string
	tasks      map[string]TaskDefinition
	order      []string            // stage names, lexicographic, for deterministic iteration
	dependents map[string][]string // stage → stages that depend on it
	terminal   string
}

// Name returns the graph's name.
func (g *Graph) Name() string {
	return g.name
}

// Task returns a task definition by name.
func (g *Graph) Task(name string) (TaskDefinition, bool) {
	def, ok := g.tasks[name]
	return def, ok
}

// TaskCount returns the number of stages.
func (g *Graph) TaskCount() int {
	return len(g.tasks)
}

// TaskNames returns all stage names in deterministic order.
func (g *Graph) TaskNames() []string {
	return g.order
}

// Terminal returns the terminal stage name (no dependents). When several
// stages have no dependents the lexicographically first one is chosen.
func (g *Graph) Terminal() string {
	return g.terminal
}

// TransitiveDependents returns every stage that directly or transitively
// depends on the given stage. Used to stop scheduling downstream of a
// failed required stage.
func (g *Graph) TransitiveDependents(name string) []string {
	seen := make(map[string]bool)
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range g.dependents[current] {
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Builder constructs a Graph with validation.
//
// Thread Safety:
//
//	Builder is NOT safe for concurrent use. Build the graph in a single
//	goroutine.
type Builder struct {
	name   string
	tasks  map[string]TaskDefinition
	errors []error
}

// NewBuilder creates a new graph builder.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:  name,
		tasks: make(map[string]TaskDefinition),
	}
}

// AddTask adds a stage definition to the graph.
func (b *Builder) AddTask(def TaskDefinition) *Builder {
	if def.Name == "" {
		b.errors = append(b.errors, ErrInvalidInput)
		return b
	}
	if _, exists := b.tasks[def.Name]; exists {
		b.errors = append(b.errors, NewStageError(def.Name, ErrDuplicateStage))
		return b
	}
	b.tasks[def.Name] = def
	return b
}

// AddTasks adds a list of stage definitions.
func (b *Builder) AddTasks(defs []TaskDefinition) *Builder {
	for _, def := range defs {
		b.AddTask(def)
	}
	return b
}

// Build validates and constructs the Graph.
//
// Outputs:
//
//	*Graph - The constructed graph.
//	error - Non-nil if a dependency is missing, a cycle exists, or the
//	        stage weights don't sum to 100.
func (b *Builder) Build() (*Graph, error) {
	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}
	if len(b.tasks) == 0 {
		return nil, ErrInvalidInput
	}

	weightSum := 0
	for name, def := range b.tasks {
		weightSum += def.Weight
		for _, dep := range def.DependsOn {
			if _, exists := b.tasks[dep]; !exists {
				return nil, NewStageError(name, ErrStageNotFound)
			}
		}
	}
	if weightSum != 100 {
		return nil, ErrBadWeights
	}

	if err := b.detectCycles(); err != nil {
		return nil, err
	}

	order := make([]string, 0, len(b.tasks))
	for name := range b.tasks {
		order = append(order, name)
	}
	sort.Strings(order)

	dependents := make(map[string][]string)
	for name, def := range b.tasks {
		for _, dep := range def.DependsOn {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	return &Graph{
		name:       b.name,
		tasks:      b.tasks,
		order:      order,
		dependents: dependents,
		terminal:   b.findTerminal(dependents),
	}, nil
}

// detectCycles uses DFS to detect cycles in the dependency graph.
func (b *Builder) detectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make([]string, 0)

	var dfs func(name string) error
	dfs = func(name string) error {
		visited[name] = true
		recStack[name] = true
		path = append(path, name)

		for _, dep := range b.tasks[name].DependsOn {
			if !visited[dep] {
				if err := dfs(dep); err != nil {
					return err
				}
			} else if recStack[dep] {
				cycleStart := -1
				for i, n := range path {
					if n == dep {
						cycleStart = i
						break
					}
				}
				cyclePath := append(path[cycleStart:], dep)
				return NewCycleError(cyclePath)
			}
		}

		path = path[:len(path)-1]
		recStack[name] = false
		return nil
	}

	for name := range b.tasks {
		if !visited[name] {
			if err := dfs(name); err != nil {
				return err
			}
		}
	}

	return nil
}

// findTerminal finds the stage with no dependents, lexicographically first
// when several qualify.
func (b *Builder) findTerminal(dependents map[string][]string) string {
	var terminals []string
	for name := range b.tasks {
		if len(dependents[name]) == 0 {
			terminals = append(terminals, name)
		}
	}
	if len(terminals) == 0 {
		return ""
	}
	sort.Strings(terminals)
	return terminals[0]
}
