package modules

import (
	"sort"
	"sync"

	"github.com/emirpasic/gods/sets/linkedhashset"
	pkgerrors "github.com/pkg/errors"
)

// DependencyGraph records the static import edges the loader discovers,
// keyed by module identity. It is safe for concurrent use.
type DependencyGraph struct {
	modules   *linkedhashset.Set  // Identities in discovery order
	depGraph  map[string][]string // Module → dependencies, in request order
	depCounts map[string]int      // Module → number of importers
	mutex     sync.RWMutex
}

// DependencyStats summarizes a dependency graph.
type DependencyStats struct {
	TotalModules      int
	TotalDependencies int
	MaxDepth          int      // Longest acyclic import chain
	CircularDeps      []string // Modules that take part in an import cycle
}

// NewDependencyGraph creates an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		modules:   linkedhashset.New(),
		depGraph:  make(map[string][]string),
		depCounts: make(map[string]int),
	}
}

// AddModule records identity as discovered.
func (g *DependencyGraph) AddModule(identity string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.modules.Add(identity)
}

// AddDependency records that from imports to. Repeated edges are ignored.
func (g *DependencyGraph) AddDependency(from, to string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.modules.Add(from, to)
	for _, dep := range g.depGraph[from] {
		if dep == to {
			return
		}
	}
	g.depGraph[from] = append(g.depGraph[from], to)
	g.depCounts[to]++
}

// Dependencies returns the modules identity imports, in request order.
func (g *DependencyGraph) Dependencies(identity string) []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	deps := g.depGraph[identity]
	result := make([]string, len(deps))
	copy(result, deps)
	return result
}

// ImportCount returns how many modules import identity.
func (g *DependencyGraph) ImportCount(identity string) int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.depCounts[identity]
}

// Modules returns every recorded identity in discovery order.
func (g *DependencyGraph) Modules() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.moduleList()
}

func (g *DependencyGraph) moduleList() []string {
	out := make([]string, 0, g.modules.Size())
	for _, v := range g.modules.Values() {
		out = append(out, v.(string))
	}
	return out
}

// Clear resets the graph.
func (g *DependencyGraph) Clear() {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.modules.Clear()
	g.depGraph = make(map[string][]string)
	g.depCounts = make(map[string]int)
}

// Depth returns the length of the longest acyclic import chain starting at
// identity. Leaves have depth 0.
func (g *DependencyGraph) Depth(identity string) int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.depth(identity, make(map[string]bool))
}

func (g *DependencyGraph) depth(identity string, onPath map[string]bool) int {
	if onPath[identity] {
		return -1
	}
	onPath[identity] = true
	defer delete(onPath, identity)

	maxDepth := 0
	for _, dep := range g.depGraph[identity] {
		if d := g.depth(dep, onPath) + 1; d > maxDepth {
			maxDepth = d
		}
	}
	return maxDepth
}

// Cycles returns the modules that can reach themselves, sorted.
func (g *DependencyGraph) Cycles() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.cycles()
}

func (g *DependencyGraph) cycles() []string {
	var circular []string
	for _, identity := range g.moduleList() {
		if g.reaches(identity, identity, make(map[string]bool)) {
			circular = append(circular, identity)
		}
	}
	sort.Strings(circular)
	return circular
}

func (g *DependencyGraph) reaches(from, target string, visited map[string]bool) bool {
	for _, dep := range g.depGraph[from] {
		if dep == target {
			return true
		}
		if visited[dep] {
			continue
		}
		visited[dep] = true
		if g.reaches(dep, target, visited) {
			return true
		}
	}
	return false
}

// GetStats returns a summary of the graph.
func (g *DependencyGraph) GetStats() DependencyStats {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	stats := DependencyStats{TotalModules: g.modules.Size(), CircularDeps: g.cycles()}
	for _, identity := range g.moduleList() {
		stats.TotalDependencies += len(g.depGraph[identity])
		if d := g.depth(identity, make(map[string]bool)); d > stats.MaxDepth {
			stats.MaxDepth = d
		}
	}
	return stats
}

// TopologicalOrder returns every module after all of its dependencies.
// It fails when the graph has a cycle.
func (g *DependencyGraph) TopologicalOrder() ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	modules := g.moduleList()
	// Kahn's algorithm over the reversed edges: a module is ready once
	// every dependency has been emitted.
	pending := make(map[string]int, len(modules))
	dependents := make(map[string][]string)
	for _, m := range modules {
		pending[m] = len(g.depGraph[m])
		for _, dep := range g.depGraph[m] {
			dependents[dep] = append(dependents[dep], m)
		}
	}

	var queue, result []string
	for _, m := range modules {
		if pending[m] == 0 {
			queue = append(queue, m)
		}
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)
		for _, dependent := range dependents[current] {
			pending[dependent]--
			if pending[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(modules) {
		return nil, pkgerrors.Errorf("circular dependency detected among modules: %v", g.cycles())
	}
	return result, nil
}
