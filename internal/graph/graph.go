// Package graph builds the module dependency graph, ranks it with PageRank
// and writes it as Graphviz markup.
package graph

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/phobologic/codecounter/internal/model"
	"github.com/phobologic/codecounter/internal/project"
)

// Edge kinds.
const (
	EdgeProject   = "project"   // named in the project file
	EdgeNamespace = "namespace" // found through namespace use
	EdgePackage   = "package"
)

// Colors maps module kinds to Graphviz color names.
// See http://graphviz.org/doc/info/colors.html.
var Colors = map[string]string{
	project.KindFail:    "red1",
	project.KindTest:    "gray53",
	project.KindExe:     "darkorchid",
	project.KindProject: "green2",
	project.KindLib:     "royalblue",
	project.KindSystem:  "gold",
	project.KindPackage: "tan1",
}

// Graph is the module graph of a run. Modules are ordered by rank.
type Graph struct {
	Modules      []model.Module     `json:"modules"`
	Dependencies []model.Dependency `json:"dependencies"`
}

// Build collects every project and package of the registry with the edges
// between them, and ranks the modules.
func Build(reg *project.Registry) *Graph {
	g := &Graph{}
	for _, p := range reg.Projects() {
		g.Modules = append(g.Modules, module(p.Name, p.Show, p.Kind()))
		for _, ref := range p.References() {
			g.Dependencies = append(g.Dependencies, model.Dependency{Source: p.Name, Target: ref.Name, Kind: EdgeProject})
		}
		for _, used := range p.Uses() {
			g.Dependencies = append(g.Dependencies, model.Dependency{Source: p.Name, Target: used.Name, Kind: EdgeNamespace})
		}
		for _, pkg := range p.Packages() {
			g.Dependencies = append(g.Dependencies, model.Dependency{Source: p.Name, Target: pkg.Name, Kind: EdgePackage})
		}
	}
	for _, pkg := range reg.Packages() {
		g.Modules = append(g.Modules, module(pkg.Name, pkg.Show, pkg.Kind()))
	}

	Rank(g.Modules, g.Dependencies)
	return g
}

func module(name, show, kind string) model.Module {
	return model.Module{Name: name, Show: show, Kind: kind, Color: Colors[kind]}
}

// IsProject reports whether a module kind is a project rather than a
// package.
func IsProject(kind string) bool {
	return kind != project.KindSystem && kind != project.KindPackage
}

// WriteDot writes the graph as Graphviz markup. Level 1 shows projects,
// level 2 adds packages and namespace use. Each module is written before
// the edges that lead to it.
func WriteDot(w io.Writer, g *Graph, level int) error {
	bw := bufio.NewWriter(w)

	mods := make(map[string]*model.Module, len(g.Modules))
	var projects []string
	for i := range g.Modules {
		m := &g.Modules[i]
		mods[m.Name] = m
		if IsProject(m.Kind) {
			projects = append(projects, m.Name)
		}
	}
	sort.Strings(projects)

	out := make(map[string][]model.Dependency)
	for _, d := range g.Dependencies {
		out[d.Source] = append(out[d.Source], d)
	}

	shown := make(map[string]bool)
	var show func(name string)
	show = func(name string) {
		m, ok := mods[name]
		if !ok || shown[name] {
			return
		}
		shown[name] = true
		color := fmt.Sprintf("[color=%q]", m.Color)
		fmt.Fprintf(bw, "%s %s\n", m.Show, color)

		for _, d := range out[name] {
			target, ok := mods[d.Target]
			if !ok {
				continue
			}
			switch {
			case d.Kind == EdgeProject:
				show(d.Target)
				fmt.Fprintf(bw, "%s -> %s %s;\n", m.Show, target.Show, color)
			case level > 1 && d.Kind == EdgeNamespace:
				show(d.Target)
				fmt.Fprintf(bw, "%s -> %s [color=%q, style=dashed];\n", m.Show, target.Show, m.Color)
			case level > 1 && d.Kind == EdgePackage:
				show(d.Target)
				fmt.Fprintf(bw, "%s -> %s %s;\n", m.Show, target.Show, color)
			}
		}
	}

	fmt.Fprintln(bw, "digraph prof { ratio = fill; node[style = filled];")
	for _, name := range projects {
		show(name)
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

// Rank applies PageRank to the modules and sorts them by rank descending,
// then by name.
func Rank(modules []model.Module, deps []model.Dependency) {
	if len(modules) == 0 {
		return
	}

	if len(deps) == 0 {
		uniform := 1.0 / float64(len(modules))
		for i := range modules {
			modules[i].Rank = uniform
		}
		sortModules(modules)
		return
	}

	// Edge from source to target means source depends on target.
	index := make(map[string]int, len(modules))
	for i := range modules {
		index[modules[i].Name] = i
	}
	outEdges := make([][]int, len(modules))
	for _, d := range deps {
		src, ok1 := index[d.Source]
		tgt, ok2 := index[d.Target]
		if !ok1 || !ok2 || src == tgt {
			continue
		}
		outEdges[src] = append(outEdges[src], tgt)
	}

	ranks := pageRank(outEdges, 0.85, 100, 1e-6)
	for i := range modules {
		modules[i].Rank = ranks[i]
	}
	sortModules(modules)
}

func sortModules(modules []model.Module) {
	sort.SliceStable(modules, func(i, j int) bool {
		if modules[i].Rank != modules[j].Rank {
			return modules[i].Rank > modules[j].Rank
		}
		return modules[i].Name < modules[j].Name
	})
}

func pageRank(outEdges [][]int, alpha float64, maxIter int, tol float64) []float64 {
	n := len(outEdges)
	if n == 0 {
		return nil
	}

	rank := make([]float64, n)
	initial := 1.0 / float64(n)
	for i := range rank {
		rank[i] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make([]float64, n)

		// Dangling node contribution (nodes with no outgoing edges)
		var danglingSum float64
		for node, targets := range outEdges {
			if len(targets) == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for node := range newRank {
			newRank[node] = teleport + danglingContrib
		}

		// Distribute rank through edges
		for src, targets := range outEdges {
			if len(targets) == 0 {
				continue
			}
			contrib := alpha * rank[src] / float64(len(targets))
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		// Check convergence
		var diff float64
		for node := range rank {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank

		if diff < tol {
			break
		}
	}

	return rank
}
