// Package project reads MSBuild project files (.csproj, .vcxproj) and keeps
// the registry of the projects and packages they reference.
package project

import (
	"bytes"
	_ "embed"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

//go:embed packageignore.txt
var packageIgnore string

// Module kinds. The graph picks a color per kind.
const (
	KindFail    = "fail"    // project file could not be read
	KindTest    = "test"    // not distributed
	KindExe     = "exe"     // top level entry point
	KindProject = "project" // we have its sources
	KindLib     = "lib"     // read, but no sources found
	KindSystem  = "system"  // package supplied by the platform
	KindPackage = "package"
)

var systemPrefixes = []string{"Microsoft.", "System.", "MSTest.", "Xamarin."}

// Project is a .csproj or .vcxproj file and what it references.
type Project struct {
	Key  string // case-folded name
	Name string // file name without extension
	Show string // name safe for graph output
	Path string

	IsExe      bool
	IsTest     bool
	HasSources bool
	Err        error

	projects map[string]*Project
	packages map[string]*Package
	uses     map[string]*Project
}

// Kind returns the module kind of the project.
func (p *Project) Kind() string {
	switch {
	case p.Err != nil:
		return KindFail
	case p.IsTest:
		return KindTest
	case p.IsExe:
		return KindExe
	case p.HasSources:
		return KindProject
	}
	return KindLib
}

// References returns the projects named in the project file, by key.
func (p *Project) References() []*Project { return sortedValues(p.projects) }

// Packages returns the referenced packages, by key.
func (p *Project) Packages() []*Package { return sortedValues(p.packages) }

// Uses returns the projects whose namespaces this project uses without
// referencing them in its project file, by key.
func (p *Project) Uses() []*Project { return sortedValues(p.uses) }

// Package is a NuGet package or binary library.
type Package struct {
	Key  string
	Name string
	Show string
}

// Kind returns KindSystem for platform packages, otherwise KindPackage.
func (p *Package) Kind() string {
	for _, prefix := range systemPrefixes {
		if strings.HasPrefix(p.Name, prefix) {
			return KindSystem
		}
	}
	return KindPackage
}

// Registry holds every project and package of a run, keyed by case-folded
// name. It is not safe for concurrent use.
type Registry struct {
	unprefix string
	fold     cases.Caser
	ignored  map[string]struct{}
	projects map[string]*Project
	packages map[string]*Package
}

// NewRegistry returns an empty registry. Display names drop unprefix.
func NewRegistry(unprefix string) *Registry {
	r := &Registry{
		unprefix: unprefix,
		fold:     cases.Fold(),
		ignored:  make(map[string]struct{}),
		projects: make(map[string]*Project),
		packages: make(map[string]*Package),
	}
	for _, line := range strings.Split(packageIgnore, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		r.ignored[r.key(trimExt(line))] = struct{}{}
	}
	return r
}

func (r *Registry) key(name string) string {
	return r.fold.String(name)
}

// ShowName turns a module name into an identifier for graph output.
func (r *Registry) ShowName(name string) string {
	name = strings.NewReplacer(".", "_", "-", "_", `\`, "_").Replace(name)
	if r.unprefix != "" {
		name = strings.TrimPrefix(name, r.unprefix)
	}
	return name
}

// Ignored reports whether a library is a system library never shown.
func (r *Registry) Ignored(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return true
	}
	_, ok := r.ignored[r.key(trimExt(name))]
	return ok
}

// AddProject registers the project file at path and reads it, following
// its project references. A project already known by name is returned
// as is. Read failures are kept in Project.Err.
func (r *Registry) AddProject(path string) *Project {
	name := trimExt(baseName(path))
	key := r.key(name)
	if p, ok := r.projects[key]; ok {
		return p
	}

	p := &Project{
		Key:      key,
		Name:     name,
		Show:     r.ShowName(name),
		Path:     path,
		IsTest:   strings.Contains(key, "test"),
		projects: make(map[string]*Project),
		packages: make(map[string]*Package),
		uses:     make(map[string]*Project),
	}
	r.projects[key] = p
	p.Err = r.read(p)
	return p
}

// addLib resolves a linked library to a project: a known project of the
// same name, or a project file next to where the library is expected.
func (r *Registry) addLib(path, name string) *Project {
	if p, ok := r.projects[r.key(name)]; ok {
		return p
	}
	for _, ext := range []string{".vcxproj", ".csproj"} {
		fi, err := os.Stat(path + ext)
		if err == nil && fi.Mode().IsRegular() {
			return r.AddProject(path + ext)
		}
	}
	return nil
}

// AddPackage registers a package by name. It returns nil for ignored
// system libraries.
func (r *Registry) AddPackage(name string) *Package {
	key := r.key(name)
	if pkg, ok := r.packages[key]; ok {
		return pkg
	}
	if r.Ignored(name) {
		return nil
	}
	pkg := &Package{Key: key, Name: name, Show: r.ShowName(name)}
	r.packages[key] = pkg
	return pkg
}

// Lookup returns the project with the given key, or nil.
func (r *Registry) Lookup(key string) *Project {
	return r.projects[key]
}

// Projects returns every project, by key.
func (r *Registry) Projects() []*Project { return sortedValues(r.projects) }

// Packages returns every package, by key.
func (r *Registry) Packages() []*Package { return sortedValues(r.packages) }

// FixupPackages turns package references that name a known project into
// project references. Run it once every project is registered.
func (r *Registry) FixupPackages() {
	for key := range r.packages {
		proj, ok := r.projects[key]
		if !ok {
			continue
		}
		for _, p := range r.projects {
			if _, ok := p.packages[key]; !ok {
				continue
			}
			delete(p.packages, key)
			if p != proj {
				p.projects[key] = proj
			}
		}
		delete(r.packages, key)
	}
}

// AddUse records that p uses a namespace declared by other. References
// already in the project file are not repeated.
func (r *Registry) AddUse(p, other *Project) {
	if p == nil || other == nil || p == other {
		return
	}
	if _, ok := p.projects[other.Key]; ok {
		return
	}
	p.uses[other.Key] = other
}

func (r *Registry) read(p *Project) error {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return fmt.Errorf("reading project %s: %w", p.Path, err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if err := r.parse(p, bytes.NewReader(data), filepath.Dir(p.Path)); err != nil {
		return fmt.Errorf("parsing project %s: %w", p.Path, err)
	}
	return nil
}

func (r *Registry) parse(p *Project, rd io.Reader, dir string) error {
	dec := xml.NewDecoder(rd)

	var (
		nativeImports bool
		inReference   bool
		text          *strings.Builder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "OutputType", "ConfigurationType", "AdditionalDependencies":
				text = &strings.Builder{}
			case "ProjectReference":
				r.addProjectRef(p, attr(t, "Include"), dir)
			case "PackageReference":
				r.addPackageRef(p, attr(t, "Include"))
			case "ImportGroup":
				label := attr(t, "Label")
				nativeImports = label == "ExtensionTargets" || label == "Shared"
			case "Import":
				// Imports outside these groups are props, not packages.
				if nativeImports {
					r.addImportRef(p, attr(t, "Project"))
				}
			case "Reference":
				inReference = true
			case "HintPath":
				if inReference {
					text = &strings.Builder{}
				}
			}

		case xml.CharData:
			if text != nil {
				text.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "ImportGroup":
				nativeImports = false
			case "Reference":
				inReference = false
			case "OutputType", "ConfigurationType", "AdditionalDependencies", "HintPath":
				if text != nil {
					r.setValue(p, t.Name.Local, strings.TrimSpace(text.String()), dir)
					text = nil
				}
			}
		}
	}
}

// setValue applies the text of an element collected by parse.
func (r *Registry) setValue(p *Project, element, value, dir string) {
	switch element {
	case "OutputType":
		if value == "Exe" || value == "WinExe" {
			p.IsExe = true
		}
	case "ConfigurationType":
		if value == "Application" {
			p.IsExe = true
		}
	case "AdditionalDependencies":
		for _, lib := range strings.Split(value, ";") {
			r.addDependency(p, lib, dir)
		}
	case "HintPath":
		r.addImportRef(p, value)
	}
}

func (r *Registry) addProjectRef(p *Project, include, dir string) {
	include = strings.TrimSpace(include)
	if include == "" {
		return
	}
	key := r.key(trimExt(baseName(include)))
	if _, ok := p.projects[key]; ok {
		return
	}
	ref := r.AddProject(filepath.Join(dir, slashPath(include)))
	if ref != p {
		p.projects[key] = ref
	}
}

func (r *Registry) addPackageRef(p *Project, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	key := r.key(name)
	if _, ok := p.packages[key]; ok {
		return
	}
	if pkg := r.AddPackage(name); pkg != nil {
		p.packages[key] = pkg
	}
}

// addImportRef adds the package named by a native .targets import or a
// referenced assembly path.
func (r *Registry) addImportRef(p *Project, path string) {
	path = strings.TrimSpace(path)
	for _, ext := range []string{".targets", ".dll"} {
		if hasSuffixFold(path, ext) {
			path = path[:len(path)-len(ext)]
		}
	}
	r.addPackageRef(p, baseName(path))
}

// addDependency adds one entry of AdditionalDependencies. It may name a
// library built by another project or a binary package.
func (r *Registry) addDependency(p *Project, lib, dir string) {
	lib = strings.TrimSpace(lib)
	if lib == "" || lib == "." || strings.HasPrefix(lib, "$(") || strings.HasPrefix(lib, "%(") {
		return
	}
	if hasSuffixFold(lib, ".lib") {
		lib = lib[:len(lib)-len(".lib")]
	}
	name := baseName(lib)
	if r.Ignored(name) {
		return
	}
	key := r.key(name)
	if _, ok := p.projects[key]; ok {
		return
	}
	if _, ok := p.packages[key]; ok {
		return
	}

	if ref := r.addLib(filepath.Join(dir, slashPath(lib)), name); ref != nil {
		if ref != p {
			p.projects[key] = ref
		}
		return
	}
	if pkg := r.AddPackage(name); pkg != nil {
		p.packages[key] = pkg
	}
}

func attr(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// baseName returns the last element of a path using either separator.
func baseName(path string) string {
	return path[strings.LastIndexAny(path, `/\`)+1:]
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// slashPath converts the Windows separators of project files.
func slashPath(path string) string {
	return filepath.FromSlash(strings.ReplaceAll(path, `\`, "/"))
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

func sortedValues[T any](m map[string]T) []T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}
