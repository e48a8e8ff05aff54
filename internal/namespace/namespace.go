// Package namespace tracks the C# namespaces each project declares and
// uses, so that namespace use can be turned into project dependencies.
package namespace

import (
	"sort"
	"strings"
)

// Level is one dotted segment of a namespace.
type Level struct {
	Name     string
	Owner    string // project that declared this namespace, "" if none yet
	parent   *Level
	children map[string]*Level
}

// FullName returns the dotted name from the root.
func (l *Level) FullName() string {
	if l.parent == nil {
		return l.Name
	}
	return l.parent.FullName() + "." + l.Name
}

// Depth returns the number of ancestors.
func (l *Level) Depth() int {
	n := 0
	for p := l.parent; p != nil; p = p.parent {
		n++
	}
	return n
}

func (l *Level) child(name string) *Level {
	c, ok := l.children[name]
	if !ok {
		c = &Level{Name: name, parent: l, children: map[string]*Level{}}
		l.children[name] = c
	}
	return c
}

// Tree is the namespace trie of a run. It is not safe for concurrent use.
type Tree struct {
	root *Level
	uses map[string]map[*Level]struct{}
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{
		root: &Level{children: map[string]*Level{}},
		uses: map[string]map[*Level]struct{}{},
	}
}

// Normalize turns the argument of a using or namespace line into a dotted
// name. It returns "" for anything that is not a plain namespace.
func Normalize(arg string) string {
	arg = strings.TrimSpace(arg)
	arg = strings.TrimSuffix(arg, "{")
	arg = strings.TrimSpace(arg)
	arg = strings.TrimSuffix(arg, ";")
	arg = strings.TrimSpace(arg)
	arg = strings.TrimPrefix(arg, "static ")

	if strings.ContainsAny(arg, "(") || strings.HasPrefix(arg, "var ") {
		return "" // using statement, not a directive
	}
	if _, target, ok := strings.Cut(arg, "="); ok {
		arg = target // alias
	}
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return ""
	}
	for _, seg := range strings.Split(arg, ".") {
		if seg == "" || strings.ContainsAny(seg, " \t<>") {
			return ""
		}
	}
	return arg
}

// Find returns the level for ns, creating it as needed. System namespaces
// and unusable names return nil.
func (t *Tree) Find(ns string) *Level {
	ns = Normalize(ns)
	if ns == "" {
		return nil
	}
	names := strings.Split(ns, ".")
	if names[0] == "System" {
		return nil
	}
	l := t.root
	for _, name := range names {
		l = l.child(name)
	}
	return l
}

// AddUsing records that owner uses ns.
func (t *Tree) AddUsing(owner, ns string) {
	if owner == "" {
		return
	}
	l := t.Find(ns)
	if l == nil {
		return
	}
	set, ok := t.uses[owner]
	if !ok {
		set = map[*Level]struct{}{}
		t.uses[owner] = set
	}
	set[l] = struct{}{}
}

// AddDecl claims ns for owner. It returns the previous owner when another
// project already declared the same namespace; the first claim stays.
func (t *Tree) AddDecl(owner, ns string) (other string) {
	if owner == "" {
		return ""
	}
	l := t.Find(ns)
	if l == nil {
		return ""
	}
	switch l.Owner {
	case "":
		l.Owner = owner
	case owner:
	default:
		return l.Owner
	}
	return ""
}

// Uses returns the namespaces owner uses but does not declare, sorted.
func (t *Tree) Uses(owner string) []string {
	var names []string
	for l := range t.uses[owner] {
		if l.Owner != owner {
			names = append(names, l.FullName())
		}
	}
	sort.Strings(names)
	return names
}

// DependsOn returns the other projects declaring namespaces that owner
// uses, sorted.
func (t *Tree) DependsOn(owner string) []string {
	seen := map[string]struct{}{}
	for l := range t.uses[owner] {
		if l.Owner != "" && l.Owner != owner {
			seen[l.Owner] = struct{}{}
		}
	}
	deps := make([]string, 0, len(seen))
	for d := range seen {
		deps = append(deps, d)
	}
	sort.Strings(deps)
	return deps
}

// Walk visits every level in name order, depth first.
func (t *Tree) Walk(fn func(l *Level)) {
	var walk func(l *Level)
	walk = func(l *Level) {
		names := make([]string, 0, len(l.children))
		for name := range l.children {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c := l.children[name]
			fn(c)
			walk(c)
		}
	}
	walk(t.root)
}
