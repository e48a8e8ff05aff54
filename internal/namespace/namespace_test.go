package namespace

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"App.Core;", "App.Core"},
		{"App.Core ;", "App.Core"},
		{"App.Web {", "App.Web"},
		{"App.Web", "App.Web"},
		{"static App.Util.Math;", "App.Util.Math"},
		{"Json = Newtonsoft.Json;", "Newtonsoft.Json"},
		{"(var s = Open())", ""},
		{"var s = Open();", ""},
		{"App..Core;", ""},
		{"List<int>;", ""},
		{";", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFind(t *testing.T) {
	t.Parallel()

	tree := New()
	if tree.Find("System.Collections.Generic;") != nil {
		t.Error("System namespaces should be ignored")
	}

	l := tree.Find("App.Core.Models;")
	if l == nil {
		t.Fatal("Find returned nil")
	}
	if l.FullName() != "App.Core.Models" || l.Depth() != 2 {
		t.Errorf("FullName, Depth = %q, %d", l.FullName(), l.Depth())
	}
	if again := tree.Find("App.Core.Models"); again != l {
		t.Error("Find should return the same level for the same name")
	}

	var names []string
	tree.Walk(func(l *Level) { names = append(names, l.FullName()) })
	want := []string{"App", "App.Core", "App.Core.Models"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Walk = %v, want %v", names, want)
	}
}

func TestUsesAndDecls(t *testing.T) {
	t.Parallel()

	tree := New()
	tree.AddDecl("Core.csproj", "App.Core")
	tree.AddDecl("Web.csproj", "App.Web")

	tree.AddUsing("Web.csproj", "App.Core;")
	tree.AddUsing("Web.csproj", "App.Web;")
	tree.AddUsing("Web.csproj", "Newtonsoft.Json;")
	tree.AddUsing("Web.csproj", "System.Linq;")
	tree.AddUsing("", "App.Core;")

	if got, want := tree.Uses("Web.csproj"), []string{"App.Core", "Newtonsoft.Json"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Uses = %v, want %v", got, want)
	}
	if got, want := tree.DependsOn("Web.csproj"), []string{"Core.csproj"}; !reflect.DeepEqual(got, want) {
		t.Errorf("DependsOn = %v, want %v", got, want)
	}
	if got := tree.Uses("Core.csproj"); len(got) != 0 {
		t.Errorf("Core uses = %v, want none", got)
	}
}

func TestAddDeclConflict(t *testing.T) {
	t.Parallel()

	tree := New()
	if other := tree.AddDecl("A.csproj", "Shared.Models"); other != "" {
		t.Errorf("first claim reported %q", other)
	}
	if other := tree.AddDecl("A.csproj", "Shared.Models"); other != "" {
		t.Errorf("repeat claim by the same owner reported %q", other)
	}
	if other := tree.AddDecl("B.csproj", "Shared.Models"); other != "A.csproj" {
		t.Errorf("conflicting claim = %q, want A.csproj", other)
	}
	if l := tree.Find("Shared.Models"); l.Owner != "A.csproj" {
		t.Errorf("Owner = %q, want the first claim to stay", l.Owner)
	}
	if other := tree.AddDecl("", "Shared.Models"); other != "" {
		t.Errorf("ownerless decl reported %q", other)
	}
}
