package graph

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/phobologic/codecounter/internal/model"
	"github.com/phobologic/codecounter/internal/project"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuild(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	appPath := writeFile(t, dir, "App/App.csproj", `<Project>
  <PropertyGroup><OutputType>Exe</OutputType></PropertyGroup>
  <ItemGroup>
    <ProjectReference Include="..\Core\Core.csproj" />
    <PackageReference Include="Newtonsoft.Json" />
    <PackageReference Include="Microsoft.Extensions.Logging" />
  </ItemGroup>
</Project>`)
	writeFile(t, dir, "Core/Core.csproj", "<Project/>")

	reg := project.NewRegistry("")
	reg.AddProject(appPath)
	reg.Lookup("core").HasSources = true

	g := Build(reg)

	wantOrder := []string{"Core", "Microsoft.Extensions.Logging", "Newtonsoft.Json", "App"}
	if len(g.Modules) != len(wantOrder) {
		t.Fatalf("got %d modules, want %d", len(g.Modules), len(wantOrder))
	}
	for i, name := range wantOrder {
		if g.Modules[i].Name != name {
			t.Errorf("Modules[%d] = %s, want %s", i, g.Modules[i].Name, name)
		}
	}

	colors := map[string]string{}
	for _, m := range g.Modules {
		colors[m.Name] = m.Color
	}
	if colors["App"] != "darkorchid" || colors["Core"] != "green2" ||
		colors["Newtonsoft.Json"] != "tan1" || colors["Microsoft.Extensions.Logging"] != "gold" {
		t.Errorf("colors = %v", colors)
	}

	if len(g.Dependencies) != 3 {
		t.Fatalf("got %d dependencies, want 3: %+v", len(g.Dependencies), g.Dependencies)
	}
	if d := g.Dependencies[0]; d.Source != "App" || d.Target != "Core" || d.Kind != EdgeProject {
		t.Errorf("first dependency = %+v", d)
	}
}

func dotGraph() *Graph {
	return &Graph{
		Modules: []model.Module{
			{Name: "App", Show: "App", Kind: project.KindExe, Color: "darkorchid"},
			{Name: "Core", Show: "Core", Kind: project.KindProject, Color: "green2"},
			{Name: "Newtonsoft.Json", Show: "Newtonsoft_Json", Kind: project.KindPackage, Color: "tan1"},
			{Name: "Util", Show: "Util", Kind: project.KindProject, Color: "green2"},
		},
		Dependencies: []model.Dependency{
			{Source: "App", Target: "Core", Kind: EdgeProject},
			{Source: "App", Target: "Util", Kind: EdgeNamespace},
			{Source: "App", Target: "Newtonsoft.Json", Kind: EdgePackage},
			{Source: "Core", Target: "Newtonsoft.Json", Kind: EdgePackage},
		},
	}
}

func TestWriteDot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level int
		want  string
	}{
		{1, `digraph prof { ratio = fill; node[style = filled];
App [color="darkorchid"]
Core [color="green2"]
App -> Core [color="darkorchid"];
Util [color="green2"]
}
`},
		{2, `digraph prof { ratio = fill; node[style = filled];
App [color="darkorchid"]
Core [color="green2"]
Newtonsoft_Json [color="tan1"]
Core -> Newtonsoft_Json [color="green2"];
App -> Core [color="darkorchid"];
Util [color="green2"]
App -> Util [color="darkorchid", style=dashed];
App -> Newtonsoft_Json [color="darkorchid"];
}
`},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		if err := WriteDot(&buf, dotGraph(), tt.level); err != nil {
			t.Fatalf("WriteDot: %v", err)
		}
		if buf.String() != tt.want {
			t.Errorf("level %d:\n%s\nwant:\n%s", tt.level, buf.String(), tt.want)
		}
	}
}

func TestRankUniform(t *testing.T) {
	t.Parallel()

	modules := []model.Module{
		{Name: "c"},
		{Name: "a"},
		{Name: "b"},
	}

	Rank(modules, nil)

	expected := 1.0 / 3.0
	for _, m := range modules {
		if math.Abs(m.Rank-expected) > 1e-9 {
			t.Errorf("%s rank = %f, want %f", m.Name, m.Rank, expected)
		}
	}
	if modules[0].Name != "a" || modules[2].Name != "c" {
		t.Errorf("equal ranks should sort by name, got %s..%s", modules[0].Name, modules[2].Name)
	}
}

func TestRankWithEdges(t *testing.T) {
	t.Parallel()

	modules := []model.Module{
		{Name: "a"},
		{Name: "b"},
		{Name: "c"},
	}

	deps := []model.Dependency{
		{Source: "a", Target: "b", Kind: EdgeProject},
		{Source: "c", Target: "b", Kind: EdgeProject},
		{Source: "c", Target: "missing", Kind: EdgePackage},
	}

	Rank(modules, deps)

	// b should have highest rank (referenced by both a and c)
	if modules[0].Name != "b" {
		t.Errorf("expected b first, got %s", modules[0].Name)
	}

	// Ranks should sum to ~1.0
	var sum float64
	for _, m := range modules {
		sum += m.Rank
	}
	if math.Abs(sum-1.0) > 0.01 {
		t.Errorf("ranks sum to %f, expected ~1.0", sum)
	}

	if modules[0].Rank <= modules[1].Rank {
		t.Errorf("b rank (%f) should be > second module rank (%f)",
			modules[0].Rank, modules[1].Rank)
	}
}

func TestRankEmpty(t *testing.T) {
	t.Parallel()
	Rank(nil, nil) // should not panic
}
