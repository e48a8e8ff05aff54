package project

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const appProj = `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <OutputType>Exe</OutputType>
  </PropertyGroup>
  <ItemGroup>
    <ProjectReference Include="..\Core\Core.csproj" />
    <ProjectReference Include="..\Missing\Missing.csproj" />
    <PackageReference Include="Newtonsoft.Json" Version="13.0.1" />
    <PackageReference Include="Microsoft.Extensions.Logging" Version="8.0.0" />
    <PackageReference Include="newtonsoft.json" />
  </ItemGroup>
  <ItemGroup>
    <Reference Include="System" />
    <Reference Include="TSS.Net, Version=2.1.1.0">
      <HintPath>..\packages\Microsoft.TSS.2.1.1\lib\net46\TSS.Net.dll</HintPath>
    </Reference>
  </ItemGroup>
</Project>
`

const coreProj = `<Project Sdk="Microsoft.NET.Sdk">
  <ItemGroup>
    <ProjectReference Include="..\App\App.csproj" />
  </ItemGroup>
</Project>
`

const nativeProj = "\uFEFF" + `<?xml version="1.0" encoding="utf-8"?>
<Project DefaultTargets="Build" xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <PropertyGroup Label="Configuration">
    <ConfigurationType>StaticLibrary</ConfigurationType>
  </PropertyGroup>
  <ItemDefinitionGroup>
    <Link>
      <AdditionalDependencies>zlib.lib;Util.lib;kernel32.lib;User32.LIB;$(OutDir)x.lib;%(AdditionalDependencies)</AdditionalDependencies>
    </Link>
  </ItemDefinitionGroup>
  <ImportGroup Label="PropertySheets">
    <Import Project="$(UserRootDir)\Microsoft.Cpp.$(Platform).user.props" />
  </ImportGroup>
  <ImportGroup Label="ExtensionTargets">
    <Import Project="..\packages\libpng.1.6.28\build\native\libpng.targets" Condition="Exists('x')" />
  </ImportGroup>
</Project>
`

func keys[T interface{ key() string }](items []T) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.key()
	}
	return out
}

func (p *Project) key() string { return p.Key }
func (p *Package) key() string { return p.Key }

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

func TestAddProjectCSharp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	appPath := writeFile(t, dir, "App/App.csproj", appProj)
	writeFile(t, dir, "Core/Core.csproj", coreProj)

	r := NewRegistry("")
	app := r.AddProject(appPath)
	if app.Err != nil {
		t.Fatalf("Err = %v", app.Err)
	}
	if app.Name != "App" || app.Key != "app" || !app.IsExe || app.Kind() != KindExe {
		t.Errorf("app = %+v, kind %s", app, app.Kind())
	}

	if got, want := keys(app.References()), []string{"core", "missing"}; !reflect.DeepEqual(got, want) {
		t.Errorf("References = %v, want %v", got, want)
	}
	if got, want := keys(app.Packages()), []string{"microsoft.extensions.logging", "newtonsoft.json", "tss.net"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Packages = %v, want %v", got, want)
	}

	missing := r.Lookup("missing")
	if missing == nil || missing.Err == nil || missing.Kind() != KindFail {
		t.Errorf("missing project = %+v", missing)
	}

	// The cycle back to App resolves to the same project.
	core := r.Lookup("core")
	if refs := core.References(); len(refs) != 1 || refs[0] != app {
		t.Errorf("core references = %v", keys(refs))
	}
	if core.Kind() != KindLib {
		t.Errorf("core kind = %s, want %s until sources are found", core.Kind(), KindLib)
	}
	core.HasSources = true
	if core.Kind() != KindProject {
		t.Errorf("core kind = %s, want %s", core.Kind(), KindProject)
	}

	if again := r.AddProject(filepath.Join(dir, "Other", "APP.csproj")); again != app {
		t.Error("AddProject should return the known project for the same name")
	}

	kinds := map[string]string{}
	for _, pkg := range r.Packages() {
		kinds[pkg.Name] = pkg.Kind()
	}
	want := map[string]string{
		"Microsoft.Extensions.Logging": KindSystem,
		"Newtonsoft.Json":              KindPackage,
		"TSS.Net":                      KindPackage,
	}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("package kinds = %v, want %v", kinds, want)
	}
}

func TestAddProjectNative(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "Native/Native.vcxproj", nativeProj)
	writeFile(t, dir, "Native/Util.vcxproj", "<Project/>")

	r := NewRegistry("")
	p := r.AddProject(path)
	if p.Err != nil {
		t.Fatalf("Err = %v", p.Err)
	}
	if p.IsExe {
		t.Error("a static library is not an exe")
	}
	if got, want := keys(p.References()), []string{"util"}; !reflect.DeepEqual(got, want) {
		t.Errorf("References = %v, want %v", got, want)
	}
	if got, want := keys(p.Packages()), []string{"libpng", "zlib"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Packages = %v, want %v", got, want)
	}
}

func TestExeConfiguration(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "Tool/Tool.vcxproj",
		"<Project><PropertyGroup><ConfigurationType>Application</ConfigurationType></PropertyGroup></Project>")

	p := NewRegistry("").AddProject(path)
	if !p.IsExe {
		t.Error("an Application configuration is an exe")
	}
}

func TestTestProjects(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "App.Tests/App.Tests.csproj",
		"<Project><PropertyGroup><OutputType>Exe</OutputType></PropertyGroup></Project>")

	p := NewRegistry("").AddProject(path)
	if !p.IsTest || p.Kind() != KindTest {
		t.Errorf("IsTest = %v, kind = %s", p.IsTest, p.Kind())
	}
}

func TestBadProjectFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "Bad/Bad.csproj", "<Project><ItemGroup></Project>")

	p := NewRegistry("").AddProject(path)
	if p.Err == nil || p.Kind() != KindFail {
		t.Errorf("Err = %v, kind = %s", p.Err, p.Kind())
	}
}

func TestFixupPackages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	webPath := writeFile(t, dir, "Web/Web.csproj",
		`<Project><ItemGroup><PackageReference Include="Shared" /><PackageReference Include="Dapper" /></ItemGroup></Project>`)
	sharedPath := writeFile(t, dir, "Shared/Shared.csproj", "<Project/>")

	r := NewRegistry("")
	web := r.AddProject(webPath)
	if got := keys(web.Packages()); !reflect.DeepEqual(got, []string{"dapper", "shared"}) {
		t.Fatalf("Packages before fixup = %v", got)
	}

	shared := r.AddProject(sharedPath)
	r.FixupPackages()

	if got := keys(web.Packages()); !reflect.DeepEqual(got, []string{"dapper"}) {
		t.Errorf("Packages after fixup = %v", got)
	}
	if refs := web.References(); len(refs) != 1 || refs[0] != shared {
		t.Errorf("References after fixup = %v", keys(refs))
	}
	if got := keys(r.Packages()); !reflect.DeepEqual(got, []string{"dapper"}) {
		t.Errorf("registry packages = %v", got)
	}
}

func TestAddUse(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	appPath := writeFile(t, dir, "App/App.csproj", appProj)
	writeFile(t, dir, "Core/Core.csproj", coreProj)
	utilPath := writeFile(t, dir, "Util/Util.csproj", "<Project/>")

	r := NewRegistry("")
	app := r.AddProject(appPath)
	util := r.AddProject(utilPath)

	r.AddUse(app, r.Lookup("core"))
	r.AddUse(app, app)
	r.AddUse(app, nil)
	r.AddUse(app, util)

	if got := keys(app.Uses()); !reflect.DeepEqual(got, []string{"util"}) {
		t.Errorf("Uses = %v, want [util]", got)
	}
}

func TestShowName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		unprefix string
		in       string
		want     string
	}{
		{"", "App.Core", "App_Core"},
		{"", `lib\zlib-ng`, "lib_zlib_ng"},
		{"FourTe_", "FourTe.Core-Lib", "Core_Lib"},
		{"FourTe_", "Other.Lib", "Other_Lib"},
	}
	for _, tt := range tests {
		if got := NewRegistry(tt.unprefix).ShowName(tt.in); got != tt.want {
			t.Errorf("ShowName(%q) with unprefix %q = %q, want %q", tt.in, tt.unprefix, got, tt.want)
		}
	}
}

func TestIgnored(t *testing.T) {
	t.Parallel()

	r := NewRegistry("")
	for name, want := range map[string]bool{
		"kernel32.lib": true,
		"Kernel32":     true,
		"WS2_32.lib":   true,
		"":             true,
		"zlib":         false,
		"Newtonsoft":   false,
	} {
		if got := r.Ignored(name); got != want {
			t.Errorf("Ignored(%q) = %v, want %v", name, got, want)
		}
	}
	if r.AddPackage("user32") != nil {
		t.Error("AddPackage should drop ignored libraries")
	}
}
