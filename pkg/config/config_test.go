package config_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/gorazor/pkg/config"
	"github.com/walteh/gorazor/pkg/editremap"
	"github.com/walteh/gorazor/pkg/razor/taghelper"
)

func TestLoadDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/proj", 0o755))

	cfg, err := config.Load(context.Background(), fs, "/proj")
	require.NoError(t, err)

	want := config.Default()
	want.Root = "/proj"
	assert.Equal(t, want, cfg)
	assert.Nil(t, cfg.DefaultImports)
	assert.Equal(t, editremap.FirstGroup, cfg.GroupPolicy())
}

func TestLoadFileAndEnvironment(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/gorazor.yaml", []byte(`
root_namespace: Contoso.Web
nullable: false
color_background: true
using_group_policy: last
default_imports: []
tag_prefix: th
`), 0o644))
	t.Setenv("GORAZOR_ROOT_NAMESPACE", "Env.Web")

	cfg, err := config.Load(context.Background(), fs, "/proj")
	require.NoError(t, err)

	assert.Equal(t, "Env.Web", cfg.RootNamespace)
	assert.False(t, cfg.Nullable)
	assert.True(t, cfg.ColorBackground)
	assert.Equal(t, editremap.LastGroup, cfg.GroupPolicy())
	assert.NotNil(t, cfg.DefaultImports)
	assert.Empty(t, cfg.DefaultImports)
	assert.Equal(t, "th", cfg.TagPrefix)

	opts := cfg.EngineOptions(nil)
	assert.Equal(t, "Env.Web", opts.RootNamespace)
	assert.NotNil(t, opts.DefaultImports)
}

func TestLoadJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/gorazor.json", []byte(`{"design_time": false, "default_imports": ["System", "Contoso"]}`), 0o644))

	cfg, err := config.Load(context.Background(), fs, "/proj")
	require.NoError(t, err)
	assert.False(t, cfg.DesignTime)
	assert.Equal(t, []string{"System", "Contoso"}, cfg.DefaultImports)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "group policy", yaml: "using_group_policy: middle\n"},
		{name: "manifest glob", yaml: "tag_helper_manifests: ['obj/[a']\n"},
		{name: "broken yaml", yaml: "root_namespace: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/proj/gorazor.yaml", []byte(tt.yaml), 0o644))
			_, err := config.Load(context.Background(), fs, "/proj")
			assert.Error(t, err)
		})
	}
}

func TestLoadIndent(t *testing.T) {
	tests := []struct {
		name string
		ec   string
		want config.Indent
	}{
		{name: "no editorconfig", want: config.Indent{Size: 4}},
		{name: "spaces", ec: "root = true\n\n[*.cshtml]\nindent_style = space\nindent_size = 2\n", want: config.Indent{Size: 2}},
		{name: "tabs", ec: "root = true\n\n[*]\nindent_style = tab\ntab_width = 8\n", want: config.Indent{Size: 8, UseTabs: true}},
		{name: "other files only", ec: "root = true\n\n[*.cs]\nindent_size = 3\n", want: config.Indent{Size: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, fs.MkdirAll("/proj", 0o755))
			if tt.ec != "" {
				require.NoError(t, afero.WriteFile(fs, "/proj/.editorconfig", []byte(tt.ec), 0o644))
			}
			got, err := config.LoadIndent(fs, "/proj", "Pages/Index.cshtml")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathClassification(t *testing.T) {
	cfg := config.Default()
	cfg.Root = "/proj"

	assert.True(t, cfg.IsManifest("/proj/obj/taghelpers.yaml"))
	assert.True(t, cfg.IsManifest("/proj/obj/Debug/net8.0/taghelpers.json"))
	assert.False(t, cfg.IsManifest("/proj/Pages/taghelpers.yaml"))
	assert.False(t, cfg.IsManifest("/other/obj/taghelpers.yaml"))

	assert.True(t, cfg.IsConfigFile("/proj/gorazor.yaml"))
	assert.True(t, cfg.IsConfigFile("/proj/.editorconfig"))
	assert.False(t, cfg.IsConfigFile("/proj/sub/gorazor.yaml"))
	assert.False(t, cfg.IsConfigFile("/proj/gorazor"))
}

func TestEngineBindsManifests(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/obj/taghelpers.yaml", []byte(`
tagHelpers:
  - name: AllTagHelper
    typeName: TestNamespace.AllTagHelper
    assembly: TestAssembly
    rules:
      - tagName: all
`), 0o644))

	cfg, err := config.Load(ctx, fs, "/proj")
	require.NoError(t, err)

	engine := cfg.Engine(ctx, fs, taghelper.NewCache())
	require.NotNil(t, engine.Options().Binder)
	assert.Len(t, engine.Options().Binder.Descriptors(), 1)

	require.NoError(t, fs.Remove("/proj/obj/taghelpers.yaml"))
	bare := cfg.Engine(ctx, fs, nil)
	assert.Nil(t, bare.Options().Binder)
}
