/*
Package config loads the per-project settings of the language server.

	gorazor.yaml / gorazor.json      GORAZOR_* environment
	            |                             |
	            +-------------+---------------+
	                          |
	                        viper
	                          |
	                          v
	                    +-----------+      .editorconfig
	                    |  Config   | <--- indentation
	                    +-----------+
	                          |
	          +---------------+----------------+
	          |                                |
	          v                                v
	  razor.EngineOptions            tag helper manifests
*/
package config

import (
	"context"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gorazor/pkg/editremap"
	"github.com/walteh/gorazor/pkg/razor"
	"github.com/walteh/gorazor/pkg/razor/taghelper"
)

const (
	FileName  = "gorazor"
	EnvPrefix = "GORAZOR"
)

type Config struct {
	RootNamespace      string   `mapstructure:"root_namespace"`
	DesignTime         bool     `mapstructure:"design_time"`
	Nullable           bool     `mapstructure:"nullable"`
	ColorBackground    bool     `mapstructure:"color_background"`
	UsingGroupPolicy   string   `mapstructure:"using_group_policy"`
	DefaultImports     []string `mapstructure:"default_imports"`
	TagHelperManifests []string `mapstructure:"tag_helper_manifests"`
	TagPrefix          string   `mapstructure:"tag_prefix"`

	// Root is the directory the configuration was loaded for.
	Root   string `mapstructure:"-"`
	Indent Indent `mapstructure:"-"`
}

func Default() *Config {
	return &Config{
		RootNamespace:      "Razor",
		DesignTime:         true,
		Nullable:           true,
		UsingGroupPolicy:   editremap.FirstGroup.String(),
		TagHelperManifests: []string{"obj/**/taghelpers*.yaml", "obj/**/taghelpers*.json"},
		Indent:             DefaultIndent(),
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("root_namespace", d.RootNamespace)
	v.SetDefault("design_time", d.DesignTime)
	v.SetDefault("nullable", d.Nullable)
	v.SetDefault("color_background", d.ColorBackground)
	v.SetDefault("using_group_policy", d.UsingGroupPolicy)
	v.SetDefault("tag_helper_manifests", d.TagHelperManifests)
	v.SetDefault("tag_prefix", d.TagPrefix)
}

// Load reads the configuration of the project rooted at root. A missing config file is not an
// error; defaults and the environment still apply.
func Load(ctx context.Context, fs afero.Fs, root string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigName(FileName)
	v.AddConfigPath(root)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Errorf("reading config in %s: %w", root, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Errorf("decoding config: %w", err)
	}
	// an explicit empty list turns the default imports off
	if v.IsSet("default_imports") && cfg.DefaultImports == nil {
		cfg.DefaultImports = []string{}
	}
	cfg.Root = root

	indent, err := LoadIndent(fs, root, "Index.cshtml")
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("ignoring .editorconfig")
		indent = DefaultIndent()
	}
	cfg.Indent = indent

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("root", root).
		Str("config_file", v.ConfigFileUsed()).
		Str("root_namespace", cfg.RootNamespace).
		Str("using_group_policy", cfg.UsingGroupPolicy).
		Strs("manifests", cfg.TagHelperManifests).
		Msg("loaded config")

	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := editremap.ParseGroupPolicy(c.UsingGroupPolicy); err != nil {
		return errors.Errorf("invalid config: %w", err)
	}
	for _, g := range c.TagHelperManifests {
		if !doublestar.ValidatePattern(g) {
			return errors.Errorf("invalid config: bad manifest glob %q", g)
		}
	}
	return nil
}

func (c *Config) GroupPolicy() editremap.GroupPolicy {
	p, _ := editremap.ParseGroupPolicy(c.UsingGroupPolicy)
	return p
}

func (c *Config) EngineOptions(binder *taghelper.Binder) razor.EngineOptions {
	return razor.EngineOptions{
		DesignTime:     c.DesignTime,
		Nullable:       c.Nullable,
		RootNamespace:  c.RootNamespace,
		DefaultImports: c.DefaultImports,
		IndentSize:     c.Indent.Size,
		UseTabs:        c.Indent.UseTabs,
		Binder:         binder,
	}
}

// relative returns p relative to the project root, or false when p is outside it.
func (c *Config) relative(p string) (string, bool) {
	root := strings.TrimSuffix(c.Root, "/")
	if root == "" {
		return strings.TrimPrefix(p, "/"), true
	}
	if !strings.HasPrefix(p, root+"/") {
		return "", false
	}
	return strings.TrimPrefix(p, root+"/"), true
}

// IsManifest reports whether p is a tag helper manifest of this project.
func (c *Config) IsManifest(p string) bool {
	rel, ok := c.relative(p)
	if !ok {
		return false
	}
	for _, g := range c.TagHelperManifests {
		if m, _ := doublestar.Match(strings.TrimPrefix(g, "/"), rel); m {
			return true
		}
	}
	return false
}

// IsConfigFile reports whether p is a file Load reads.
func (c *Config) IsConfigFile(p string) bool {
	rel, ok := c.relative(p)
	if !ok || strings.Contains(rel, "/") {
		return false
	}
	base := path.Base(rel)
	if base == ".editorconfig" {
		return true
	}
	ext := path.Ext(base)
	return strings.TrimSuffix(base, ext) == FileName && ext != ""
}

// Engine builds a razor engine bound to the tag helpers found by the manifest globs. Broken
// manifests are logged; the tag helpers that did load are still used.
func (c *Config) Engine(ctx context.Context, fs afero.Fs, cache *taghelper.Cache) *razor.Engine {
	var (
		descs []*taghelper.TagHelperDescriptor
		err   error
	)
	if cache != nil {
		descs, err = cache.Load(ctx, fs, c.Root, c.TagHelperManifests)
	} else {
		descs, err = taghelper.LoadManifests(ctx, fs, c.Root, c.TagHelperManifests)
	}
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("loading tag helper manifests")
	}

	var binder *taghelper.Binder
	if len(descs) > 0 {
		binder = taghelper.NewBinder(descs, c.TagPrefix)
	}
	return razor.NewEngine(c.EngineOptions(binder))
}
