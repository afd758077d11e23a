package taghelper

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Manifest is the on-disk form of a set of tag helpers, YAML or JSON.
type Manifest struct {
	TagHelpers []*TagHelperDescriptor `yaml:"tagHelpers" json:"tagHelpers"`
}

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Errorf("decoding tag helper manifest: %w", err)
	}
	for i, d := range m.TagHelpers {
		if d == nil || d.Name == "" || d.TypeName == "" {
			return nil, errors.Errorf("tag helper %d: name and typeName are required", i)
		}
		if len(d.TagMatchingRules) == 0 {
			return nil, errors.Errorf("tag helper %s: at least one rule is required", d.Name)
		}
	}
	return &m, nil
}

// LoadManifests reads every manifest under root matching one of globs. Broken manifests are reported
// together; descriptors from the readable ones are still returned.
func LoadManifests(ctx context.Context, fs afero.Fs, root string, globs []string) ([]*TagHelperDescriptor, error) {
	base := afero.NewIOFS(afero.NewBasePathFs(fs, root))

	seen := map[string]bool{}
	var files []string
	var errs error
	for _, g := range globs {
		matches, err := doublestar.Glob(base, strings.TrimPrefix(g, "/"))
		if err != nil {
			errs = multierr.Append(errs, errors.Errorf("globbing %q: %w", g, err))
			continue
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)

	byKey := map[string]*TagHelperDescriptor{}
	var out []*TagHelperDescriptor
	for _, f := range files {
		data, err := afero.ReadFile(fs, path.Join(root, f))
		if err != nil {
			errs = multierr.Append(errs, errors.Errorf("reading %s: %w", f, err))
			continue
		}
		m, err := ParseManifest(data)
		if err != nil {
			errs = multierr.Append(errs, errors.Errorf("parsing %s: %w", f, err))
			continue
		}
		for _, d := range m.TagHelpers {
			if prev, ok := byKey[d.Key()]; ok {
				if !prev.Equal(d) {
					zerolog.Ctx(ctx).Warn().Str("tag_helper", d.Key()).Str("file", f).Msg("conflicting tag helper definition ignored")
				}
				continue
			}
			byKey[d.Key()] = d
			out = append(out, d)
		}
	}

	zerolog.Ctx(ctx).Debug().Int("files", len(files)).Int("tag_helpers", len(out)).Str("root", root).Msg("loaded tag helper manifests")

	return out, errs
}

// Cache memoizes manifest loading per project root.
type Cache struct {
	mu      sync.Mutex
	entries map[string][]*TagHelperDescriptor
}

func NewCache() *Cache {
	return &Cache{entries: map[string][]*TagHelperDescriptor{}}
}

func (c *Cache) Load(ctx context.Context, fs afero.Fs, root string, globs []string) ([]*TagHelperDescriptor, error) {
	key := root + "|" + strings.Join(globs, ",")

	c.mu.Lock()
	if d, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return d, nil
	}
	c.mu.Unlock()

	descs, err := LoadManifests(ctx, fs, root, globs)
	if err != nil && len(descs) == 0 {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = descs
	c.mu.Unlock()

	return descs, err
}

// Invalidate drops every cached entry for root.
func (c *Cache) Invalidate(root string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, root+"|") {
			delete(c.entries, k)
		}
	}
}
