package config

import (
	"os"
	"path"
	"strconv"

	"github.com/editorconfig/editorconfig-core-go/v2"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// Indent is how the generated C# is indented.
type Indent struct {
	Size    int
	UseTabs bool
}

func DefaultIndent() Indent {
	return Indent{Size: 4}
}

// LoadIndent reads root/.editorconfig and returns the indentation for file, a path relative to
// root. Only the root .editorconfig is consulted.
func LoadIndent(fs afero.Fs, root string, file string) (Indent, error) {
	f, err := fs.Open(path.Join(root, ".editorconfig"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultIndent(), nil
		}
		return DefaultIndent(), errors.Errorf("opening .editorconfig: %w", err)
	}
	defer f.Close()

	ec, err := editorconfig.Parse(f)
	if err != nil {
		return DefaultIndent(), errors.Errorf("parsing .editorconfig: %w", err)
	}
	def, err := ec.GetDefinitionForFilename(file)
	if err != nil {
		return DefaultIndent(), errors.Errorf("matching .editorconfig for %s: %w", file, err)
	}

	indent := DefaultIndent()
	if def.IndentStyle == editorconfig.IndentStyleTab {
		indent.UseTabs = true
	}
	switch {
	case def.IndentSize == "tab" && def.TabWidth > 0:
		indent.Size = def.TabWidth
	case def.IndentSize != "":
		if n, err := strconv.Atoi(def.IndentSize); err == nil && n > 0 {
			indent.Size = n
		}
	case def.TabWidth > 0:
		indent.Size = def.TabWidth
	}
	return indent, nil
}
