package generate

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gorazor/pkg/config"
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor"
	"github.com/walteh/gorazor/pkg/razor/diagnostics"
)

// GeneratedSuffix is appended to the Razor file name for the C# it produces.
const GeneratedSuffix = ".g.cs"

type Handler struct {
	fs      afero.Fs
	root    string
	globs   []string
	runtime bool
	check   bool
	out     io.Writer
}

func NewGenerateCommand() *cobra.Command {
	me := &Handler{fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "generate [project-dir]",
		Short: "generate C# for every razor file under a project",
	}

	cmd.Flags().StringSliceVar(&me.globs, "glob", []string{"**/*.cshtml", "**/*.razor"}, "razor files to generate, relative to the project")
	cmd.Flags().BoolVar(&me.runtime, "runtime", false, "generate runtime code instead of design time code")
	cmd.Flags().BoolVar(&me.check, "check", false, "only report diagnostics, write nothing")
	cmd.Args = cobra.ExactArgs(1)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.root = args[0]
		me.out = cmd.OutOrStdout()
		return me.Run(cmd.Context())
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context) error {
	root, err := filepath.Abs(me.root)
	if err != nil {
		return errors.Errorf("resolving %s: %w", me.root, err)
	}

	cfg, err := config.Load(ctx, me.fs, root)
	if err != nil {
		return err
	}
	if me.runtime {
		cfg.DesignTime = false
	}
	engine := cfg.Engine(ctx, me.fs, nil)

	files, err := me.find(root)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().Int("files", len(files)).Str("root", root).Msg("generating razor files")

	var result *multierror.Error
	for _, file := range files {
		if err := me.generate(ctx, engine, file); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (me *Handler) find(root string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	for _, glob := range me.globs {
		if !doublestar.ValidatePattern(glob) {
			return nil, errors.Errorf("invalid glob %q", glob)
		}
		matches, err := doublestar.Glob(afero.NewIOFS(afero.NewBasePathFs(me.fs, root)), glob)
		if err != nil {
			return nil, errors.Errorf("matching %s: %w", glob, err)
		}
		for _, m := range matches {
			p := filepath.Join(root, filepath.FromSlash(m))
			if !seen[p] && razor.IsRazorPath(p) {
				seen[p] = true
				files = append(files, p)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// generate writes the C# for one file and reports its diagnostics. Files with errors are still
// written so the output matches what the editor sees.
func (me *Handler) generate(ctx context.Context, engine *razor.Engine, path string) error {
	text, err := afero.ReadFile(me.fs, path)
	if err != nil {
		return errors.Errorf("reading %s: %w", path, err)
	}

	src := position.NewDocument(path, string(text))
	doc := engine.Process(ctx, src, 0)

	errs := 0
	for _, d := range doc.Diagnostics {
		if d.Descriptor.Severity == diagnostics.SeverityError {
			errs++
		}
		fmt.Fprintln(me.out, Format(d))
	}

	if !me.check {
		if err := afero.WriteFile(me.fs, path+GeneratedSuffix, []byte(doc.CSharp.Text()), 0o644); err != nil {
			return errors.Errorf("writing %s: %w", path+GeneratedSuffix, err)
		}
	}

	if errs > 0 {
		return errors.Errorf("%s: %d error(s)", path, errs)
	}
	return nil
}

// Format renders a diagnostic the way compilers do: path:line:column: severity id: message.
func Format(d diagnostics.Diagnostic) string {
	sev := "error"
	if d.Descriptor.Severity == diagnostics.SeverityWarning {
		sev = "warning"
	}
	msg := strings.ReplaceAll(d.Message(), "\n", " ")
	return fmt.Sprintf("%s:%d:%d: %s %s: %s", d.Span.FilePath, d.Span.LineIndex+1, d.Span.CharacterIndex+1, sev, d.ID(), msg)
}
