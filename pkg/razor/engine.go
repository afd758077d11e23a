package razor

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/walteh/gorazor/pkg/debug"
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/razor/codegen"
	"github.com/walteh/gorazor/pkg/razor/diagnostics"
	"github.com/walteh/gorazor/pkg/razor/sourcemap"
	"github.com/walteh/gorazor/pkg/razor/syntax"
	"github.com/walteh/gorazor/pkg/razor/taghelper"
)

// CodeDocument is everything known about one version of one Razor document. A new CodeDocument
// replaces the previous one on every change; none of its parts are modified after creation.
type CodeDocument struct {
	Source      *position.Document
	Tree        *syntax.Tree
	CSharp      *codegen.CSharpDocument
	HTML        *position.Document
	Diagnostics []diagnostics.Diagnostic
	Version     int32
	FileKind    syntax.FileKind

	// Unsupported documents are parsed but their project is not ready, so no mapping is trusted.
	Unsupported bool
}

func (d *CodeDocument) Mappings() *sourcemap.Table {
	if d == nil || d.CSharp == nil {
		return nil
	}
	return d.CSharp.Mappings
}

type EngineOptions struct {
	DesignTime     bool
	Nullable       bool
	RootNamespace  string
	DefaultImports []string
	IndentSize     int
	UseTabs        bool
	Binder         *taghelper.Binder
}

// Engine runs parse, tag helper binding, lowering and emission. It holds no per-document state
// and is safe for concurrent use.
type Engine struct {
	opts EngineOptions
}

func NewEngine(opts EngineOptions) *Engine {
	return &Engine{opts: opts}
}

func (e *Engine) Options() EngineOptions {
	return e.opts
}

// WithBinder returns a copy of the engine using binder for tag helper matching.
func (e *Engine) WithBinder(binder *taghelper.Binder) *Engine {
	opts := e.opts
	opts.Binder = binder
	return &Engine{opts: opts}
}

// IsRazorPath reports whether path names a document the engine can process.
func IsRazorPath(path string) bool {
	return strings.HasSuffix(path, ".cshtml") || strings.HasSuffix(path, ".razor")
}

// Process produces the CodeDocument for one version of source.
func (e *Engine) Process(ctx context.Context, source *position.Document, version int32) *CodeDocument {
	start := time.Now()
	kind := syntax.FileKindFromPath(source.FilePath)

	tree := syntax.Parse(source, syntax.Options{FileKind: kind, Binder: e.opts.Binder})
	csharp := codegen.Generate(tree, codegen.Options{
		DesignTime:     e.opts.DesignTime,
		Nullable:       e.opts.Nullable,
		RootNamespace:  e.opts.RootNamespace,
		DefaultImports: e.opts.DefaultImports,
		IndentSize:     e.opts.IndentSize,
		UseTabs:        e.opts.UseTabs,
	})

	doc := &CodeDocument{
		Source:      source,
		Tree:        tree,
		CSharp:      csharp,
		HTML:        codegen.ProjectHTML(tree),
		Diagnostics: csharp.Diagnostics,
		Version:     version,
		FileKind:    kind,
	}

	for _, m := range doc.Mappings().Mappings() {
		debug.Assert(ctx, m.OriginalSpan.End() <= source.Length() && m.GeneratedSpan.End() <= csharp.Length(),
			"mapping %s outside of %s", m, source.FilePath)
	}

	zerolog.Ctx(ctx).Debug().
		Str("path", source.FilePath).
		Int32("version", version).
		Int("mappings", doc.Mappings().Len()).
		Int("diagnostics", len(doc.Diagnostics)).
		Dur("took", time.Since(start)).
		Msg("processed razor document")

	return doc
}

// Unsupported returns a CodeDocument that carries only the parse of source, for documents whose
// project configuration is not available yet.
func (e *Engine) Unsupported(ctx context.Context, source *position.Document, version int32) *CodeDocument {
	doc := e.Process(ctx, source, version)
	doc.Unsupported = true
	return doc
}
