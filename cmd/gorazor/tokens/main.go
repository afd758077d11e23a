package tokens

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gorazor/pkg/config"
	"github.com/walteh/gorazor/pkg/csharp"
	"github.com/walteh/gorazor/pkg/mapping"
	"github.com/walteh/gorazor/pkg/position"
	"github.com/walteh/gorazor/pkg/semtok"
)

// Handler prints the semantic tokens of one Razor file. C# is classified lexically since no
// compiler is attached.
type Handler struct {
	fs              afero.Fs
	file            string
	colorBackground bool
	out             io.Writer
}

func NewTokensCommand() *cobra.Command {
	me := &Handler{fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "tokens [file]",
		Short: "print the semantic tokens of a razor file",
	}

	cmd.Flags().BoolVar(&me.colorBackground, "color-background", false, "mark C# tokens with the razorCode modifier")
	cmd.Args = cobra.ExactArgs(1)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.file = args[0]
		me.out = cmd.OutOrStdout()
		return me.Run(cmd.Context())
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context) error {
	path, err := filepath.Abs(me.file)
	if err != nil {
		return errors.Errorf("resolving %s: %w", me.file, err)
	}
	text, err := afero.ReadFile(me.fs, path)
	if err != nil {
		return errors.Errorf("reading %s: %w", path, err)
	}

	cfg, err := config.Load(ctx, me.fs, filepath.Dir(path))
	if err != nil {
		return err
	}

	doc := cfg.Engine(ctx, me.fs, nil).Process(ctx, position.NewDocument(path, string(text)), 0)

	legend := semtok.DefaultLegend()
	provider := semtok.NewProvider(legend, mapping.NewService(), csharp.NewLexical(legend))

	all := doc.Source.RangeOf(0, doc.Source.Length())
	result, err := provider.GetSemanticTokens(ctx, doc, all, me.colorBackground || cfg.ColorBackground)
	if err != nil {
		return errors.Errorf("classifying %s: %w", path, err)
	}
	if result == nil {
		return nil
	}

	tw := tabwriter.NewWriter(me.out, 0, 4, 2, ' ', 0)
	for _, tok := range semtok.Decode(result.Data) {
		start, _ := doc.Source.AbsoluteIndex(position.Place{Line: tok.Line, Character: tok.Character})
		end, _ := doc.Source.AbsoluteIndex(position.Place{Line: tok.Line, Character: tok.Character + tok.Length})
		fmt.Fprintf(tw, "%d:%d\t%s\t%s\t%q\n",
			tok.Line+1, tok.Character+1,
			legend.TypeName(tok.Type),
			strings.Join(legend.ModifierNames(tok.Modifiers), ","),
			doc.Source.Slice(position.NewTextSpanFromBounds(start, end)))
	}
	return tw.Flush()
}
