package hover

import (
	"fmt"
	"strings"

	"github.com/walteh/gorazor/pkg/razor/syntax"
	"github.com/walteh/gorazor/pkg/razor/taghelper"
)

func FormatTagHelpers(descriptors []*taghelper.TagHelperDescriptor) []string {
	out := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		var sb strings.Builder
		sb.WriteString("### Tag Helper\n\n")
		sb.WriteString(fmt.Sprintf("**%s**\n\n", d.Name))
		sb.WriteString("```csharp\n" + d.TypeName + "\n```")
		writeDocumentation(&sb, d.Documentation)
		out = append(out, sb.String())
	}
	return out
}

func FormatBoundAttribute(d *taghelper.TagHelperDescriptor, attr *taghelper.BoundAttributeDescriptor) string {
	var sb strings.Builder
	sb.WriteString("### Tag Helper Attribute\n\n")
	sb.WriteString("```csharp\n")
	sb.WriteString(fmt.Sprintf("%s %s.%s", attr.TypeName, d.TypeName, attr.PropertyName))
	sb.WriteString("\n```")
	writeDocumentation(&sb, attr.Documentation)
	return sb.String()
}

func FormatDirective(d *syntax.DirectiveDescriptor) string {
	var sb strings.Builder
	sb.WriteString("### Directive\n\n")
	sb.WriteString("```razor\n@" + d.Name)
	for _, tok := range d.Tokens {
		sb.WriteString(" <" + tok.Description + ">")
	}
	sb.WriteString("\n```")
	writeDocumentation(&sb, d.Description)
	return sb.String()
}

func writeDocumentation(sb *strings.Builder, doc string) {
	if doc = strings.TrimSpace(doc); doc != "" {
		sb.WriteString("\n\n" + doc)
	}
}
