package diff

import (
	"strings"

	"github.com/k0kubun/pp/v3"
	"github.com/kylelemons/godebug/diff"
)

func DiffExportedOnly[T any](want T, got T) string {
	printer := pp.New()
	printer.SetExportedOnly(true)
	printer.SetColoringEnabled(false)
	return render(diff.Diff(printer.Sprint(got), printer.Sprint(want)))
}

// DiffText compares two generated documents line by line.
func DiffText(want string, got string) string {
	return render(diff.Diff(got, want))
}

func render(d string) string {
	if d == "" {
		return ""
	}
	str := "\n\n"
	str += "to convert ACTUAL ⏩️ EXPECTED:\n\n"
	str += "add:    ➕\n"
	str += "remove: ➖\n"
	str += "\n"
	str += strings.ReplaceAll(strings.ReplaceAll(d, "\n-", "\n➖"), "\n+", "\n➕")

	return str
}
