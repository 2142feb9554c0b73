package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/studynotes/internal/noteservice"
)

// UploadRulesDoc renders the upload rules as Markdown for LLM consumers.
func UploadRulesDoc() string {
	r := noteservice.UploadRules()

	var b strings.Builder
	b.WriteString("# Study Notes Upload Rules\n\n")
	fmt.Fprintf(&b, "Files up to %d MB are accepted. Larger files are rejected before anything is stored.\n\n", r.MaxBytes>>20)

	b.WriteString("## Accepted extensions\n\n")
	for _, ext := range r.Extensions {
		fmt.Fprintf(&b, "- `%s`\n", ext)
	}

	b.WriteString("\n## Accepted content types\n\n")
	for _, mt := range r.MIMETypes {
		fmt.Fprintf(&b, "- `%s`\n", mt)
	}

	b.WriteString(`
## Fields

1. **title** is required. It becomes the note's file_name and is what search and suggestions match.
2. **description** is optional and defaults to the title.
3. **tags** is a comma separated list. Elements are trimmed and empty ones dropped:
   ` + "`a, b ,c`" + ` becomes ` + "`[\"a\",\"b\",\"c\"]`" + `.
4. The declared content type must match the extension. ` + "`application/octet-stream`" + ` is
   replaced by the extension's type.

## Search

Title matching is a case-insensitive substring match. With ` + "`sort_field=relevance`" + `
exact titles come first, then titles starting with the term, then titles containing it.
A date range applies only when both bounds are valid dates.
`)
	return b.String()
}
