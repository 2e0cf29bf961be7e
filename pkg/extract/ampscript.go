package extract

import (
	"regexp"
	"strings"
)

// AMPscript lives in %%[ ... ]%% blocks and %%= ... =%% inline expressions.
// Only those regions are scanned so HTML or SSJS with similar function names
// cannot produce false positives.
var (
	ampBlockPattern  = regexp.MustCompile(`(?s)%%\[(.*?)\]%%`)
	ampInlinePattern = regexp.MustCompile(`(?s)%%=(.*?)=%%`)

	ampWritePattern = regexp.MustCompile(`(?i)(Insert|Update|Upsert|Delete)D(?:E|ata)\s*\(\s*["']([^"']+)["']`)
	ampReadPattern  = regexp.MustCompile(`(?i)(?:Lookup(?:OrderedRows|RowsCS|Rows)?|ClaimRow)\s*\(\s*["']([^"']+)["']`)

	// First argument is an AMPscript variable, so the data extension name
	// cannot be recovered statically.
	ampDynamicPattern = regexp.MustCompile(`(?i)(?:Lookup(?:OrderedRows|RowsCS|Rows)?|ClaimRow|(?:Insert|Update|Upsert|Delete)D(?:E|ata))\s*\(\s*@`)
)

// ampRef is one data extension reference found in AMPscript.
type ampRef struct {
	Name      string
	Operation string // insert, update, upsert, delete or read
}

// ampscriptBlocks concatenates the AMPscript regions of mixed content.
func ampscriptBlocks(content string) string {
	var blocks []string
	for _, m := range ampBlockPattern.FindAllStringSubmatch(content, -1) {
		blocks = append(blocks, m[1])
	}
	for _, m := range ampInlinePattern.FindAllStringSubmatch(content, -1) {
		blocks = append(blocks, m[1])
	}
	return strings.Join(blocks, "\n")
}

// ampscriptDERefs statically parses content for data extension reads and
// writes. Only quoted literal names are detected; the second return value
// counts calls whose first argument is a variable and therefore stays
// unresolved.
func ampscriptDERefs(content string) ([]ampRef, int) {
	script := ampscriptBlocks(content)
	if script == "" {
		return nil, 0
	}

	var refs []ampRef
	for _, m := range ampWritePattern.FindAllStringSubmatch(script, -1) {
		refs = append(refs, ampRef{Name: m[2], Operation: strings.ToLower(m[1])})
	}
	for _, m := range ampReadPattern.FindAllStringSubmatch(script, -1) {
		refs = append(refs, ampRef{Name: m[1], Operation: "read"})
	}

	unresolved := len(ampDynamicPattern.FindAllString(script, -1))
	return refs, unresolved
}
