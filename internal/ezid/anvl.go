package ezid

import (
	"sort"
	"strings"
)

var (
	valueEscaper = strings.NewReplacer("%", "%25", "\n", "%0A", "\r", "%0D")
	keyEscaper   = strings.NewReplacer("%", "%25", "\n", "%0A", "\r", "%0D", ":", "%3A")
)

// Encode serializes metadata as an ANVL request body. Keys are written in
// sorted order so that identical metadata always yields identical bodies.
func Encode(metadata map[string]string) string {
	if len(metadata) == 0 {
		return ""
	}

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(keyEscaper.Replace(k))
		b.WriteString(": ")
		b.WriteString(valueEscaper.Replace(metadata[k]))
		b.WriteString("\n")
	}
	return b.String()
}
