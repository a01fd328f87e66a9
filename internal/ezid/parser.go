// Package ezid implements the CDL EZID text protocol: parsing of the
// line-oriented "key: value" response bodies and ANVL encoding of request
// metadata.
package ezid

import (
	"strings"

	"github.com/systmms/pidops/pkg/identifier"
)

// SuccessKey is the record key EZID uses to mark a successful response.
const SuccessKey = "success"

// Parse converts a raw EZID response body into a Result.
//
// Each non-empty line is split on its first colon. Lines without a colon
// are ignored and later duplicates replace earlier ones. The body is a
// success only when it has a record whose key is exactly "success";
// otherwise the whole body is returned as the failure message.
func Parse(body string) identifier.Result {
	records := Records(body)
	if _, ok := records[SuccessKey]; ok {
		return identifier.Success(records)
	}
	return identifier.Failure(body)
}

// Records splits a response body into its key/value records. Lines end at
// "\r\n", "\n" or a lone "\r".
func Records(body string) map[string]string {
	records := make(map[string]string)
	for rest := body; rest != ""; {
		var line string
		line, _, rest = nextLine(rest)
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		records[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return records
}

// MapValues rewrites the value part of every record with fn and returns the
// body with its keys, separators and line breaks unchanged. Lines without a
// colon are passed to fn whole.
func MapValues(body string, fn func(string) string) string {
	var b strings.Builder
	b.Grow(len(body))
	for rest := body; rest != ""; {
		var line, brk string
		line, brk, rest = nextLine(rest)
		if key, value, found := strings.Cut(line, ":"); found {
			b.WriteString(key)
			b.WriteByte(':')
			b.WriteString(fn(value))
		} else {
			b.WriteString(fn(line))
		}
		b.WriteString(brk)
	}
	return b.String()
}

// nextLine returns the first line of s, the line break that ended it and
// the remainder.
func nextLine(s string) (line, brk, rest string) {
	i := strings.IndexAny(s, "\r\n")
	if i < 0 {
		return s, "", ""
	}
	n := 1
	if s[i] == '\r' && i+1 < len(s) && s[i+1] == '\n' {
		n = 2
	}
	return s[:i], s[i : i+n], s[i+n:]
}
