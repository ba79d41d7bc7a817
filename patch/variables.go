package patch

import (
	"regexp"
	"strconv"
)

// assignmentPattern matches a real assignment to key: a statement such
// as "var key = value" or "obj.key = value" that starts a line or follows
// ";", "{" or "}", or an object-literal entry "key: value" that starts a
// line or follows "{" or ",". Comparisons ("==", "===") and ternary
// branches ("a ? key : b") do not match. Group 1 is everything up to the
// value, group 2 the value: a double- or single-quoted string, or a bare
// token that does not start with "=" or ">".
func assignmentPattern(key string) *regexp.Regexp {
	k := regexp.QuoteMeta(key)
	stmt := `(?:^|[;{}])[ \t]*(?:(?:var|let|const)\s+)?(?:[\w$]+\.)*` + k + `[ \t]*=`
	entry := `(?:^|[{,])\s*["']?` + k + `["']?[ \t]*:`
	value := `"[^"\n]*"|'[^'\n]*'|[^\s=>,;}][^\s,;}]*`
	return regexp.MustCompile(`(?m)((?:` + stmt + `|` + entry + `)[ \t]*)(` + value + `)`)
}

// setAssignment replaces the value of every assignment to key using
// render, which receives the previous raw value. It returns the new
// content and the number of assignments found.
func setAssignment(content, key string, render func(prev string) string) (string, int) {
	re := assignmentPattern(key)
	n := 0
	out := re.ReplaceAllStringFunc(content, func(match string) string {
		sub := re.FindStringSubmatch(match)
		n++
		return sub[1] + render(sub[2])
	})
	return out, n
}

// RewriteVariables sets the debug flag and the version string in a
// variables script. The debug value is written as a bare boolean. The
// version is written as a string literal that keeps the quote character
// of the previous value, defaulting to double quotes.
func RewriteVariables(content, debugKey string, debug bool, versionKey, version string) (out string, debugHits, versionHits int) {
	out, debugHits = setAssignment(content, debugKey, func(string) string {
		return strconv.FormatBool(debug)
	})
	out, versionHits = setAssignment(out, versionKey, func(prev string) string {
		q := `"`
		if len(prev) > 0 && prev[0] == '\'' {
			q = `'`
		}
		return q + version + q
	})
	return out, debugHits, versionHits
}
