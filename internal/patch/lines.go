package patch

import "strings"

// Newline is the line terminator used whenever lines are rejoined.
const Newline = "\n"

// NormalizeNewlines rewrites every CRLF terminator as LF.
func NormalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// SplitLines splits content on LF and CRLF terminators. Content ending in a
// terminator yields a trailing empty element, so JoinLines(SplitLines(s)) == s
// for any s without CRLF.
func SplitLines(content string) []string {
	return strings.Split(NormalizeNewlines(content), "\n")
}

// JoinLines joins lines with Newline.
func JoinLines(lines []string) string {
	return strings.Join(lines, Newline)
}
