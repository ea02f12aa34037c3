package util

import (
	"fmt"
	"unicode/utf8"
)

// DefaultLogMaxLen caps upstream response bodies echoed into the log (512 bytes).
const DefaultLogMaxLen = 512

// TruncateLog shortens s to at most maxLen bytes and notes the original
// size. The cut never splits a UTF-8 sequence.
func TruncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := max(maxLen, 0)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return fmt.Sprintf("%s... [truncated, %d bytes total]", s[:cut], len(s))
}

// TruncateBytes truncates an HTTP body with DefaultLogMaxLen.
func TruncateBytes(b []byte) string {
	return TruncateLog(string(b), DefaultLogMaxLen)
}

// MaskSecret keeps only the tail of a token so log lines stay correlatable.
func MaskSecret(s string) string {
	if len(s) < 20 {
		return "***"
	}
	return "..." + s[len(s)-8:]
}
