package utils

// Truncate shortens s to maxLen characters, appending an ellipsis when it
// was cut. Counts runes, not bytes, so multi-byte text truncates cleanly.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
