package types

// TruncateRunes cuts s to at most n runes. n <= 0 means no limit.
func TruncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}

	i := 0

	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}

	return s
}
