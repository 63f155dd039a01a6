package permit

import "strings"

// Normalize converts full-width digits (U+FF10..U+FF19) to their ASCII
// counterparts. Every other rune is left untouched.
func Normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '０' && r <= '９' {
			return '0' + (r - '０')
		}
		return r
	}, s)
}
