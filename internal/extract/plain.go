package extract

import (
	"strings"
	"unicode/utf8"
)

const byteOrderMark = "\ufeff"

// extractPlain returns content as a string with a leading byte order mark removed and
// Windows line endings converted. Invalid UTF-8 sequences become the replacement character.
func extractPlain(content []byte) (string, error) {
	s := string(content)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\ufffd")
	}
	s = strings.TrimPrefix(s, byteOrderMark)
	return strings.ReplaceAll(s, "\r\n", "\n"), nil
}
