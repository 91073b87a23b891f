package tts

import (
	"bytes"
	"html"
	"strings"
	"unicode"
)

// splitTextByByteLength breaks text into parts no longer than byteLength,
// preferring to split on a space so words stay intact.
func splitTextByByteLength(text string, byteLength int) [][]byte {
	var result [][]byte
	textBytes := []byte(text)

	if byteLength > 0 {
		for len(textBytes) > byteLength {
			splitAt := bytes.LastIndexByte(textBytes[:byteLength], ' ')
			if splitAt == -1 || splitAt == 0 {
				splitAt = byteLength
			} else {
				splitAt++
			}

			trimmed := bytes.TrimSpace(textBytes[:splitAt])
			if len(trimmed) > 0 {
				result = append(result, trimmed)
			}
			textBytes = textBytes[splitAt:]
		}
	}

	trimmed := bytes.TrimSpace(textBytes)
	if len(trimmed) > 0 {
		result = append(result, trimmed)
	}

	return result
}

// escapeSSML escapes characters that would break the SSML document.
func escapeSSML(text string) string {
	return html.EscapeString(text)
}

// removeIncompatibleCharacters replaces control characters the service
// rejects with spaces.
func removeIncompatibleCharacters(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return ' '
		}
		return r
	}, text)
}
