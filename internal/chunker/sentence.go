package chunker

import (
	"unicode"
	"unicode/utf8"
)

// sentence is a sentence with its byte offsets in the source text.
type sentence struct {
	start int
	end   int
	text  string
}

// splitSentences splits text into sentences, preserving byte offsets.
// A sentence ends at '.', '!' or '?' followed by whitespace, or at a
// blank line. Offsets cover the text exactly: each sentence's span ends
// where the next begins.
func splitSentences(text string) []sentence {
	if text == "" {
		return nil
	}

	var sentences []sentence
	start := 0

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])

		switch {
		case r == '.' || r == '!' || r == '?':
			// Terminator ends the sentence when whitespace follows
			next := i + size
			if next >= len(text) {
				i = next
				continue
			}
			nr, _ := utf8.DecodeRuneInString(text[next:])
			if unicode.IsSpace(nr) {
				end := consumeTrailingSpace(text, next)
				sentences = append(sentences, sentence{start: start, end: end, text: text[start:end]})
				start = end
				i = end
				continue
			}
			i = next

		case r == '\n':
			// Blank line ends the sentence even without a terminator
			next := i + size
			if next < len(text) && text[next] == '\n' {
				end := consumeTrailingSpace(text, next)
				sentences = append(sentences, sentence{start: start, end: end, text: text[start:end]})
				start = end
				i = end
				continue
			}
			i = next

		default:
			i += size
		}
	}

	if start < len(text) {
		sentences = append(sentences, sentence{start: start, end: len(text), text: text[start:]})
	}

	return sentences
}

// consumeTrailingSpace advances past whitespace so the next sentence
// starts at its first non-space byte.
func consumeTrailingSpace(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}
