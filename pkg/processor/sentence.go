package processor

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// sentenceSplitter packs whole sentences into chunks of at most size, as
// measured by length. Consecutive chunks share a tail of whole words no
// longer than overlap.
type sentenceSplitter struct {
	size    int
	overlap int
	length  func(string) int
}

func (s sentenceSplitter) SplitText(text string) ([]string, error) {
	var chunks []string
	current := ""

	for _, sentence := range splitIntoSentences(text) {
		for _, piece := range s.fit(sentence) {
			if current != "" && s.length(current+" "+piece) > s.size {
				chunks = append(chunks, current)

				current = ""
				if tail := s.overlapTail(chunks[len(chunks)-1]); tail != "" && s.length(tail+" "+piece) <= s.size {
					current = tail
				}
			}

			if current != "" {
				current += " "
			}
			current += piece
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	return chunks, nil
}

// fit breaks a sentence longer than the chunk size on word boundaries, and
// words longer than the chunk size on rune boundaries.
func (s sentenceSplitter) fit(sentence string) []string {
	if s.length(sentence) <= s.size {
		return []string{sentence}
	}

	var pieces []string
	current := ""
	for _, word := range strings.Fields(sentence) {
		if s.length(word) > s.size {
			if current != "" {
				pieces = append(pieces, current)
				current = ""
			}
			pieces = append(pieces, s.cutWord(word)...)
			continue
		}
		if current != "" && s.length(current+" "+word) > s.size {
			pieces = append(pieces, current)
			current = ""
		}
		if current != "" {
			current += " "
		}
		current += word
	}
	if current != "" {
		pieces = append(pieces, current)
	}
	return pieces
}

// cutWord splits word into the longest rune prefixes that fit the chunk size.
// Every piece holds at least one rune.
func (s sentenceSplitter) cutWord(word string) []string {
	var pieces []string
	runes := []rune(word)
	for len(runes) > 0 {
		n := sort.Search(len(runes), func(i int) bool {
			return s.length(string(runes[:i+1])) > s.size
		})
		if n == 0 {
			n = 1
		}
		pieces = append(pieces, string(runes[:n]))
		runes = runes[n:]
	}
	return pieces
}

// overlapTail returns the longest run of trailing words of chunk no longer
// than overlap. It is empty when the whole chunk would fit.
func (s sentenceSplitter) overlapTail(chunk string) string {
	if s.overlap <= 0 || s.length(chunk) <= s.overlap {
		return ""
	}
	words := strings.Fields(chunk)
	start := len(words)
	for start > 0 && s.length(strings.Join(words[start-1:], " ")) <= s.overlap {
		start--
	}
	return strings.Join(words[start:], " ")
}

// splitIntoSentences treats blank lines and terminal punctuation followed by
// whitespace as sentence boundaries.
func splitIntoSentences(text string) []string {
	var sentences []string

	for _, para := range strings.Split(text, "\n\n") {
		var current []string
		for _, word := range strings.Fields(para) {
			current = append(current, word)
			if endsSentence(word) {
				sentences = append(sentences, strings.Join(current, " "))
				current = nil
			}
		}
		if len(current) > 0 {
			sentences = append(sentences, strings.Join(current, " "))
		}
	}

	return sentences
}

func endsSentence(word string) bool {
	word = strings.TrimRight(word, `"')]`)
	if word == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(word)
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
