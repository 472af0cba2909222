package utils

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

var (
	sentenceBoundary  = regexp.MustCompile(`[.!?…]+(\s+|$)`)
	paragraphBoundary = regexp.MustCompile(`\n\s*\n`)
	horizontalSpace   = regexp.MustCompile(`[ \t\r\f\v]+`)
	extraNewlines     = regexp.MustCompile(`\n{3,}`)
)

// TextStats are the counts the quality analyzer scores on
type TextStats struct {
	Words      []string
	Sentences  int
	Paragraphs int
}

// WordCount returns the number of words
func (s TextStats) WordCount() int {
	return len(s.Words)
}

// AvgSentenceLength returns words per sentence, 0 for empty text
func (s TextStats) AvgSentenceLength() float64 {
	if s.Sentences == 0 {
		return 0
	}
	return float64(len(s.Words)) / float64(s.Sentences)
}

// StripHTML turns CMS rich text into plain text, keeping block boundaries
// as blank lines. Plain text is returned with whitespace normalized.
func StripHTML(text string) string {
	if !strings.Contains(text, "<") {
		return normalizeWhitespace(text)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return normalizeWhitespace(text)
	}

	doc.Find("script,style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p,div,li,h1,h2,h3,h4,h5,h6,blockquote").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n\n")
	})

	return normalizeWhitespace(doc.Text())
}

func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	joined := strings.Join(lines, "\n")
	return strings.TrimSpace(extraNewlines.ReplaceAllString(joined, "\n\n"))
}

// Analyze splits plain text into words, sentences and paragraphs
func Analyze(text string) TextStats {
	text = strings.TrimSpace(text)
	if text == "" {
		return TextStats{}
	}

	var words []string
	for _, token := range strings.Fields(text) {
		if hasLetterOrDigit(token) {
			words = append(words, token)
		}
	}

	sentences := 0
	for _, part := range sentenceBoundary.Split(text, -1) {
		if hasLetterOrDigit(part) {
			sentences++
		}
	}

	paragraphs := 0
	for _, part := range paragraphBoundary.Split(text, -1) {
		if hasLetterOrDigit(part) {
			paragraphs++
		}
	}

	return TextStats{Words: words, Sentences: sentences, Paragraphs: paragraphs}
}

func hasLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// LowerTR lowercases using Turkish casing rules (İ→i, I→ı)
func LowerTR(value string) string {
	return strings.ToLowerSpecial(unicode.TurkishCase, value)
}

// NormalizeWord strips punctuation around a word and lowercases it
func NormalizeWord(word string) string {
	trimmed := strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return LowerTR(trimmed)
}

// IsShouting reports whether a word of at least three letters is all caps
func IsShouting(word string) bool {
	letters := 0
	for _, r := range word {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.IsUpper(r) {
			return false
		}
		letters++
	}
	return letters >= 3
}
