// Package quality scores CMS text for readability, length and listing
// conventions. The analyzer is local and deterministic.
package quality

import (
	"fmt"
	"strings"

	"github.com/karasuemlak/backend/internal/domain/entities"
	"github.com/karasuemlak/backend/pkg/utils"
)

// Issue codes
const (
	IssueEmpty           = "empty"
	IssueTooShort        = "too_short"
	IssueTooLong         = "too_long"
	IssueLongSentences   = "long_sentences"
	IssueSingleParagraph = "single_paragraph"
	IssueTitleKeywords   = "title_keywords_missing"
	IssueMissingCTA      = "missing_call_to_action"
	IssueMissingLocation = "missing_location"
	IssueFillerPhrases   = "filler_phrases"
	IssueShouting        = "shouting"
	IssueExclamations    = "too_many_exclamations"
)

// Analyzer implements providers.QualityAnalyzer
type Analyzer struct {
	rules     Rules
	stopWords map[string]struct{}
}

// NewAnalyzer creates an analyzer for the given rules
func NewAnalyzer(rules Rules) *Analyzer {
	stop := make(map[string]struct{}, len(rules.StopWords))
	for _, w := range rules.StopWords {
		stop[utils.LowerTR(w)] = struct{}{}
	}
	return &Analyzer{rules: rules, stopWords: stop}
}

type report struct {
	issues      []entities.QualityIssue
	suggestions []string
}

func (r *report) add(code string, severity entities.IssueSeverity, message, suggestion string) {
	r.issues = append(r.issues, entities.QualityIssue{Code: code, Severity: severity, Message: message})
	if suggestion != "" {
		r.suggestions = append(r.suggestions, suggestion)
	}
}

// Analyze scores req.Text. HTML is stripped first.
func (a *Analyzer) Analyze(req entities.ImproveRequest) *entities.QualityAnalysis {
	plain := utils.StripHTML(req.Text)
	stats := utils.Analyze(plain)
	lower := utils.LowerTR(plain)

	analysis := &entities.QualityAnalysis{
		Kind:              entities.QualityAnalysisKind,
		WordCount:         stats.WordCount(),
		SentenceCount:     stats.Sentences,
		ParagraphCount:    stats.Paragraphs,
		AvgSentenceLength: roundTo(stats.AvgSentenceLength(), 1),
		Issues:            []entities.QualityIssue{},
		Suggestions:       []string{},
	}

	rep := &report{}
	if stats.WordCount() == 0 {
		rep.add(IssueEmpty, entities.SeverityCritical, "Metin boş", "İçeriğe açıklayıcı bir metin ekleyin")
		return a.finish(analysis, rep, 0)
	}

	target := a.rules.Target(string(req.ContentType), req.Field)
	a.checkLength(rep, stats, target)
	a.checkReadability(rep, stats, target)
	a.checkTitle(rep, req.Title, lower)
	a.checkTone(rep, plain, lower, stats)

	if req.ContentType == entities.ContentTypeListing {
		if !containsAny(lower, a.rules.CallToActionPhrases) {
			rep.add(IssueMissingCTA, entities.SeverityWarning,
				"Okuyucuyu iletişime geçmeye davet eden bir cümle yok",
				"Metni, ilgilenenleri aramaya veya mesaj atmaya davet eden bir cümleyle bitirin")
		}
		if !containsAny(lower, a.rules.LocationKeywords) {
			rep.add(IssueMissingLocation, entities.SeverityInfo,
				"Konum bilgisi geçmiyor",
				"Mülkün bulunduğu mahalleyi veya denize uzaklığını belirtin")
		}
	}

	return a.finish(analysis, rep, 100)
}

func (a *Analyzer) checkLength(rep *report, stats utils.TextStats, target FieldTarget) {
	words := stats.WordCount()
	switch {
	case target.MinWords > 0 && words < target.MinWords:
		severity := entities.SeverityWarning
		if words < target.MinWords/2 {
			severity = entities.SeverityCritical
		}
		rep.add(IssueTooShort, severity,
			fmt.Sprintf("Metin çok kısa (%d kelime, en az %d önerilir)", words, target.MinWords),
			fmt.Sprintf("Metni en az %d kelimeye çıkarın", target.MinWords))
	case target.MaxWords > 0 && words > target.MaxWords:
		rep.add(IssueTooLong, entities.SeverityInfo,
			fmt.Sprintf("Metin çok uzun (%d kelime, en fazla %d önerilir)", words, target.MaxWords),
			"Tekrarlayan bölümleri kısaltın")
	}
}

func (a *Analyzer) checkReadability(rep *report, stats utils.TextStats, target FieldTarget) {
	if a.rules.MaxAvgSentenceLength > 0 && stats.AvgSentenceLength() > a.rules.MaxAvgSentenceLength {
		rep.add(IssueLongSentences, entities.SeverityWarning,
			fmt.Sprintf("Cümleler çok uzun (ortalama %.0f kelime)", stats.AvgSentenceLength()),
			"Uzun cümleleri bölün")
	}
	if target.LongForm && stats.WordCount() >= target.MinWords && stats.Paragraphs < 2 {
		rep.add(IssueSingleParagraph, entities.SeverityWarning,
			"Metin tek paragraftan oluşuyor",
			"Metni konu başlıklarına göre paragraflara ayırın")
	}
}

func (a *Analyzer) checkTitle(rep *report, title, lowerText string) {
	keywords := a.titleKeywords(title)
	if len(keywords) == 0 {
		return
	}
	for _, kw := range keywords {
		if strings.Contains(lowerText, kw) {
			return
		}
	}
	rep.add(IssueTitleKeywords, entities.SeverityInfo,
		"Başlıktaki anahtar kelimeler metinde geçmiyor",
		fmt.Sprintf("Metinde başlıktaki \"%s\" ifadesine yer verin", strings.Join(keywords, " ")))
}

func (a *Analyzer) titleKeywords(title string) []string {
	var keywords []string
	for _, w := range strings.Fields(title) {
		kw := utils.NormalizeWord(w)
		if len([]rune(kw)) < 3 {
			continue
		}
		if _, stop := a.stopWords[kw]; stop {
			continue
		}
		keywords = append(keywords, kw)
	}
	return keywords
}

func (a *Analyzer) checkTone(rep *report, plain, lower string, stats utils.TextStats) {
	var found []string
	for _, phrase := range a.rules.FillerPhrases {
		if strings.Contains(lower, utils.LowerTR(phrase)) {
			found = append(found, phrase)
		}
	}
	if len(found) > 0 {
		rep.add(IssueFillerPhrases, entities.SeverityInfo,
			fmt.Sprintf("Abartılı ifadeler kullanılmış: %s", strings.Join(found, ", ")),
			"Abartılı ifadeler yerine somut özellikleri yazın")
	}

	shouting := 0
	for _, w := range stats.Words {
		if utils.IsShouting(w) {
			shouting++
		}
	}
	if stats.WordCount() > 0 && float64(shouting)/float64(stats.WordCount()) > a.rules.MaxShoutingRatio {
		rep.add(IssueShouting, entities.SeverityWarning,
			"Metnin büyük bölümü büyük harfle yazılmış",
			"Büyük harfleri yalnızca özel isimlerde kullanın")
	}

	if a.rules.MaxExclamations > 0 && strings.Count(plain, "!") > a.rules.MaxExclamations {
		rep.add(IssueExclamations, entities.SeverityInfo,
			"Çok fazla ünlem işareti kullanılmış",
			"Ünlem işaretlerini azaltın")
	}
}

func (a *Analyzer) finish(analysis *entities.QualityAnalysis, rep *report, start int) *entities.QualityAnalysis {
	score := start
	for _, issue := range rep.issues {
		switch issue.Severity {
		case entities.SeverityCritical:
			score -= a.rules.Penalties.Critical
		case entities.SeverityWarning:
			score -= a.rules.Penalties.Warning
		default:
			score -= a.rules.Penalties.Info
		}
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	analysis.Score = score
	analysis.Grade = Grade(score)
	if rep.issues != nil {
		analysis.Issues = rep.issues
	}
	if rep.suggestions != nil {
		analysis.Suggestions = rep.suggestions
	}
	return analysis
}

// Grade maps a 0-100 score to a letter
func Grade(score int) string {
	switch {
	case score >= 85:
		return "A"
	case score >= 70:
		return "B"
	case score >= 55:
		return "C"
	case score >= 40:
		return "D"
	default:
		return "F"
	}
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, utils.LowerTR(p)) {
			return true
		}
	}
	return false
}

func roundTo(v float64, places int) float64 {
	pow := 1.0
	for i := 0; i < places; i++ {
		pow *= 10
	}
	return float64(int(v*pow+0.5)) / pow
}
