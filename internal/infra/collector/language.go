package collector

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"

	"persona-research/internal/domain/model"
)

// Tagger annotates items with a detected language.
type Tagger interface {
	Tag(items []model.Item) map[string]int
}

// minTagLength skips fragments too short to detect reliably.
const minTagLength = 24

// LanguageTagger detects item languages among a configured set using lingua.
// The detector is built on first use.
type LanguageTagger struct {
	codes []lingua.IsoCode639_1

	once     sync.Once
	detector lingua.LanguageDetector
}

// NewLanguageTagger returns nil when fewer than two known ISO 639-1 codes are
// given, which disables tagging.
func NewLanguageTagger(codes []string) *LanguageTagger {
	var iso []lingua.IsoCode639_1
	seen := map[lingua.IsoCode639_1]bool{}
	for _, c := range codes {
		code := lingua.GetIsoCode639_1FromValue(strings.ToUpper(strings.TrimSpace(c)))
		if code == lingua.UnknownIsoCode639_1 || seen[code] {
			continue
		}
		seen[code] = true
		iso = append(iso, code)
	}
	if len(iso) < 2 {
		return nil
	}
	return &LanguageTagger{codes: iso}
}

func (t *LanguageTagger) Tag(items []model.Item) map[string]int {
	if t == nil || len(items) == 0 {
		return nil
	}
	t.once.Do(func() {
		t.detector = lingua.NewLanguageDetectorBuilder().
			FromIsoCodes639_1(t.codes...).
			WithPreloadedLanguageModels().
			Build()
	})
	hist := map[string]int{}
	for i := range items {
		text := items[i].Text
		if len([]rune(text)) < minTagLength {
			continue
		}
		lang, ok := t.detector.DetectLanguageOf(text)
		if !ok {
			continue
		}
		code := strings.ToLower(lang.IsoCode639_1().String())
		items[i].Language = code
		hist[code]++
	}
	if len(hist) == 0 {
		return nil
	}
	return hist
}
