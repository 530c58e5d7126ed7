package classifier

import "regexp"

// pathPattern is one regex scored against both the full path and the
// filename, grounded on original_source/ingestion/classifier/rules.py's
// PATTERNS table (German + English keyword/regex lists per category).
type pathPattern struct {
	re *regexp.Regexp
}

func compile(patterns []string) []pathPattern {
	out := make([]pathPattern, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, pathPattern{re: regexp.MustCompile("(?i)" + p)})
	}
	return out
}

// categoryPatterns holds, per closed-set category, the regex list used
// by the rule tier. Patterns are intentionally bilingual (DE/EN) per the
// source, since customer documents are frequently German-language.
var categoryPatterns = map[string][]pathPattern{
	"tax": compile([]string{
		`steuer`, `ustva`, `umsatzsteuer`, `lohnsteuer`, `finanzamt`,
		`tax`, `vat`, `invoice`, `rechnung`,
	}),
	"legal": compile([]string{
		`vertrag`, `agb`, `datenschutz`, `impressum`, `recht`,
		`contract`, `legal`, `nda`, `terms`, `privacy`,
	}),
	"products": compile([]string{
		`produkt`, `artikel`, `katalog`, `datenblatt`, `spezifikation`,
		`product`, `catalog`, `datasheet`, `spec`, `gtin`, `sku`,
	}),
	"hr": compile([]string{
		`personal`, `mitarbeiter`, `gehalt`, `bewerbung`, `urlaub`,
		`hr`, `employee`, `payroll`, `applicant`, `vacation`,
	}),
	"correspondence": compile([]string{
		`brief`, `schreiben`, `korrespondenz`, `email`, `mail`,
		`letter`, `correspondence`,
	}),
}

const (
	pathMatchScore     = 2
	filenameMatchScore = 1
	minWinningScore    = 1
	minLeadOverRunnerUp = 2
)

// Categories is the closed category set accepted by the classifier,
// including the fallback "general".
var Categories = map[string]bool{
	"tax": true, "legal": true, "products": true, "hr": true,
	"correspondence": true, "general": true,
}

// classifyRules scores path and filename against every category's
// pattern list and returns the winning category plus its raw score (for
// confidence computation), defaulting to "general" when no category
// clears both the minimum score and the lead-over-runner-up thresholds.
func classifyRules(path, filename string) (string, int) {
	scores := make(map[string]int, len(categoryPatterns))
	for cat, patterns := range categoryPatterns {
		score := 0
		for _, p := range patterns {
			if p.re.MatchString(path) {
				score += pathMatchScore
			}
			if p.re.MatchString(filename) {
				score += filenameMatchScore
			}
		}
		scores[cat] = score
	}

	best, bestScore, runnerUp := "", 0, 0
	for cat, score := range scores {
		if score > bestScore {
			runnerUp = bestScore
			best, bestScore = cat, score
		} else if score > runnerUp {
			runnerUp = score
		}
	}

	if best == "" || bestScore < minWinningScore || bestScore-runnerUp < minLeadOverRunnerUp {
		return "general", 0
	}
	return best, bestScore
}

// ruleConfidence implements min(1.0, best_score/10).
func ruleConfidence(score int) float64 {
	c := float64(score) / 10.0
	if c > 1.0 {
		return 1.0
	}
	return c
}
