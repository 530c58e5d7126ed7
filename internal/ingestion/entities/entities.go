// Package entities implements the Entity Extractor: a configurable
// pattern matcher (standing in for a language-specific NER model — no
// NER library exists anywhere in the example corpus) producing Entities
// with overlap resolution, plus a per-sentence relationship inference
// table.
package entities

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"manifold/internal/ingestion/types"
)

// pattern maps a regex to the entity type it signals.
type pattern struct {
	re  *regexp.Regexp
	typ types.EntityType
}

// patterns is a generic, extensible set of surface-form heuristics.
// Grounded on original_source/ingestion/processor/entity_extractor.py's
// normalization table mapping raw NER/pattern labels onto the closed
// {PERSON,ORG,LOC,PRODUCT,DATE,MONEY,MISC} set.
var patterns = []pattern{
	{re: regexp.MustCompile(`\b\d{1,2}\.\s?\d{1,2}\.\s?\d{2,4}\b`), typ: types.EntityDate},
	{re: regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Januar|Februar|März|April|Mai|Juni|Juli|August|September|Oktober|November|Dezember)\s+\d{1,2},?\s*\d{2,4}\b`), typ: types.EntityDate},
	{re: regexp.MustCompile(`[€$£]\s?\d+(?:[.,]\d+)?|\b\d+(?:[.,]\d+)?\s?(?:EUR|USD|GBP)\b`), typ: types.EntityMoney},
	{re: regexp.MustCompile(`\b[A-ZÄÖÜ][\wäöüÄÖÜ-]*(?:\s+(?:GmbH|AG|Inc\.?|Corp\.?|LLC|Ltd\.?))\b`), typ: types.EntityOrg},
	{re: regexp.MustCompile(`\b[A-Z][A-Za-z0-9]*-[A-Za-z0-9-]+\b`), typ: types.EntityProduct}, // model-number-like tokens
}

// knownLocations is a small gazetteer standing in for the source's
// language-specific NER model's LOC class (no NER library exists
// anywhere in the example corpus to ground a statistical tagger).
var knownLocations = []string{
	"Bonn", "Berlin", "Hamburg", "Munich", "München", "Frankfurt",
	"Cologne", "Köln", "Stuttgart", "Düsseldorf", "Leipzig", "Dresden",
}

// orgBeforeProduct matches a capitalized brand-like word immediately
// preceding a model-number token, e.g. "Eaton FRCDM-40", so the brand is
// recognized as ORG even without a legal-entity suffix.
var orgBeforeProduct = regexp.MustCompile(`\b([A-ZÄÖÜ][\wäöüÄÖÜ]+)\s+([A-Z][A-Za-z0-9]*-[A-Za-z0-9-]+)\b`)

// Extractor runs pattern-based entity extraction and relationship
// inference over document text.
type Extractor struct {
	ExtraPatterns []pattern
}

// Extract produces the deduplicated, overlap-resolved entity list and
// the inferred relationship list for one document's text.
func (e *Extractor) Extract(text, documentID string) ([]types.Entity, []types.Relationship) {
	raw := e.findRaw(text, documentID)
	resolved := resolveOverlaps(raw)
	rels := inferRelationships(text, resolved)
	return resolved, rels
}

func (e *Extractor) findRaw(text, documentID string) []types.Entity {
	all := append(append([]pattern{}, patterns...), e.ExtraPatterns...)
	var out []types.Entity
	for _, p := range all {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			start, end := loc[0], loc[1]
			surface := text[start:end]
			out = append(out, types.Entity{
				ID:         EntityID(surface, p.typ),
				Text:       surface,
				Type:       p.typ,
				Start:      start,
				End:        end,
				Context:    contextWindow(text, start, end),
				Confidence: 0.7,
				DocumentID: documentID,
			})
		}
	}

	for _, loc := range knownLocations {
		for _, idx := range allIndexesOf(text, loc) {
			out = append(out, types.Entity{
				ID:         EntityID(loc, types.EntityLoc),
				Text:       loc,
				Type:       types.EntityLoc,
				Start:      idx,
				End:        idx + len(loc),
				Context:    contextWindow(text, idx, idx+len(loc)),
				Confidence: 0.9,
				DocumentID: documentID,
			})
		}
	}

	for _, m := range orgBeforeProduct.FindAllStringSubmatchIndex(text, -1) {
		orgStart, orgEnd := m[2], m[3]
		org := text[orgStart:orgEnd]
		out = append(out, types.Entity{
			ID:         EntityID(org, types.EntityOrg),
			Text:       org,
			Type:       types.EntityOrg,
			Start:      orgStart,
			End:        orgEnd,
			Context:    contextWindow(text, orgStart, orgEnd),
			Confidence: 0.6,
			DocumentID: documentID,
		})
	}
	return out
}

func allIndexesOf(text, substr string) []int {
	var out []int
	from := 0
	for {
		idx := strings.Index(text[from:], substr)
		if idx < 0 {
			return out
		}
		out = append(out, from+idx)
		from += idx + len(substr)
	}
}

const contextPadding = 40

func contextWindow(text string, start, end int) string {
	lo := start - contextPadding
	if lo < 0 {
		lo = 0
	}
	hi := end + contextPadding
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}

// EntityID computes identity as a deterministic hash of (text, type) so
// the same mention always resolves to the same entity row.
func EntityID(text string, typ types.EntityType) string {
	h := sha1.Sum([]byte(strings.ToLower(text) + "|" + string(typ)))
	return hex.EncodeToString(h[:])
}

// resolveOverlaps sorts by (start asc, confidence desc) and drops any
// entity whose span overlaps an already-kept entity.
func resolveOverlaps(raw []types.Entity) []types.Entity {
	sorted := append([]types.Entity{}, raw...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].Confidence > sorted[j].Confidence
	})

	var kept []types.Entity
	lastEnd := -1
	for _, ent := range sorted {
		if ent.Start < lastEnd {
			continue
		}
		kept = append(kept, ent)
		lastEnd = ent.End
	}
	return kept
}

const relationshipConfidence = 0.8

// relationRule describes a labeled entity-type pair and its directional
// relationship type names.
type relationRule struct {
	a, b         types.EntityType
	aToB, bToA   string
}

var relationRules = []relationRule{
	{a: types.EntityOrg, b: types.EntityProduct, aToB: "PRODUCES", bToA: "PRODUCED_BY"},
	{a: types.EntityPerson, b: types.EntityOrg, aToB: "WORKS_AT", bToA: "EMPLOYS"},
	{a: types.EntityOrg, b: types.EntityLoc, aToB: "LOCATED_IN", bToA: "HOSTS"},
	{a: types.EntityProduct, b: types.EntityDate, aToB: "RELEASED_ON", bToA: "RELEASE_DATE"},
}

// inferRelationships applies the per-sentence rule base to every pair of
// entities that co-occur in the same sentence.
func inferRelationships(text string, ents []types.Entity) []types.Relationship {
	sentences := splitIntoSentenceSpans(text)
	var rels []types.Relationship

	for _, span := range sentences {
		var inSentence []types.Entity
		for _, e := range ents {
			if e.Start >= span[0] && e.End <= span[1] {
				inSentence = append(inSentence, e)
			}
		}
		for i := 0; i < len(inSentence); i++ {
			for j := i + 1; j < len(inSentence); j++ {
				rels = append(rels, relationshipFor(inSentence[i], inSentence[j]))
			}
		}
	}
	return rels
}

func relationshipFor(a, b types.Entity) types.Relationship {
	for _, rule := range relationRules {
		if a.Type == rule.a && b.Type == rule.b {
			return types.Relationship{SourceEntityID: a.ID, TargetEntityID: b.ID, Type: rule.aToB, Confidence: relationshipConfidence}
		}
		if a.Type == rule.b && b.Type == rule.a {
			return types.Relationship{SourceEntityID: a.ID, TargetEntityID: b.ID, Type: rule.bToA, Confidence: relationshipConfidence}
		}
	}
	return types.Relationship{SourceEntityID: a.ID, TargetEntityID: b.ID, Type: "MENTIONS", Confidence: relationshipConfidence}
}

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

func splitIntoSentenceSpans(text string) [][2]int {
	var spans [][2]int
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		spans = append(spans, [2]int{last, loc[1]})
		last = loc[1]
	}
	spans = append(spans, [2]int{last, len(text)})
	return spans
}

// FormatCount is a small helper used by the graph loader when logging
// entity counts; kept here since it's purely about entity identity.
func FormatCount(n int) string {
	return fmt.Sprintf("%d", n)
}
