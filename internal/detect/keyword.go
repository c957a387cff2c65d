// Package detect provides the baseline keyword strategy for finding and resolving
// contradictions. It is deliberately simple and replaceable: the cycle engine only sees
// the domain.Detector, domain.Resolver and domain.TextAnalyzer interfaces.
package detect

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Harshitk-cp/concord/internal/domain"
)

const (
	MethodContextDisambiguation = "context_disambiguation"
	MethodMarkedAsGap           = "marked_as_gap"

	gapAnnotationPrefix = "[GAP:"
)

var (
	citationPattern = regexp.MustCompile(`\[[^\]\n]+\]`)
	sourcePattern   = regexp.MustCompile(`(?i)\(source:\s*[^)]+\)`)
	urlPattern      = regexp.MustCompile(`https?://[^\s)\]]+`)
)

// Keyword detects contradictions from polarity vocabulary and negated restatements,
// and resolves them only when the two statements carry disjoint scope markers.
type Keyword struct {
	PolarityPairs []PolarityPair
	ScopeMarkers  []string
	GapPhrases    []string
	Connectives   []string
}

func NewKeyword() *Keyword {
	return &Keyword{
		PolarityPairs: DefaultPolarityPairs,
		ScopeMarkers:  DefaultScopeMarkers,
		GapPhrases:    DefaultGapPhrases,
		Connectives:   DefaultConnectives,
	}
}

// Detect scans every ordered sentence pair. Output order is deterministic: sentence
// pairs in document order, then polarity pairs in vocabulary order, then negation.
func (k *Keyword) Detect(content string) []domain.Candidate {
	sentences := auditable(content)
	tokens := make([][]string, len(sentences))
	for i, s := range sentences {
		tokens[i] = tokenize(s)
	}

	var out []domain.Candidate
	for i := 0; i < len(sentences); i++ {
		for j := i + 1; j < len(sentences); j++ {
			for _, p := range k.PolarityPairs {
				markerA, markerB, ok := k.polarity(tokens[i], tokens[j], p)
				if !ok {
					continue
				}
				out = append(out, domain.Candidate{
					Kind:        domain.ContradictionPolarity,
					Description: fmt.Sprintf("statements disagree on %s/%s", p.Positive, p.Negative),
					StatementA:  sentences[i],
					StatementB:  sentences[j],
					MarkerA:     markerA,
					MarkerB:     markerB,
				})
			}
			if word, ok := negatedRestatement(tokens[i], tokens[j]); ok {
				out = append(out, domain.Candidate{
					Kind:        domain.ContradictionNegation,
					Description: fmt.Sprintf("statement restated with negation %q", word),
					StatementA:  sentences[i],
					StatementB:  sentences[j],
					MarkerB:     word,
				})
			}
		}
	}
	return out
}

// auditable drops the gap annotations Resolve appends, so a refined draft is not
// re-flagged for the markers quoted inside them.
func auditable(content string) []string {
	var out []string
	for _, s := range SplitSentences(content) {
		if !strings.HasPrefix(s, gapAnnotationPrefix) {
			out = append(out, s)
		}
	}
	return out
}

func (k *Keyword) polarity(a, b []string, p PolarityPair) (string, string, bool) {
	if hasTerm(a, p.Positive, p.Negative) && hasTerm(b, p.Negative, p.Positive) {
		return p.Positive, p.Negative, true
	}
	if hasTerm(a, p.Negative, p.Positive) && hasTerm(b, p.Positive, p.Negative) {
		return p.Negative, p.Positive, true
	}
	return "", "", false
}

// negatedRestatement reports whether two token lists differ only by a negation word
// or by one word and its negated-prefix form.
func negatedRestatement(a, b []string) (string, bool) {
	setA, setB := wordSet(a), wordSet(b)
	var onlyA, onlyB []string
	for w := range setA {
		if !setB[w] {
			onlyA = append(onlyA, w)
		}
	}
	for w := range setB {
		if !setA[w] {
			onlyB = append(onlyB, w)
		}
	}

	switch {
	case len(onlyA) == 0 && len(onlyB) == 1 && negators[onlyB[0]]:
		return onlyB[0], true
	case len(onlyB) == 0 && len(onlyA) == 1 && negators[onlyA[0]]:
		return onlyA[0], true
	case len(onlyA) == 1 && len(onlyB) == 1:
		if isNegatedForm(onlyA[0], onlyB[0]) {
			return onlyB[0], true
		}
		if isNegatedForm(onlyB[0], onlyA[0]) {
			return onlyA[0], true
		}
	}
	return "", false
}

func isNegatedForm(word, candidate string) bool {
	for _, prefix := range negationPrefixes {
		if candidate == prefix+word {
			return true
		}
	}
	return candidate == word+"n't"
}

// Resolve succeeds only when both statements carry scope markers and share none of
// them. A failed attempt appends a visible gap annotation to the content.
func (k *Keyword) Resolve(c domain.Contradiction, content string) domain.Resolution {
	scopeA := k.scopes(c.StatementA)
	scopeB := k.scopes(c.StatementB)

	if len(scopeA) > 0 && len(scopeB) > 0 && disjoint(scopeA, scopeB) {
		return domain.Resolution{
			Success:        true,
			Method:         MethodContextDisambiguation,
			RevisedContent: content,
		}
	}

	annotation := fmt.Sprintf(gapAnnotationPrefix+" unresolved contradiction %s - %s]", c.ID, c.Description)
	revised := content
	if !strings.Contains(content, annotation) {
		revised = content + "\n" + annotation
	}
	return domain.Resolution{
		Success:        false,
		Method:         MethodMarkedAsGap,
		RevisedContent: revised,
	}
}

func (k *Keyword) scopes(statement string) map[string]bool {
	tokens := tokenize(statement)
	found := make(map[string]bool)
	for _, m := range k.ScopeMarkers {
		if indexPhrase(tokens, tokenize(m)) >= 0 {
			found[m] = true
		}
	}
	return found
}

func disjoint(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return false
		}
	}
	return true
}

// DetectGaps marks one gap per (sentence, uncertainty phrase).
func (k *Keyword) DetectGaps(content string) []domain.GapCandidate {
	var out []domain.GapCandidate
	for _, s := range auditable(content) {
		tokens := tokenize(s)
		for _, phrase := range k.GapPhrases {
			if indexPhrase(tokens, tokenize(phrase)) < 0 {
				continue
			}
			gapType := domain.GapInsufficientEvidence
			if phrase == "conflicting evidence" {
				gapType = domain.GapContradictorySources
			}
			out = append(out, domain.GapCandidate{
				Description:       fmt.Sprintf("knowledge gap indicated by %q", phrase),
				Context:           s,
				Type:              gapType,
				SuggestedResearch: "investigate: " + s,
			})
		}
	}
	return out
}

// ExtractClaims splits each sentence at the first occurrence of every causal
// connective it contains.
func (k *Keyword) ExtractClaims(content string) []domain.Claim {
	patterns := make([]*regexp.Regexp, len(k.Connectives))
	for i, conn := range k.Connectives {
		patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(conn) + `\b`)
	}

	var out []domain.Claim
	for _, s := range auditable(content) {
		sources := evidenceSources(s)
		for i, conn := range k.Connectives {
			loc := patterns[i].FindStringIndex(s)
			if loc == nil {
				continue
			}
			premise := strings.TrimSpace(strings.TrimRight(s[:loc[0]], " ,;"))
			conclusion := strings.TrimSpace(strings.TrimLeft(s[loc[1]:], " ,;"))
			if premise == "" || conclusion == "" {
				continue
			}
			out = append(out, domain.Claim{
				Premise:    premise,
				Conclusion: conclusion,
				Connective: conn,
				Sources:    sources,
			})
		}
	}
	return out
}

func evidenceSources(sentence string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, re := range []*regexp.Regexp{citationPattern, sourcePattern, urlPattern} {
		for _, m := range re.FindAllString(sentence, -1) {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Conflicts compares an established fact value with an incoming one: booleans conflict
// on inequality, strings on a polarity pair or a negated restatement. Other types never
// conflict.
func (k *Keyword) Conflicts(existing, incoming any) (bool, string) {
	if a, ok := existing.(bool); ok {
		if b, ok := incoming.(bool); ok {
			if a != b {
				return true, "boolean values differ"
			}
			return false, ""
		}
	}

	a, okA := asText(existing)
	b, okB := asText(incoming)
	if !okA || !okB {
		return false, ""
	}

	ta, tb := tokenize(a), tokenize(b)
	for _, p := range k.PolarityPairs {
		if ma, mb, ok := k.polarity(ta, tb, p); ok {
			return true, fmt.Sprintf("values disagree on %s/%s", ma, mb)
		}
	}
	if word, ok := negatedRestatement(ta, tb); ok {
		return true, fmt.Sprintf("value negated with %q", word)
	}
	return false, ""
}

func asText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return fmt.Sprintf("%t", t), true
	}
	return "", false
}
