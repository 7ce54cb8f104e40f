package engine

import (
	"regexp"
	"strings"
)

// Each extractor is a pure function (text, context) -> Signal. They are
// lexicon/pattern based: cheap, deterministic, and good enough to rank items
// for the decision stage. The heavyweight semantic extraction already
// happened upstream and arrives as ExtractionConfidence on the context.

var positiveWords = []string{
	"happy", "glad", "great", "good", "wonderful", "love", "loved", "excited",
	"grateful", "thankful", "proud", "relieved", "hopeful", "better", "amazing",
	"fun", "enjoy", "enjoyed", "calm", "peaceful", "supported",
}

var negativeWords = []string{
	"sad", "angry", "upset", "terrible", "awful", "hate", "hated", "anxious",
	"worried", "scared", "afraid", "stressed", "exhausted", "hopeless", "worse",
	"hurt", "lonely", "frustrated", "overwhelmed", "miserable", "crying",
}

// Psychological marker lexicons. Coping, resilience, support, and growth
// markers raise the sub-score; stress markers lower it. Every category
// saturates with evidence count so verbose text cannot run the score away.
var psychMarkers = map[string][]string{
	"coping":     {"dealing with", "managing", "taking it", "one day at a time", "getting through", "handling"},
	"resilience": {"bounce back", "keep going", "won't give up", "stronger", "pushed through", "survived", "made it"},
	"stress":     {"can't sleep", "breaking point", "too much", "falling apart", "burned out", "panic", "under pressure", "drowning"},
	"support":    {"here for you", "not alone", "we can", "helped me", "listened", "checked in", "got my back"},
	"growth":     {"learned", "realized", "understand now", "growing", "new perspective", "working on myself"},
}

var (
	questionRe     = regexp.MustCompile(`\?`)
	exclamationRe  = regexp.MustCompile(`!`)
	secondPersonRe = regexp.MustCompile(`(?i)\byou(r|rs)?\b`)
)

// ExtractIndicators runs all five signal extractors over one item.
// ctx may be nil; missing context degrades to neutral sub-scores with
// uncertainty flags, never an error.
func ExtractIndicators(text string, ctx *EmotionalContext) EmotionalIndicators {
	return EmotionalIndicators{
		Sentiment:      extractSentiment(text),
		Psychological:  extractPsychological(text),
		Relationship:   extractRelationship(ctx),
		Conversational: extractConversational(text),
		Historical:     extractHistorical(ctx),
	}
}

// saturate maps an evidence count into [0,1) with diminishing returns:
// 0→0, 1→0.33, 2→0.5, 4→0.67, asymptotically 1.
func saturate(n int) float64 {
	return float64(n) / (float64(n) + 2)
}

// extractSentiment scores text polarity on [0,1] with 0.5 neutral.
// Positive and negative evidence are accumulated independently so mixed
// emotion keeps both sides instead of collapsing to a single sign.
func extractSentiment(text string) Signal {
	lower := strings.ToLower(text)

	var posHits, negHits []string
	for _, w := range positiveWords {
		if containsWord(lower, w) {
			posHits = append(posHits, w)
		}
	}
	for _, w := range negativeWords {
		if containsWord(lower, w) {
			negHits = append(negHits, w)
		}
	}

	pos := saturate(len(posHits))
	neg := saturate(len(negHits))

	sig := Signal{
		Kind:     FactorSentiment,
		Score:    clamp01(0.5 + 0.5*(pos-neg)),
		Evidence: append(posHits, negHits...),
	}
	if pos >= 0.3 && neg >= 0.3 {
		sig.Evidence = append(sig.Evidence, "mixed polarity")
		sig.Uncertain = true
	}
	return sig
}

// extractPsychological scores coping, resilience, stress, support, and
// growth markers. 0.5 is neutral; stress pulls down, everything else up.
func extractPsychological(text string) Signal {
	lower := strings.ToLower(text)

	hits := make(map[string][]string)
	for category, markers := range psychMarkers {
		for _, m := range markers {
			if strings.Contains(lower, m) {
				hits[category] = append(hits[category], category+": "+m)
			}
		}
	}

	score := 0.5
	var evidence []string
	for _, category := range []string{"coping", "resilience", "support", "growth"} {
		score += 0.125 * saturate(len(hits[category]))
		evidence = append(evidence, hits[category]...)
	}
	score -= 0.5 * saturate(len(hits["stress"]))
	evidence = append(evidence, hits["stress"]...)

	return Signal{
		Kind:     FactorPsychological,
		Score:    clamp01(score),
		Evidence: evidence,
	}
}

// extractRelationship scores the relational context of the item. This one
// needs metadata, not text: without it the score is a flagged neutral 0.5.
func extractRelationship(ctx *EmotionalContext) Signal {
	if ctx == nil || ctx.Relationship == nil {
		return Signal{
			Kind:      FactorRelationship,
			Score:     0.5,
			Evidence:  []string{"no relationship metadata"},
			Uncertain: true,
		}
	}

	rel := ctx.Relationship
	score := 0.3 + 0.4*clamp01(rel.Closeness)
	evidence := []string{"closeness metadata present"}
	if rel.Supportive {
		score += 0.2
		evidence = append(evidence, "relationship marked supportive")
	}
	if rel.HistoryLen > 0 {
		score += 0.1 * saturate(rel.HistoryLen/10)
		evidence = append(evidence, "shared history on record")
	}

	return Signal{
		Kind:     FactorRelationship,
		Score:    clamp01(score),
		Evidence: evidence,
	}
}

// extractConversational scores engagement and flow from surface features:
// message length, questions, exclamations, and second-person address.
func extractConversational(text string) Signal {
	trimmed := strings.TrimSpace(text)
	words := len(strings.Fields(trimmed))

	score := 0.3
	var evidence []string

	// Length: saturates around typical conversational turns.
	score += 0.3 * saturate(words/10)

	if n := len(questionRe.FindAllString(trimmed, -1)); n > 0 {
		score += 0.1 * saturate(n)
		evidence = append(evidence, "asks questions")
	}
	if n := len(exclamationRe.FindAllString(trimmed, -1)); n > 0 {
		score += 0.05 * saturate(n)
		evidence = append(evidence, "emphatic punctuation")
	}
	if secondPersonRe.MatchString(trimmed) {
		score += 0.15
		evidence = append(evidence, "addresses the other participant")
	}

	sig := Signal{
		Kind:     FactorConversational,
		Score:    clamp01(score),
		Evidence: evidence,
	}
	if words < 3 {
		sig.Evidence = append(sig.Evidence, "very short message")
		sig.Uncertain = true
	}
	return sig
}

// extractHistorical anchors the item against the participant's typical mood
// range. No baseline means a flagged neutral, same as relationship.
func extractHistorical(ctx *EmotionalContext) Signal {
	if ctx == nil || ctx.Baseline == nil {
		return Signal{
			Kind:      FactorHistorical,
			Score:     0.5,
			Evidence:  []string{"no historical baseline"},
			Uncertain: true,
		}
	}

	b := ctx.Baseline
	mid := (b.TypicalLow + b.TypicalHigh) / 2
	return Signal{
		Kind:     FactorHistorical,
		Score:    clamp01(mid / 10),
		Evidence: []string{"baseline midpoint on record"},
	}
}

// containsWord reports whether lower contains w as a whole word.
func containsWord(lower, w string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], w)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(w)
		beforeOK := start == 0 || !isWordChar(lower[start-1])
		afterOK := end == len(lower) || !isWordChar(lower[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9') || b == '\''
}
