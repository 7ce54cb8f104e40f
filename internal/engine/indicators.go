package engine

// EmotionalIndicators holds the five sub-scores for one scored item.
// Immutable once produced for a given input.
type EmotionalIndicators struct {
	Sentiment      Signal `json:"sentiment"`
	Psychological  Signal `json:"psychological"`
	Relationship   Signal `json:"relationship"`
	Conversational Signal `json:"conversational"`
	Historical     Signal `json:"historical"`
}

// Signals returns the five factors in fixed order.
func (ei EmotionalIndicators) Signals() [5]Signal {
	return [5]Signal{ei.Sentiment, ei.Psychological, ei.Relationship, ei.Conversational, ei.Historical}
}

// Validate checks every sub-score against [0,1]. An out-of-range value means
// an upstream extractor bug and is fatal, never clamped.
func (ei EmotionalIndicators) Validate() error {
	for _, s := range ei.Signals() {
		if s.Score < 0 || s.Score > 1 {
			return &IndicatorRangeError{Factor: s.Kind, Score: s.Score}
		}
	}
	return nil
}

// maxDisagreement returns the largest pairwise gap between sub-scores.
func (ei EmotionalIndicators) maxDisagreement() float64 {
	sig := ei.Signals()
	lo, hi := sig[0].Score, sig[0].Score
	for _, s := range sig[1:] {
		if s.Score < lo {
			lo = s.Score
		}
		if s.Score > hi {
			hi = s.Score
		}
	}
	return hi - lo
}

// RawIndicators is the structured indicator payload collaborators may supply
// in place of raw text, when feature extraction already happened upstream.
type RawIndicators struct {
	Sentiment struct {
		Positive float64 `json:"positive"`
		Negative float64 `json:"negative"`
		Neutral  float64 `json:"neutral"`
	} `json:"sentiment"`
	Psychological struct {
		Stress     float64 `json:"stress"`
		Coping     float64 `json:"coping"`
		Resilience float64 `json:"resilience"`
	} `json:"psychological"`
	Relationship struct {
		Support  float64 `json:"support"`
		Intimacy float64 `json:"intimacy"`
	} `json:"relationship"`
	Conversational struct {
		Flow       float64 `json:"flow"`
		Engagement float64 `json:"engagement"`
	} `json:"conversational"`
	Historical struct {
		Baseline  float64 `json:"baseline"`  // [0,10]
		Deviation float64 `json:"deviation"` // signed, same scale
	} `json:"historical"`
}

// Normalize folds raw indicator features into the five [0,1] sub-scores.
//
// Sentiment keeps concurrent polarity: positive and negative fractions pull
// the score from the 0.5 midpoint independently, so mixed emotion lands near
// neutral with both sides preserved in evidence, instead of being forced to
// a single sign.
func (r RawIndicators) Normalize() (EmotionalIndicators, error) {
	ind := EmotionalIndicators{
		Sentiment: Signal{
			Kind:  FactorSentiment,
			Score: clamp01(0.5 + r.Sentiment.Positive - r.Sentiment.Negative),
		},
		Psychological: Signal{
			Kind:  FactorPsychological,
			Score: clamp01((r.Psychological.Coping + r.Psychological.Resilience + (1 - r.Psychological.Stress)) / 3),
		},
		Relationship: Signal{
			Kind:  FactorRelationship,
			Score: clamp01((r.Relationship.Support + r.Relationship.Intimacy) / 2),
		},
		Conversational: Signal{
			Kind:  FactorConversational,
			Score: clamp01((r.Conversational.Flow + r.Conversational.Engagement) / 2),
		},
		Historical: Signal{
			Kind:  FactorHistorical,
			Score: clamp01((r.Historical.Baseline + r.Historical.Deviation) / 10),
		},
	}

	// Raw features outside [0,1] (baseline/deviation excepted, they are on the
	// 0-10 mood scale) indicate an upstream bug.
	rawFields := map[FactorKind][]float64{
		FactorSentiment:      {r.Sentiment.Positive, r.Sentiment.Negative, r.Sentiment.Neutral},
		FactorPsychological:  {r.Psychological.Stress, r.Psychological.Coping, r.Psychological.Resilience},
		FactorRelationship:   {r.Relationship.Support, r.Relationship.Intimacy},
		FactorConversational: {r.Conversational.Flow, r.Conversational.Engagement},
	}
	for kind, vals := range rawFields {
		for _, v := range vals {
			if v < 0 || v > 1 {
				return EmotionalIndicators{}, &IndicatorRangeError{Factor: kind, Score: v}
			}
		}
	}

	if r.Sentiment.Positive >= 0.4 && r.Sentiment.Negative >= 0.4 {
		ind.Sentiment.Evidence = append(ind.Sentiment.Evidence, "concurrent positive and negative polarity")
		ind.Sentiment.Uncertain = true
	}

	return ind, nil
}
