package fusion

import (
	"strings"

	"github.com/soundprediction/trama/pkg/types"
)

const (
	// DefaultRRFK is the baseline RRF smoothing constant.
	DefaultRRFK = 20.0
	// MinRRFK and MaxRRFK bound adaptive adjustment.
	MinRRFK = 8.0
	MaxRRFK = 40.0

	// overlapTopN is how many leading hits per list feed the Jaccard
	// overlap measurement.
	overlapTopN = 10

	highOverlap = 0.6
	lowOverlap  = 0.2
)

// Classify derives query features and initial fusion parameters from raw
// query text. Pure and deterministic: identical text always yields identical
// output.
func Classify(queryText string) (types.QueryFeatures, types.FusionWeights, float64) {
	tokens := strings.Fields(queryText)

	features := types.QueryFeatures{
		TokenCount:      len(tokens),
		HasQuotedPhrase: hasQuotedPhrase(queryText),
	}
	if len(tokens) > 0 {
		total := 0
		for _, tok := range tokens {
			total += len(tok)
		}
		features.AvgTokenLength = float64(total) / float64(len(tokens))
	}
	features.IsKeywordStyle = len(tokens) <= 3 && features.AvgTokenLength < 6

	weights := weightsFor(features)

	k := DefaultRRFK
	if features.HasQuotedPhrase {
		// Exact-phrase intent trusts individual ranker opinions more.
		k = clampK(DefaultRRFK * 0.7)
	}
	return features, weights, k
}

// weightsFor applies the lexical/semantic weight table. A quoted phrase
// overrides the token-count buckets.
func weightsFor(features types.QueryFeatures) types.FusionWeights {
	switch {
	case features.HasQuotedPhrase:
		return types.FusionWeights{Lexical: 0.8, Semantic: 0.2}
	case features.TokenCount <= 2:
		return types.FusionWeights{Lexical: 0.7, Semantic: 0.3}
	case features.TokenCount <= 5:
		return types.FusionWeights{Lexical: 0.5, Semantic: 0.5}
	default:
		return types.FusionWeights{Lexical: 0.3, Semantic: 0.7}
	}
}

// AdaptK adjusts the RRF constant inside [MinRRFK, MaxRRFK] using the mean
// pairwise Jaccard overlap of the top-N doc ids across the ranked lists.
// High overlap means the rankers already agree, so a larger k smooths out
// individual outliers; low overlap means each ranker carries distinct
// signal worth trusting. Fewer than two non-empty lists leaves k unchanged.
func AdaptK(k float64, lists []types.RankedList) float64 {
	var tops [][]string
	for _, list := range lists {
		if len(list.Hits) == 0 {
			continue
		}
		n := overlapTopN
		if n > len(list.Hits) {
			n = len(list.Hits)
		}
		ids := make([]string, 0, n)
		for _, hit := range list.Hits[:n] {
			ids = append(ids, hit.DocID)
		}
		tops = append(tops, ids)
	}
	if len(tops) < 2 {
		return clampK(k)
	}

	var sum float64
	var pairs int
	for i := 0; i < len(tops); i++ {
		for j := i + 1; j < len(tops); j++ {
			sum += jaccard(tops[i], tops[j])
			pairs++
		}
	}
	overlap := sum / float64(pairs)

	switch {
	case overlap >= highOverlap:
		k *= 1.3
	case overlap <= lowOverlap:
		k *= 0.7
	}
	return clampK(k)
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	union := len(set)
	intersection := 0
	for _, id := range b {
		if set[id] {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func clampK(k float64) float64 {
	if k < MinRRFK {
		return MinRRFK
	}
	if k > MaxRRFK {
		return MaxRRFK
	}
	return k
}

// hasQuotedPhrase reports whether the text contains a quote pair wrapping
// at least one non-space character.
func hasQuotedPhrase(text string) bool {
	for _, quote := range []string{`"`, `'`} {
		open := strings.Index(text, quote)
		if open < 0 {
			continue
		}
		closing := strings.Index(text[open+1:], quote)
		if closing <= 0 {
			continue
		}
		if strings.TrimSpace(text[open+1:open+1+closing]) != "" {
			return true
		}
	}
	return false
}
