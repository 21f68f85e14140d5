package emotion

import (
	"sort"
	"strings"
)

// Canonical maps a raw model label to the app emotion vocabulary.
func Canonical(raw string) string {
	if mapped, ok := canonical[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return mapped
	}
	return "neutral"
}

// FromScores builds a normalized Result from a raw inference payload. Labels
// are canonicalized, confidences clamped to [0,100], and the breakdown sorted
// descending and truncated. The dominant prediction is forced to rank first
// even when the score map disagrees with the service's own pick.
func FromScores(predicted string, confidence float64, allScores map[string]float64, processingMS int64) Result {
	dominant := Canonical(predicted)
	confidence = clampPercent(confidence)

	merged := make(map[string]float64, len(allScores)+1)
	for raw, score := range allScores {
		label := Canonical(raw)
		score = clampPercent(score)
		if score > merged[label] {
			merged[label] = score
		}
	}
	// The service's top pick wins regardless of what all_scores says for it.
	// Competing labels are capped at the dominant confidence so the ranking
	// invariant holds even when label mapping collapses several raw scores.
	merged[dominant] = confidence
	for label, score := range merged {
		if label != dominant && score > confidence {
			merged[label] = confidence
		}
	}

	preds := make([]Prediction, 0, len(merged))
	for label, score := range merged {
		preds = append(preds, Prediction{Emotion: label, Confidence: score})
	}
	sort.SliceStable(preds, func(i, j int) bool {
		if preds[i].Confidence != preds[j].Confidence {
			return preds[i].Confidence > preds[j].Confidence
		}
		return preds[i].Emotion < preds[j].Emotion
	})

	// Ties can still leave the dominant label off the front; swap it there.
	for i, p := range preds {
		if p.Emotion == dominant {
			if i > 0 {
				preds[0], preds[i] = preds[i], preds[0]
			}
			break
		}
	}
	if len(preds) > MaxPredictions {
		preds = preds[:MaxPredictions]
	}

	return Result{
		Dominant:         dominant,
		Confidence:       confidence,
		Predictions:      preds,
		ProcessingTimeMS: processingMS,
	}
}

// clampPercent normalizes a score to the [0,100] percent scale. Model
// services report fractions in [0,1]; those are scaled up first.
func clampPercent(v float64) float64 {
	if v > 0 && v <= 1 {
		v *= 100
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
