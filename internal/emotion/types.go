package emotion

// Prediction is a single emotion candidate with its confidence in percent.
type Prediction struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// Result is a decoded inference response. Predictions are sorted descending
// by confidence and truncated to the top candidates; when non-empty,
// Predictions[0].Emotion equals Dominant.
type Result struct {
	Dominant         string       `json:"dominant_emotion"`
	Confidence       float64      `json:"confidence"`
	Predictions      []Prediction `json:"predictions"`
	ProcessingTimeMS int64        `json:"processing_time_ms"`
}

// MaxPredictions bounds the ranked breakdown shown to clients.
const MaxPredictions = 5

// canonical maps raw model labels to the app's emotion vocabulary. Unknown
// labels fall back to neutral.
var canonical = map[string]string{
	"joy":          "happy",
	"happiness":    "happy",
	"happy":        "happy",
	"excitement":   "excited",
	"optimism":     "excited",
	"excited":      "excited",
	"sadness":      "sad",
	"sad":          "sad",
	"anger":        "angry",
	"angry":        "angry",
	"fear":         "fearful",
	"fearful":      "fearful",
	"scared":       "fearful",
	"anxiety":      "anxious",
	"anxious":      "anxious",
	"disgust":      "disgusted",
	"disgusted":    "disgusted",
	"surprise":     "surprised",
	"surprised":    "surprised",
	"neutral":      "neutral",
	"calm":         "calm",
	"peaceful":     "calm",
	"gratitude":    "grateful",
	"grateful":     "grateful",
	"love":         "loved",
	"loved":        "loved",
	"frustration":  "frustrated",
	"frustrated":   "frustrated",
	"tired":        "tired",
	"lonely":       "lonely",
	"disappointed": "disappointed",
	"energetic":    "energetic",
	"confident":    "confident",
	"contempt":     "contempt",
}
