package score

// Level is the ordered chaos tier derived from a score.
type Level int

const (
	LevelDormant Level = iota
	LevelLow
	LevelModerate
	LevelHigh
	LevelExtreme
	LevelCatastrophic
)

// String returns the canonical lower-case level name.
func (l Level) String() string {
	switch l {
	case LevelDormant:
		return "dormant"
	case LevelLow:
		return "low"
	case LevelModerate:
		return "moderate"
	case LevelHigh:
		return "high"
	case LevelExtreme:
		return "extreme"
	case LevelCatastrophic:
		return "catastrophic"
	default:
		return "unknown"
	}
}

// levelThresholds maps each level to the minimum score that reaches it,
// ordered lowest to highest.
var levelThresholds = []struct {
	level     Level
	threshold float64
}{
	{LevelDormant, 0.0},
	{LevelLow, 0.1},
	{LevelModerate, 0.3},
	{LevelHigh, 0.5},
	{LevelExtreme, 0.7},
	{LevelCatastrophic, 0.9},
}

// LevelFor maps a clamped score to its tier by scanning thresholds from
// highest to lowest and taking the first one at or below the score.
func LevelFor(score float64) Level {
	score = clamp01(score)
	for i := len(levelThresholds) - 1; i >= 0; i-- {
		if score >= levelThresholds[i].threshold {
			return levelThresholds[i].level
		}
	}
	return LevelDormant
}

// BaseTriggerProbability is the per-evaluation event probability for each
// chaos tier before variance and narrative adjustment.
func BaseTriggerProbability(l Level) float64 {
	switch l {
	case LevelDormant:
		return 0.0
	case LevelLow:
		return 0.05
	case LevelModerate:
		return 0.15
	case LevelHigh:
		return 0.30
	case LevelExtreme:
		return 0.45
	case LevelCatastrophic:
		return 0.60
	default:
		return 0.0
	}
}
