package domain

// SeverityInfo describes one level of the Environment Agency severity scale.
type SeverityInfo struct {
	Meaning string
	Advice  string
}

// severityScale is the fixed four-level Environment Agency model.
// Level 1 is the most severe.
var severityScale = map[int]SeverityInfo{
	1: {
		Meaning: "Severe flooding, danger to life",
		Advice:  "Seek shelter immediately and avoid flood water.",
	},
	2: {
		Meaning: "Flooding expected, immediate action required",
		Advice:  "Prepare now and get your emergency kit ready.",
	},
	3: {
		Meaning: "Flooding possible, be prepared",
		Advice:  "Monitor warnings, move vehicles to higher ground and secure property.",
	},
	4: {
		Meaning: "Warning no longer in force",
		Advice:  "Stand down.",
	},
}

// SeverityAdvice returns the meaning and advice for a severity level.
// The second return is false for levels outside 1-4.
func SeverityAdvice(level int) (SeverityInfo, bool) {
	info, ok := severityScale[level]
	return info, ok
}
