package triage

import "git.mci.dev/mse/sre/phoenix/golang/callboard/internal/voicemail"

const (
	criticalLevel       = 5
	urgentLevel         = 4
	lowConfidenceCutoff = 0.6
)

// Flags are display-only derivations. They are recomputed on demand and never
// sent back to the backend.
type Flags struct {
	Ambiguous            bool
	Critical             bool
	Urgent               bool
	NeedsManualListening bool
	LowConfidence        bool
}

func IsAmbiguous(record *voicemail.Record) bool {
	if record.Intent == voicemail.IntentAmbiguous {
		return true
	}

	return record.UIState != nil && record.UIState.IsAmbiguous
}

// Classify derives the triage flags. Ambiguity overrides urgency: an ambiguous
// level-5 record is neither critical nor urgent.
func Classify(record *voicemail.Record) Flags {
	ambiguous := IsAmbiguous(record)

	return Flags{
		Ambiguous:            ambiguous,
		Critical:             !ambiguous && record.Urgency.Level >= criticalLevel,
		Urgent:               !ambiguous && record.Urgency.Level == urgentLevel,
		NeedsManualListening: record.UIState != nil && record.UIState.NeedsManualListening,
		LowConfidence:        record.Urgency.Confidence < lowConfidenceCutoff,
	}
}
