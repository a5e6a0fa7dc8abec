package voicemail

import (
	"slices"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusActioned  Status = "actioned"
	StatusArchived  Status = "archived"
)

func (s Status) Valid() bool {
	return slices.Contains([]Status{StatusPending, StatusProcessed, StatusActioned, StatusArchived}, s)
}

type CallbackStatus string

const (
	CallbackPending     CallbackStatus = "pending"
	CallbackAttempted   CallbackStatus = "attempted"
	CallbackSuccessful  CallbackStatus = "successful"
	CallbackNoAnswer    CallbackStatus = "no_answer"
	CallbackLeftMessage CallbackStatus = "left_message"
	CallbackWrongNumber CallbackStatus = "wrong_number"
)

// Recordable reports whether staff may record this outcome; pending is the
// initial state only.
func (c CallbackStatus) Recordable() bool {
	return slices.Contains([]CallbackStatus{
		CallbackAttempted, CallbackSuccessful, CallbackNoAnswer, CallbackLeftMessage, CallbackWrongNumber,
	}, c)
}

type Intent string

const (
	IntentEmergency    Intent = "Emergency"
	IntentPrescription Intent = "Prescription"
	IntentResults      Intent = "Results"
	IntentBooking      Intent = "Booking"
	IntentBilling      Intent = "Billing"
	IntentReferral     Intent = "Referral"
	IntentAmbiguous    Intent = "Ambiguous"
	IntentOther        Intent = "Other"
)

type PMSSystem string

const (
	PMSBestPractice    PMSSystem = "best_practice"
	PMSMedicalDirector PMSSystem = "medical_director"
	PMSCliniko         PMSSystem = "cliniko"
	PMSOther           PMSSystem = "other"
)

func (p PMSSystem) Valid() bool {
	return slices.Contains([]PMSSystem{PMSBestPractice, PMSMedicalDirector, PMSCliniko, PMSOther}, p)
}

const (
	MinUrgencyLevel = 1
	MaxUrgencyLevel = 5
)

type Urgency struct {
	Level      int     `json:"level"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type LanguageInfo struct {
	Detected            string `json:"detected"`
	Code                string `json:"code,omitempty"`
	RequiresInterpreter bool   `json:"requires_interpreter"`
}

type ExtractedEntities struct {
	CallbackNumber       string   `json:"callback_number,omitempty"`
	CallbackNumberRaw    string   `json:"callback_number_raw,omitempty"`
	UrgencyKeywords      []string `json:"urgency_keywords,omitempty"`
	MedicationNames      []string `json:"medication_names,omitempty"`
	Symptoms             []string `json:"symptoms,omitempty"`
	MedicareNumberMasked string   `json:"medicare_number_masked,omitempty"`
	MentionedDoctor      string   `json:"mentioned_doctor,omitempty"`
	MentionedLocation    string   `json:"mentioned_location,omitempty"`
}

type LocationInfo struct {
	AssignedLocation   string   `json:"assigned_location,omitempty"`
	LocationConfidence float64  `json:"location_confidence"`
	RoutingReason      string   `json:"routing_reason,omitempty"`
	AvailableLocations []string `json:"available_locations,omitempty"`
}

type PatientMatch struct {
	MedicareMatched  bool    `json:"medicare_matched"`
	PatientID        string  `json:"patient_id,omitempty"`
	MatchConfidence  float64 `json:"match_confidence"`
	PreviousLocation string  `json:"previous_location,omitempty"`
}

type UIState struct {
	IsAmbiguous          bool   `json:"is_ambiguous"`
	NeedsManualListening bool   `json:"needs_manual_listening"`
	HighlightUrgent      bool   `json:"highlight_urgent"`
	TimeSinceCall        string `json:"time_since_call,omitempty"`
}

type Escalation struct {
	EscalationTriggered bool     `json:"escalation_triggered"`
	EmergencyAlertSent  bool     `json:"emergency_alert_sent"`
	InterventionStatus  string   `json:"intervention_status,omitempty"`
	TimestampEscalated  string   `json:"timestamp_escalated,omitempty"`
	EmergencyScript     string   `json:"emergency_script,omitempty"`
	SMSSentTo           string   `json:"sms_sent_to,omitempty"`
	ActionsTaken        []string `json:"actions_taken,omitempty"`
}

// Record is the client's copy of a triaged voicemail. The backend owns it; the
// client only ever replaces a Record wholesale by VoicemailID.
type Record struct {
	VoicemailID string        `json:"voicemail_id"`
	Language    string        `json:"language,omitempty"`
	LangInfo    *LanguageInfo `json:"language_info,omitempty"`

	Urgency    Urgency `json:"urgency"`
	Intent     Intent  `json:"intent"`
	Summary    string  `json:"summary"`
	ActionItem string  `json:"action_item,omitempty"`

	ExtractedEntities *ExtractedEntities `json:"extracted_entities,omitempty"`
	LocationInfo      *LocationInfo      `json:"location_info,omitempty"`
	PatientMatch      *PatientMatch      `json:"patient_match,omitempty"`
	UIState           *UIState           `json:"ui_state,omitempty"`
	Escalation        *Escalation        `json:"escalation,omitempty"`

	AudioFileURL        string `json:"audio_file_url,omitempty"`
	OriginalTranscript  string `json:"original_transcript,omitempty"`
	RedactedTranscript  string `json:"redacted_transcript,omitempty"`
	CallerPhoneRedacted string `json:"caller_phone_redacted,omitempty"`

	CreatedAt  Time   `json:"created_at"`
	Status     Status `json:"status"`
	AssignedTo string `json:"assigned_to,omitempty"`
	Notes      string `json:"notes,omitempty"`

	CallbackStatus      CallbackStatus `json:"callback_status,omitempty"`
	CallbackBy          string         `json:"callback_by,omitempty"`
	CallbackNotes       string         `json:"callback_notes,omitempty"`
	CallbackAttemptedAt *Time          `json:"callback_attempted_at,omitempty"`
	CallbackCompletedAt *Time          `json:"callback_completed_at,omitempty"`

	CallerPhoneHash     string   `json:"caller_phone_hash,omitempty"`
	RelatedVoicemailIDs []string `json:"related_voicemail_ids,omitempty"`
	CallCountToday      int      `json:"call_count_today,omitempty"`
	IsRepeatCaller      bool     `json:"is_repeat_caller"`

	EscalationAcknowledged   bool   `json:"escalation_acknowledged"`
	EscalationAcknowledgedAt *Time  `json:"escalation_acknowledged_at,omitempty"`
	EscalationAcknowledgedBy string `json:"escalation_acknowledged_by,omitempty"`
	EscalationReminderCount  int    `json:"escalation_reminder_count"`

	PMSPatientID     string    `json:"pms_patient_id,omitempty"`
	PMSLinked        bool      `json:"pms_linked"`
	PMSSystem        PMSSystem `json:"pms_system,omitempty"`
	PMSAppointmentID string    `json:"pms_appointment_id,omitempty"`
}

// Transcript prefers the redacted text; the original is only shown when no
// redacted copy exists.
func (r *Record) Transcript() string {
	if r.RedactedTranscript != "" {
		return r.RedactedTranscript
	}

	return r.OriginalTranscript
}

// LanguageLabel is the language name as the backend reports it.
func (r *Record) LanguageLabel() string {
	if r.Language != "" {
		return r.Language
	}

	if r.LangInfo != nil {
		return r.LangInfo.Detected
	}

	return ""
}

// Complete reports whether r looks like a full record rather than an
// acknowledgment body that merely echoes the id.
func (r *Record) Complete() bool {
	return r.VoicemailID != "" &&
		r.Urgency.Level >= MinUrgencyLevel &&
		r.Urgency.Level <= MaxUrgencyLevel &&
		!r.CreatedAt.IsZero()
}

// Clone returns a copy whose slices and nested structs are not shared with r.
func (r *Record) Clone() Record {
	out := *r

	if r.LangInfo != nil {
		info := *r.LangInfo
		out.LangInfo = &info
	}

	if r.ExtractedEntities != nil {
		entities := *r.ExtractedEntities
		entities.UrgencyKeywords = slices.Clone(r.ExtractedEntities.UrgencyKeywords)
		entities.MedicationNames = slices.Clone(r.ExtractedEntities.MedicationNames)
		entities.Symptoms = slices.Clone(r.ExtractedEntities.Symptoms)
		out.ExtractedEntities = &entities
	}

	if r.LocationInfo != nil {
		location := *r.LocationInfo
		location.AvailableLocations = slices.Clone(r.LocationInfo.AvailableLocations)
		out.LocationInfo = &location
	}

	if r.PatientMatch != nil {
		match := *r.PatientMatch
		out.PatientMatch = &match
	}

	if r.UIState != nil {
		state := *r.UIState
		out.UIState = &state
	}

	if r.Escalation != nil {
		escalation := *r.Escalation
		escalation.ActionsTaken = slices.Clone(r.Escalation.ActionsTaken)
		out.Escalation = &escalation
	}

	out.CallbackAttemptedAt = cloneTime(r.CallbackAttemptedAt)
	out.CallbackCompletedAt = cloneTime(r.CallbackCompletedAt)
	out.EscalationAcknowledgedAt = cloneTime(r.EscalationAcknowledgedAt)
	out.RelatedVoicemailIDs = slices.Clone(r.RelatedVoicemailIDs)

	return out
}

func cloneTime(t *Time) *Time {
	if t == nil {
		return nil
	}

	c := *t

	return &c
}
