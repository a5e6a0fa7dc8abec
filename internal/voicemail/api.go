package voicemail

import (
	"net/url"
	"strconv"
)

// FilterState shapes the list request; the backend applies it.
type FilterState struct {
	Phone           string
	Symptom         string
	Medication      string
	Doctor          string
	HideOldActioned bool
}

type ListQuery struct {
	FilterState

	PageSize int
}

func (q ListQuery) Encode() string {
	values := url.Values{}

	if q.PageSize > 0 {
		values.Set("page_size", strconv.Itoa(q.PageSize))
	}

	setIfNotEmpty(values, "phone", q.Phone)
	setIfNotEmpty(values, "symptom", q.Symptom)
	setIfNotEmpty(values, "medication", q.Medication)
	setIfNotEmpty(values, "doctor", q.Doctor)
	values.Set("hide_old_actioned", strconv.FormatBool(q.HideOldActioned))

	return values.Encode()
}

func setIfNotEmpty(values url.Values, key, value string) {
	if value != "" {
		values.Set(key, value)
	}
}

type ListResponse struct {
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
	Items    []Record `json:"items"`
}

type StatusUpdate struct {
	Status Status `json:"status"`
}

type CallbackRequest struct {
	Status CallbackStatus `json:"callback_status"`
	By     string         `json:"callback_by"`
	Notes  string         `json:"notes,omitempty"`
}

type PMSLinkRequest struct {
	System    PMSSystem `json:"pms_system"`
	PatientID string    `json:"pms_patient_id"`
}

type PMSPatient struct {
	PatientID string `json:"patient_id"`
	Name      string `json:"name"`
	DOB       string `json:"dob"`
	Phone     string `json:"phone,omitempty"`
	MatchType string `json:"match_type,omitempty"`
}

// PMSSearchResponse accepts both the `results` and `patients` spellings of the
// result list.
type PMSSearchResponse struct {
	System   PMSSystem    `json:"pms_system,omitempty"`
	Count    int          `json:"count"`
	Results  []PMSPatient `json:"results,omitempty"`
	Patients []PMSPatient `json:"patients,omitempty"`
	Error    string       `json:"error,omitempty"`
}

func (r *PMSSearchResponse) Matches() []PMSPatient {
	if len(r.Results) > 0 {
		return r.Results
	}

	return r.Patients
}

type ActiveEscalation struct {
	VoicemailID            string  `json:"voicemail_id"`
	Summary                string  `json:"summary"`
	UrgencyLevel           int     `json:"urgency_level"`
	EscalatedAt            string  `json:"escalated_at"`
	MinutesSinceEscalation float64 `json:"minutes_since_escalation"`
	NeedsReAlert           bool    `json:"needs_re_alert"`
	ReminderCount          int     `json:"reminder_count"`
	CallbackNumber         string  `json:"callback_number,omitempty"`
}

type ActiveEscalations struct {
	Count       int                `json:"count"`
	Escalations []ActiveEscalation `json:"escalations"`
}

type RepeatCaller struct {
	Count         int      `json:"count"`
	VoicemailIDs  []string `json:"voicemail_ids"`
	PhoneRedacted string   `json:"phone_redacted,omitempty"`
	LatestUrgency int      `json:"latest_urgency"`
}

type DuplicateSummary struct {
	TotalRepeatCallers int                     `json:"total_repeat_callers"`
	RepeatCallers      map[string]RepeatCaller `json:"repeat_callers"`
}

type PendingCallbacks struct {
	Count      int      `json:"count"`
	Voicemails []Record `json:"voicemails"`
}

type ReminderResult struct {
	Status        string `json:"status"`
	ReminderCount int    `json:"reminder_count"`
}

type AnalyticsSummary struct {
	TotalVoicemails      int            `json:"total_voicemails"`
	PendingCount         int            `json:"pending_count"`
	ProcessedToday       int            `json:"processed_today"`
	UrgencyDistribution  map[string]int `json:"urgency_distribution"`
	IntentDistribution   map[string]int `json:"intent_distribution"`
	AvgProcessingTimeMS  float64        `json:"avg_processing_time_ms"`
	LanguageDistribution map[string]int `json:"language_distribution"`
	AmbiguousCount       int            `json:"ambiguous_count"`
	LowConfidenceCount   int            `json:"low_confidence_count"`
}
