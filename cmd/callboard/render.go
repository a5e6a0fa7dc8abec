package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/offline"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/triage"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/voicemail"
	"github.com/goccy/go-json"
)

const summaryWidth = 60

func (c *cli) now() time.Time {
	return time.Now()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func renderCounts(w io.Writer, counts map[triage.Category]int, online bool, queued int) {
	parts := make([]string, 0, len(triage.Categories))
	for _, category := range triage.Categories {
		parts = append(parts, fmt.Sprintf("%s %d", category, counts[category]))
	}

	mode := "online"
	if !online {
		mode = "OFFLINE"
	}

	if queued > 0 {
		mode += fmt.Sprintf(" (%d queued)", queued)
	}

	_, _ = fmt.Fprintf(w, "%s | %s\n", mode, strings.Join(parts, " | "))
}

// flags renders the triage badges of rec.
func flags(rec *voicemail.Record) string {
	f := triage.Classify(rec)

	var badges []string

	switch {
	case f.Critical:
		badges = append(badges, "CRITICAL")
	case f.Urgent:
		badges = append(badges, "URGENT")
	case f.Ambiguous:
		badges = append(badges, "REVIEW")
	}

	if f.NeedsManualListening {
		badges = append(badges, "LISTEN")
	}

	if f.LowConfidence {
		badges = append(badges, "LOW-CONF")
	}

	if rec.IsRepeatCaller {
		badges = append(badges, fmt.Sprintf("REPEAT x%d", rec.CallCountToday))
	}

	return strings.Join(badges, ",")
}

func age(rec *voicemail.Record, now time.Time) string {
	sla := triage.EvaluateSLA(now, rec.CreatedAt.Time, rec.Urgency.Level)

	switch {
	case sla.Breached:
		return sla.Elapsed + " BREACHED"
	case sla.Warning:
		return sla.Elapsed + " !"
	default:
		return sla.Elapsed
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n-1]) + "…"
}

func renderList(w io.Writer, records []voicemail.Record, now time.Time) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No voicemails.")
		return err
	}

	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "ID\tLEVEL\tFLAGS\tSTATUS\tAGE\tINTENT\tLANGUAGE\tSUMMARY")

	for i := range records {
		rec := &records[i]

		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.VoicemailID,
			rec.Urgency.Level,
			flags(rec),
			rec.Status,
			age(rec, now),
			rec.Intent,
			rec.LanguageLabel(),
			truncate(rec.Summary, summaryWidth),
		)
	}

	return tw.Flush()
}

func renderDetail(w io.Writer, rec *voicemail.Record, now time.Time, original bool) {
	sla := triage.EvaluateSLA(now, rec.CreatedAt.Time, rec.Urgency.Level)

	_, _ = fmt.Fprintf(w, "%s  [%s]  %s\n", rec.VoicemailID, flags(rec), rec.Status)
	_, _ = fmt.Fprintf(w, "Urgency %d (confidence %.2f): %s\n", rec.Urgency.Level, rec.Urgency.Confidence, rec.Urgency.Reasoning)
	_, _ = fmt.Fprintf(w, "Received %s, %s ago", rec.CreatedAt.Local().Format("2006-01-02 15:04"), sla.Elapsed)

	if sla.Label != "" {
		_, _ = fmt.Fprintf(w, " (%s)", sla.Label)
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Intent: %s\nSummary: %s\n", rec.Intent, rec.Summary)

	if rec.ActionItem != "" {
		_, _ = fmt.Fprintf(w, "Action: %s\n", rec.ActionItem)
	}

	if lang := rec.LanguageLabel(); lang != "" {
		_, _ = fmt.Fprintf(w, "Language: %s", lang)

		if rec.LangInfo != nil && rec.LangInfo.RequiresInterpreter {
			_, _ = fmt.Fprint(w, " (interpreter required)")
		}

		_, _ = fmt.Fprintln(w)
	}

	if e := rec.ExtractedEntities; e != nil {
		if e.CallbackNumber != "" {
			_, _ = fmt.Fprintf(w, "Callback number: %s\n", e.CallbackNumber)
		}

		if len(e.Symptoms) > 0 {
			_, _ = fmt.Fprintf(w, "Symptoms: %s\n", strings.Join(e.Symptoms, ", "))
		}

		if len(e.MedicationNames) > 0 {
			_, _ = fmt.Fprintf(w, "Medications: %s\n", strings.Join(e.MedicationNames, ", "))
		}

		if e.MentionedDoctor != "" {
			_, _ = fmt.Fprintf(w, "Doctor: %s\n", e.MentionedDoctor)
		}
	}

	if rec.CallbackStatus != "" {
		_, _ = fmt.Fprintf(w, "Callback: %s by %s %s\n", rec.CallbackStatus, rec.CallbackBy, rec.CallbackNotes)
	}

	if rec.EscalationAcknowledged {
		_, _ = fmt.Fprintf(w, "Escalation acknowledged by %s\n", rec.EscalationAcknowledgedBy)
	} else if rec.Escalation != nil && rec.Escalation.EscalationTriggered {
		_, _ = fmt.Fprintf(w, "Escalation open, %d reminders sent\n", rec.EscalationReminderCount)
	}

	if rec.PMSLinked {
		_, _ = fmt.Fprintf(w, "PMS: %s patient %s\n", rec.PMSSystem, rec.PMSPatientID)
	}

	transcript := rec.Transcript()
	if original && rec.OriginalTranscript != "" {
		transcript = rec.OriginalTranscript
	}

	if transcript != "" {
		_, _ = fmt.Fprintf(w, "\nTranscript:\n%s\n", triage.AnnotatedTranscript(transcript))
	}
}

func renderPatients(w io.Writer, patients []voicemail.PMSPatient) error {
	if len(patients) == 0 {
		_, err := fmt.Fprintln(w, "No matching patients.")
		return err
	}

	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "PATIENT ID\tNAME\tDOB\tPHONE\tMATCH")

	for _, p := range patients {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.PatientID, p.Name, p.DOB, p.Phone, p.MatchType)
	}

	return tw.Flush()
}

func renderEscalations(w io.Writer, resp *voicemail.ActiveEscalations) error {
	if resp.Count == 0 {
		_, err := fmt.Fprintln(w, "No open escalations.")
		return err
	}

	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "ID\tLEVEL\tOPEN\tREMINDERS\tRE-ALERT\tSUMMARY")

	for _, e := range resp.Escalations {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%t\t%s\n",
			e.VoicemailID,
			e.UrgencyLevel,
			triage.FormatElapsed(int(e.MinutesSinceEscalation)),
			e.ReminderCount,
			e.NeedsReAlert,
			truncate(e.Summary, summaryWidth),
		)
	}

	return tw.Flush()
}

func renderDuplicates(w io.Writer, resp *voicemail.DuplicateSummary) error {
	if resp.TotalRepeatCallers == 0 {
		_, err := fmt.Fprintln(w, "No repeat callers.")
		return err
	}

	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "CALLER\tCALLS\tLATEST LEVEL\tVOICEMAILS")

	for _, key := range slices.Sorted(maps.Keys(resp.RepeatCallers)) {
		caller := resp.RepeatCallers[key]

		label := caller.PhoneRedacted
		if label == "" {
			label = key
		}

		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", label, caller.Count, caller.LatestUrgency, strings.Join(caller.VoicemailIDs, ","))
	}

	return tw.Flush()
}

func renderStats(w io.Writer, resp *voicemail.AnalyticsSummary) error {
	tw := newTable(w)

	_, _ = fmt.Fprintf(tw, "Total voicemails\t%d\n", resp.TotalVoicemails)
	_, _ = fmt.Fprintf(tw, "Pending\t%d\n", resp.PendingCount)
	_, _ = fmt.Fprintf(tw, "Processed today\t%d\n", resp.ProcessedToday)
	_, _ = fmt.Fprintf(tw, "Ambiguous\t%d\n", resp.AmbiguousCount)
	_, _ = fmt.Fprintf(tw, "Low confidence\t%d\n", resp.LowConfidenceCount)
	_, _ = fmt.Fprintf(tw, "Avg processing time\t%.0fms\n", resp.AvgProcessingTimeMS)

	for _, dist := range []struct {
		name   string
		values map[string]int
	}{
		{"Urgency", resp.UrgencyDistribution},
		{"Intent", resp.IntentDistribution},
		{"Language", resp.LanguageDistribution},
	} {
		for _, key := range slices.Sorted(maps.Keys(dist.values)) {
			_, _ = fmt.Fprintf(tw, "%s %s\t%d\n", dist.name, key, dist.values[key])
		}
	}

	return tw.Flush()
}

func renderQueue(w io.Writer, pending []offline.QueuedAction) error {
	if len(pending) == 0 {
		_, err := fmt.Fprintln(w, "Nothing waiting to sync.")
		return err
	}

	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "QUEUED AT\tTYPE\tVOICEMAIL\tDETAIL")

	for i := range pending {
		action := &pending[i]

		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			action.EnqueuedAt.Local().Format("2006-01-02 15:04:05"),
			action.Type,
			action.VoicemailID,
			string(action.Payload),
		)
	}

	return tw.Flush()
}
