package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/dashboard"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/triage"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/voicemail"
	"github.com/spf13/cobra"
)

// load fills the dashboard, cache first. A failed fetch is only fatal when
// there is nothing cached to show.
func (c *cli) load(cmd *cobra.Command) error {
	err := c.app.Dashboard.Load(cmd.Context())

	state := c.app.Dashboard.ReadState()
	if err == nil && state.Err == nil {
		return nil
	}

	if len(c.app.Dashboard.Records()) == 0 {
		if err == nil {
			err = state.Err
		}

		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Could not load voicemails: %v\nRun the command again to retry.\n", err)

		return err
	}

	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Showing cached voicemails from %s; the voicemail API could not be reached.\n",
		state.FetchedAt.Local().Format("2006-01-02 15:04"))

	return nil
}

func (c *cli) listCmd() *cobra.Command {
	var (
		category    string
		search      string
		filter      voicemail.FilterState
		showActions bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List voicemails in triage order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := triage.ParseCategory(category)
			if err != nil {
				return err
			}

			filter.HideOldActioned = !showActions
			c.app.Dashboard.SetFilter(filter)

			err = c.load(cmd)
			if err != nil {
				return err
			}

			view := c.app.Dashboard.View(triage.Criteria{Category: parsed, Query: search})

			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), view)
			}

			renderCounts(cmd.OutOrStdout(), c.app.Dashboard.Counts(), c.app.Dashboard.Online(), c.app.Queue.Len())

			return renderList(cmd.OutOrStdout(), view, c.now())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&category, "category", "c", "all", "all, critical, urgent, review, pending, actioned or archived")
	flags.StringVarP(&search, "search", "s", "", "search summary, transcript, intent and language")
	flags.StringVar(&filter.Phone, "phone", "", "filter by caller phone")
	flags.StringVar(&filter.Symptom, "symptom", "", "filter by symptom")
	flags.StringVar(&filter.Medication, "medication", "", "filter by medication")
	flags.StringVar(&filter.Doctor, "doctor", "", "filter by mentioned doctor")
	flags.BoolVar(&showActions, "show-old-actioned", false, "include voicemails actioned more than 48 hours ago")

	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	var original bool

	cmd := &cobra.Command{
		Use:   "show <voicemail-id>",
		Short: "Show one voicemail with its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := c.load(cmd)
			if err != nil {
				return err
			}

			rec, ok := c.app.Dashboard.Record(args[0])
			if !ok {
				fetched, err := c.app.BackendClient.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				rec = *fetched
			}

			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), rec)
			}

			renderDetail(cmd.OutOrStdout(), &rec, c.now(), original)

			return nil
		},
	}

	cmd.Flags().BoolVar(&original, "original", false, "show the unredacted transcript when present")

	return cmd
}

func (c *cli) markCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark <voicemail-id> <pending|processed|actioned|archived>",
		Short: "Change a voicemail's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.mutate(cmd, func(ctx context.Context) (*voicemail.Record, error) {
				status := voicemail.Status(strings.ToLower(args[1]))
				return c.app.Dashboard.SetStatus(ctx, args[0], status)
			})
		},
	}
}

func (c *cli) callbackCmd() *cobra.Command {
	var req voicemail.CallbackRequest

	var status string

	cmd := &cobra.Command{
		Use:   "callback <voicemail-id>",
		Short: "Record the outcome of a callback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Status = voicemail.CallbackStatus(strings.ToLower(status))

			return c.mutate(cmd, func(ctx context.Context) (*voicemail.Record, error) {
				return c.app.Dashboard.RecordCallback(ctx, args[0], req)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&status, "status", "", "attempted, successful, no_answer, left_message or wrong_number")
	flags.StringVar(&req.By, "by", "", "staff member who called back")
	flags.StringVar(&req.Notes, "notes", "", "free-text notes")

	_ = cmd.MarkFlagRequired("status")

	return cmd
}

func (c *cli) ackCmd() *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "ack <voicemail-id>",
		Short: "Acknowledge an escalation to stop re-alerts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.mutate(cmd, func(ctx context.Context) (*voicemail.Record, error) {
				return c.app.Dashboard.AcknowledgeEscalation(ctx, args[0], by)
			})
		},
	}

	cmd.Flags().StringVar(&by, "by", "", "staff member acknowledging")

	return cmd
}

func (c *cli) linkPMSCmd() *cobra.Command {
	var (
		system    string
		patientID string
	)

	cmd := &cobra.Command{
		Use:   "link-pms <voicemail-id>",
		Short: "Link a voicemail to a practice management system patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.mutate(cmd, func(ctx context.Context) (*voicemail.Record, error) {
				return c.app.Dashboard.LinkPMS(ctx, args[0], voicemail.PMSLinkRequest{
					System:    voicemail.PMSSystem(system),
					PatientID: patientID,
				})
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&system, "system", string(voicemail.PMSBestPractice), "best_practice, medical_director, cliniko or other")
	flags.StringVar(&patientID, "patient-id", "", "patient id in the PMS")

	_ = cmd.MarkFlagRequired("patient-id")

	return cmd
}

func (c *cli) pmsSearchCmd() *cobra.Command {
	var system, phone, name string

	cmd := &cobra.Command{
		Use:   "pms-search",
		Short: "Search a practice management system for a patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			patients, err := c.app.Dashboard.SearchPMS(cmd.Context(), voicemail.PMSSystem(system), phone, name)
			if err != nil {
				return err
			}

			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), patients)
			}

			return renderPatients(cmd.OutOrStdout(), patients)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&system, "system", string(voicemail.PMSBestPractice), "best_practice, medical_director, cliniko or other")
	flags.StringVar(&phone, "phone", "", "patient phone number")
	flags.StringVar(&name, "name", "", "patient name")

	return cmd
}

func (c *cli) remindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remind <voicemail-id>",
		Short: "Re-alert staff about an unacknowledged escalation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := c.load(cmd)
			if err != nil && c.app.Dashboard.Online() {
				return err
			}

			result, err := c.app.Dashboard.SendReminder(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: reminder #%d sent\n", args[0], result.ReminderCount)

			return err
		},
	}
}

func (c *cli) escalationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "escalations",
		Short: "List escalations still waiting for acknowledgment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := c.app.BackendClient.ActiveEscalations(cmd.Context())
			if err != nil {
				return err
			}

			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), resp)
			}

			return renderEscalations(cmd.OutOrStdout(), resp)
		},
	}
}

func (c *cli) duplicatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "duplicates",
		Short: "Show callers who left several voicemails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := c.app.BackendClient.DuplicateSummary(cmd.Context())
			if err != nil {
				return err
			}

			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), resp)
			}

			return renderDuplicates(cmd.OutOrStdout(), resp)
		},
	}
}

func (c *cli) callbacksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "callbacks",
		Short: "List voicemails still waiting for a callback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := c.app.BackendClient.PendingCallbacks(cmd.Context())
			if err != nil {
				return err
			}

			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), resp)
			}

			return renderList(cmd.OutOrStdout(), triage.View(resp.Voicemails, triage.Criteria{}), c.now())
		},
	}
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show analytics for the voicemail inbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := c.app.BackendClient.AnalyticsSummary(cmd.Context())
			if err != nil {
				return err
			}

			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), resp)
			}

			return renderStats(cmd.OutOrStdout(), resp)
		},
	}
}

func (c *cli) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Send actions queued while offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.offline {
				return errors.New("sync needs a connection; drop --offline")
			}

			report, err := c.app.Dashboard.Sync(cmd.Context())

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "attempted=%d succeeded=%d failed=%d remaining=%d\n",
				report.Attempted, report.Succeeded, report.Failed, report.Remaining)

			return err
		},
	}
}

func (c *cli) queueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show actions waiting to sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pending := c.app.Queue.Pending()

			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), pending)
			}

			return renderQueue(cmd.OutOrStdout(), pending)
		},
	}
}

// mutate loads the list so the change is applied to a known record, runs fn
// and prints the result.
func (c *cli) mutate(cmd *cobra.Command, fn func(ctx context.Context) (*voicemail.Record, error)) error {
	err := c.load(cmd)
	if err != nil && c.app.Dashboard.Online() {
		return err
	}

	rec, err := fn(cmd.Context())
	if errors.Is(err, dashboard.ErrQueuedUnseen) {
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Queued; %d actions waiting to sync.\n", c.app.Queue.Len())
		return err
	}

	if err != nil {
		return err
	}

	if rec == nil {
		return nil
	}

	if c.jsonOut {
		return writeJSON(cmd.OutOrStdout(), rec)
	}

	return renderList(cmd.OutOrStdout(), []voicemail.Record{*rec}, c.now())
}
