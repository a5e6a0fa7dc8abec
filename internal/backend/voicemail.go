package backend

import (
	"context"
	"net/http"
	"net/url"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/voicemail"
	"github.com/goccy/go-json"
)

const voicemailPath = "voicemail"

// List returns the records matching q. The backend applies FilterState.
func (c *Client) List(ctx context.Context, q voicemail.ListQuery) (*voicemail.ListResponse, error) {
	apiURL, err := c.endpoint(q.Encode(), voicemailPath, "/")
	if err != nil {
		return nil, err
	}

	var out voicemail.ListResponse

	err = c.read(ctx, request{operation: "list", method: http.MethodGet, url: apiURL}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) Get(ctx context.Context, voicemailID string) (*voicemail.Record, error) {
	apiURL, err := c.endpoint("", voicemailPath, url.PathEscape(voicemailID))
	if err != nil {
		return nil, err
	}

	var out voicemail.Record

	err = c.read(ctx, request{
		operation:   "get",
		method:      http.MethodGet,
		url:         apiURL,
		voicemailID: voicemailID,
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) UpdateStatus(
	ctx context.Context,
	voicemailID string,
	status voicemail.Status,
	idempotencyKey string,
) (*voicemail.Record, error) {
	apiURL, err := c.endpoint("", voicemailPath, url.PathEscape(voicemailID))
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(voicemail.StatusUpdate{Status: status})
	if err != nil {
		return nil, err
	}

	var out voicemail.Record

	err = c.write(ctx, request{
		operation:      "update_status",
		method:         http.MethodPatch,
		url:            apiURL,
		voicemailID:    voicemailID,
		body:           body,
		idempotencyKey: idempotencyKey,
	}, &out)
	if err != nil {
		return nil, err
	}

	return c.complete(ctx, voicemailID, &out)
}

func (c *Client) RecordCallback(
	ctx context.Context,
	voicemailID string,
	callback voicemail.CallbackRequest,
	idempotencyKey string,
) (*voicemail.Record, error) {
	query := url.Values{}
	query.Set("callback_status", string(callback.Status))
	query.Set("callback_by", callback.By)

	if callback.Notes != "" {
		query.Set("notes", callback.Notes)
	}

	apiURL, err := c.endpoint(query.Encode(), voicemailPath, url.PathEscape(voicemailID), "callback")
	if err != nil {
		return nil, err
	}

	var out voicemail.Record

	err = c.write(ctx, request{
		operation:      "record_callback",
		method:         http.MethodPost,
		url:            apiURL,
		voicemailID:    voicemailID,
		idempotencyKey: idempotencyKey,
	}, &out)
	if err != nil {
		return nil, err
	}

	return c.complete(ctx, voicemailID, &out)
}

// AcknowledgeEscalation stops re-alerts for the record's escalation.
func (c *Client) AcknowledgeEscalation(
	ctx context.Context,
	voicemailID string,
	acknowledgedBy string,
	idempotencyKey string,
) (*voicemail.Record, error) {
	query := url.Values{}
	query.Set("acknowledged_by", acknowledgedBy)

	apiURL, err := c.endpoint(query.Encode(), voicemailPath, url.PathEscape(voicemailID), "acknowledge-escalation")
	if err != nil {
		return nil, err
	}

	var out voicemail.Record

	err = c.write(ctx, request{
		operation:      "acknowledge_escalation",
		method:         http.MethodPost,
		url:            apiURL,
		voicemailID:    voicemailID,
		idempotencyKey: idempotencyKey,
	}, &out)
	if err != nil {
		return nil, err
	}

	return c.complete(ctx, voicemailID, &out)
}

func (c *Client) SendReminder(
	ctx context.Context,
	voicemailID string,
	idempotencyKey string,
) (*voicemail.ReminderResult, error) {
	apiURL, err := c.endpoint("", voicemailPath, url.PathEscape(voicemailID), "send-reminder")
	if err != nil {
		return nil, err
	}

	var out voicemail.ReminderResult

	err = c.write(ctx, request{
		operation:      "send_reminder",
		method:         http.MethodPost,
		url:            apiURL,
		voicemailID:    voicemailID,
		idempotencyKey: idempotencyKey,
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// SearchPMS looks a patient up by phone or name in one practice system.
func (c *Client) SearchPMS(
	ctx context.Context,
	system voicemail.PMSSystem,
	phone string,
	name string,
) (*voicemail.PMSSearchResponse, error) {
	query := url.Values{}
	query.Set("pms_system", string(system))

	if phone != "" {
		query.Set("phone", phone)
	}

	if name != "" {
		query.Set("name", name)
	}

	apiURL, err := c.endpoint(query.Encode(), voicemailPath, "pms", "search")
	if err != nil {
		return nil, err
	}

	var out voicemail.PMSSearchResponse

	err = c.read(ctx, request{operation: "pms_search", method: http.MethodGet, url: apiURL}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) LinkPMS(
	ctx context.Context,
	voicemailID string,
	link voicemail.PMSLinkRequest,
	idempotencyKey string,
) (*voicemail.Record, error) {
	query := url.Values{}
	query.Set("pms_system", string(link.System))
	query.Set("pms_patient_id", link.PatientID)

	apiURL, err := c.endpoint(query.Encode(), voicemailPath, url.PathEscape(voicemailID), "link-pms")
	if err != nil {
		return nil, err
	}

	var out voicemail.Record

	err = c.write(ctx, request{
		operation:      "link_pms",
		method:         http.MethodPost,
		url:            apiURL,
		voicemailID:    voicemailID,
		idempotencyKey: idempotencyKey,
	}, &out)
	if err != nil {
		return nil, err
	}

	return c.complete(ctx, voicemailID, &out)
}

func (c *Client) ActiveEscalations(ctx context.Context) (*voicemail.ActiveEscalations, error) {
	var out voicemail.ActiveEscalations

	err := c.getJSON(ctx, "active_escalations", &out, voicemailPath, "escalations", "active")
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) DuplicateSummary(ctx context.Context) (*voicemail.DuplicateSummary, error) {
	var out voicemail.DuplicateSummary

	err := c.getJSON(ctx, "duplicate_summary", &out, voicemailPath, "duplicates", "summary")
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) PendingCallbacks(ctx context.Context) (*voicemail.PendingCallbacks, error) {
	var out voicemail.PendingCallbacks

	err := c.getJSON(ctx, "pending_callbacks", &out, voicemailPath, "callbacks", "pending")
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) AnalyticsSummary(ctx context.Context) (*voicemail.AnalyticsSummary, error) {
	var out voicemail.AnalyticsSummary

	err := c.getJSON(ctx, "analytics_summary", &out, "analytics", "summary")
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// Ping checks the service health endpoint, which lives at the server root
// rather than under the versioned API prefix.
func (c *Client) Ping(ctx context.Context) error {
	apiURL, err := url.JoinPath(c.rootURL, "health")
	if err != nil {
		return err
	}

	return c.write(ctx, request{operation: "ping", method: http.MethodGet, url: apiURL}, nil)
}

func (c *Client) getJSON(ctx context.Context, operation string, out any, elem ...string) error {
	apiURL, err := c.endpoint("", elem...)
	if err != nil {
		return err
	}

	return c.read(ctx, request{operation: operation, method: http.MethodGet, url: apiURL}, out)
}

// complete re-reads the record when a mutation answered with a status object
// instead of the updated record.
func (c *Client) complete(ctx context.Context, voicemailID string, rec *voicemail.Record) (*voicemail.Record, error) {
	if rec.Complete() {
		return rec, nil
	}

	return c.Get(ctx, voicemailID)
}
