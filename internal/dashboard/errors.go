package dashboard

import "errors"

var (
	// ErrValidation wraps every rejection made before a request is sent.
	ErrValidation = errors.New("invalid action")

	ErrMissingStaffName      = errors.New("staff name is required")
	ErrMissingPatientID      = errors.New("pms patient id is required")
	ErrMissingSearchTerm     = errors.New("phone or name is required")
	ErrMissingVoicemailID    = errors.New("voicemail id is required")
	ErrUnknownStatus         = errors.New("unknown status")
	ErrUnknownCallbackStatus = errors.New("unknown callback status")
	ErrUnknownPMSSystem      = errors.New("unknown pms system")

	ErrRequiresConnectivity = errors.New("action requires a connection to the voicemail api")

	// ErrQueuedUnseen means the action was queued for a record the local list
	// does not hold, so there is no record to return.
	ErrQueuedUnseen = errors.New("action queued for a voicemail not in the current list")
)
