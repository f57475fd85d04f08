package workflow

import (
	"errors"
)

var (
	ErrWrongStep          = errors.New("wizard is not at that step")
	ErrBusy               = errors.New("another request is in flight")
	ErrStale              = errors.New("response superseded by a newer request")
	ErrNoSelection        = errors.New("no approval request selected")
	ErrUnknownApproval    = errors.New("approval request is not in the pending list")
	ErrUnauthorizedWallet = errors.New("Your wallet is not authorized as a Higher Authority")
	ErrNoSession          = errors.New("no active session")
)

// Messages shown for client-side validation failures
const (
	MsgRequiredFields   = "Please fill all required fields"
	MsgBudgetPositive   = "Budget must be greater than 0"
	MsgBudgetNumber     = "Budget must be a valid number"
	MsgProposalRequired = "Project proposal is required"
	MsgGPSPhotoRequired = "At least one GPS photo is required"
	MsgRejectionReason  = "Please provide rejection reason"
	MsgCredentials      = "Please enter username and password"
	MsgUploadFailed     = "Failed to upload documents"
	MsgCreateFailed     = "Failed to create project"
	MsgSubmitFailed     = "Failed to submit"
	MsgDecisionFailed   = "Failed to process decision"
	MsgApprovalsFailed  = "Failed to load pending approvals"
	MsgDocumentsFailed  = "Failed to load documents"
	MsgInvalidDecision  = "Decision must be Approved or Rejected"
	MsgInvalidCategory  = "Unknown project category"
)

// ValidationError is a check that failed before any request was sent
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// IsValidation reports whether err was raised by a client-side check
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// OpError is a failed remote step. Message is what the user sees; Err is the cause.
type OpError struct {
	Message string
	Err     error
}

func (e *OpError) Error() string {
	return e.Message + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}
