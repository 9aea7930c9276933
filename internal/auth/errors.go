package auth

import "errors"

// Sentinel errors for the identity core. Handlers map these to status codes;
// anything not in this list is an internal fault that is logged in full and
// surfaced to clients as an opaque failure.
var (
	ErrHouseholdNotFound  = errors.New("household not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrMembershipNotFound = errors.New("not a member of this household")
	ErrRequestNotFound    = errors.New("no pending request for this member")
	ErrInvalidPin         = errors.New("invalid pin")
	ErrInvalidHouseToken  = errors.New("invalid household token")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidAction      = errors.New("token not valid for this action")
	ErrInvalidRefresh     = errors.New("invalid refresh token")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrPendingApproval    = errors.New("membership awaiting approval")
	ErrSuspended          = errors.New("account is suspended")
	ErrStateConflict      = errors.New("membership not in required state")
	ErrActivationRequired = errors.New("account activation required")
)

// ActivationRequiredError carries the activation token minted when an
// invited member presents a valid temporary PIN at login. Login does not
// complete; the client must call ActivateAccount with this token.
type ActivationRequiredError struct {
	ActivationToken string
}

func (e *ActivationRequiredError) Error() string {
	return ErrActivationRequired.Error()
}

func (e *ActivationRequiredError) Unwrap() error {
	return ErrActivationRequired
}
