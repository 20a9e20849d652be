package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrInvalidIdentifier   = fmt.Errorf("invalid participant identifier")
	ErrEmptyMessage        = fmt.Errorf("message is empty")
	ErrNoCounterpart       = fmt.Errorf("no counterpart selected")
	ErrSubscriptionFailure = fmt.Errorf("subscription failure")
	ErrPublishFailure      = fmt.Errorf("publish failure")

	ErrInvalidPath = fmt.Errorf("invalid store path")
	ErrStoreClosed = fmt.Errorf("store is closed")
	ErrNilCallback = fmt.Errorf("snapshot callback is nil")

	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrInvalidProfile     = fmt.Errorf("invalid profile")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrNotLoggedIn        = fmt.Errorf("no user logged in")
	ErrParticipantMissing = fmt.Errorf("participant record not found")
)
