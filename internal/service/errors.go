package service

import "errors"

var (
	// ErrValidation covers missing subject/body/recipients and rejected
	// files. Reported inline to the caller, never retried.
	ErrValidation = errors.New("validation failed")
	// ErrUpload means an object-store write failed; the whole send is
	// aborted and no message is created.
	ErrUpload = errors.New("attachment upload failed")
	// ErrUnknownGroup means a recipient group id is not one the directory
	// can resolve.
	ErrUnknownGroup = errors.New("unknown recipient group")
	// ErrForbidden means the caller is not a participant of the
	// conversation they tried to touch.
	ErrForbidden = errors.New("not a participant of this conversation")
)
