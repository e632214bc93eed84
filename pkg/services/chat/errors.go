package chat

import "errors"

var (
	ErrClosed        = errors.New("session closed")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNoActive      = errors.New("no active conversation")
	ErrNoCapture     = errors.New("audio capture not supported")
	ErrMicDenied     = errors.New("microphone access denied")
	ErrVoiceBusy     = errors.New("voice pipeline busy")
	ErrNotRecording  = errors.New("not recording")
	ErrNoDraft       = errors.New("no feedback draft")
	ErrFeedbackBusy  = errors.New("feedback is being submitted")
	ErrRatingUnset   = errors.New("rating unset")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrNoRecommend   = errors.New("no such recommendation")
)
