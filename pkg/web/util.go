package web

import (
	"errors"
	"net/http"
	"reflect"
	"runtime"

	"github.com/cupogo/andvari/utils/zlog"

	"github.com/liut/parley/pkg/services/chat"
	"github.com/liut/parley/pkg/services/chatapi"
)

func logger() zlog.Logger {
	return zlog.Get()
}

func nameOfFunction(f interface{}) string {
	return runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()
}

// statusOf maps engine and service errors to a http status
func statusOf(err error) int {
	var se *chatapi.StatusError
	switch {
	case errors.Is(err, chat.ErrClosed), errors.Is(err, chat.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, chat.ErrMicDenied):
		return http.StatusForbidden
	case errors.Is(err, chat.ErrNoCapture):
		return http.StatusNotImplemented
	case errors.Is(err, chat.ErrVoiceBusy), errors.Is(err, chat.ErrNotRecording),
		errors.Is(err, chat.ErrFeedbackBusy):
		return http.StatusConflict
	case errors.Is(err, chat.ErrNoDraft), errors.Is(err, chat.ErrRatingUnset),
		errors.Is(err, chat.ErrInvalidRating), errors.Is(err, chat.ErrNoRecommend),
		errors.Is(err, chat.ErrNoActive):
		return http.StatusBadRequest
	case errors.As(err, &se):
		if se.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
