package events

import (
	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// ToastSink shows failure notices as desktop notifications.
type ToastSink struct {
	title  string
	logger *zap.Logger
	notify func(title, message string) error
}

// NewToastSink creates a sink that titles its toasts with title.
func NewToastSink(title string, logger *zap.Logger) *ToastSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToastSink{
		title:  title,
		logger: logger,
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// Notify implements Sink. Only error statuses produce a toast.
func (s *ToastSink) Notify(status, message string) {
	if !IsErrorStatus(status) {
		return
	}
	if err := s.notify(s.title, message); err != nil {
		s.logger.Debug("Desktop notification failed", zap.String("status", status), zap.Error(err))
	}
}
