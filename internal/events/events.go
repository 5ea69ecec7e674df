package events

import "time"

// Type names a frontend-facing event.
type Type string

const (
	// TypeNotice carries a status/message pair shown to the user.
	TypeNotice Type = "notice_message"
	// TypeStartupCompleted tells the frontend the backend finished booting.
	TypeStartupCompleted Type = "startup-completed"
	// TypeRefreshClash asks the frontend to reload engine state.
	TypeRefreshClash Type = "verge://refresh-clash-config"
	// TypeRefreshVerge asks the frontend to reload app settings.
	TypeRefreshVerge Type = "verge://refresh-verge-config"
	// TypeRefreshProfiles asks the frontend to reload the profile list.
	TypeRefreshProfiles Type = "verge://refresh-profiles-config"
	// TypeStageChanged reports a UI readiness stage transition.
	TypeStageChanged Type = "ui.stage"
	// TypeEval carries a script for the frontend to run.
	TypeEval Type = "ui.eval"
	// TypeWindowClose tells the frontend its window was torn down.
	TypeWindowClose Type = "ui.close"
)

// Notice statuses.
const (
	StatusSetConfigOK        = "set_config::ok"
	StatusSetConfigError     = "set_config::error"
	StatusRestartAppInfo     = "restart_app::info"
	StatusRestartAppError    = "restart_app::error"
	StatusImportSubURLOK     = "import_sub_url::ok"
	StatusImportSubURLError  = "import_sub_url::error"
	StatusChangeModeError    = "change_mode::error"
	StatusStartupScriptError = "startup_script::error"
	StatusUpdateAvailable    = "update::info"
)

// Event is a typed notification published on the bus.
type Event struct {
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func newEvent(eventType Type, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Status returns the notice status, or "" for non-notice events.
func (e Event) Status() string {
	if e.Type != TypeNotice {
		return ""
	}
	s, _ := e.Payload["status"].(string)
	return s
}

// Message returns the notice message, or "" for non-notice events.
func (e Event) Message() string {
	if e.Type != TypeNotice {
		return ""
	}
	s, _ := e.Payload["message"].(string)
	return s
}
