package main

// Exit codes for outclash

const (
	// ExitCodeSuccess indicates normal program termination, including a
	// request forwarded to an already running instance
	ExitCodeSuccess = 0

	// ExitCodeGeneralError indicates a generic error, also used when a
	// restart could not spawn the new instance
	ExitCodeGeneralError = 1

	// ExitCodePortConflict indicates the embedded server port is taken by
	// something that is not outclash
	ExitCodePortConflict = 2

	// ExitCodeConfigError indicates the settings could not be loaded
	ExitCodeConfigError = 4
)

// exitCodeDescription returns a human-readable description of the exit code
func exitCodeDescription(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "Success"
	case ExitCodeGeneralError:
		return "General error"
	case ExitCodePortConflict:
		return "Port conflict - address already in use"
	case ExitCodeConfigError:
		return "Configuration error"
	default:
		return "Unknown error"
	}
}

// exitError carries a process exit code out of a cobra command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return exitCodeDescription(e.code) + ": " + e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }
