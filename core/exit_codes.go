package core

// Exit codes for the service. Signal-based exits follow the Unix convention
// of 128 + signal number.
const (
	// ExitCodeSuccess indicates clean shutdown.
	ExitCodeSuccess = 0

	// ExitCodeError indicates the service stopped on an error.
	ExitCodeError = 1

	// ExitCodeSIGINT is 128 + 2 (SIGINT).
	ExitCodeSIGINT = 130

	// ExitCodeSIGTERM is 128 + 15 (SIGTERM).
	ExitCodeSIGTERM = 143
)

// ExitCodeName returns a human-readable name for an exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "success"
	case ExitCodeError:
		return "error"
	case ExitCodeSIGINT:
		return "interrupted (SIGINT)"
	case ExitCodeSIGTERM:
		return "terminated (SIGTERM)"
	default:
		return "unknown"
	}
}

// IsSignalExit reports whether the exit code indicates a signal-based
// termination.
func IsSignalExit(code int) bool {
	return code == ExitCodeSIGINT || code == ExitCodeSIGTERM
}
