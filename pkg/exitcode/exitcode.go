// Package exitcode provides standardized exit codes for pyneat
package exitcode

// Exit codes for the pyneat CLI. Findings never affect the exit code;
// only an unresolvable target or an internal failure is non-zero.
const (
	Success      = 0
	GeneralError = 1
	ConfigError  = 2
	UsageError   = 3
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case UsageError:
		return "Usage error"
	default:
		return "Unknown error"
	}
}
