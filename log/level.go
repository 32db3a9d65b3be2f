package log

import "strings"

// Level defines logging severity levels.
// Levels are ordered by severity, with higher values indicating more critical issues.
type Level int8

const (
	// DebugLevel contains debugging information useful during development and troubleshooting.
	DebugLevel Level = iota + 1

	// InfoLevel contains general informational messages about normal operation.
	InfoLevel

	// WarnLevel indicates potentially harmful situations that don't prevent operation.
	WarnLevel

	// ErrorLevel indicates serious problems that require attention.
	ErrorLevel
)

// String returns the human-readable string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string representation to a Level with case-insensitive parsing.
// Returns InfoLevel for unrecognized inputs, ensuring safe defaults in configuration scenarios.
func ParseLevel(levelStr string) Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	}
	return InfoLevel
}
