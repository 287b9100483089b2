package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/roamly/tripcache/schema"
)

// Usage label constants.
const (
	CriticalValue = "Critical" // Critical value
	HighValue     = "High"     // High value
	ModerateValue = "Moderate" // Moderate value
	LowValue      = "Low"      // Low value
)

// Color variables for console output.
var (
	CriticalColor = color.New(color.FgRed, color.Bold)     // criticalColor represents standard danger.
	HighColor     = color.New(color.FgMagenta, color.Bold) // highColor represents strong, distinct warning.
	ModerateColor = color.New(color.FgYellow)              // moderateColor represents standard caution, not bold.
	LowColor      = color.New(color.FgCyan)                // lowColor represents informational / low-priority signal.
	OKColor       = color.New(color.FgGreen)
)

// GetPlainLabel returns a plain text label for how full the cache is,
// based on its usage percentage.
func GetPlainLabel(usage float64) string {
	switch {
	case usage >= 90:
		return CriticalValue
	case usage >= 75:
		return HighValue
	case usage >= 50:
		return ModerateValue
	default:
		return LowValue
	}
}

// GetColorLabel returns a colored usage label for console output (table).
func GetColorLabel(usage float64) string {
	text := GetPlainLabel(usage)

	switch text {
	case CriticalValue:
		return CriticalColor.Sprint(text)
	case HighValue:
		return HighColor.Sprint(text)
	case ModerateValue:
		return ModerateColor.Sprint(text)
	default: // "Low"
		return LowColor.Sprint(text)
	}
}

// GetColorState returns a colored sync state for console output.
func GetColorState(state schema.SyncState) string {
	switch state {
	case schema.SyncingState:
		return ModerateColor.Sprint(string(state))
	case schema.BackoffWaitState:
		return CriticalColor.Sprint(string(state))
	default:
		return OKColor.Sprint(string(state))
	}
}

// SelectOutputFile returns the appropriate file handle for output.
// An empty path means os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetStoreDBFilePath returns the path to the SQLite DB file for the persistent store.
func GetStoreDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".tripcache.db"
	}
	return filepath.Join(homeDir, ".tripcache.db")
}

// TruncateKey truncates a cache key to a maximum width with ellipsis prefix.
// Requires maxWidth > 3 to leave room for the prefix and at least one character.
func TruncateKey(key string, maxWidth int) string {
	runes := []rune(key)
	if len(runes) > maxWidth && maxWidth > 3 {
		return "..." + string(runes[len(runes)-maxWidth+3:])
	}
	return key
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
