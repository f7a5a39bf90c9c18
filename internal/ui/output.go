package ui

import "fmt"

// Unicode symbols for status indicators
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolInfo    = "ℹ"
)

// Success prefixes msg with a check mark.
func Success(msg string) string {
	return SymbolSuccess + " " + msg
}

// Successf is Success with formatting.
func Successf(format string, args ...any) string {
	return Success(fmt.Sprintf(format, args...))
}

// Error prefixes msg with a cross.
func Error(msg string) string {
	return SymbolError + " " + msg
}

// Warning prefixes msg with a warning sign.
func Warning(msg string) string {
	return SymbolWarning + " " + msg
}

// Info prefixes msg with an info sign.
func Info(msg string) string {
	return SymbolInfo + " " + msg
}

// Header returns a styled section header.
func Header(msg string) string {
	return Bold.Render(msg)
}

// ID renders an entity id.
func ID(id string) string {
	return AccentBold.Render(id)
}

// Hint returns muted hint text.
func Hint(msg string) string {
	return Muted.Render(msg)
}

// Count returns "n singular" or "n plural".
func Count(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
