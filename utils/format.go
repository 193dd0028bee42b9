package utils

import (
	"fmt"
	"strings"
	"time"
)

// MessageType selects the color of a CLI message.
type MessageType int

// The message types used across the CLI application.
const (
	DefaultMessage MessageType = iota
	SuccessMessage
	ErrorMessage
	StatusMessage
	WarningMessage
)

// Colors used across the CLI application.
const (
	DefaultColor = "\x1b[0m"
	StatusColor  = "\x1b[36m"
	SuccessColor = "\x1b[32m"
	ErrorColor   = "\x1b[31m"
	WarningColor = "\x1b[33m"
)

var messageColors = map[MessageType]string{
	DefaultMessage: DefaultColor,
	SuccessMessage: SuccessColor,
	ErrorMessage:   ErrorColor,
	StatusMessage:  StatusColor,
	WarningMessage: WarningColor,
}

// DecorateText colors the message according to its type. Unknown types are returned unchanged.
func DecorateText(s string, msgType MessageType) string {
	color, ok := messageColors[msgType]
	if !ok {
		return s
	}
	return color + s + DefaultColor
}

// FormatTime formats a duration as a human readable value, e.g. "1h 2m 3.50s".
func FormatTime(d time.Duration) string {
	secs := d.Seconds() - float64(int64(d.Minutes()))*60
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}

	mins := int64(d.Minutes()) % 60
	hours := int64(d.Hours()) % 24
	days := int64(d.Hours()) / 24

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if days > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	parts = append(parts, fmt.Sprintf("%dm", mins), fmt.Sprintf("%.2fs", secs))
	return strings.Join(parts, " ")
}

// FormatShare renders a face shape with its share of the predictions, e.g. "Oval 75.0%".
func FormatShare(label string, percentage float64) string {
	return fmt.Sprintf("%s %.1f%%", label, percentage)
}
