// Package schedule decides whether the queue is currently open: manual
// pause first, then the weekly work-day set, then the time windows
// configured for today's day category.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/snake33madb2017/turno-barberia/internal/models"
)

const (
	defaultPauseMessage = "We are taking a short break. Back soon."
	restDayMessage      = "We are closed today. Come back tomorrow."
	noWindowsMessage    = "No turn hours configured for today."
)

type Status struct {
	IsOpen bool   `json:"is_open"`
	Reason string `json:"reason"`
}

// Evaluate applies the gate precedence for the given instant. The first
// applicable rule wins: pause, rest day, then the window list.
func Evaluate(now time.Time, settings models.Settings) Status {
	if settings.PauseActive {
		message := settings.PauseMessage
		if message == "" {
			message = defaultPauseMessage
		}
		return Status{Reason: message}
	}

	weekday := int(now.Weekday())
	if !containsDay(settings.Workdays, weekday) {
		return Status{Reason: restDayMessage}
	}

	windows := windowsFor(settings, weekday)
	if len(windows) == 0 {
		return Status{Reason: noWindowsMessage}
	}

	minute := now.Hour()*60 + now.Minute()
	for _, window := range windows {
		if minute >= window.Start && minute <= window.End {
			return Status{IsOpen: true}
		}
	}
	return Status{Reason: "Turn hours: " + formatWindows(windows)}
}

// windowsFor returns the window list of the first category covering the
// weekday. Categories are configuration, not code: a single-window day and
// a split morning/afternoon day are both just lists.
func windowsFor(settings models.Settings, weekday int) []models.Window {
	for _, category := range settings.Categories {
		if containsDay(category.Days, weekday) {
			return category.Windows
		}
	}
	return nil
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

func formatWindows(windows []models.Window) string {
	parts := make([]string, 0, len(windows))
	for _, window := range windows {
		parts = append(parts, fmt.Sprintf("%s - %s", formatMinute(window.Start), formatMinute(window.End)))
	}
	return strings.Join(parts, ", ")
}

func formatMinute(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
