package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/snake33madb2017/turno-barberia/internal/models"
)

// 2026-08-24 is a Monday.
func monday(hour, minute int) time.Time {
	return time.Date(2026, 8, 24, hour, minute, 0, 0, time.UTC)
}

func TestPauseWinsOverEverything(t *testing.T) {
	settings := models.DefaultSettings()
	settings.PauseActive = true
	settings.PauseMessage = "Back in ten minutes."

	status := Evaluate(monday(10, 0), settings)
	if status.IsOpen {
		t.Fatal("expected closed while paused")
	}
	if status.Reason != "Back in ten minutes." {
		t.Fatalf("reason = %q", status.Reason)
	}
}

func TestPauseDefaultMessage(t *testing.T) {
	settings := models.DefaultSettings()
	settings.PauseActive = true
	settings.PauseMessage = ""

	status := Evaluate(monday(10, 0), settings)
	if status.IsOpen || status.Reason == "" {
		t.Fatalf("expected closed with default pause message, got %+v", status)
	}
}

func TestRestDay(t *testing.T) {
	settings := models.DefaultSettings()
	sunday := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)

	status := Evaluate(sunday, settings)
	if status.IsOpen {
		t.Fatal("expected closed on rest day")
	}
	if status.Reason != restDayMessage {
		t.Fatalf("reason = %q", status.Reason)
	}
}

func TestSingleWindow(t *testing.T) {
	settings := models.DefaultSettings()

	cases := []struct {
		hour, minute int
		open         bool
	}{
		{8, 59, false},
		{9, 0, true},
		{14, 30, true},
		{20, 15, true},
		{20, 16, false},
	}
	for _, tt := range cases {
		status := Evaluate(monday(tt.hour, tt.minute), settings)
		if status.IsOpen != tt.open {
			t.Fatalf("at %02d:%02d open=%v, want %v (reason %q)", tt.hour, tt.minute, status.IsOpen, tt.open, status.Reason)
		}
	}
}

func TestSplitWindowsWithMiddayBreak(t *testing.T) {
	settings := models.DefaultSettings()
	settings.Categories = []models.DayCategory{
		{
			Name: "split",
			Days: []int{1, 2, 3, 4, 5},
			Windows: []models.Window{
				{Start: 9 * 60, End: 13 * 60},
				{Start: 16 * 60, End: 20 * 60},
			},
		},
	}

	if status := Evaluate(monday(10, 0), settings); !status.IsOpen {
		t.Fatalf("expected open in morning window, got %+v", status)
	}
	if status := Evaluate(monday(14, 30), settings); status.IsOpen {
		t.Fatal("expected closed during midday break")
	}
	if status := Evaluate(monday(17, 0), settings); !status.IsOpen {
		t.Fatalf("expected open in afternoon window, got %+v", status)
	}

	status := Evaluate(monday(14, 30), settings)
	if !strings.Contains(status.Reason, "09:00 - 13:00") || !strings.Contains(status.Reason, "16:00 - 20:00") {
		t.Fatalf("reason should name both windows, got %q", status.Reason)
	}
}

func TestCategoryPerDayGroup(t *testing.T) {
	settings := models.DefaultSettings()
	settings.Categories = []models.DayCategory{
		{Name: "weekday", Days: []int{1, 2, 3, 4, 5}, Windows: []models.Window{{Start: 9 * 60, End: 18 * 60}}},
		{Name: "saturday", Days: []int{6}, Windows: []models.Window{{Start: 10 * 60, End: 14 * 60}}},
	}

	saturday := time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC)
	status := Evaluate(saturday, settings)
	if status.IsOpen {
		t.Fatal("expected closed Saturday afternoon")
	}
	if !strings.Contains(status.Reason, "10:00 - 14:00") {
		t.Fatalf("reason = %q", status.Reason)
	}

	if status := Evaluate(monday(15, 0), settings); !status.IsOpen {
		t.Fatalf("expected open Monday afternoon, got %+v", status)
	}
}

func TestWorkdayWithoutCategory(t *testing.T) {
	settings := models.DefaultSettings()
	settings.Categories = nil

	status := Evaluate(monday(10, 0), settings)
	if status.IsOpen || status.Reason != noWindowsMessage {
		t.Fatalf("expected closed with no-windows message, got %+v", status)
	}
}
