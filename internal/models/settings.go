package models

// Window is an open interval of the day in minutes from midnight,
// inclusive on both ends: a window of 540-1215 accepts 09:00 through 20:15.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// DayCategory assigns a window list to a set of weekdays. A day may carry a
// single window or several disjoint ones (a split schedule with a midday
// break). Days hold time.Weekday values, 0 = Sunday.
type DayCategory struct {
	Name    string   `json:"name"`
	Days    []int    `json:"days"`
	Windows []Window `json:"windows"`
}

type Settings struct {
	Workdays          []int             `json:"workdays"`
	Categories        []DayCategory     `json:"categories"`
	PauseActive       bool              `json:"pause_active"`
	PauseMessage      string            `json:"pause_message"`
	AdminCredential   string            `json:"admin_credential,omitempty"`
	NotifyCredentials map[string]string `json:"notify_credentials,omitempty"`
}

// WithheldCredential returns a copy safe to echo to callers.
func (s Settings) WithheldCredential() Settings {
	out := s
	out.AdminCredential = ""
	return out
}

// DefaultSettings mirrors the first-boot configuration: Monday through
// Saturday, one window 09:00-20:15, admin password "admin" (stored as a
// plaintext legacy credential until the first login rehashes it).
func DefaultSettings() Settings {
	return Settings{
		Workdays: []int{1, 2, 3, 4, 5, 6},
		Categories: []DayCategory{
			{
				Name:    "regular",
				Days:    []int{1, 2, 3, 4, 5, 6},
				Windows: []Window{{Start: 9 * 60, End: 20*60 + 15}},
			},
		},
		PauseActive:     false,
		PauseMessage:    "We are taking a short break. Back soon.",
		AdminCredential: "admin",
	}
}
