package domain

import "time"

// Settings is the per-user preferences document. It is always fully
// populated: sanitization coerces unknown values back to defaults before
// anything is persisted.
type Settings struct {
	Theme            string `json:"theme"`
	DefaultPreset    string `json:"defaultPreset"`
	ExpandOnPreset   bool   `json:"expandOnPreset"`
	RememberApproval bool   `json:"rememberApproval"`
	DefaultApproval  bool   `json:"defaultApproval"`
}

// SettingsInput is a partial update; nil fields fall back to defaults.
type SettingsInput struct {
	Theme            *string `json:"theme"`
	DefaultPreset    *string `json:"defaultPreset"`
	ExpandOnPreset   *bool   `json:"expandOnPreset"`
	RememberApproval *bool   `json:"rememberApproval"`
	DefaultApproval  *bool   `json:"defaultApproval"`
}

func DefaultSettings() Settings {
	return Settings{
		Theme:            "system",
		DefaultPreset:    "",
		ExpandOnPreset:   true,
		RememberApproval: true,
		DefaultApproval:  false,
	}
}

// Script is the metadata half of an uploaded script artifact; content lives
// in a separate per-artifact file.
type Script struct {
	ID           string    `json:"id"`
	Owner        string    `json:"owner"`
	Name         string    `json:"name"`
	OriginalName string    `json:"original_name"`
	Language     string    `json:"language"`
	Tags         []string  `json:"tags"`
	SizeChars    int       `json:"size_chars"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one prior conversation entry as submitted by the client. The
// client's transcript is untrusted input; turns are filtered and windowed
// before use.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session lives only in process memory and is never persisted.
type Session struct {
	Token    string
	Owner    string
	IssuedAt time.Time
}
