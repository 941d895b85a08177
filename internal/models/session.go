package models

// UserLevel is the caller's permission level.
type UserLevel string

const (
	LevelUser      UserLevel = "user"
	LevelPowerUser UserLevel = "power_user"
	LevelAdmin     UserLevel = "super_admin"
)

// PluginFlags exposes which platform plugins are installed. Fields gated by
// an absent plugin are dropped from the compiled column list entirely.
type PluginFlags struct {
	Esignature   bool `json:"esignature"`
	Classroom    bool `json:"classroom"`
	Ecommerce    bool `json:"ecommerce"`
	Gamification bool `json:"gamification"`
}

// PlatformToggles carries feature switches that gate optional columns/joins.
type PlatformToggles struct {
	UserTimezone    bool `json:"userTimezone"`
	MultiDomain     bool `json:"multiDomain"`
	SkillsEnabled   bool `json:"skills"`
	PrivacyPolicies bool `json:"privacyPolicies"`
}

// PlatformContext is the per-platform configuration read by every compiler.
type PlatformContext struct {
	BaseURL            string          `json:"baseUrl"`
	DefaultLang        string          `json:"defaultLanguage"`
	Toggles            PlatformToggles `json:"toggles"`
	Plugins            PluginFlags     `json:"plugins"`
	ExportRowLimit     int             `json:"exportRowLimit"`
	PreviewRowLimit    int             `json:"previewRowLimit"`
	EntitySelectionCap int             `json:"entitySelectionCap"`
}

// SessionContext identifies the caller for the duration of one compilation.
// Read-only: compilers never write through it.
type SessionContext struct {
	UserID   int64           `json:"userId"`
	Level    UserLevel       `json:"level"`
	Lang     string          `json:"lang"`
	Timezone string          `json:"timezone"`
	Platform PlatformContext `json:"platform"`
}

// IsAdmin reports whether the caller bypasses power-user visibility.
func (s *SessionContext) IsAdmin() bool {
	return s.Level == LevelAdmin
}

// IsPowerUser reports whether visibility intersection applies.
func (s *SessionContext) IsPowerUser() bool {
	return s.Level == LevelPowerUser
}

// Language returns the caller language, falling back to the platform default.
func (s *SessionContext) Language() string {
	if s.Lang != "" {
		return s.Lang
	}
	if s.Platform.DefaultLang != "" {
		return s.Platform.DefaultLang
	}
	return "english"
}
