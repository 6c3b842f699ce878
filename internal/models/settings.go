package models

// Settings key under which the record is stored.
const SettingsKey = "settings"

// Settings are the user's sync preferences.
type Settings struct {
	// PlaylistID is the destination as entered: a bare id, a URI or a share URL.
	PlaylistID       string  `json:"playlist_id"`
	Market           string  `json:"market" validate:"len=2,alpha"`
	FeatureThreshold float64 `json:"feature_threshold" validate:"gt=0"`
}

// DefaultSettings returns the settings used before the user changes anything.
func DefaultSettings() Settings {
	return Settings{Market: "US", FeatureThreshold: 13.5}
}

func (s Settings) Key() string { return SettingsKey }

func (s Settings) Validate() error {
	return validate.Struct(s)
}
