package model

// SettingsRowID is the primary key of the single settings row.
const SettingsRowID = 1

// DefaultMasterVolume is used when no settings were ever saved.
const DefaultMasterVolume = 50

// Settings is the last-session state restored at startup.
type Settings struct {
	ID           uint   `json:"-" gorm:"primaryKey"`
	MasterVolume int    `json:"masterVolume" gorm:"not null;default:50"`
	LastContext  string `json:"lastContext" gorm:"size:100"`
}

// TableName 指定表名
func (Settings) TableName() string {
	return "settings"
}

// DefaultSettings returns the first-run settings for the given context.
func DefaultSettings(context string) Settings {
	return Settings{ID: SettingsRowID, MasterVolume: DefaultMasterVolume, LastContext: context}
}
