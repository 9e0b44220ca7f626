package config

import (
	"github.com/spf13/viper"

	"github.com/Veraticus/condo-quotas/internal/sheets"
)

// LoadSheetsConfig builds the Google Sheets configuration. Viper keys under sheets.* win over
// GOOGLE_SHEETS_* variables, which win over the defaults.
func LoadSheetsConfig() (*sheets.Config, error) {
	config := sheets.DefaultConfig()

	// Environment first, so the viper values below override it.
	_ = config.LoadFromEnv()

	overrides := map[string]*string{
		"sheets.client_id":        &config.ClientID,
		"sheets.client_secret":    &config.ClientSecret,
		"sheets.refresh_token":    &config.RefreshToken,
		"sheets.spreadsheet_id":   &config.SpreadsheetID,
		"sheets.spreadsheet_name": &config.SpreadsheetName,
		"sheets.tab_name":         &config.TabName,
		"sheets.time_zone":        &config.TimeZone,
	}
	for key, field := range overrides {
		if v := viper.GetString(key); v != "" {
			*field = v
		}
	}
	if v := viper.GetString("sheets.service_account_path"); v != "" {
		config.ServiceAccountPath = v
	}
	config.ServiceAccountPath = ExpandPath(config.ServiceAccountPath)

	if viper.IsSet("sheets.batch_size") {
		config.BatchSize = viper.GetInt("sheets.batch_size")
	}
	if viper.IsSet("sheets.formatting") {
		config.EnableFormatting = viper.GetBool("sheets.formatting")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
