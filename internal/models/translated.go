package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// TranslatedText is a bilingual label stored as a JSON column.
// Both locales are required; NewTranslatedText enforces that at construction.
type TranslatedText struct {
	En string `json:"en"`
	Ar string `json:"ar"`
}

// NewTranslatedText builds a TranslatedText, requiring both locales.
func NewTranslatedText(en, ar string) (TranslatedText, error) {
	if en == "" || ar == "" {
		return TranslatedText{}, fmt.Errorf("translated text requires both en and ar values")
	}
	return TranslatedText{En: en, Ar: ar}, nil
}

// Get returns the text for a locale, falling back to English.
func (t TranslatedText) Get(locale string) string {
	if locale == "ar" && t.Ar != "" {
		return t.Ar
	}
	return t.En
}

// Value implements driver.Valuer for the JSON column.
func (t TranslatedText) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements sql.Scanner.
func (t *TranslatedText) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	case nil:
		*t = TranslatedText{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into TranslatedText", src)
	}
}
