// Package timezone maps checkout country codes to IANA timezones.
//
// The table mirrors the markets the checkout ships to. Resolve is total:
// anything not in the table falls back to UTC so scheduling never fails
// on an unexpected country code.
package timezone

import (
	"fmt"
	"strings"
	"time"
)

const Fallback = "UTC"

var byCountry = map[string]string{
	"US": "America/New_York",
	"RU": "Europe/Moscow",
	"UA": "Europe/Kiev",
	"TR": "Europe/Istanbul",
	"GB": "Europe/London",
	"DE": "Europe/Berlin",
	"FR": "Europe/Paris",
	"IT": "Europe/Rome",
	"ES": "Europe/Madrid",
	"PL": "Europe/Warsaw",
	"RO": "Europe/Bucharest",
	"NL": "Europe/Amsterdam",
	"PT": "Europe/Lisbon",
	"SA": "Asia/Riyadh",
	"ID": "Asia/Jakarta",
	"TH": "Asia/Bangkok",
	"VI": "Asia/Ho_Chi_Minh",
	"JA": "Asia/Tokyo",
	"KO": "Asia/Seoul",
	"ZH": "Asia/Shanghai",
	"HE": "Asia/Jerusalem",
	"HI": "Asia/Kolkata",
	"MX": "America/Mexico_City",
}

// Resolve returns the IANA timezone id for a country code, or UTC when
// the code is unknown or empty.
func Resolve(countryCode string) string {
	if tz, ok := byCountry[strings.ToUpper(strings.TrimSpace(countryCode))]; ok {
		return tz
	}
	return Fallback
}

// Location loads the *time.Location for an id produced by Resolve.
// Ids outside the validated table degrade to UTC instead of erroring,
// so records written under an older table keep scheduling.
func Location(tz string) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ValidateTable checks every table entry against the host tzdata. Called
// once at startup; a broken entry is a configuration error and fatal.
func ValidateTable() error {
	for country, tz := range byCountry {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("timezone table entry %s=%s: %w", country, tz, err)
		}
	}
	return nil
}
