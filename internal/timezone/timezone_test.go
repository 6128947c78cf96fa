package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		country string
		want    string
	}{
		{"russia", "RU", "Europe/Moscow"},
		{"lowercase", "ru", "Europe/Moscow"},
		{"padded", " tr ", "Europe/Istanbul"},
		{"mexico", "MX", "America/Mexico_City"},
		{"unknown", "ZZ", "UTC"},
		{"empty", "", "UTC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.country))
		})
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Location("Not/AZone"))
	assert.Equal(t, time.UTC, Location(""))

	loc := Location("Europe/Moscow")
	require.NotNil(t, loc)
	assert.Equal(t, "Europe/Moscow", loc.String())
}

func TestValidateTable(t *testing.T) {
	require.NoError(t, ValidateTable())
}
