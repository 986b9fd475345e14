package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrierledger/weekly-recon/internal/config"
)

func defaultCodec(t *testing.T) DateCodec {
	t.Helper()
	d, err := NewDateCodec(config.DefaultRules().DateCode)
	require.NoError(t, err)
	return d
}

func TestDecodeKnownCodes(t *testing.T) {
	d := defaultCodec(t)

	got, status := d.Format("RSINYB15")
	assert.Equal(t, DateValid, status)
	assert.Equal(t, "02/15/2024", got)

	got, status = d.Format("YJ15")
	assert.Equal(t, DateValid, status)
	assert.Equal(t, "09/15/2024", got)

	got, _ = d.Format("ZA01")
	assert.Equal(t, "01/01/2025", got)

	got, _ = d.Format("ZM31")
	assert.Equal(t, "12/31/2025", got)

	got, _ = d.Format("Zb03")
	assert.Equal(t, "02/03/2025", got)

	upperText, upperStatus := d.Format("0000YB15")
	lowerText, lowerStatus := d.Format("0000yb15")
	assert.Equal(t, DateValid, lowerStatus)
	assert.Equal(t, upperStatus, lowerStatus)
	assert.Equal(t, upperText, lowerText)
	assert.Equal(t, "02/15/2024", lowerText)
}

func TestDecodeSentinels(t *testing.T) {
	d := defaultCodec(t)

	tests := []struct {
		code   string
		status DateStatus
		text   string
	}{
		{"", DateMissing, MissingDateText},
		{"B15", DateInvalid, InvalidDateText},
		{"YI15", DateInvalid, InvalidDateText},
		{"YN01", DateInvalid, InvalidDateText},
		{"YB30", DateInvalid, InvalidDateText},
		{"YB00", DateInvalid, InvalidDateText},
		{"YB1X", DateInvalid, InvalidDateText},
		{"YB 5", DateInvalid, InvalidDateText},
		{"Y@15", DateInvalid, InvalidDateText},
		{"ZB29", DateInvalid, InvalidDateText},
		{"YB29", DateValid, "02/29/2024"},
		{"YBé5", DateInvalid, InvalidDateText},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			text, status := d.Format(tt.code)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.text, text)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d := defaultCodec(t)

	for year := 2024; year <= 2030; year++ {
		for month := 1; month <= 12; month++ {
			days := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
			for day := 1; day <= days; day++ {
				code, err := d.Encode(year, month, day)
				require.NoError(t, err)
				require.NotContains(t, code[1:2], "I")

				got, status := d.Decode("RSIN" + code)
				require.Equal(t, DateValid, status, code)
				assert.Equal(t, time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), got, code)
			}
		}
	}
}

func TestEncodeRejects(t *testing.T) {
	d := defaultCodec(t)

	_, err := d.Encode(2024, 2, 30)
	assert.Error(t, err)
	_, err = d.Encode(2024, 13, 1)
	assert.Error(t, err)
	_, err = d.Encode(1900, 1, 1)
	assert.Error(t, err)
	_, err = d.Encode(2032, 1, 1)
	assert.Error(t, err, "year letter would be lowercase")

	code, err := d.Encode(2024, 9, 15)
	require.NoError(t, err)
	assert.Equal(t, "YJ15", code)
}

func TestCustomDateCode(t *testing.T) {
	d, err := NewDateCodec(config.DateCodeRule{YearLetter: "A", BaseYear: 2030, MonthLetter: "F", SkippedLetter: "H"})
	require.NoError(t, err)

	got, status := d.Format("CI05")
	assert.Equal(t, DateValid, status)
	assert.Equal(t, "03/05/2032", got)

	_, status = d.Format("CH05")
	assert.Equal(t, DateInvalid, status)

	code, err := d.Encode(2032, 3, 5)
	require.NoError(t, err)
	assert.Equal(t, "CI05", code)

	_, err = NewDateCodec(config.DateCodeRule{YearLetter: "YY", MonthLetter: "A", SkippedLetter: "I"})
	assert.Error(t, err)
}

func TestDateStatusString(t *testing.T) {
	assert.Equal(t, "valid", DateValid.String())
	assert.Equal(t, "missing", DateMissing.String())
	assert.Equal(t, "invalid", DateInvalid.String())
}
