package classify

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/carrierledger/weekly-recon/internal/config"
)

// Rendered forms of the date sentinels.
const (
	MissingDateText = "N/A"
	InvalidDateText = "Invalid Date"
	DateLayout      = "01/02/2006"
)

// DateStatus is the outcome of decoding an invoice date code.
type DateStatus int

const (
	DateValid DateStatus = iota
	DateMissing
	DateInvalid
)

func (s DateStatus) String() string {
	switch s {
	case DateValid:
		return "valid"
	case DateMissing:
		return "missing"
	default:
		return "invalid"
	}
}

// DateCodec decodes the trailing "YMdd" characters of an invoice number.
// The year letter is an offset from a reference letter mapped to a base
// year. The month letter is an offset from the January letter with one
// letter skipped. The day is two digits.
type DateCodec struct {
	yearLetter  byte
	baseYear    int
	monthLetter byte
	skipped     byte
}

// NewDateCodec builds a codec from the configured letters.
func NewDateCodec(rule config.DateCodeRule) (DateCodec, error) {
	for _, l := range []string{rule.YearLetter, rule.MonthLetter, rule.SkippedLetter} {
		if len(l) != 1 {
			return DateCodec{}, fmt.Errorf("date code letters must be single ASCII characters, got %q", l)
		}
	}
	return DateCodec{
		yearLetter:  upper(rule.YearLetter[0]),
		baseYear:    rule.BaseYear,
		monthLetter: upper(rule.MonthLetter[0]),
		skipped:     upper(rule.SkippedLetter[0]),
	}, nil
}

// Decode returns the date encoded in the last four characters of code.
// An empty code is DateMissing. Anything that is not a real calendar date
// is DateInvalid; no value is ever coerced into range.
func (d DateCodec) Decode(code string) (time.Time, DateStatus) {
	if code == "" {
		return time.Time{}, DateMissing
	}
	if len(code) < 4 {
		return time.Time{}, DateInvalid
	}

	tail := code[len(code)-4:]
	for i := 0; i < len(tail); i++ {
		if tail[i] >= utf8.RuneSelf {
			return time.Time{}, DateInvalid
		}
	}
	yc, mc := upper(tail[0]), upper(tail[1])

	if !isDigit(tail[2]) || !isDigit(tail[3]) {
		return time.Time{}, DateInvalid
	}
	day := int(tail[2]-'0')*10 + int(tail[3]-'0')

	if mc == d.skipped || mc < d.monthLetter {
		return time.Time{}, DateInvalid
	}
	month := int(mc-d.monthLetter) + 1
	if mc > d.skipped {
		month--
	}
	if month < 1 || month > 12 {
		return time.Time{}, DateInvalid
	}

	year := int(yc) - int(d.yearLetter) + d.baseYear
	if year < 1 || year > 9999 {
		return time.Time{}, DateInvalid
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, DateInvalid
	}
	return t, DateValid
}

// Encode returns the four-character code of a date. It fails for dates
// that are not real or whose year letter is not printable ASCII.
func (d DateCodec) Encode(year, month, day int) (string, error) {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if month < 1 || month > 12 || t.Day() != day || t.Month() != time.Month(month) {
		return "", fmt.Errorf("%04d-%02d-%02d is not a calendar date", year, month, day)
	}

	yc := int(d.yearLetter) + year - d.baseYear
	if yc < '!' || yc > '~' || (yc >= 'a' && yc <= 'z') {
		return "", fmt.Errorf("year %d cannot be encoded", year)
	}

	mc := int(d.monthLetter) + month - 1
	if mc >= int(d.skipped) && d.skipped >= d.monthLetter {
		mc++
	}
	if mc > '~' {
		return "", fmt.Errorf("month %d cannot be encoded", month)
	}

	return fmt.Sprintf("%c%c%02d", yc, mc, day), nil
}

// Format renders a decoded date as MM/DD/YYYY or its sentinel text.
func (d DateCodec) Format(code string) (string, DateStatus) {
	t, status := d.Decode(code)
	switch status {
	case DateValid:
		return t.Format(DateLayout), status
	case DateMissing:
		return MissingDateText, status
	default:
		return InvalidDateText, status
	}
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}
