package importer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

const isoDateFormat = "2006-01-02"

var (
	isoDate   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	slashDate = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2}|\d{4})$`)
	// Plain positional notation only; exponents would let a short cell
	// expand into an arbitrarily long number.
	plainAmount = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)
)

// ParseDate accepts YYYY-MM-DD or M/D/YY and M/D/YYYY. Two-digit years are
// 2000+yy. The result is UTC midnight. ok is false for any other shape or
// for a date that does not exist on the calendar.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if isoDate.MatchString(s) {
		d, err := time.Parse(isoDateFormat, s)
		if err != nil {
			return time.Time{}, false
		}
		return d, true
	}

	m := slashDate.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		year += 2000
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 2/30 into March; reject instead.
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

// ParseAmount strips currency symbols, thousands separators and whitespace,
// then parses a signed decimal. Exponent notation is rejected.
func ParseAmount(s string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) || unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, s)
	if !plainAmount.MatchString(cleaned) {
		return decimal.Decimal{}, false
	}
	amt, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return amt, true
}
