package rag

import (
	"strconv"
	"strings"
)

// parseNumber reads a number written the European way.
//
//	"300.000,50" -> 300000.5
//	"300.000"    -> 300000
//	"1,5"        -> 1.5
//	"1.5"        -> 1.5
//
// suffix is "k" or "mil" (thousands) or empty.
func parseNumber(raw, suffix string) (float64, bool) {
	s := strings.TrimRight(strings.TrimSpace(raw), ".,")
	if s == "" {
		return 0, false
	}

	dots, commas := strings.Count(s, "."), strings.Count(s, ",")
	switch {
	case dots > 0 && commas > 0:
		// the later separator is the decimal one
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas == 1:
		s = strings.Replace(s, ",", ".", 1)
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	case dots == 1:
		if i := strings.IndexByte(s, '.'); len(s)-i-1 == 3 {
			s = strings.Replace(s, ".", "", 1)
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	switch strings.TrimSpace(suffix) {
	case "k", "mil":
		v *= 1000
	}
	return v, true
}

// formatEuro renders a price as "250.000 €" (cents only when present).
func formatEuro(v float64) string {
	whole := int64(v)
	cents := int64((v-float64(whole))*100 + 0.5)
	if cents == 100 {
		whole++
		cents = 0
	}

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if cents > 0 {
		b.WriteString(",")
		if cents < 10 {
			b.WriteByte('0')
		}
		b.WriteString(strconv.FormatInt(cents, 10))
	}
	b.WriteString(" €")
	return b.String()
}
