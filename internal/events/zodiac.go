package events

import "time"

// Zodiac sign keys; the localized display name is resolved through the
// translator as "zodiac_<key>".
const (
	SignAries       = "aries"
	SignTaurus      = "taurus"
	SignGemini      = "gemini"
	SignCancer      = "cancer"
	SignLeo         = "leo"
	SignVirgo       = "virgo"
	SignLibra       = "libra"
	SignScorpio     = "scorpio"
	SignSagittarius = "sagittarius"
	SignCapricorn   = "capricorn"
	SignAquarius    = "aquarius"
	SignPisces      = "pisces"
)

// GregorianSign returns the zodiac sign key for a Gregorian month and day.
func GregorianSign(month time.Month, day int) string {
	switch month {
	case time.January:
		if day <= 19 {
			return SignCapricorn
		}
		return SignAquarius
	case time.February:
		if day <= 18 {
			return SignAquarius
		}
		return SignPisces
	case time.March:
		if day <= 20 {
			return SignPisces
		}
		return SignAries
	case time.April:
		if day <= 19 {
			return SignAries
		}
		return SignTaurus
	case time.May:
		if day <= 20 {
			return SignTaurus
		}
		return SignGemini
	case time.June:
		if day <= 20 {
			return SignGemini
		}
		return SignCancer
	case time.July:
		if day <= 22 {
			return SignCancer
		}
		return SignLeo
	case time.August:
		if day <= 22 {
			return SignLeo
		}
		return SignVirgo
	case time.September:
		if day <= 22 {
			return SignVirgo
		}
		return SignLibra
	case time.October:
		if day <= 22 {
			return SignLibra
		}
		return SignScorpio
	case time.November:
		if day <= 21 {
			return SignScorpio
		}
		return SignSagittarius
	default: // December
		if day <= 21 {
			return SignSagittarius
		}
		return SignCapricorn
	}
}

// hebrewSigns maps Hebrew month names to their traditional sign. All Adar
// variants share Pisces.
var hebrewSigns = map[string]string{
	"Nisan":    SignAries,
	"Iyyar":    SignTaurus,
	"Sivan":    SignGemini,
	"Tamuz":    SignCancer,
	"Av":       SignLeo,
	"Elul":     SignVirgo,
	"Tishrei":  SignLibra,
	"Cheshvan": SignScorpio,
	"Kislev":   SignSagittarius,
	"Tevet":    SignCapricorn,
	"Sh'vat":   SignAquarius,
	"Adar":     SignPisces,
	"Adar I":   SignPisces,
	"Adar II":  SignPisces,
}

// HebrewSign returns the zodiac sign key for a Hebrew month name, or ""
// when the month is unknown.
func HebrewSign(monthName string) string {
	return hebrewSigns[monthName]
}
