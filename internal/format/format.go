// Package format classifies raw display formats into date, datetime, and
// time families.
//
// SAS formats are matched by name after stripping the width and decimal
// suffix ("YYMMDD10." -> "YYMMDD", "DATETIME22.3" -> "DATETIME"). Stata
// formats are matched by prefix ("%td", "%tcHH:MM"). Anything unrecognized
// is None. Classify never fails.
package format

import "strings"

// Class is the date/time family of a display format.
type Class uint8

const (
	None Class = iota
	Date
	DateTime
	Time
)

func (c Class) String() string {
	switch c {
	case Date:
		return "date"
	case DateTime:
		return "datetime"
	case Time:
		return "time"
	default:
		return "none"
	}
}

// ParseClass is the inverse of Class.String; unknown names map to None.
func ParseClass(s string) Class {
	switch s {
	case "date":
		return Date
	case "datetime":
		return DateTime
	case "time":
		return Time
	default:
		return None
	}
}

var sasFormats = map[string]Class{
	// dates
	"DATE": Date, "DAY": Date, "DDMMYY": Date, "DDMMYYB": Date, "DDMMYYC": Date,
	"DDMMYYD": Date, "DDMMYYN": Date, "DDMMYYP": Date, "DDMMYYS": Date,
	"DOWNAME": Date, "E8601DA": Date, "B8601DA": Date, "JULDAY": Date, "JULIAN": Date,
	"MMDDYY": Date, "MMDDYYB": Date, "MMDDYYC": Date, "MMDDYYD": Date, "MMDDYYN": Date,
	"MMDDYYP": Date, "MMDDYYS": Date, "MMYY": Date, "MMYYC": Date, "MMYYD": Date,
	"MMYYN": Date, "MMYYP": Date, "MMYYS": Date, "MONNAME": Date, "MONTH": Date,
	"MONYY": Date, "NENGO": Date, "NLDATE": Date, "NLDATEW": Date, "MINGUO": Date,
	"PDJULG": Date, "PDJULI": Date, "QTR": Date, "QTRR": Date, "WEEKDATE": Date,
	"WEEKDATX": Date, "WEEKDAY": Date, "WEEKU": Date, "WEEKV": Date, "WEEKW": Date,
	"WORDDATE": Date, "WORDDATX": Date, "YEAR": Date, "YYMM": Date, "YYMMC": Date,
	"YYMMD": Date, "YYMMN": Date, "YYMMP": Date, "YYMMS": Date, "YYMMDD": Date,
	"YYMMDDB": Date, "YYMMDDC": Date, "YYMMDDD": Date, "YYMMDDN": Date, "YYMMDDP": Date,
	"YYMMDDS": Date, "YYMON": Date, "YYQ": Date, "YYQC": Date, "YYQD": Date,
	"YYQN": Date, "YYQP": Date, "YYQS": Date, "YYQR": Date, "YYQRC": Date,
	"YYQRD": Date, "YYQRN": Date, "YYQRP": Date, "YYQRS": Date, "EURDFDD": Date,
	"EURDFDE": Date, "EURDFDN": Date, "EURDFMY": Date, "EURDFWDX": Date, "EURDFWKX": Date,

	// datetimes
	"DATETIME": DateTime, "DATEAMPM": DateTime, "DTDATE": DateTime, "DTMONYY": DateTime,
	"DTWKDATX": DateTime, "DTYEAR": DateTime, "DTYYQC": DateTime, "E8601DT": DateTime,
	"E8601DN": DateTime, "E8601DZ": DateTime, "B8601DT": DateTime, "B8601DN": DateTime,
	"B8601DZ": DateTime, "MDYAMPM": DateTime, "NLDATM": DateTime, "NLDATMAP": DateTime,
	"NLDATMW": DateTime, "EURDFDT": DateTime,

	// times
	"TIME": Time, "TIMEAMPM": Time, "TOD": Time, "HHMM": Time, "HOUR": Time,
	"MMSS": Time, "E8601TM": Time, "E8601TZ": Time, "B8601TM": Time, "B8601TZ": Time,
	"NLTIME": Time, "NLTIMAP": Time,
}

// Classify maps a raw display format to its Class.
func Classify(raw string) Class {
	s := strings.TrimSpace(raw)
	if s == "" {
		return None
	}
	if s[0] == '%' {
		return classifyStata(s)
	}
	return sasFormats[sasName(strings.ToUpper(s))]
}

// sasName strips the trailing "w.d" part of a SAS format.
func sasName(s string) string { return strings.TrimRight(s, ".0123456789") }

// classifyStata handles "%td", "%-tdCCYY", "%tc", "%tC" and the pre-v10 "%d".
func classifyStata(s string) Class {
	s = strings.TrimPrefix(s[1:], "-")
	switch {
	case strings.HasPrefix(s, "td"), strings.HasPrefix(s, "d"):
		return Date
	case strings.HasPrefix(s, "tc"), strings.HasPrefix(s, "tC"):
		return DateTime
	default:
		return None
	}
}
