package pubmed

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	yearOnlyRegex  = regexp.MustCompile(`^\d{4}$`)
	yearMonthRegex = regexp.MustCompile(`^(\d{4})\s+([A-Za-z]{3,})$`)
	sortDateRegex  = regexp.MustCompile(`^(\d{4})(?:/(\d{2}))?(?:/(\d{2}))?`)
)

// isoLayouts sind die Datumsformate, die PubMed in pubdate/epubdate liefert
// und die sich direkt auf einen vollständigen Kalendertag abbilden lassen.
var isoLayouts = []string{
	"2006 Jan 2",
	"2006-01-02",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ToISO versucht, einen PubMed-Datumsstring ("YYYY Mon DD" / "YYYY Mon" / "YYYY")
// in YYYY-MM-DD zu überführen. Reine Jahresangaben werden als Jahresende (12-31)
// einsortiert, Jahr+Monat mit Tag 28 (existiert in jedem Monat). Liefert "" bei
// unbrauchbarer Eingabe.
func ToISO(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if yearOnlyRegex.MatchString(raw) {
		return raw + "-12-31"
	}
	if m := yearMonthRegex.FindStringSubmatch(raw); m != nil {
		if month, ok := parseMonthName(m[2]); ok {
			return fmt.Sprintf("%s-%02d-28", m[1], int(month))
		}
	}
	return ""
}

// CombineISO leitet das kanonische ISO-Datum aus den drei Rohfeldern ab.
// Vorrang hat sortpubdate ("YYYY/MM/DD hh:mm"), fehlende Segmente werden mit
// Monat 12 bzw. Tag 31 aufgefüllt. Danach epubdate, zuletzt pubdate über ToISO.
func CombineISO(sortPubDate, epubDate, pubDate string) string {
	if m := sortDateRegex.FindStringSubmatch(sortPubDate); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, day := 12, 31
		if m[2] != "" {
			month, _ = strconv.Atoi(m[2])
		}
		if m[3] != "" {
			day, _ = strconv.Atoi(m[3])
		}
		return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	}
	if iso := ToISO(epubDate); iso != "" {
		return iso
	}
	return ToISO(pubDate)
}

// DisplayDate wählt den menschenlesbaren Datumsstring: epubdate vor pubdate.
// Unabhängig vom ISO-Wert, der nur die Sortierung bestimmt.
func DisplayDate(epubDate, pubDate string) string {
	if epubDate != "" {
		return epubDate
	}
	return pubDate
}

// parseMonthName akzeptiert englische Monatsnamen und -abkürzungen ("Jun", "June").
func parseMonthName(name string) (time.Month, bool) {
	if t, err := time.Parse("January", name); err == nil {
		return t.Month(), true
	}
	if len(name) >= 3 {
		if t, err := time.Parse("Jan", name[:3]); err == nil {
			return t.Month(), true
		}
	}
	return 0, false
}
