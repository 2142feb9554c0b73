package notequery

import (
	"net/url"
	"strings"
	"time"
)

// Params are the raw search parameters as received from a client.
type Params struct {
	Title     string
	Tag       string
	From      string
	To        string
	FileTypes []string
	SortField string
	SortOrder string
}

// ParseParams reads search parameters from a query string. Both the bracket
// form produced by browser serializers (dateRange[from], fileTypes[]) and
// the plain form (dateRange.from, fileTypes) are accepted.
func ParseParams(v url.Values) Params {
	p := Params{
		Title:     v.Get("title"),
		Tag:       v.Get("tag"),
		From:      first(v, "dateRange[from]", "dateRange.from"),
		To:        first(v, "dateRange[to]", "dateRange.to"),
		SortField: strings.TrimSpace(v.Get("sortField")),
		SortOrder: strings.ToLower(strings.TrimSpace(v.Get("sortOrder"))),
	}
	p.FileTypes = append(p.FileTypes, v["fileTypes[]"]...)
	p.FileTypes = append(p.FileTypes, v["fileTypes"]...)
	return p
}

func first(v url.Values, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(v.Get(k)); s != "" {
			return s
		}
	}
	return ""
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses an ISO-8601 date or datetime. Values without a zone
// offset are taken as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// DateRange returns the inclusive bounds when both are present and valid.
// A partial or malformed range yields ok == false and no filter applies.
func (p Params) DateRange() (from, to time.Time, ok bool) {
	from, okFrom := ParseTime(p.From)
	to, okTo := ParseTime(p.To)
	if !okFrom || !okTo {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
