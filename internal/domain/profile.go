package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Attribute names the matchmaking filter is derived from.
const (
	FieldCity      = "city"
	FieldBirthDate = "bdate"
	FieldSex       = "sex"
)

// BirthDateLayout is the directory's day.month.year format.
const BirthDateLayout = "02.01.2006"

// Sex codes as the directory encodes them.
const (
	SexAny    = 0
	SexFemale = 1
	SexMale   = 2
)

// Profile is a semi-structured attribute map for a person, as returned by
// the directory or filled in by the requester. Values keep whatever shape
// JSON decoding gave them; the accessors below normalize the shapes the
// dialog cares about.
type Profile map[string]any

// ID returns the person identifier carried in the profile, or 0.
func (p Profile) ID() int64 {
	return asInt64(p["id"])
}

// Has reports whether an attribute is present and non-empty.
func (p Profile) Has(name string) bool {
	v, ok := p[name]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

// SetField stores a requester-supplied value for an attribute.
func (p Profile) SetField(name, value string) {
	p[name] = value
}

// Hometown normalizes the city attribute: the directory returns either a
// plain name or an object with a title field.
func (p Profile) Hometown() string {
	switch v := p[FieldCity].(type) {
	case string:
		return v
	case map[string]any:
		if title, ok := v["title"].(string); ok {
			return title
		}
	}
	return ""
}

// BirthDate parses the bdate attribute. A value that is present but not in
// day.month.year form yields ErrMalformedAttribute.
func (p Profile) BirthDate() (time.Time, error) {
	s, ok := p[FieldBirthDate].(string)
	if !ok {
		return time.Time{}, fmt.Errorf("bdate is %T: %w", p[FieldBirthDate], ErrMalformedAttribute)
	}
	t, err := time.Parse(BirthDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bdate %q: %w", s, ErrMalformedAttribute)
	}
	return t, nil
}

// Sex returns the recorded sex code, or SexAny when absent or unrecognized.
func (p Profile) Sex() int {
	code := int(asInt64(p[FieldSex]))
	if code != SexFemale && code != SexMale {
		return SexAny
	}
	return code
}

// MissingFields lists required attributes that are absent, plus bdate when
// it is present but unparsable. Order follows the required list.
func (p Profile) MissingFields(required []string) []string {
	var missing []string
	for _, name := range required {
		if !p.Has(name) {
			missing = append(missing, name)
			continue
		}
		if name == FieldBirthDate {
			if _, err := p.BirthDate(); err != nil {
				missing = append(missing, name)
			}
		}
	}
	return missing
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	}
	return 0
}
