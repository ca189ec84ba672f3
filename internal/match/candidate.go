package match

import (
	"time"

	"github.com/ekoval/pairbot/internal/directory"
	"github.com/ekoval/pairbot/internal/domain"
)

// StatusSearching is the relationship-status code the filter is fixed to.
const StatusSearching = 6

// NoCandidate marks an exhausted search.
const NoCandidate int64 = -1

// PickCandidate scans the search results in directory order and returns the
// first id not in the shown ledger, or NoCandidate when the result set is
// empty or fully excluded.
func PickCandidate(results []directory.Person, shown []int64) int64 {
	excluded := make(map[int64]struct{}, len(shown))
	for _, id := range shown {
		excluded[id] = struct{}{}
	}
	for _, person := range results {
		if _, ok := excluded[person.ID]; !ok {
			return person.ID
		}
	}
	return NoCandidate
}

// Years counts whole elapsed years between two dates, subtracting one when
// the month/day anniversary has not been reached yet.
func Years(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() ||
		(now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

// oppositeSex maps the target's sex code to the desired pair's code.
func oppositeSex(code int) int {
	switch code {
	case domain.SexFemale:
		return domain.SexMale
	case domain.SexMale:
		return domain.SexFemale
	default:
		return domain.SexAny
	}
}

// BuildFilter derives the people-search filter from a complete target
// profile: same hometown, exact age, opposite sex, actively-searching
// status.
func BuildFilter(profile domain.Profile, now time.Time) (directory.SearchFilter, error) {
	birth, err := profile.BirthDate()
	if err != nil {
		return directory.SearchFilter{}, err
	}
	age := Years(birth, now)
	return directory.SearchFilter{
		Hometown: profile.Hometown(),
		AgeFrom:  age,
		AgeTo:    age,
		Sex:      oppositeSex(profile.Sex()),
		Status:   StatusSearching,
	}, nil
}
