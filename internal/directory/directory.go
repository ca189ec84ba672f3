// Package directory abstracts the social network's people API: profile
// lookup, people search, profile photos and outbound messages.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ekoval/pairbot/internal/domain"
)

var (
	// ErrAuth marks a rejected or expired access token.
	ErrAuth = errors.New("directory: auth failed")

	// ErrNotFound marks a lookup for an unknown person.
	ErrNotFound = errors.New("directory: person not found")

	// ErrAPI marks any other error payload from the directory.
	ErrAPI = errors.New("directory: api error")
)

// Person is a search result summary.
type Person struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// PhotoSize is one resolution variant of a photo.
type PhotoSize struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Photo is a profile photo with its popularity counters.
type Photo struct {
	ID       int64
	OwnerID  int64
	Likes    int
	Comments int
	Sizes    []PhotoSize
}

// SearchFilter is the structured people-search filter.
type SearchFilter struct {
	Hometown string
	AgeFrom  int
	AgeTo    int
	Sex      int
	Status   int
}

// Session is an authenticated handle on the directory. A group token and a
// delegated user token both open a Session; they differ only in what the
// directory lets them do.
type Session interface {
	// LookupProfile resolves a person by numeric id or screen name and
	// returns the requested attributes alongside the base profile.
	LookupProfile(ctx context.Context, ident string, fields []string) (domain.Profile, error)
	SearchByText(ctx context.Context, query string) ([]Person, error)
	SearchByFilter(ctx context.Context, filter SearchFilter) ([]Person, error)
	ListPhotos(ctx context.Context, ownerID int64) ([]Photo, error)
	SendMessage(ctx context.Context, recipientID int64, text string, attachments []string) error
}

// Client opens sessions from access tokens. Opening is cheap and does not
// validate the token; callers probe with a lookup when validation matters.
type Client interface {
	OpenSession(ctx context.Context, token string) (Session, error)
}

// ProfileLink builds the public page URL for a person.
func ProfileLink(personID int64) string {
	if personID == 0 {
		return "https://vk.com/"
	}
	return fmt.Sprintf("https://vk.com/id%d", personID)
}
