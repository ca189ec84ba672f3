// Package match holds the pure selection heuristics: photo ranking,
// candidate picking and the derived search filter.
package match

import (
	"fmt"
	"sort"

	"github.com/ekoval/pairbot/internal/directory"
)

const topPhotoCount = 3

// TopPhotos picks the photos to attach to a proposal. Three or fewer photos
// come back unranked in their original order; larger sets yield the three
// with the most likes, ties broken by comment count, remaining ties kept in
// first-seen order.
func TopPhotos(photos []directory.Photo) []directory.Photo {
	if len(photos) <= topPhotoCount {
		return photos
	}
	ranked := make([]directory.Photo, len(photos))
	copy(ranked, photos)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Likes != ranked[j].Likes {
			return ranked[i].Likes > ranked[j].Likes
		}
		return ranked[i].Comments > ranked[j].Comments
	})
	return ranked[:topPhotoCount]
}

// BestSizeURL resolves the URL of the photo variant whose size label sorts
// lexicographically greatest. Labels are compared as strings, not by pixel
// dimensions; the directory's standard labels happen to sort that way and
// downstream consumers rely on the string ordering.
func BestSizeURL(sizes []directory.PhotoSize) string {
	best := ""
	bestURL := ""
	for _, size := range sizes {
		if size.Type >= best && size.Type != "" {
			best = size.Type
			bestURL = size.URL
		}
	}
	return bestURL
}

// PhotoURLs resolves the best-size URL for each selected photo.
func PhotoURLs(photos []directory.Photo) []string {
	urls := make([]string, 0, len(photos))
	for _, photo := range photos {
		if u := BestSizeURL(photo.Sizes); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// AttachmentRefs builds attachment descriptors for the selected photos.
func AttachmentRefs(photos []directory.Photo) []string {
	refs := make([]string, 0, len(photos))
	for _, photo := range photos {
		refs = append(refs, fmt.Sprintf("photo%d_%d", photo.OwnerID, photo.ID))
	}
	return refs
}
