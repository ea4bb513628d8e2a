package decoder

import (
	"math"
	"strings"

	"github.com/use-agent/mapscout/models"
)

// Offsets into the place blob. They are stable by convention only.
const (
	offsetAddress     = 2
	offsetRatingGroup = 4
	offsetWebsite     = 7
	offsetCoordinates = 9
	offsetPlaceID     = 10
	offsetName        = 11
	offsetCategories  = 13
	offsetPhotos      = 14

	ratingIndex  = 7
	reviewsIndex = 8
	latIndex     = 2
	lngIndex     = 3
)

// thumbnailPath is tentative: the photo group layout has not been confirmed
// across listing types, so a miss here never fails a decode.
var thumbnailPath = []any{offsetPhotos, 0, 1, 6, 0}

// Name returns the listing's display name.
func Name(blob []any) (string, bool) { return pathString(blob, offsetName) }

// PlaceID returns the listing's place identifier.
func PlaceID(blob []any) (string, bool) { return pathString(blob, offsetPlaceID) }

// Rating returns the average rating. 0 is a valid rating.
func Rating(blob []any) (float64, bool) {
	return pathFloat(blob, offsetRatingGroup, ratingIndex)
}

// ReviewsCount returns the number of reviews. JSON numbers with a
// fractional part are treated as a shape mismatch.
func ReviewsCount(blob []any) (int, bool) {
	f, ok := pathFloat(blob, offsetRatingGroup, reviewsIndex)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// Website returns the first entry of the website group.
func Website(blob []any) (string, bool) {
	group, ok := pathSlice(blob, offsetWebsite)
	if !ok || len(group) == 0 {
		return "", false
	}
	s, ok := group[0].(string)
	return s, ok
}

// Categories returns the category list verbatim, including an empty list.
func Categories(blob []any) ([]string, bool) {
	raw, ok := pathSlice(blob, offsetCategories)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if s, ok := c.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// Coords returns the coordinates only when both latitude and longitude
// are present.
func Coords(blob []any) (models.Coordinates, bool) {
	lat, latOK := pathFloat(blob, offsetCoordinates, latIndex)
	lng, lngOK := pathFloat(blob, offsetCoordinates, lngIndex)
	if !latOK || !lngOK {
		return models.Coordinates{}, false
	}
	return models.Coordinates{Latitude: lat, Longitude: lng}, true
}

// Address joins the non-empty address parts with ", ".
func Address(blob []any) (string, bool) {
	parts, ok := pathSlice(blob, offsetAddress)
	if !ok {
		return "", false
	}
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if s, ok := p.(string); ok && s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, ", "), true
}

// Thumbnail is a best-effort lookup of the first photo URL.
func Thumbnail(blob []any) (string, bool) {
	return pathString(blob, thumbnailPath...)
}

// Phone searches the whole blob for the call-icon marker pair.
func Phone(blob []any) (string, bool) { return FindPhone(blob) }
