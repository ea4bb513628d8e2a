package models

import "slices"

// Place is one decoded listing. Every field is optional: a nil pointer (or
// nil Categories) means the source page did not carry it, which is
// different from a present zero value such as a 0.0 rating or an empty
// category list.
type Place struct {
	Name         *string      `json:"name,omitempty"`
	PlaceID      *string      `json:"place_id,omitempty"`
	Address      *string      `json:"address,omitempty"`
	Phone        *string      `json:"phone,omitempty"` // digits only, no leading '+'
	Website      *string      `json:"website,omitempty"`
	Rating       *float64     `json:"rating,omitempty"`
	ReviewsCount *int         `json:"reviews_count,omitempty"`
	Categories   []string     `json:"categories,omitzero"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
	Thumbnail    *string      `json:"thumbnail,omitempty"`

	// Link is the URL the record was decoded from. It is set by the
	// scraper, never by the decoder.
	Link string `json:"link,omitempty"`
}

// Coordinates is only ever populated with both values present.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Empty reports whether no field other than Link is set.
func (p *Place) Empty() bool {
	return p.Name == nil &&
		p.PlaceID == nil &&
		p.Address == nil &&
		p.Phone == nil &&
		p.Website == nil &&
		p.Rating == nil &&
		p.ReviewsCount == nil &&
		p.Categories == nil &&
		p.Coordinates == nil &&
		p.Thumbnail == nil
}

// Clone returns a copy of p that shares no memory with it.
func (p Place) Clone() Place {
	out := p
	out.Name = clonePtr(p.Name)
	out.PlaceID = clonePtr(p.PlaceID)
	out.Address = clonePtr(p.Address)
	out.Phone = clonePtr(p.Phone)
	out.Website = clonePtr(p.Website)
	out.Rating = clonePtr(p.Rating)
	out.ReviewsCount = clonePtr(p.ReviewsCount)
	out.Categories = slices.Clone(p.Categories)
	out.Coordinates = clonePtr(p.Coordinates)
	out.Thumbnail = clonePtr(p.Thumbnail)
	return out
}

// ClonePlaces deep-copies places. A nil slice stays nil.
func ClonePlaces(places []Place) []Place {
	if places == nil {
		return nil
	}
	out := make([]Place, len(places))
	for i, p := range places {
		out[i] = p.Clone()
	}
	return out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
