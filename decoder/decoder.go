package decoder

import "github.com/use-agent/mapscout/models"

// ExtractPlaceRecord decodes a place page into a record. It returns nil when
// the bootstrap state is missing or malformed, or when no field at all
// could be read from the blob. Link is left for the caller to set.
func ExtractPlaceRecord(html string) *models.Place {
	raw, ok := ExtractEmbeddedState(html)
	if !ok {
		return nil
	}
	blob, ok := DecodeEnvelope(raw)
	if !ok {
		return nil
	}
	return RecordFromBlob(blob)
}

// RecordFromBlob runs every field accessor over an already decoded blob.
func RecordFromBlob(blob []any) *models.Place {
	p := &models.Place{}

	if v, ok := Name(blob); ok {
		p.Name = &v
	}
	if v, ok := PlaceID(blob); ok {
		p.PlaceID = &v
	}
	if v, ok := Address(blob); ok {
		p.Address = &v
	}
	if v, ok := Phone(blob); ok {
		p.Phone = &v
	}
	if v, ok := Website(blob); ok {
		p.Website = &v
	}
	if v, ok := Rating(blob); ok {
		p.Rating = &v
	}
	if v, ok := ReviewsCount(blob); ok {
		p.ReviewsCount = &v
	}
	if v, ok := Categories(blob); ok {
		p.Categories = v
	}
	if v, ok := Coords(blob); ok {
		p.Coordinates = &v
	}
	if v, ok := Thumbnail(blob); ok {
		p.Thumbnail = &v
	}

	if p.Empty() {
		return nil
	}
	return p
}
