package untappd

import "encoding/json"

// envelope is the Untappd v4 response wrapper. The meta code mirrors the
// HTTP status; errors are reported inside the envelope rather than via
// transport status alone.
type envelope struct {
	Meta     meta     `json:"meta"`
	Response response `json:"response"`
}

type meta struct {
	Code      int    `json:"code"`
	ErrorType string `json:"error_type"`
}

type response struct {
	Checkins checkinList `json:"checkins"`
}

type checkinList struct {
	Count int           `json:"count"`
	Items []checkinItem `json:"items"`
}

type checkinItem struct {
	CheckinID      int64      `json:"checkin_id"`
	RatingScore    float64    `json:"rating_score"`
	CheckinComment string     `json:"checkin_comment"`
	User           apiUser    `json:"user"`
	Beer           apiBeer    `json:"beer"`
	Brewery        apiBrewery `json:"brewery"`
	// An absent venue is serialized as an empty JSON array, a present one
	// as an object, so this cannot decode into a struct directly.
	Venue  json.RawMessage `json:"venue"`
	Badges badgeList       `json:"badges"`
	Media  mediaList       `json:"media"`
}

type apiUser struct {
	UserName  string `json:"user_name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type apiBeer struct {
	BID       int64  `json:"bid"`
	BeerName  string `json:"beer_name"`
	BeerLabel string `json:"beer_label"`
}

type apiBrewery struct {
	BreweryID   int64  `json:"brewery_id"`
	BreweryName string `json:"brewery_name"`
	BrewerySlug string `json:"brewery_slug"`
}

type apiVenue struct {
	VenueID   int64  `json:"venue_id"`
	VenueName string `json:"venue_name"`
	VenueSlug string `json:"venue_slug"`
}

type badgeList struct {
	Count int        `json:"count"`
	Items []apiBadge `json:"items"`
}

type apiBadge struct {
	BadgeName        string     `json:"badge_name"`
	BadgeDescription string     `json:"badge_description"`
	BadgeImage       badgeImage `json:"badge_image"`
}

type badgeImage struct {
	Small  string `json:"sm"`
	Medium string `json:"md"`
}

type mediaList struct {
	Count int            `json:"count"`
	Items []apiMediaItem `json:"items"`
}

type apiMediaItem struct {
	Photo apiPhoto `json:"photo"`
}

type apiPhoto struct {
	PhotoImgMD string `json:"photo_img_md"`
}
