package domain

// Checkin is one user-reported drinking event from the upstream API.
// Sourced fresh each run; nothing of it survives the run except the
// watermark derived from its ID.
type Checkin struct {
	ID      int64
	User    User
	Beer    Beer
	Brewery Brewery
	Venue   *Venue
	Rating  float64
	Comment string
	Badges  []Badge
	Photos  []Photo
}

type User struct {
	UserName  string
	FirstName string
	LastName  string
}

type Beer struct {
	ID    int64
	Name  string
	Label string // label image URL, may be empty
}

type Brewery struct {
	ID   int64
	Name string
	Slug string
}

type Venue struct {
	ID   int64
	Name string
	Slug string
}

// Badge is an achievement attached to a check-in. It triggers its own
// notification, separate from the check-in text.
type Badge struct {
	Name        string
	Description string
	ImageSmall  string
	ImageMedium string
}

type Photo struct {
	ImageURL string
}

// Activity is one fetch result: the reported total plus the check-in
// items in the API's newest-first order.
type Activity struct {
	Count    int
	Checkins []Checkin
}

// MaxCheckinID returns the highest check-in id across all fetched items,
// or 0 when the fetch was empty. The watermark advances to this value.
func (a *Activity) MaxCheckinID() int64 {
	var max int64
	for _, c := range a.Checkins {
		if c.ID > max {
			max = c.ID
		}
	}
	return max
}
