package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"slackbrew/internal/domain"
)

func testCheckin() domain.Checkin {
	return domain.Checkin{
		ID: 42,
		User: domain.User{
			UserName:  "alice",
			FirstName: "Alice",
			LastName:  "Example",
		},
		Beer: domain.Beer{
			ID:   4321,
			Name: "Hop Solo",
		},
		Brewery: domain.Brewery{
			ID:   99,
			Name: "Acme",
			Slug: "acme",
		},
	}
}

func TestLine_Minimal(t *testing.T) {
	f := NewFormatter(false)
	line := f.Line(testCheckin())

	assert.Equal(t, ":beer: *<https://untappd.com/user/alice|Alice Example>* is drinking a *<https://untappd.com/b/acme/4321|Hop Solo>* by *<https://untappd.com/w/acme/99|Acme>*\n", line)
}

func TestLine_VenueRatingComment(t *testing.T) {
	c := testCheckin()
	c.Venue = &domain.Venue{ID: 7, Name: "The Tap Room", Slug: "the-tap-room"}
	c.Rating = 4
	c.Comment = "Great beer!"

	f := NewFormatter(false)
	line := f.Line(c)

	assert.Contains(t, line, " at *<https://untappd.com/v/the-tap-room/7|The Tap Room>*")
	assert.Contains(t, line, "(4/5)")
	assert.Contains(t, line, "\n>\"Great beer!\"")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestLine_FractionalRating(t *testing.T) {
	c := testCheckin()
	c.Rating = 4.25

	line := NewFormatter(false).Line(c)

	assert.Contains(t, line, "(4.25/5)")
}

func TestLine_ZeroRatingOmitted(t *testing.T) {
	line := NewFormatter(false).Line(testCheckin())

	assert.NotContains(t, line, "/5)")
}

func TestLine_AppLink(t *testing.T) {
	line := NewFormatter(true).Line(testCheckin())

	assert.Contains(t, line, "<untappd://checkin/42|Toast »>")
}

func TestBadgeTitle(t *testing.T) {
	c := testCheckin()
	b := domain.Badge{Name: "Hopsplosion"}

	assert.Equal(t, "Alice Example earned the Hopsplosion badge!", BadgeTitle(c, b))
}

func TestWatched(t *testing.T) {
	users := map[string]struct{}{"alice": {}}

	assert.True(t, Watched(domain.Checkin{User: domain.User{UserName: "Alice"}}, users))
	assert.False(t, Watched(domain.Checkin{User: domain.User{UserName: "alic"}}, users))
	assert.False(t, Watched(domain.Checkin{User: domain.User{UserName: "malice"}}, users))
}

func TestComputeBatchingPolicy(t *testing.T) {
	users := map[string]struct{}{"alice": {}}
	photo := []domain.Photo{{ImageURL: "https://photos.example.com/1.jpg"}}

	tests := []struct {
		name     string
		checkins []domain.Checkin
		want     bool
	}{
		{
			name: "no photos anywhere defers",
			checkins: []domain.Checkin{
				{User: domain.User{UserName: "alice"}},
				{User: domain.User{UserName: "alice"}},
			},
			want: true,
		},
		{
			name: "watched photo disables deferral",
			checkins: []domain.Checkin{
				{User: domain.User{UserName: "alice"}, Photos: photo},
				{User: domain.User{UserName: "alice"}},
			},
			want: false,
		},
		{
			name: "unwatched photo does not count",
			checkins: []domain.Checkin{
				{User: domain.User{UserName: "bob"}, Photos: photo},
				{User: domain.User{UserName: "alice"}},
			},
			want: true,
		},
		{
			name:     "empty list defers",
			checkins: nil,
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeBatchingPolicy(tt.checkins, users))
		})
	}
}
