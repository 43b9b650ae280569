package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"slackbrew/internal/domain"
	"slackbrew/internal/service/mocks"
)

type RelayTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source    *mocks.MockSource
	notifier  *mocks.MockNotifier
	watermark *mocks.MockWatermarkStore

	logger *slog.Logger
	sent   []domain.Message
}

func (s *RelayTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockSource(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.watermark = mocks.NewMockWatermarkStore(s.ctrl)

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.sent = nil
}

func (s *RelayTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestRelayTestSuite(t *testing.T) {
	suite.Run(t, new(RelayTestSuite))
}

func (s *RelayTestSuite) newRelay(opts Options) *Relay {
	return NewRelay(s.source, s.notifier, s.watermark, nil, nil, opts, s.logger)
}

// captureSends records every delivered message for later assertions.
func (s *RelayTestSuite) captureSends(n int) {
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msg domain.Message) error {
			s.sent = append(s.sent, msg)
			return nil
		},
	).Times(n)
}

func checkin(id int64, user string, opts ...func(*domain.Checkin)) domain.Checkin {
	c := domain.Checkin{
		ID: id,
		User: domain.User{
			UserName:  user,
			FirstName: strings.ToUpper(user[:1]) + user[1:],
			LastName:  "Example",
		},
		Beer: domain.Beer{
			ID:    4321,
			Name:  "IPA",
			Label: "https://labels.example.com/ipa.png",
		},
		Brewery: domain.Brewery{
			ID:   99,
			Name: "Acme",
			Slug: "acme",
		},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func withPhoto(url string) func(*domain.Checkin) {
	return func(c *domain.Checkin) {
		c.Photos = append(c.Photos, domain.Photo{ImageURL: url})
	}
}

func withRating(r float64) func(*domain.Checkin) {
	return func(c *domain.Checkin) { c.Rating = r }
}

func withBadge(name, desc string) func(*domain.Checkin) {
	return func(c *domain.Checkin) {
		c.Badges = append(c.Badges, domain.Badge{
			Name:        name,
			Description: desc,
			ImageSmall:  "https://badges.example.com/" + name + "_sm.png",
			ImageMedium: "https://badges.example.com/" + name + "_md.png",
		})
	}
}

func (s *RelayTestSuite) TestRun_NoMatches_WatermarkStillAdvances() {
	ctx := context.Background()

	s.watermark.EXPECT().LastSeen().Return(int64(100))
	s.source.EXPECT().FetchCheckins(ctx, int64(100)).Return(&domain.Activity{
		Count:    1,
		Checkins: []domain.Checkin{checkin(101, "bob")},
	}, nil)
	s.watermark.EXPECT().SetLastSeen(int64(101)).Return(nil)

	relay := s.newRelay(Options{Users: []string{"alice"}, DisplayBadges: true})
	stats, err := relay.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.Fetched)
	s.Equal(0, stats.Matched)
	s.Equal(0, stats.TextMessages)
	s.Equal(int64(101), stats.LastSeen)
	s.True(stats.Advanced)
}

func (s *RelayTestSuite) TestRun_NoPhotos_OneCombinedChronologicalMessage() {
	ctx := context.Background()

	// API delivers newest-first: 103 then 102.
	s.watermark.EXPECT().LastSeen().Return(int64(100))
	s.source.EXPECT().FetchCheckins(ctx, int64(100)).Return(&domain.Activity{
		Count: 2,
		Checkins: []domain.Checkin{
			checkin(103, "alice", withRating(3.5)),
			checkin(102, "alice"),
		},
	}, nil)
	s.captureSends(1)
	s.watermark.EXPECT().SetLastSeen(int64(103)).Return(nil)

	relay := s.newRelay(Options{Users: []string{"alice"}, DisplayBadges: true})
	stats, err := relay.Run(ctx)

	s.NoError(err)
	s.Equal(2, stats.Matched)
	s.Equal(1, stats.TextMessages)

	msg := s.sent[0]
	s.Equal(domain.MessageText, msg.Kind)
	// Oldest first: the unrated 102 line must precede 103's rated line.
	ratedAt := strings.Index(msg.Text, "(3.5/5)")
	s.Greater(ratedAt, 0)
	s.Equal(2, strings.Count(msg.Text, "is drinking"))
	s.Less(strings.Index(msg.Text, "is drinking"), ratedAt)
}

func (s *RelayTestSuite) TestRun_AnyPhoto_SendsIndividually() {
	ctx := context.Background()

	s.watermark.EXPECT().LastSeen().Return(int64(100))
	s.source.EXPECT().FetchCheckins(ctx, int64(100)).Return(&domain.Activity{
		Count: 2,
		Checkins: []domain.Checkin{
			checkin(102, "alice", withPhoto("https://photos.example.com/2.jpg")),
			checkin(101, "alice"),
		},
	}, nil)
	s.captureSends(2)
	s.watermark.EXPECT().SetLastSeen(int64(102)).Return(nil)

	relay := s.newRelay(Options{
		Users:         []string{"alice"},
		DisplayMedia:  true,
		DisplayBadges: true,
	})
	stats, err := relay.Run(ctx)

	s.NoError(err)
	s.Equal(2, stats.Matched)
	s.Equal(1, stats.TextMessages)
	s.Equal(1, stats.PhotoMessages)

	// 101 (no photo) goes out first as plain text, then 102 with its photo.
	s.Equal(domain.MessageText, s.sent[0].Kind)
	s.Equal(domain.MessagePhoto, s.sent[1].Kind)
	s.Equal("https://photos.example.com/2.jpg", s.sent[1].ImageURL)
	s.Equal("IPA", s.sent[1].Title)
	s.Contains(s.sent[1].Text, "is drinking")
}

func (s *RelayTestSuite) TestRun_PhotoDisplayDisabled_StillNotDeferred() {
	ctx := context.Background()

	// The policy pre-scan counts photos regardless of the display flag, so
	// both check-ins still go out individually, just without attachments.
	s.watermark.EXPECT().LastSeen().Return(int64(100))
	s.source.EXPECT().FetchCheckins(ctx, int64(100)).Return(&domain.Activity{
		Count: 2,
		Checkins: []domain.Checkin{
			checkin(102, "alice", withPhoto("https://photos.example.com/2.jpg")),
			checkin(101, "alice"),
		},
	}, nil)
	s.captureSends(2)
	s.watermark.EXPECT().SetLastSeen(int64(102)).Return(nil)

	relay := s.newRelay(Options{Users: []string{"alice"}, DisplayBadges: true})
	stats, err := relay.Run(ctx)

	s.NoError(err)
	s.Equal(2, stats.TextMessages)
	s.Equal(0, stats.PhotoMessages)
	s.Equal(domain.MessageText, s.sent[0].Kind)
	s.Equal(domain.MessageText, s.sent[1].Kind)
}

func (s *RelayTestSuite) TestRun_Badges_SentImmediatelyWithOwnIcons() {
	ctx := context.Background()

	s.watermark.EXPECT().LastSeen().Return(int64(100))
	s.source.EXPECT().FetchCheckins(ctx, int64(100)).Return(&domain.Activity{
		Count: 1,
		Checkins: []domain.Checkin{
			checkin(101, "alice",
				withBadge("Hopsplosion", "<b>Hoppy!</b>"),
				withBadge("Land of the Free", "Ten different American beers."),
			),
		},
	}, nil)
	s.captureSends(3)
	s.watermark.EXPECT().SetLastSeen(int64(101)).Return(nil)

	relay := s.newRelay(Options{Users: []string{"alice"}, DisplayBadges: true})
	stats, err := relay.Run(ctx)

	s.NoError(err)
	s.Equal(2, stats.BadgeMessages)
	s.Equal(1, stats.TextMessages)

	// Badge messages precede the check-in text and carry their own images.
	s.Equal(domain.MessageBadge, s.sent[0].Kind)
	s.Equal("https://badges.example.com/Hopsplosion_sm.png", s.sent[0].IconURL)
	s.Equal("https://badges.example.com/Hopsplosion_md.png", s.sent[0].ThumbURL)
	s.Equal("Alice Example earned the Hopsplosion badge!", s.sent[0].Title)
	s.Equal(domain.MessageBadge, s.sent[1].Kind)
	s.Equal(domain.MessageText, s.sent[2].Kind)
}

func (s *RelayTestSuite) TestRun_BadgesDisabled() {
	ctx := context.Background()

	s.watermark.EXPECT().LastSeen().Return(int64(100))
	s.source.EXPECT().FetchCheckins(ctx, int64(100)).Return(&domain.Activity{
		Count: 1,
		Checkins: []domain.Checkin{
			checkin(101, "alice", withBadge("Hopsplosion", "Hoppy!")),
		},
	}, nil)
	s.captureSends(1)
	s.watermark.EXPECT().SetLastSeen(int64(101)).Return(nil)

	relay := s.newRelay(Options{Users: []string{"alice"}})
	stats, err := relay.Run(ctx)

	s.NoError(err)
	s.Equal(0, stats.BadgeMessages)
	s.Equal(domain.MessageText, s.sent[0].Kind)
}

func (s *RelayTestSuite) TestRun_ExampleEndToEnd() {
	ctx := context.Background()

	// config: users = alice, lastseen = 100. Fetch: 101 by bob, 102 by
	// alice rated 4. Expect one combined message for alice with the rating
	// suffix; bob ignored; watermark to 102.
	s.watermark.EXPECT().LastSeen().Return(int64(100))
	s.source.EXPECT().FetchCheckins(ctx, int64(100)).Return(&domain.Activity{
		Count: 2,
		Checkins: []domain.Checkin{
			checkin(102, "alice", withRating(4)),
			checkin(101, "bob"),
		},
	}, nil)
	s.captureSends(1)
	s.watermark.EXPECT().SetLastSeen(int64(102)).Return(nil)

	relay := s.newRelay(Options{Users: []string{"alice"}, DisplayBadges: true})
	stats, err := relay.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.Matched)
	s.Equal(1, stats.TextMessages)
	s.Equal(int64(102), stats.LastSeen)

	msg := s.sent[0]
	s.Contains(msg.Text, "Alice Example")
	s.Contains(msg.Text, "IPA")
	s.Contains(msg.Text, "Acme")
	s.Contains(msg.Text, "(4/5)")
	s.NotContains(msg.Text, "Bob")
	s.Equal("https://labels.example.com/ipa.png", msg.IconURL)
}

func (s *RelayTestSuite) TestRun_WatchedMatchIsCaseInsensitiveAndExact() {
	ctx := context.Background()

	s.watermark.EXPECT().LastSeen().Return(int64(0))
	s.source.EXPECT().FetchCheckins(ctx, int64(0)).Return(&domain.Activity{
		Count: 2,
		Checkins: []domain.Checkin{
			checkin(2, "ALICE"),
			// Substring of a watched name must not match.
			checkin(1, "alic"),
		},
	}, nil)
	s.captureSends(1)
	s.watermark.EXPECT().SetLastSeen(int64(2)).Return(nil)

	relay := s.newRelay(Options{Users: []string{"Alice"}, DisplayBadges: true})
	stats, err := relay.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.Matched)
}

func (s *RelayTestSuite) TestRun_NotifyFailure_NoWatermarkAdvance() {
	ctx := context.Background()

	s.watermark.EXPECT().LastSeen().Return(int64(100))
	s.source.EXPECT().FetchCheckins(ctx, int64(100)).Return(&domain.Activity{
		Count:    1,
		Checkins: []domain.Checkin{checkin(101, "alice")},
	}, nil)
	s.notifier.EXPECT().Send(ctx, gomock.Any()).Return(domain.ErrNotify)
	// SetLastSeen must not be called: duplicates next run are accepted.

	relay := s.newRelay(Options{Users: []string{"alice"}, DisplayBadges: true})
	_, err := relay.Run(ctx)

	s.ErrorIs(err, domain.ErrNotify)
}

func (s *RelayTestSuite) TestRun_FetchFailurePropagates() {
	ctx := context.Background()

	s.watermark.EXPECT().LastSeen().Return(int64(100))
	s.source.EXPECT().FetchCheckins(ctx, int64(100)).Return(nil, domain.ErrRateLimited)

	relay := s.newRelay(Options{Users: []string{"alice"}})
	_, err := relay.Run(ctx)

	s.ErrorIs(err, domain.ErrRateLimited)
}

func (s *RelayTestSuite) TestRun_WatermarkNeverDecreases() {
	ctx := context.Background()

	// Upstream misdelivers an id at the watermark: no write happens.
	s.watermark.EXPECT().LastSeen().Return(int64(100))
	s.source.EXPECT().FetchCheckins(ctx, int64(100)).Return(&domain.Activity{
		Count:    1,
		Checkins: []domain.Checkin{checkin(100, "bob")},
	}, nil)

	relay := s.newRelay(Options{Users: []string{"alice"}})
	stats, err := relay.Run(ctx)

	s.NoError(err)
	s.Equal(int64(100), stats.LastSeen)
	s.False(stats.Advanced)
}

func (s *RelayTestSuite) TestRun_EmptyFetch_NoWriteNoSend() {
	ctx := context.Background()

	s.watermark.EXPECT().LastSeen().Return(int64(100))
	s.source.EXPECT().FetchCheckins(ctx, int64(100)).Return(&domain.Activity{}, nil)

	relay := s.newRelay(Options{Users: []string{"alice"}})
	stats, err := relay.Run(ctx)

	s.NoError(err)
	s.Equal(0, stats.Fetched)
	s.False(stats.Advanced)
}

func (s *RelayTestSuite) TestRun_HistoryAndMirrorRecordDeliveries() {
	ctx := context.Background()

	hist := mocks.NewMockHistoryStore(s.ctrl)
	mirror := mocks.NewMockEventPublisher(s.ctrl)

	s.watermark.EXPECT().LastSeen().Return(int64(100))
	s.source.EXPECT().FetchCheckins(ctx, int64(100)).Return(&domain.Activity{
		Count:    1,
		Checkins: []domain.Checkin{checkin(101, "alice")},
	}, nil)
	s.notifier.EXPECT().Send(ctx, gomock.Any()).Return(nil)

	// A history failure is logged, never fatal, and does not gate the mirror.
	hist.EXPECT().Record(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, d domain.Delivery) error {
			s.Equal(int64(101), d.CheckinID)
			s.Equal(domain.MessageText, d.Kind)
			s.Equal("alice", d.UserName)
			return errors.New("disk full")
		},
	)
	mirror.EXPECT().Publish(ctx, gomock.Any(), gomock.Any()).Return(nil)

	s.watermark.EXPECT().SetLastSeen(int64(101)).Return(nil)

	relay := NewRelay(s.source, s.notifier, s.watermark, hist, mirror,
		Options{Users: []string{"alice"}, DisplayBadges: true}, s.logger)
	stats, err := relay.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.TextMessages)
}

func (s *RelayTestSuite) TestRun_WatermarkWriteFailure() {
	ctx := context.Background()

	s.watermark.EXPECT().LastSeen().Return(int64(100))
	s.source.EXPECT().FetchCheckins(ctx, int64(100)).Return(&domain.Activity{
		Count:    1,
		Checkins: []domain.Checkin{checkin(101, "alice")},
	}, nil)
	s.captureSends(1)
	s.watermark.EXPECT().SetLastSeen(int64(101)).Return(domain.ErrConfigWrite)

	relay := s.newRelay(Options{Users: []string{"alice"}})
	stats, err := relay.Run(ctx)

	// Messages already went out; only the persistence step failed.
	s.ErrorIs(err, domain.ErrConfigWrite)
	s.Equal(1, stats.TextMessages)
}
