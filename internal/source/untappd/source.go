package untappd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"slackbrew/internal/domain"
)

const userAgent = "Slackbrew/1.0"

// Config holds the upstream API credentials and client settings.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	AccessToken  string
	Timeout      time.Duration
}

// Source fetches recent check-in activity from the Untappd v4 API.
type Source struct {
	httpClient *http.Client
	baseURL    string
	creds      url.Values
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates an Untappd activity source.
func New(cfg Config, logger *slog.Logger) *Source {
	creds := url.Values{}
	creds.Set("client_id", cfg.ClientID)
	creds.Set("client_secret", cfg.ClientSecret)
	creds.Set("access_token", cfg.AccessToken)

	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		creds:   creds,
		timeout: cfg.Timeout,
		logger:  logger.With("source", "untappd"),
	}
}

// FetchCheckins requests check-ins with an id greater than minID. Items
// come back in the API's newest-first order. Any failure is terminal for
// the run: a timeout maps to domain.ErrUpstreamTimeout, transport trouble
// to domain.ErrUpstreamUnavailable, the envelope rate-limit marker to
// domain.ErrRateLimited and any other non-200 envelope code to
// *domain.UpstreamError.
func (s *Source) FetchCheckins(ctx context.Context, minID int64) (*domain.Activity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.fetchURL("checkin/recent", minID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w after %s", domain.ErrUpstreamTimeout, s.timeout)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrUpstreamUnavailable, err)
	}

	if env.Meta.Code != http.StatusOK {
		if env.Meta.ErrorType == "invalid_limit" {
			return nil, fmt.Errorf("%w, try again later", domain.ErrRateLimited)
		}
		return nil, &domain.UpstreamError{Code: env.Meta.Code}
	}

	activity := &domain.Activity{
		Count:    env.Response.Checkins.Count,
		Checkins: transform(env.Response.Checkins.Items, s.logger),
	}

	s.logger.Debug("fetched activity",
		"min_id", minID,
		"count", activity.Count,
		"items", len(activity.Checkins),
	)

	return activity, nil
}

func (s *Source) fetchURL(method string, minID int64) string {
	q := url.Values{}
	for k, v := range s.creds {
		q[k] = v
	}
	q.Set("min_id", strconv.FormatInt(minID, 10))
	return fmt.Sprintf("%s/%s?%s", s.baseURL, method, q.Encode())
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func transform(items []checkinItem, logger *slog.Logger) []domain.Checkin {
	checkins := make([]domain.Checkin, 0, len(items))

	for _, item := range items {
		checkin := domain.Checkin{
			ID: item.CheckinID,
			User: domain.User{
				UserName:  item.User.UserName,
				FirstName: item.User.FirstName,
				LastName:  item.User.LastName,
			},
			Beer: domain.Beer{
				ID:    item.Beer.BID,
				Name:  item.Beer.BeerName,
				Label: item.Beer.BeerLabel,
			},
			Brewery: domain.Brewery{
				ID:   item.Brewery.BreweryID,
				Name: item.Brewery.BreweryName,
				Slug: item.Brewery.BrewerySlug,
			},
			Rating:  item.RatingScore,
			Comment: item.CheckinComment,
			Venue:   parseVenue(item.Venue, item.CheckinID, logger),
		}

		for _, b := range item.Badges.Items {
			checkin.Badges = append(checkin.Badges, domain.Badge{
				Name:        b.BadgeName,
				Description: b.BadgeDescription,
				ImageSmall:  b.BadgeImage.Small,
				ImageMedium: b.BadgeImage.Medium,
			})
		}

		for _, m := range item.Media.Items {
			if m.Photo.PhotoImgMD != "" {
				checkin.Photos = append(checkin.Photos, domain.Photo{
					ImageURL: m.Photo.PhotoImgMD,
				})
			}
		}

		checkins = append(checkins, checkin)
	}

	return checkins
}

func parseVenue(raw json.RawMessage, checkinID int64, logger *slog.Logger) *domain.Venue {
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var v apiVenue
	if err := json.Unmarshal(raw, &v); err != nil {
		logger.Warn("failed to parse venue", "checkin_id", checkinID, "error", err)
		return nil
	}
	if v.VenueName == "" {
		return nil
	}
	return &domain.Venue{
		ID:   v.VenueID,
		Name: v.VenueName,
		Slug: v.VenueSlug,
	}
}
