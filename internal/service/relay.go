package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"slackbrew/internal/domain"
	"slackbrew/internal/render"
)

// Options carries the display preferences and the watched-user set.
type Options struct {
	Users           []string
	DisplayMedia    bool
	DisplayBadges   bool
	DisplayAppLinks bool
}

// Relay runs one fetch → filter/format → notify → watermark pass.
type Relay struct {
	source    Source
	notifier  Notifier
	watermark WatermarkStore
	history   HistoryStore   // optional
	publisher EventPublisher // optional
	formatter *render.Formatter
	users     map[string]struct{}
	opts      Options
	logger    *slog.Logger
}

func NewRelay(
	source Source,
	notifier Notifier,
	watermark WatermarkStore,
	history HistoryStore,
	publisher EventPublisher,
	opts Options,
	logger *slog.Logger,
) *Relay {
	users := make(map[string]struct{}, len(opts.Users))
	for _, u := range opts.Users {
		u = strings.ToLower(strings.TrimSpace(u))
		if u != "" {
			users[u] = struct{}{}
		}
	}

	return &Relay{
		source:    source,
		notifier:  notifier,
		watermark: watermark,
		history:   history,
		publisher: publisher,
		formatter: render.NewFormatter(opts.DisplayAppLinks),
		users:     users,
		opts:      opts,
		logger:    logger.With("component", "relay"),
	}
}

// Run executes a single pass. Check-ins arrive newest-first and are
// processed oldest-first so chat messages read chronologically. Any error
// is terminal for the run; messages already sent are not rolled back, and
// the watermark only advances after the whole send loop succeeded, so a
// mid-run failure means the next run may re-send earlier messages.
func (r *Relay) Run(ctx context.Context) (*domain.RunStats, error) {
	start := time.Now()
	minID := r.watermark.LastSeen()

	activity, err := r.source.FetchCheckins(ctx, minID)
	if err != nil {
		return nil, fmt.Errorf("fetch activity: %w", err)
	}

	stats := &domain.RunStats{
		Fetched:  len(activity.Checkins),
		LastSeen: minID,
	}

	deferSending := render.ComputeBatchingPolicy(activity.Checkins, r.users)
	r.logger.Debug("batching policy computed", "defer_sending", deferSending)

	var buf strings.Builder
	var iconURL string
	var lastMatched domain.Checkin

	checkins := activity.Checkins
	for i := len(checkins) - 1; i >= 0; i-- {
		c := checkins[i]
		if !render.Watched(c, r.users) {
			continue
		}
		stats.Matched++
		lastMatched = c

		if r.opts.DisplayBadges {
			for _, b := range c.Badges {
				msg := domain.Message{
					Kind:     domain.MessageBadge,
					IconURL:  b.ImageSmall,
					ThumbURL: b.ImageMedium,
					Title:    render.BadgeTitle(c, b),
					Text:     b.Description,
				}
				if err := r.deliver(ctx, msg, c); err != nil {
					return stats, err
				}
				stats.BadgeMessages++
			}
		}

		buf.WriteString(r.formatter.Line(c))

		if c.Beer.Label != "" {
			iconURL = c.Beer.Label
		}

		switch {
		case len(c.Photos) > 0 && r.opts.DisplayMedia:
			// The buffer, including this check-in's own line, goes out as
			// one photo message so the picture sits right under its text.
			photo := c.Photos[len(c.Photos)-1]
			msg := domain.Message{
				Kind:     domain.MessagePhoto,
				IconURL:  iconURL,
				Text:     buf.String(),
				Title:    c.Beer.Name,
				ImageURL: photo.ImageURL,
			}
			if err := r.deliver(ctx, msg, c); err != nil {
				return stats, err
			}
			stats.PhotoMessages++
			buf.Reset()
		case !deferSending:
			msg := domain.Message{
				Kind:    domain.MessageText,
				IconURL: iconURL,
				Text:    buf.String(),
			}
			if err := r.deliver(ctx, msg, c); err != nil {
				return stats, err
			}
			stats.TextMessages++
			buf.Reset()
		}
	}

	if buf.Len() > 0 && deferSending {
		msg := domain.Message{
			Kind:    domain.MessageText,
			IconURL: iconURL,
			Text:    buf.String(),
		}
		// A combined message covers several check-ins; the audit record
		// carries the last one.
		if err := r.deliver(ctx, msg, lastMatched); err != nil {
			return stats, err
		}
		stats.TextMessages++
	}

	if activity.Count > 0 {
		if maxID := activity.MaxCheckinID(); maxID > minID {
			if err := r.watermark.SetLastSeen(maxID); err != nil {
				return stats, fmt.Errorf("update watermark: %w", err)
			}
			stats.LastSeen = maxID
			stats.Advanced = true
		}
	}

	stats.Duration = time.Since(start)

	r.logger.Info("run completed",
		"fetched", stats.Fetched,
		"matched", stats.Matched,
		"text_messages", stats.TextMessages,
		"badge_messages", stats.BadgeMessages,
		"photo_messages", stats.PhotoMessages,
		"lastseen", stats.LastSeen,
		"advanced", stats.Advanced,
		"duration", stats.Duration,
	)

	return stats, nil
}

// deliver sends one message, then records it to the optional history store
// and broker mirror. Only the send itself can fail the run.
func (r *Relay) deliver(ctx context.Context, msg domain.Message, c domain.Checkin) error {
	if err := r.notifier.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s message: %w", msg.Kind, err)
	}

	d := domain.Delivery{
		CheckinID: c.ID,
		Kind:      msg.Kind,
		UserName:  c.User.UserName,
		BeerName:  c.Beer.Name,
		SentAt:    time.Now().UTC(),
	}

	if r.history != nil {
		if err := r.history.Record(ctx, d); err != nil {
			r.logger.Warn("history record failed", "checkin_id", d.CheckinID, "error", err)
		}
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, msg, d); err != nil {
			r.logger.Warn("mirror publish failed", "checkin_id", d.CheckinID, "error", err)
		}
	}

	return nil
}
