package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"artist-momentum/internal/momentum"
	"artist-momentum/internal/storage"
)

// ScoreSource computes a fresh momentum record for one artist.
type ScoreSource interface {
	ArtistMomentum(ctx context.Context, artistID int64, windowDays int) (*momentum.Record, error)
}

// SweepResult summarises one threshold-alert sweep.
type SweepResult struct {
	Checked   int
	Triggered int
}

// Evaluator decides when subscriptions fire and dispatches notifications.
// It is the sole writer of AlertSubscription.last_fired, and stamps it
// only after at least one channel confirmed delivery, so a failed send
// stays eligible for the next sweep. Overlapping sweeps are prevented by
// the caller (advisory lock), not here.
type Evaluator struct {
	subs       storage.SubscriptionStore
	notes      storage.NotificationStore
	scores     ScoreSource
	channels   []Notifier
	windowDays int
	logger     zerolog.Logger

	now func() time.Time
}

// NewEvaluator constructs the alert evaluator. notes may be nil when no
// audit store is configured.
func NewEvaluator(subs storage.SubscriptionStore, notes storage.NotificationStore, scores ScoreSource, channels []Notifier, windowDays int, logger zerolog.Logger) *Evaluator {
	if windowDays <= 0 {
		windowDays = 14
	}
	return &Evaluator{
		subs:       subs,
		notes:      notes,
		scores:     scores,
		channels:   channels,
		windowDays: windowDays,
		logger:     logger.With().Str("component", "alert_evaluator").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// EvaluateScoreAlerts recomputes momentum for every active threshold
// subscription and fires those at or above their threshold whose
// cool-down has elapsed. The cool-down is a call-site choice: the
// long-running service passes the score cool-down, the one-shot batch
// sweep passes the daily guard. Per-subscription failures are isolated;
// only the subscription listing itself is fatal.
func (ev *Evaluator) EvaluateScoreAlerts(ctx context.Context, coolDown time.Duration) (SweepResult, error) {
	subs, err := ev.subs.ListActiveSubscriptions(ctx, storage.KindScoreThreshold, 0)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list score subscriptions: %w", err)
	}

	result := SweepResult{}
	now := ev.now()
	for _, sub := range subs {
		result.Checked++

		if sub.Threshold == nil {
			ev.logger.Warn().Int64("subscription_id", sub.ID).Msg("score subscription without threshold")
			continue
		}
		if !coolDownElapsed(sub.LastFired, now, coolDown) {
			continue
		}

		rec, err := ev.scores.ArtistMomentum(ctx, sub.ArtistID, ev.windowDays)
		if err != nil {
			if errors.Is(err, momentum.ErrInsufficientData) {
				ev.logger.Debug().Int64("artist_id", sub.ArtistID).Msg("no momentum yet; alert not evaluated")
			} else {
				ev.logger.Warn().Err(err).Int64("artist_id", sub.ArtistID).Msg("alert check failed for artist")
			}
			continue
		}
		if rec.Score < *sub.Threshold {
			continue
		}

		note := ev.scoreNotification(sub, rec)
		if err := ev.dispatch(ctx, note); err != nil {
			// last_fired untouched: the alert retries on the next sweep.
			ev.logger.Error().Err(err).Int64("subscription_id", sub.ID).Msg("alert delivery failed on all channels")
			continue
		}

		ev.audit(ctx, note)
		if err := ev.subs.UpdateLastFired(ctx, sub.ID, now); err != nil {
			ev.logger.Error().Err(err).Int64("subscription_id", sub.ID).Msg("failed to stamp last_fired")
		}
		result.Triggered++
	}
	return result, nil
}

// EvaluateContentAlert notifies every active subscription of the given
// kind on the artist, immediately and without cool-down, skipping the
// subscriber who caused the event. Returns how many were notified.
func (ev *Evaluator) EvaluateContentAlert(ctx context.Context, artistID, actorID int64, kind, artistName, summary string) (int, error) {
	if kind != storage.KindNewComment && kind != storage.KindNewRating {
		return 0, fmt.Errorf("unsupported content alert kind %q", kind)
	}

	subs, err := ev.subs.ListActiveSubscriptions(ctx, kind, artistID)
	if err != nil {
		return 0, fmt.Errorf("list content subscriptions: %w", err)
	}

	notified := 0
	now := ev.now()
	for _, sub := range subs {
		if sub.UserID == actorID {
			continue
		}

		note := ev.contentNotification(sub, kind, artistName, summary)
		if err := ev.dispatch(ctx, note); err != nil {
			ev.logger.Error().Err(err).Int64("subscription_id", sub.ID).Msg("content alert delivery failed on all channels")
			continue
		}

		ev.audit(ctx, note)
		if err := ev.subs.UpdateLastFired(ctx, sub.ID, now); err != nil {
			ev.logger.Error().Err(err).Int64("subscription_id", sub.ID).Msg("failed to stamp last_fired")
		}
		notified++
	}
	return notified, nil
}

// dispatch fans the notification out to every channel. A channel failure
// is logged and does not stop the others; the dispatch only fails when no
// channel delivered.
func (ev *Evaluator) dispatch(ctx context.Context, note Notification) error {
	if len(ev.channels) == 0 {
		return errors.New("no notification channels configured")
	}

	delivered := 0
	for _, ch := range ev.channels {
		if err := ch.Notify(ctx, note); err != nil {
			ev.logger.Error().Err(err).
				Int64("subscriber_id", note.SubscriberID).
				Str("kind", note.Kind).
				Msg("通知通道发送失败")
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return fmt.Errorf("all %d channels failed", len(ev.channels))
	}
	return nil
}

func (ev *Evaluator) audit(ctx context.Context, note Notification) {
	if ev.notes == nil {
		return
	}

	payload, err := json.Marshal(note.Payload)
	if err != nil {
		payload = json.RawMessage("{}")
	}
	rec := storage.NotificationRecord{
		UserID:  note.SubscriberID,
		Kind:    note.Kind,
		Title:   note.Title,
		Message: note.Message,
		Payload: payload,
	}
	if err := ev.notes.InsertNotification(ctx, rec); err != nil {
		ev.logger.Error().Err(err).Int64("subscriber_id", note.SubscriberID).Msg("failed to persist notification record")
	}
}

func (ev *Evaluator) scoreNotification(sub storage.AlertSubscription, rec *momentum.Record) Notification {
	message := fmt.Sprintf(
		"Momentum score %.2f crossed your threshold %.2f.\nPopularity: %d (Δ%+.0f over %dd)\nSpotify followers: %s (%+.1f%%)",
		rec.Score, *sub.Threshold, rec.Popularity, rec.PopularityDelta, ev.windowDays,
		rec.Followers.String(), rec.SpotifyGrowthPct*100,
	)
	payload := map[string]any{
		"score":              rec.Score,
		"threshold":          *sub.Threshold,
		"popularity":         rec.Popularity,
		"popularity_delta":   rec.PopularityDelta,
		"followers":          rec.Followers.String(),
		"spotify_growth_pct": rec.SpotifyGrowthPct,
		"window_days":        ev.windowDays,
	}
	for _, pd := range rec.Social {
		payload[pd.Platform+"_growth_pct"] = pd.GrowthPct
	}

	return Notification{
		SubscriberID: sub.UserID,
		ArtistID:     sub.ArtistID,
		ArtistName:   rec.Name,
		Kind:         sub.Kind,
		Title:        fmt.Sprintf("Momentum alert: %s", rec.Name),
		Message:      message,
		Payload:      payload,
	}
}

func (ev *Evaluator) contentNotification(sub storage.AlertSubscription, kind, artistName, summary string) Notification {
	verb := "comment"
	if kind == storage.KindNewRating {
		verb = "rating"
	}
	return Notification{
		SubscriberID: sub.UserID,
		ArtistID:     sub.ArtistID,
		ArtistName:   artistName,
		Kind:         kind,
		Title:        fmt.Sprintf("New %s on %s", verb, artistName),
		Message:      summary,
		Payload: map[string]any{
			"summary": summary,
		},
	}
}

func coolDownElapsed(lastFired *time.Time, now time.Time, coolDown time.Duration) bool {
	if lastFired == nil {
		return true
	}
	return now.Sub(*lastFired) > coolDown
}
