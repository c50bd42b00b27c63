package app

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Sweep runs one threshold-alert batch with the given cool-down and exits.
// 定时任务之外的手动触达入口；默认 cool-down 是每日去重保护。
func (a *App) Sweep(ctx context.Context, opts SweepOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot run sweep")
	}
	defer closeStore()

	coolDown := opts.CoolDown
	if coolDown <= 0 {
		coolDown = a.Config.Alerting.BatchGuard
	}

	engine := a.newEngine(store, store)
	evaluator := a.newEvaluator(store, engine)

	result, err := evaluator.EvaluateScoreAlerts(ctx, coolDown)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "checked %d subscriptions, triggered %d alerts (cool-down %s)\n",
		result.Checked, result.Triggered, coolDown)
	return nil
}

// ContentAlert fans a comment/rating event out to the artist's subscribers.
func (a *App) ContentAlert(ctx context.Context, opts ContentAlertOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot send content alert")
	}
	defer closeStore()

	artist, err := store.GetArtist(ctx, opts.ArtistID)
	if err != nil {
		return err
	}

	engine := a.newEngine(store, store)
	evaluator := a.newEvaluator(store, engine)

	notified, err := evaluator.EvaluateContentAlert(ctx, opts.ArtistID, opts.ActorID, opts.Kind, artist.Name, opts.Summary)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "notified %d subscribers\n", notified)
	return nil
}
