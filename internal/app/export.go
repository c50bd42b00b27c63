package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"artist-momentum/internal/storage"
)

// Export renders one artist's popularity/follower history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	defer closeStore()

	artist, err := store.GetArtist(ctx, opts.ArtistID)
	if err != nil {
		return err
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.AddDate(0, 0, -a.Config.Scoring.WindowDays)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	snaps, err := store.ListArtistSnapshots(ctx, opts.ArtistID, from, to)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		a.Logger.Info().Int64("artist_id", opts.ArtistID).Msg("no snapshots found for export window")
		return nil
	}

	downsampled := downsampleSnapshots(snaps, opts.MaxPoints)
	a.Logger.Info().Int("total", len(snaps)).Int("exported", len(downsampled)).Msg("exporting snapshots")

	if opts.CSVPath != "" {
		if err := writeSnapshotsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSnapshotsPNG(opts.PNGPath, artist.Name, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSnapshots(snaps []storage.ArtistSnapshot, max int) []storage.ArtistSnapshot {
	if max <= 0 || len(snaps) <= max {
		return snaps
	}

	result := make([]storage.ArtistSnapshot, 0, max)
	step := float64(len(snaps)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(snaps) {
			idx = len(snaps) - 1
		}
		result = append(result, snaps[idx])
	}
	return result
}

func writeSnapshotsCSV(path string, snaps []storage.ArtistSnapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"captured_at", "popularity", "followers"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, snap := range snaps {
		record := []string{
			snap.CapturedAt.Format(time.RFC3339),
			fmt.Sprintf("%d", snap.Popularity),
			snap.Followers.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSnapshotsPNG(path, artistName string, snaps []storage.ArtistSnapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(snaps))
	popularity := make([]float64, len(snaps))
	followers := make([]float64, len(snaps))

	for i, snap := range snaps {
		x[i] = snap.CapturedAt
		popularity[i] = float64(snap.Popularity)
		followers[i] = snap.Followers.InexactFloat64()
	}

	countFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Title:  artistName,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Popularity (0-100)",
			ValueFormatter: countFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Followers",
			ValueFormatter: countFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Popularity",
				XValues: x,
				YValues: popularity,
			},
			chart.TimeSeries{
				Name:    "Followers",
				XValues: x,
				YValues: followers,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
