package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrArtistNotFound indicates the requested artist does not exist.
	ErrArtistNotFound = errors.New("storage: artist not found")
)

const (
	listArtistsSQL = `SELECT id, name, genres
    FROM artists
    ORDER BY id;`

	listArtistsByGenresSQL = `SELECT id, name, genres
    FROM artists
    WHERE genres && $1::text[]
    ORDER BY id;`

	getArtistSQL = `SELECT id, name, genres
    FROM artists
    WHERE id = $1;`

	listArtistSnapshotsSQL = `SELECT artist_id, captured_at, popularity, followers
    FROM artist_snapshots
    WHERE artist_id = $1
      AND captured_at >= $2
      AND captured_at <= $3
    ORDER BY captured_at;`

	listArtistSnapshotsBatchSQL = `SELECT artist_id, captured_at, popularity, followers
    FROM artist_snapshots
    WHERE artist_id = ANY($1)
      AND captured_at >= $2
      AND captured_at <= $3
    ORDER BY artist_id, captured_at;`

	listSocialSnapshotsSQL = `SELECT artist_id, platform, captured_at, followers
    FROM social_snapshots
    WHERE artist_id = $1
      AND captured_at >= $2
      AND captured_at <= $3
    ORDER BY platform, captured_at;`

	listSocialSnapshotsBatchSQL = `SELECT artist_id, platform, captured_at, followers
    FROM social_snapshots
    WHERE artist_id = ANY($1)
      AND captured_at >= $2
      AND captured_at <= $3
    ORDER BY artist_id, platform, captured_at;`

	listActiveSubscriptionsSQL = `SELECT id, user_id, artist_id, kind, threshold, active, last_fired, created_at
    FROM alert_subscriptions
    WHERE active
      AND kind = $1
    ORDER BY id;`

	listActiveSubscriptionsByArtistSQL = `SELECT id, user_id, artist_id, kind, threshold, active, last_fired, created_at
    FROM alert_subscriptions
    WHERE active
      AND kind = $1
      AND artist_id = $2
    ORDER BY id;`

	updateLastFiredSQL = `UPDATE alert_subscriptions
    SET last_fired = $2
    WHERE id = $1;`

	insertNotificationSQL = `INSERT INTO notifications (
        user_id,
        kind,
        title,
        message,
        payload
    ) VALUES (
        $1,$2,$3,$4,$5
    );`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ArtistStore defines cohort-membership reads.
type ArtistStore interface {
	FindArtistsByGenres(ctx context.Context, genres []string) ([]Artist, error)
	GetArtist(ctx context.Context, id int64) (Artist, error)
}

// SnapshotStore defines bounded-window snapshot reads.
type SnapshotStore interface {
	ListArtistSnapshots(ctx context.Context, artistID int64, from, to time.Time) ([]ArtistSnapshot, error)
	ListArtistSnapshotsBatch(ctx context.Context, artistIDs []int64, from, to time.Time) (map[int64][]ArtistSnapshot, error)
	ListSocialSnapshots(ctx context.Context, artistID int64, from, to time.Time) ([]SocialSnapshot, error)
	ListSocialSnapshotsBatch(ctx context.Context, artistIDs []int64, from, to time.Time) (map[int64][]SocialSnapshot, error)
}

// SubscriptionStore defines alert subscription reads and the last-fired write.
type SubscriptionStore interface {
	ListActiveSubscriptions(ctx context.Context, kind string, artistID int64) ([]AlertSubscription, error)
	UpdateLastFired(ctx context.Context, subscriptionID int64, firedAt time.Time) error
}

// NotificationStore defines the append-only notification audit write.
type NotificationStore interface {
	InsertNotification(ctx context.Context, rec NotificationRecord) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to artists, snapshots, subscriptions, and notifications.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// FindArtistsByGenres lists artists sharing at least one of the given genres.
// An empty genre set means every tracked artist.
func (s *Store) FindArtistsByGenres(ctx context.Context, genres []string) ([]Artist, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var rows pgx.Rows
	var queryErr error
	if len(genres) == 0 {
		rows, queryErr = pool.Query(ctx, listArtistsSQL)
	} else {
		rows, queryErr = pool.Query(ctx, listArtistsByGenresSQL, genres)
	}
	if queryErr != nil {
		return nil, fmt.Errorf("find artists by genres: %w", queryErr)
	}
	defer rows.Close()

	artists := make([]Artist, 0)
	for rows.Next() {
		var a Artist
		if err := rows.Scan(&a.ID, &a.Name, &a.Genres); err != nil {
			return nil, err
		}
		artists = append(artists, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return artists, nil
}

// GetArtist fetches one artist by id.
func (s *Store) GetArtist(ctx context.Context, id int64) (Artist, error) {
	pool, err := s.getPool()
	if err != nil {
		return Artist{}, err
	}

	var a Artist
	if scanErr := pool.QueryRow(ctx, getArtistSQL, id).Scan(&a.ID, &a.Name, &a.Genres); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return Artist{}, ErrArtistNotFound
		}
		return Artist{}, fmt.Errorf("get artist: %w", scanErr)
	}
	return a, nil
}

// ListArtistSnapshots lists one artist's snapshots inside a time window, oldest first.
func (s *Store) ListArtistSnapshots(ctx context.Context, artistID int64, from, to time.Time) ([]ArtistSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listArtistSnapshotsSQL, artistID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list artist snapshots: %w", queryErr)
	}
	defer rows.Close()

	snaps := make([]ArtistSnapshot, 0)
	for rows.Next() {
		snap, scanErr := scanArtistSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		snaps = append(snaps, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snaps, nil
}

// ListArtistSnapshotsBatch lists windowed snapshots for many artists, keyed by artist id.
func (s *Store) ListArtistSnapshotsBatch(ctx context.Context, artistIDs []int64, from, to time.Time) (map[int64][]ArtistSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listArtistSnapshotsBatchSQL, artistIDs, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list artist snapshots batch: %w", queryErr)
	}
	defer rows.Close()

	grouped := make(map[int64][]ArtistSnapshot, len(artistIDs))
	for rows.Next() {
		snap, scanErr := scanArtistSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		grouped[snap.ArtistID] = append(grouped[snap.ArtistID], snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return grouped, nil
}

// ListSocialSnapshots lists one artist's social-link snapshots inside a window.
func (s *Store) ListSocialSnapshots(ctx context.Context, artistID int64, from, to time.Time) ([]SocialSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSocialSnapshotsSQL, artistID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list social snapshots: %w", queryErr)
	}
	defer rows.Close()

	snaps := make([]SocialSnapshot, 0)
	for rows.Next() {
		snap, scanErr := scanSocialSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		snaps = append(snaps, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snaps, nil
}

// ListSocialSnapshotsBatch lists windowed social snapshots for many artists, keyed by artist id.
func (s *Store) ListSocialSnapshotsBatch(ctx context.Context, artistIDs []int64, from, to time.Time) (map[int64][]SocialSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSocialSnapshotsBatchSQL, artistIDs, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list social snapshots batch: %w", queryErr)
	}
	defer rows.Close()

	grouped := make(map[int64][]SocialSnapshot, len(artistIDs))
	for rows.Next() {
		snap, scanErr := scanSocialSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		grouped[snap.ArtistID] = append(grouped[snap.ArtistID], snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return grouped, nil
}

// ListActiveSubscriptions lists active subscriptions of one kind.
// artistID = 0 lists across all artists.
func (s *Store) ListActiveSubscriptions(ctx context.Context, kind string, artistID int64) ([]AlertSubscription, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var rows pgx.Rows
	var queryErr error
	if artistID == 0 {
		rows, queryErr = pool.Query(ctx, listActiveSubscriptionsSQL, kind)
	} else {
		rows, queryErr = pool.Query(ctx, listActiveSubscriptionsByArtistSQL, kind, artistID)
	}
	if queryErr != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", queryErr)
	}
	defer rows.Close()

	subs := make([]AlertSubscription, 0)
	for rows.Next() {
		sub, scanErr := scanSubscription(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		subs = append(subs, sub)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return subs, nil
}

// UpdateLastFired stamps a subscription after a confirmed successful dispatch.
func (s *Store) UpdateLastFired(ctx context.Context, subscriptionID int64, firedAt time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, updateLastFiredSQL, subscriptionID, firedAt)
	if execErr != nil {
		return fmt.Errorf("update last fired: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// InsertNotification appends a dispatched notification to the audit log.
func (s *Store) InsertNotification(ctx context.Context, rec NotificationRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	payload := rec.Payload
	if payload == nil {
		payload = json.RawMessage("{}")
	}

	if _, execErr := pool.Exec(ctx, insertNotificationSQL,
		rec.UserID,
		rec.Kind,
		rec.Title,
		rec.Message,
		[]byte(payload),
	); execErr != nil {
		return fmt.Errorf("insert notification: %w", execErr)
	}
	return nil
}

func scanArtistSnapshot(rows pgx.Rows) (ArtistSnapshot, error) {
	var (
		artistID     int64
		capturedAt   time.Time
		popularity   int
		followersStr string
	)

	if err := rows.Scan(&artistID, &capturedAt, &popularity, &followersStr); err != nil {
		return ArtistSnapshot{}, err
	}

	followers, err := decimal.NewFromString(followersStr)
	if err != nil {
		return ArtistSnapshot{}, fmt.Errorf("parse followers: %w", err)
	}

	return ArtistSnapshot{
		ArtistID:   artistID,
		CapturedAt: capturedAt,
		Popularity: popularity,
		Followers:  followers,
	}, nil
}

func scanSocialSnapshot(rows pgx.Rows) (SocialSnapshot, error) {
	var (
		artistID     int64
		platform     string
		capturedAt   time.Time
		followersStr string
	)

	if err := rows.Scan(&artistID, &platform, &capturedAt, &followersStr); err != nil {
		return SocialSnapshot{}, err
	}

	followers, err := decimal.NewFromString(followersStr)
	if err != nil {
		return SocialSnapshot{}, fmt.Errorf("parse followers: %w", err)
	}

	return SocialSnapshot{
		ArtistID:   artistID,
		Platform:   platform,
		CapturedAt: capturedAt,
		Followers:  followers,
	}, nil
}

func scanSubscription(rows pgx.Rows) (AlertSubscription, error) {
	var (
		sub          AlertSubscription
		thresholdStr sql.NullString
		lastFired    sql.NullTime
	)

	if err := rows.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.ArtistID,
		&sub.Kind,
		&thresholdStr,
		&sub.Active,
		&lastFired,
		&sub.CreatedAt,
	); err != nil {
		return AlertSubscription{}, err
	}

	if thresholdStr.Valid {
		threshold, convErr := decimal.NewFromString(thresholdStr.String)
		if convErr != nil {
			return AlertSubscription{}, fmt.Errorf("parse threshold: %w", convErr)
		}
		value := threshold.InexactFloat64()
		sub.Threshold = &value
	}
	if lastFired.Valid {
		ts := lastFired.Time
		sub.LastFired = &ts
	}

	return sub, nil
}
