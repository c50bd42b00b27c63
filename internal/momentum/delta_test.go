package momentum

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"artist-momentum/internal/storage"
)

func snap(artistID int64, at time.Time, pop int, followers int64) storage.ArtistSnapshot {
	return storage.ArtistSnapshot{
		ArtistID:   artistID,
		CapturedAt: at,
		Popularity: pop,
		Followers:  decimal.NewFromInt(followers),
	}
}

func social(artistID int64, platform string, at time.Time, followers int64) storage.SocialSnapshot {
	return storage.SocialSnapshot{
		ArtistID:   artistID,
		Platform:   platform,
		CapturedAt: at,
		Followers:  decimal.NewFromInt(followers),
	}
}

func TestComputeDeltasInsufficient(t *testing.T) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -14)

	_, err := computeDeltas(1, DefaultSecondaries(), []storage.ArtistSnapshot{
		snap(1, now, 50, 100),
	}, nil, from, now)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("单个快照应返回 ErrInsufficientData, 实际 %v", err)
	}

	_, err = computeDeltas(1, DefaultSecondaries(), nil, nil, from, now)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("空序列应返回 ErrInsufficientData, 实际 %v", err)
	}
}

func TestComputeDeltasWindowFiltering(t *testing.T) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -14)

	// 窗口外的快照不参与计算；窗口内只剩一个 ⇒ 数据不足。
	_, err := computeDeltas(1, DefaultSecondaries(), []storage.ArtistSnapshot{
		snap(1, from.AddDate(0, 0, -5), 10, 100),
		snap(1, now, 50, 100),
	}, nil, from, now)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("窗口过滤后不足两个快照应返回 ErrInsufficientData, 实际 %v", err)
	}
}

func TestComputeDeltasBasic(t *testing.T) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -14)

	d, err := computeDeltas(1, DefaultSecondaries(), []storage.ArtistSnapshot{
		snap(1, from.Add(time.Hour), 50, 100),
		snap(1, from.AddDate(0, 0, 7), 55, 120),
		snap(1, now, 60, 150),
	}, []storage.SocialSnapshot{
		social(1, "instagram", from.Add(time.Hour), 1000),
		social(1, "instagram", now, 1100),
	}, from, now)
	if err != nil {
		t.Fatalf("计算增量不应报错: %v", err)
	}

	if d.popularity != 10 {
		t.Fatalf("popularity 增量应为 10, 实际 %v", d.popularity)
	}
	if math.Abs(d.primary-0.5) > 1e-9 {
		t.Fatalf("主平台增长率应为 0.5, 实际 %v", d.primary)
	}
	if math.Abs(d.secondary[0]-0.1) > 1e-9 {
		t.Fatalf("instagram 增长率应为 0.1, 实际 %v", d.secondary[0])
	}
	// 没有链接的平台贡献恰好为 0
	if d.secondary[1] != 0 || d.secondary[2] != 0 {
		t.Fatalf("缺失平台应贡献 0, 实际 %v %v", d.secondary[1], d.secondary[2])
	}
	if len(d.sparkline) != 3 || d.sparkline[0] != 50 || d.sparkline[2] != 60 {
		t.Fatalf("sparkline 不正确: %v", d.sparkline)
	}
	if d.currentPopularity != 60 {
		t.Fatalf("当前 popularity 应为 60, 实际 %d", d.currentPopularity)
	}
}

func TestGrowthPctZeroBaseline(t *testing.T) {
	// 基数为零 ⇒ 增长率为 0，而不是无穷大。
	if got := growthPct(decimal.Zero, decimal.NewFromInt(500)); got != 0 {
		t.Fatalf("零基数增长率应为 0, 实际 %v", got)
	}
}

func TestComputeDeltasDuplicateTimestamps(t *testing.T) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -14)

	// 同一时间戳出现两次时，后写入的一条作为 current。
	d, err := computeDeltas(1, DefaultSecondaries(), []storage.ArtistSnapshot{
		snap(1, from.Add(time.Hour), 50, 100),
		snap(1, now, 58, 140),
		snap(1, now, 60, 150),
	}, nil, from, now)
	if err != nil {
		t.Fatalf("重复时间戳不应报错: %v", err)
	}
	if d.currentPopularity != 60 {
		t.Fatalf("重复时间戳应取后写入的值, 实际 %d", d.currentPopularity)
	}
}

func TestComputeDeltasInvalidInput(t *testing.T) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -14)

	_, err := computeDeltas(1, DefaultSecondaries(), []storage.ArtistSnapshot{
		snap(1, from.Add(time.Hour), 150, 100),
		snap(1, now, 60, 150),
	}, nil, from, now)

	var invalid *InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("越界 popularity 应返回 InvalidInputError, 实际 %v", err)
	}
	if invalid.ArtistID != 1 {
		t.Fatalf("错误应携带 artist id, 实际 %d", invalid.ArtistID)
	}

	_, err = computeDeltas(2, DefaultSecondaries(), []storage.ArtistSnapshot{
		snap(2, from.Add(time.Hour), 50, 100),
		{ArtistID: 2, CapturedAt: now, Popularity: 60, Followers: decimal.NewFromInt(-5)},
	}, nil, from, now)
	if !errors.As(err, &invalid) {
		t.Fatalf("负粉丝数应返回 InvalidInputError, 实际 %v", err)
	}
}
