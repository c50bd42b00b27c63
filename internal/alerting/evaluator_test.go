package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"artist-momentum/internal/momentum"
	"artist-momentum/internal/storage"
)

// fakeSubStore serves subscriptions from memory and reflects last_fired
// writes back into the list, so consecutive sweeps observe each other.
type fakeSubStore struct {
	subs    []storage.AlertSubscription
	listErr error
}

var _ storage.SubscriptionStore = (*fakeSubStore)(nil)

func (f *fakeSubStore) ListActiveSubscriptions(_ context.Context, kind string, artistID int64) ([]storage.AlertSubscription, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []storage.AlertSubscription
	for _, s := range f.subs {
		if !s.Active || s.Kind != kind {
			continue
		}
		if artistID != 0 && s.ArtistID != artistID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSubStore) UpdateLastFired(_ context.Context, subscriptionID int64, firedAt time.Time) error {
	for i := range f.subs {
		if f.subs[i].ID == subscriptionID {
			t := firedAt
			f.subs[i].LastFired = &t
			return nil
		}
	}
	return errors.New("subscription not found")
}

type fakeNoteStore struct {
	records []storage.NotificationRecord
}

func (f *fakeNoteStore) InsertNotification(_ context.Context, rec storage.NotificationRecord) error {
	f.records = append(f.records, rec)
	return nil
}

type fakeScoreSource struct {
	score float64
	err   error
}

func (f *fakeScoreSource) ArtistMomentum(_ context.Context, artistID int64, _ int) (*momentum.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &momentum.Record{
		ArtistID:  artistID,
		Name:      "Test Act",
		Score:     f.score,
		Followers: decimal.NewFromInt(1000),
	}, nil
}

type fakeChannel struct {
	sent []Notification
	fail bool
}

func (f *fakeChannel) Notify(_ context.Context, note Notification) error {
	if f.fail {
		return errors.New("channel down")
	}
	f.sent = append(f.sent, note)
	return nil
}

func threshold(v float64) *float64 { return &v }

func scoreSub(id, userID, artistID int64, th float64) storage.AlertSubscription {
	return storage.AlertSubscription{
		ID:        id,
		UserID:    userID,
		ArtistID:  artistID,
		Kind:      storage.KindScoreThreshold,
		Threshold: threshold(th),
		Active:    true,
	}
}

func newTestEvaluator(subs *fakeSubStore, notes *fakeNoteStore, scores ScoreSource, channels ...Notifier) *Evaluator {
	var ns storage.NotificationStore
	if notes != nil {
		ns = notes
	}
	return NewEvaluator(subs, ns, scores, channels, 14, zerolog.Nop())
}

func TestScoreAlertFires(t *testing.T) {
	subs := &fakeSubStore{subs: []storage.AlertSubscription{scoreSub(1, 7, 42, 0.5)}}
	notes := &fakeNoteStore{}
	ch := &fakeChannel{}
	ev := newTestEvaluator(subs, notes, &fakeScoreSource{score: 0.8}, ch)

	res, err := ev.EvaluateScoreAlerts(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("扫描不应报错: %v", err)
	}
	if res.Checked != 1 || res.Triggered != 1 {
		t.Fatalf("应检查 1 条并触发 1 条, 实际 %+v", res)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("通道应收到 1 条通知, 实际 %d", len(ch.sent))
	}
	if ch.sent[0].SubscriberID != 7 || ch.sent[0].ArtistID != 42 {
		t.Fatalf("通知内容不正确: %+v", ch.sent[0])
	}
	if subs.subs[0].LastFired == nil {
		t.Fatal("触发后应写入 last_fired")
	}
	if len(notes.records) != 1 {
		t.Fatalf("应写入 1 条通知审计记录, 实际 %d", len(notes.records))
	}
}

func TestScoreAlertBelowThreshold(t *testing.T) {
	subs := &fakeSubStore{subs: []storage.AlertSubscription{scoreSub(1, 7, 42, 0.5)}}
	ch := &fakeChannel{}
	ev := newTestEvaluator(subs, nil, &fakeScoreSource{score: 0.3}, ch)

	res, err := ev.EvaluateScoreAlerts(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("扫描不应报错: %v", err)
	}
	if res.Triggered != 0 || len(ch.sent) != 0 {
		t.Fatalf("低于阈值不应触发, 实际 %+v, 通知 %d", res, len(ch.sent))
	}
	if subs.subs[0].LastFired != nil {
		t.Fatal("未触发时 last_fired 不应被写入")
	}
}

func TestScoreAlertExactThresholdFires(t *testing.T) {
	subs := &fakeSubStore{subs: []storage.AlertSubscription{scoreSub(1, 7, 42, 0.5)}}
	ch := &fakeChannel{}
	ev := newTestEvaluator(subs, nil, &fakeScoreSource{score: 0.5}, ch)

	res, err := ev.EvaluateScoreAlerts(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("扫描不应报错: %v", err)
	}
	if res.Triggered != 1 {
		t.Fatalf("得分等于阈值应触发, 实际 %+v", res)
	}
}

func TestScoreAlertCoolDown(t *testing.T) {
	subs := &fakeSubStore{subs: []storage.AlertSubscription{scoreSub(1, 7, 42, 0.5)}}
	ch := &fakeChannel{}
	ev := newTestEvaluator(subs, nil, &fakeScoreSource{score: 0.9}, ch)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ev.now = func() time.Time { return base }

	coolDown := 7 * 24 * time.Hour
	if res, _ := ev.EvaluateScoreAlerts(context.Background(), coolDown); res.Triggered != 1 {
		t.Fatalf("首次扫描应触发, 实际 %+v", res)
	}

	// 立即重扫: 冷却期内不重复触发。
	if res, _ := ev.EvaluateScoreAlerts(context.Background(), coolDown); res.Triggered != 0 {
		t.Fatalf("冷却期内不应重复触发, 实际 %+v", res)
	}

	// 一天后仍在冷却期内。
	ev.now = func() time.Time { return base.Add(24 * time.Hour) }
	if res, _ := ev.EvaluateScoreAlerts(context.Background(), coolDown); res.Triggered != 0 {
		t.Fatalf("冷却期第 1 天不应重复触发, 实际 %+v", res)
	}

	// 八天后冷却期已过, 得分仍超阈值 ⇒ 再次触发。
	ev.now = func() time.Time { return base.Add(8 * 24 * time.Hour) }
	if res, _ := ev.EvaluateScoreAlerts(context.Background(), coolDown); res.Triggered != 1 {
		t.Fatalf("冷却期过后应再次触发, 实际 %+v", res)
	}
	if len(ch.sent) != 2 {
		t.Fatalf("总共应发送 2 条通知, 实际 %d", len(ch.sent))
	}
}

func TestScoreAlertDeliveryFailureKeepsEligible(t *testing.T) {
	subs := &fakeSubStore{subs: []storage.AlertSubscription{scoreSub(1, 7, 42, 0.5)}}
	ch := &fakeChannel{fail: true}
	ev := newTestEvaluator(subs, nil, &fakeScoreSource{score: 0.9}, ch)

	res, err := ev.EvaluateScoreAlerts(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("单条订阅投递失败不应中止扫描: %v", err)
	}
	if res.Triggered != 0 {
		t.Fatalf("全部通道失败不应计为触发, 实际 %+v", res)
	}
	if subs.subs[0].LastFired != nil {
		t.Fatal("投递失败时 last_fired 不应被写入")
	}

	// 通道恢复后下一次扫描立即补发。
	ch.fail = false
	res, err = ev.EvaluateScoreAlerts(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("扫描不应报错: %v", err)
	}
	if res.Triggered != 1 || len(ch.sent) != 1 {
		t.Fatalf("通道恢复后应触发, 实际 %+v, 通知 %d", res, len(ch.sent))
	}
}

func TestScoreAlertPartialChannelFailure(t *testing.T) {
	subs := &fakeSubStore{subs: []storage.AlertSubscription{scoreSub(1, 7, 42, 0.5)}}
	bad := &fakeChannel{fail: true}
	good := &fakeChannel{}
	ev := newTestEvaluator(subs, nil, &fakeScoreSource{score: 0.9}, bad, good)

	res, err := ev.EvaluateScoreAlerts(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("扫描不应报错: %v", err)
	}
	// 只要有一个通道成功即算送达。
	if res.Triggered != 1 || len(good.sent) != 1 {
		t.Fatalf("部分通道失败仍应触发, 实际 %+v", res)
	}
	if subs.subs[0].LastFired == nil {
		t.Fatal("任一通道送达后应写入 last_fired")
	}
}

func TestScoreAlertSkipsBrokenSubscriptions(t *testing.T) {
	noThreshold := storage.AlertSubscription{
		ID: 1, UserID: 7, ArtistID: 42,
		Kind: storage.KindScoreThreshold, Active: true,
	}
	subs := &fakeSubStore{subs: []storage.AlertSubscription{
		noThreshold,
		scoreSub(2, 8, 43, 0.5),
	}}
	ch := &fakeChannel{}
	ev := newTestEvaluator(subs, nil, &fakeScoreSource{score: 0.9}, ch)

	res, err := ev.EvaluateScoreAlerts(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("缺失阈值的订阅不应中止扫描: %v", err)
	}
	if res.Checked != 2 || res.Triggered != 1 {
		t.Fatalf("应跳过无阈值订阅并触发另一条, 实际 %+v", res)
	}
}

func TestScoreAlertInsufficientDataSkipped(t *testing.T) {
	subs := &fakeSubStore{subs: []storage.AlertSubscription{scoreSub(1, 7, 42, 0.5)}}
	ch := &fakeChannel{}
	ev := newTestEvaluator(subs, nil, &fakeScoreSource{err: momentum.ErrInsufficientData}, ch)

	res, err := ev.EvaluateScoreAlerts(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("数据不足的艺人不应中止扫描: %v", err)
	}
	if res.Triggered != 0 || len(ch.sent) != 0 {
		t.Fatalf("数据不足不应触发, 实际 %+v", res)
	}
}

func TestScoreAlertListFailureIsFatal(t *testing.T) {
	subs := &fakeSubStore{listErr: errors.New("connection refused")}
	ev := newTestEvaluator(subs, nil, &fakeScoreSource{score: 0.9}, &fakeChannel{})

	if _, err := ev.EvaluateScoreAlerts(context.Background(), 24*time.Hour); err == nil {
		t.Fatal("订阅列表读取失败应中止整次扫描")
	}
}

func contentSub(id, userID, artistID int64, kind string) storage.AlertSubscription {
	return storage.AlertSubscription{
		ID: id, UserID: userID, ArtistID: artistID,
		Kind: kind, Active: true,
	}
}

func TestContentAlertExcludesActor(t *testing.T) {
	subs := &fakeSubStore{subs: []storage.AlertSubscription{
		contentSub(1, 7, 42, storage.KindNewComment),
		contentSub(2, 8, 42, storage.KindNewComment),
		contentSub(3, 9, 99, storage.KindNewComment),
	}}
	ch := &fakeChannel{}
	ev := newTestEvaluator(subs, nil, &fakeScoreSource{}, ch)

	notified, err := ev.EvaluateContentAlert(context.Background(), 42, 7, storage.KindNewComment, "Test Act", "great set last night")
	if err != nil {
		t.Fatalf("内容告警不应报错: %v", err)
	}
	// 用户 7 是事件发起者, 用户 9 订阅的是别的艺人。
	if notified != 1 {
		t.Fatalf("应只通知 1 个订阅者, 实际 %d", notified)
	}
	if len(ch.sent) != 1 || ch.sent[0].SubscriberID != 8 {
		t.Fatalf("应通知用户 8, 实际 %+v", ch.sent)
	}
}

func TestContentAlertNoCoolDown(t *testing.T) {
	fired := time.Now().UTC().Add(-time.Minute)
	sub := contentSub(1, 8, 42, storage.KindNewRating)
	sub.LastFired = &fired
	subs := &fakeSubStore{subs: []storage.AlertSubscription{sub}}
	ch := &fakeChannel{}
	ev := newTestEvaluator(subs, nil, &fakeScoreSource{}, ch)

	// 内容事件立即通知, 不受冷却期限制。
	notified, err := ev.EvaluateContentAlert(context.Background(), 42, 1, storage.KindNewRating, "Test Act", "5 stars")
	if err != nil {
		t.Fatalf("内容告警不应报错: %v", err)
	}
	if notified != 1 {
		t.Fatalf("刚触发过的订阅仍应收到内容告警, 实际 %d", notified)
	}
}

func TestContentAlertRejectsUnknownKind(t *testing.T) {
	ev := newTestEvaluator(&fakeSubStore{}, nil, &fakeScoreSource{}, &fakeChannel{})
	if _, err := ev.EvaluateContentAlert(context.Background(), 42, 1, "score_threshold", "Test Act", "x"); err == nil {
		t.Fatal("非内容类告警 kind 应被拒绝")
	}
}

func TestDispatchRequiresChannels(t *testing.T) {
	subs := &fakeSubStore{subs: []storage.AlertSubscription{scoreSub(1, 7, 42, 0.5)}}
	ev := newTestEvaluator(subs, nil, &fakeScoreSource{score: 0.9})

	res, err := ev.EvaluateScoreAlerts(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("无通道时扫描本身不应报错: %v", err)
	}
	if res.Triggered != 0 || subs.subs[0].LastFired != nil {
		t.Fatalf("无通道时不应触发也不应写 last_fired, 实际 %+v", res)
	}
}
