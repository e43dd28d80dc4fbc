package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/ohler55/ojg/oj"

	"github.com/mpapenbr/gaterace-service-go/log"
	"github.com/mpapenbr/gaterace-service-go/pkg/model"
	"github.com/mpapenbr/gaterace-service-go/pkg/race/leaderboard"
)

const DefaultBucket = "gaterace"

// BestTimesKV mirrors the leaderboard of each track into a JetStream
// key value bucket. Keys are besttimes.<trackID>.
type BestTimesKV struct {
	kv jetstream.KeyValue
	l  *log.Logger
}

var _ leaderboard.Mirror = (*BestTimesKV)(nil)

// NewBestTimesKV creates the bucket if needed.
//
//nolint:whitespace // can't make both editor and linter happy
func NewBestTimesKV(
	ctx context.Context,
	js jetstream.JetStream,
	bucket string,
) (*BestTimesKV, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "best lap times per track",
		History:     5,
		TTL:         time.Hour * 24 * 30,
	})
	if err != nil {
		return nil, fmt.Errorf("setup kv bucket %s: %w", bucket, err)
	}
	return &BestTimesKV{kv: kv, l: log.Default().Named("transport.kv")}, nil
}

func bestTimesKey(trackID int32) string {
	return fmt.Sprintf("besttimes.%d", trackID)
}

//nolint:whitespace // can't make both editor and linter happy
func (b *BestTimesKV) PutBestTimes(
	ctx context.Context,
	trackID int32,
	times []model.BestTime,
) error {
	data, err := oj.Marshal(toBestTimeMsgs(times))
	if err != nil {
		return err
	}
	rev, err := b.kv.Put(ctx, bestTimesKey(trackID), data)
	b.l.Debug("besttimes put",
		log.String("key", bestTimesKey(trackID)),
		log.Int("num", len(times)),
		log.Uint64("rev", rev), log.ErrorField(err))
	return err
}

// BestTimes returns the raw JSON stored for a track, nil if there is none.
func (b *BestTimesKV) BestTimes(ctx context.Context, trackID int32) ([]byte, error) {
	entry, err := b.kv.Get(ctx, bestTimesKey(trackID))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry.Value(), nil
}

func (b *BestTimesKV) DeleteBestTimes(ctx context.Context, trackID int32) error {
	err := b.kv.Delete(ctx, bestTimesKey(trackID))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}
