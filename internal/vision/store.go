package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultMaxFrames = 32

// Store keeps the frames sent during a run in a Redis sorted set scored by
// capture time, so the display layer can show what the overlord just saw.
type Store struct {
	redis     *redis.Client
	frameTTL  time.Duration
	maxFrames int64
}

type storedFrame struct {
	Data       []byte `json:"data"`
	MIMEType   string `json:"mime_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	CapturedAt int64  `json:"captured_at"`
}

func NewStore(redisClient *redis.Client, frameTTL time.Duration) *Store {
	if frameTTL == 0 {
		frameTTL = 60 * time.Second
	}
	return &Store{
		redis:     redisClient,
		frameTTL:  frameTTL,
		maxFrames: defaultMaxFrames,
	}
}

func framesKey(runID string) string {
	return fmt.Sprintf("run:%s:frames", runID)
}

func (s *Store) StoreFrame(ctx context.Context, runID string, frame Frame) error {
	if frame.IsZero() {
		return fmt.Errorf("no frame data provided")
	}

	member, err := json.Marshal(storedFrame{
		Data:       frame.Data,
		MIMEType:   frame.MIMEType,
		Width:      frame.Width,
		Height:     frame.Height,
		CapturedAt: frame.CapturedAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	key := framesKey(runID)
	pipe := s.redis.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(frame.CapturedAt.UnixMilli()),
		Member: member,
	})
	pipe.ZRemRangeByRank(ctx, key, 0, -(s.maxFrames + 1))
	pipe.Expire(ctx, key, s.frameTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) GetLatestFrame(ctx context.Context, runID string) (*Frame, error) {
	results, err := s.redis.ZRevRangeWithScores(ctx, framesKey(runID), 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return decodeMember(results[0].Member)
}

func (s *Store) GetFrames(ctx context.Context, runID string, start, end time.Time, limit int) ([]*Frame, error) {
	opt := &redis.ZRangeBy{
		Min:   strconv.FormatInt(start.UnixMilli(), 10),
		Max:   strconv.FormatInt(end.UnixMilli(), 10),
		Count: int64(limit),
	}

	results, err := s.redis.ZRangeByScoreWithScores(ctx, framesKey(runID), opt).Result()
	if err != nil {
		return nil, err
	}

	frames := make([]*Frame, 0, len(results))
	for _, r := range results {
		f, err := decodeMember(r.Member)
		if err != nil {
			continue
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func (s *Store) DeleteFrames(ctx context.Context, runID string) error {
	return s.redis.Del(ctx, framesKey(runID)).Err()
}

func decodeMember(member any) (*Frame, error) {
	raw, ok := member.(string)
	if !ok {
		return nil, fmt.Errorf("invalid frame data type")
	}

	var sf storedFrame
	if err := json.Unmarshal([]byte(raw), &sf); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	return &Frame{
		Data:       sf.Data,
		MIMEType:   sf.MIMEType,
		Width:      sf.Width,
		Height:     sf.Height,
		CapturedAt: time.Unix(0, sf.CapturedAt),
	}, nil
}
