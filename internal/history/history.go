package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Slice is the outcome of one requested slice.
type Slice struct {
	Index    int    `json:"index"`
	Pages    string `json:"pages"` // 1-based, e.g. "3-5"
	Location string `json:"location,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Run is one invocation of the tool against one source document.
type Run struct {
	ID        string
	Source    string
	PageCount int
	Started   time.Time
	Finished  time.Time
	Slices    []Slice
}

// Written counts the slices that were stored.
func (r Run) Written() int {
	n := 0
	for _, s := range r.Slices {
		if s.Error == "" {
			n++
		}
	}
	return n
}

// Failed counts the slices that could not be stored.
func (r Run) Failed() int { return len(r.Slices) - r.Written() }

// RedisHistory keeps runs as a hash plus a list of JSON slices.
type RedisHistory struct {
	client *redis.Client
	keyNS  string
	ttl    time.Duration
}

func NewRedisHistory(redisURL string, ttl time.Duration) (*RedisHistory, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		c.Close()
		return nil, err
	}
	return &RedisHistory{client: c, keyNS: "pdfslicer:run", ttl: ttl}, nil
}

func (h *RedisHistory) key(id string) string       { return fmt.Sprintf("%s:%s", h.keyNS, id) }
func (h *RedisHistory) slicesKey(id string) string { return h.key(id) + ":slices" }

// Record stores run, replacing any earlier record with the same ID.
func (h *RedisHistory) Record(ctx context.Context, run Run) error {
	items, err := encodeSlices(run.Slices)
	if err != nil {
		return err
	}

	pipe := h.client.TxPipeline()
	pipe.Del(ctx, h.key(run.ID), h.slicesKey(run.ID))
	pipe.HSet(ctx, h.key(run.ID), runFields(run))
	if len(items) > 0 {
		pipe.RPush(ctx, h.slicesKey(run.ID), items...)
	}
	if h.ttl > 0 {
		pipe.Expire(ctx, h.key(run.ID), h.ttl)
		pipe.Expire(ctx, h.slicesKey(run.ID), h.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Get loads a run recorded earlier.
func (h *RedisHistory) Get(ctx context.Context, id string) (Run, bool, error) {
	res, err := h.client.HGetAll(ctx, h.key(id)).Result()
	if err != nil {
		return Run{}, false, err
	}
	if len(res) == 0 {
		return Run{}, false, nil
	}

	items, err := h.client.LRange(ctx, h.slicesKey(id), 0, -1).Result()
	if err != nil {
		return Run{}, false, err
	}

	run := parseFields(id, res)
	for _, it := range items {
		var s Slice
		if err := json.Unmarshal([]byte(it), &s); err != nil {
			return Run{}, false, fmt.Errorf("decode slice of run %s: %w", id, err)
		}
		run.Slices = append(run.Slices, s)
	}
	return run, true, nil
}

func (h *RedisHistory) Close() error { return h.client.Close() }

func runFields(run Run) map[string]interface{} {
	return map[string]interface{}{
		"source":    run.Source,
		"pages":     run.PageCount,
		"started":   run.Started.UTC().Format(time.RFC3339Nano),
		"finished":  run.Finished.UTC().Format(time.RFC3339Nano),
		"requested": len(run.Slices),
		"written":   run.Written(),
		"failed":    run.Failed(),
	}
}

func parseFields(id string, res map[string]string) Run {
	run := Run{ID: id, Source: res["source"]}
	// ignore parse errors; zero values are fine for display
	run.PageCount, _ = strconv.Atoi(res["pages"])
	if t, err := time.Parse(time.RFC3339Nano, res["started"]); err == nil {
		run.Started = t
	}
	if t, err := time.Parse(time.RFC3339Nano, res["finished"]); err == nil {
		run.Finished = t
	}
	return run
}

func encodeSlices(slices []Slice) ([]interface{}, error) {
	items := make([]interface{}, 0, len(slices))
	for _, s := range slices {
		b, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		items = append(items, string(b))
	}
	return items, nil
}
