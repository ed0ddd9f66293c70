package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aptgraph/aptgraph/internal/pipeline"
	"github.com/aptgraph/aptgraph/internal/rank"
	"github.com/aptgraph/aptgraph/internal/stats"
)

// RedisStore persists the durable half of a session (parameters plus
// the JSON-serializable part of its last Output) to Redis, so an
// analyst session survives routing to a different stateless server
// replica. The process-local StageCache is kept in an in-memory
// fallback: Get returns this process's cache for the session (fresh
// and empty if this process has not seen it), since a stage cache full
// of graph pointers cannot round-trip through JSON.
type RedisStore struct {
	client *redis.Client
	prefix string
	local  *MemoryStore
}

// NewRedisStore creates a Store backed by the given Redis client.
// keyPrefix namespaces keys (e.g. "aptgraph:session:").
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, prefix: keyPrefix, local: NewMemoryStore()}
}

// redisRecord is the JSON-safe projection of a Record: every field
// here is built from exported, plain data, unlike pipeline.Output's
// FilteredClusters (graph.Graph has no exported fields, so it cannot
// round-trip through encoding/json).
type redisRecord struct {
	Params           pipeline.Parameters `json:"params"`
	Stdout           string              `json:"stdout"`
	StudyMode        bool                `json:"study_mode"`
	HistSimilarities []stats.Bin         `json:"hist_similarities,omitempty"`
	HistClusters     []stats.Bin         `json:"hist_clusters,omitempty"`
	Ranking          []rank.IndexBucket  `json:"ranking,omitempty"`
	Apt              *rank.AptReport     `json:"apt,omitempty"`
}

func toRedisRecord(rec *Record) *redisRecord {
	if rec == nil || rec.Output == nil {
		return nil
	}
	out := rec.Output
	return &redisRecord{
		Params:           rec.Params,
		Stdout:           out.Stdout,
		StudyMode:        out.StudyMode,
		HistSimilarities: out.HistSimilarities,
		HistClusters:     out.HistClusters,
		Ranking:          out.Ranking,
		Apt:              out.Apt,
	}
}

func fromRedisRecord(rr *redisRecord) *Record {
	if rr == nil {
		return nil
	}
	return &Record{
		Params: rr.Params,
		Output: &pipeline.Output{
			Stdout:           rr.Stdout,
			StudyMode:        rr.StudyMode,
			HistSimilarities: rr.HistSimilarities,
			HistClusters:     rr.HistClusters,
			Ranking:          rr.Ranking,
			Apt:              rr.Apt,
		},
	}
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	local, _ := r.local.Get(ctx, id)

	data, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return local, nil
	}
	if err != nil {
		return nil, err
	}

	var rr redisRecord
	if err := json.Unmarshal(data, &rr); err != nil {
		return nil, err
	}
	local.Last = fromRedisRecord(&rr)
	return local, nil
}

func (r *RedisStore) Save(ctx context.Context, id string, sess *Session, ttl time.Duration) error {
	if err := r.local.Save(ctx, id, sess, ttl); err != nil {
		return err
	}

	rr := toRedisRecord(sess.Last)
	if rr == nil {
		return nil
	}
	data, err := json.Marshal(rr)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+id, data, ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	_ = r.local.Delete(ctx, id)
	return r.client.Del(ctx, r.prefix+id).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
