package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"renderq/internal/job"
	"renderq/internal/pkg/errors"
)

// RedisStore keeps one hash per job record plus a list of pending
// tickets and a set of every id ever enqueued.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// mergeScript updates hash fields only when the key already exists, so a
// merge can never resurrect or create a record.
var mergeScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV))
return 1
`)

// NewRedisStore creates a store on the given client. All keys are
// namespaced under prefix.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "renderq"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) jobKey(id string) string { return s.prefix + ":job:" + id }
func (s *RedisStore) queueKey() string        { return s.prefix + ":queue" }
func (s *RedisStore) idsKey() string          { return s.prefix + ":ids" }

func (s *RedisStore) Create(ctx context.Context, j *job.Job) error {
	key := s.jobKey(j.ID)

	// Claiming the id field first makes the existence check atomic.
	set, err := s.rdb.HSetNX(ctx, key, "id", j.ID).Result()
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "store.create", "record write failed")
	}
	if !set {
		return errors.AlreadyExists("job", j.ID)
	}

	if err := s.rdb.HSet(ctx, key, encodeJob(j)).Err(); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "store.create", "record write failed")
	}
	return nil
}

func (s *RedisStore) Enqueue(ctx context.Context, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, s.queueKey(), id)
	pipe.SAdd(ctx, s.idsKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "store.enqueue", "queue push failed")
	}
	return nil
}

func (s *RedisStore) Dequeue(ctx context.Context, timeout time.Duration) (string, bool, error) {
	res, err := s.rdb.BLPop(ctx, timeout, s.queueKey()).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.WrapWithCode(err, errors.CodeUnavailable, "store.dequeue", "queue pop failed")
	}
	if len(res) < 2 {
		return "", false, nil
	}
	return res[1], true, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*job.Job, error) {
	data, err := s.rdb.HGetAll(ctx, s.jobKey(id)).Result()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "store.get", "record read failed")
	}
	if len(data) == 0 {
		return nil, errors.NotFound("job", id)
	}
	return decodeJob(data), nil
}

func (s *RedisStore) Merge(ctx context.Context, id string, u Update) error {
	fields := encodeUpdate(u, time.Now().UTC())

	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}

	n, err := mergeScript.Run(ctx, s.rdb, []string{s.jobKey(id)}, args...).Int()
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "store.merge", "record update failed")
	}
	if n == 0 {
		return errors.NotFound("job", id)
	}
	return nil
}

func (s *RedisStore) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "store.list", "id set read failed")
	}
	return ids, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "store.ping", "store unreachable")
	}
	return nil
}

// encodeJob flattens a record into hash fields.
func encodeJob(j *job.Job) map[string]any {
	return map[string]any{
		"id":               j.ID,
		"status":           string(j.Status),
		"prompt":           j.Prompt,
		"duration_seconds": strconv.Itoa(j.DurationSeconds),
		"frame_rate":       strconv.Itoa(j.FrameRate),
		"resolution_tag":   j.ResolutionTag,
		"created_at":       j.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":       j.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"error_message":    j.ErrorMessage,
		"result_reference": j.ResultReference,
	}
}

func encodeUpdate(u Update, now time.Time) map[string]string {
	fields := map[string]string{
		"updated_at": now.Format(time.RFC3339Nano),
	}
	if u.Status != nil {
		fields["status"] = string(*u.Status)
	}
	if u.ErrorMessage != nil {
		fields["error_message"] = *u.ErrorMessage
	}
	if u.ResultReference != nil {
		fields["result_reference"] = *u.ResultReference
	}
	return fields
}

func decodeJob(data map[string]string) *job.Job {
	duration, _ := strconv.Atoi(data["duration_seconds"])
	frameRate, _ := strconv.Atoi(data["frame_rate"])
	createdAt, _ := time.Parse(time.RFC3339Nano, data["created_at"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, data["updated_at"])

	return &job.Job{
		ID:              data["id"],
		Status:          job.Status(data["status"]),
		Prompt:          data["prompt"],
		DurationSeconds: duration,
		FrameRate:       frameRate,
		ResolutionTag:   data["resolution_tag"],
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
		ErrorMessage:    data["error_message"],
		ResultReference: data["result_reference"],
	}
}
