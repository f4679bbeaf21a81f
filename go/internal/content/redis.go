package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mcdev12/buzzquiz/go/internal/models"
)

const contentIndexKey = "contents"

func contentKey(id string) string {
	return fmt.Sprintf("content:%s", id)
}

func poolOrderKey(id string) string {
	return fmt.Sprintf("pool:%s:order", id)
}

func poolQuestionsKey(id string) string {
	return fmt.Sprintf("pool:%s:questions", id)
}

func poolUsedKey(id string) string {
	return fmt.Sprintf("pool:%s:used", id)
}

// takeUnusedScript returns {questionJSON, recycled} or an empty reply for an
// empty pool. KEYS: order list, questions hash, used set.
var takeUnusedScript = redis.NewScript(`
local ids = redis.call('LRANGE', KEYS[1], 0, -1)
if #ids == 0 then
	return {}
end
for _, id in ipairs(ids) do
	if redis.call('SISMEMBER', KEYS[3], id) == 0 then
		redis.call('SADD', KEYS[3], id)
		return {redis.call('HGET', KEYS[2], id), 0}
	end
end
redis.call('DEL', KEYS[3])
redis.call('SADD', KEYS[3], ids[1])
return {redis.call('HGET', KEYS[2], ids[1]), 1}
`)

// RedisStore is a Store backed by Redis. Pool hand-out runs as a Lua script
// so concurrent sessions never receive the same question within a cycle.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to redisURL.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) PutContent(ctx context.Context, c models.Content) error {
	defer observe("redis", "put_content")()
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, contentKey(c.ID), data, 0)
		pipe.ZAdd(ctx, contentIndexKey, redis.Z{
			Score:  float64(c.UploadedAt.UnixMilli()),
			Member: c.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to put content: %w", err)
	}
	return nil
}

func (s *RedisStore) GetContent(ctx context.Context, id string) (models.Content, error) {
	defer observe("redis", "get_content")()
	data, err := s.client.Get(ctx, contentKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Content{}, ErrNotFound
		}
		return models.Content{}, fmt.Errorf("failed to get content: %w", err)
	}

	var c models.Content
	if err := json.Unmarshal(data, &c); err != nil {
		return models.Content{}, fmt.Errorf("failed to decode content: %w", err)
	}
	return c, nil
}

func (s *RedisStore) ListContent(ctx context.Context) ([]models.Content, error) {
	defer observe("redis", "list_content")()
	ids, err := s.client.ZRange(ctx, contentIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = contentKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load content: %w", err)
	}

	out := make([]models.Content, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var c models.Content
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *RedisStore) DeleteContent(ctx context.Context, id string) error {
	defer observe("redis", "delete_content")()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, contentKey(id), poolOrderKey(id), poolQuestionsKey(id), poolUsedKey(id))
		pipe.ZRem(ctx, contentIndexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}

func (s *RedisStore) PutQuestions(ctx context.Context, contentID string, questions []models.PoolQuestion) error {
	defer observe("redis", "put_questions")()
	n, err := s.client.Exists(ctx, contentKey(contentID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check content: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	ids := make([]any, 0, len(questions))
	fields := make(map[string]any, len(questions))
	var used []any
	for _, q := range questions {
		q.ContentID = contentID
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("failed to marshal question: %w", err)
		}
		ids = append(ids, q.ID)
		fields[q.ID] = data
		if q.Used {
			used = append(used, q.ID)
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, poolOrderKey(contentID), poolQuestionsKey(contentID), poolUsedKey(contentID))
		if len(ids) == 0 {
			return nil
		}
		pipe.RPush(ctx, poolOrderKey(contentID), ids...)
		pipe.HSet(ctx, poolQuestionsKey(contentID), fields)
		if len(used) > 0 {
			pipe.SAdd(ctx, poolUsedKey(contentID), used...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store questions: %w", err)
	}
	return nil
}

func (s *RedisStore) Questions(ctx context.Context, contentID string) ([]models.PoolQuestion, error) {
	defer observe("redis", "questions")()
	ids, err := s.client.LRange(ctx, poolOrderKey(contentID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	out := make([]models.PoolQuestion, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	values, err := s.client.HMGet(ctx, poolQuestionsKey(contentID), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	used, err := s.client.SMembersMap(ctx, poolUsedKey(contentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load used set: %w", err)
	}

	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var q models.PoolQuestion
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, fmt.Errorf("failed to decode question: %w", err)
		}
		_, q.Used = used[q.ID]
		out = append(out, q)
	}
	return out, nil
}

func (s *RedisStore) TakeUnused(ctx context.Context, contentID string) (models.PoolQuestion, bool, error) {
	defer observe("redis", "take_unused")()
	keys := []string{poolOrderKey(contentID), poolQuestionsKey(contentID), poolUsedKey(contentID)}
	res, err := takeUnusedScript.Run(ctx, s.client, keys).Slice()
	if err != nil {
		return models.PoolQuestion{}, false, fmt.Errorf("failed to take question: %w", err)
	}
	if len(res) != 2 {
		return models.PoolQuestion{}, false, ErrEmptyPool
	}

	raw, ok := res[0].(string)
	if !ok {
		return models.PoolQuestion{}, false, fmt.Errorf("failed to take question: unexpected reply %T", res[0])
	}
	var q models.PoolQuestion
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return models.PoolQuestion{}, false, fmt.Errorf("failed to decode question: %w", err)
	}
	q.Used = true
	recycled, _ := res[1].(int64)
	return q, recycled == 1, nil
}

func (s *RedisStore) ResetPool(ctx context.Context, contentID string) error {
	defer observe("redis", "reset_pool")()
	if err := s.client.Del(ctx, poolUsedKey(contentID)).Err(); err != nil {
		return fmt.Errorf("failed to reset pool: %w", err)
	}
	return nil
}
