package idempotency

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "idem:orders:"
	pendingMarker = "pending"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps reservations and responses in Redis. A reservation is the
// "pending" marker; a completed response is a JSON document.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns a RedisStore backed by client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Dial parses a redis:// URL, connects and pings the server.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

func (s *RedisStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+key, pendingMarker, ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "reserve key")
	}
	return ok, nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (*Response, error) {
	val, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load key")
	}
	if string(val) == pendingMarker {
		return nil, ErrInProgress
	}
	resp, err := decodeResponse(val)
	if err != nil {
		return nil, errors.Wrap(err, "decode stored response")
	}
	return resp, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, resp *Response, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefix+key, encodeResponse(resp), ttl).Err(); err != nil {
		return errors.Wrap(err, "save response")
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return errors.Wrap(err, "release key")
	}
	return nil
}

func encodeResponse(resp *Response) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Int(resp.Status)
	e.FieldStart("content_type")
	e.Str(resp.ContentType)
	e.FieldStart("body")
	e.Base64(resp.Body)
	e.ObjEnd()
	return e.Bytes()
}

func decodeResponse(data []byte) (*Response, error) {
	var resp Response
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "status":
			resp.Status, err = d.Int()
		case "content_type":
			resp.ContentType, err = d.Str()
		case "body":
			resp.Body, err = d.Base64()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if resp.Status == 0 {
		return nil, errors.New("missing status")
	}
	return &resp, nil
}
