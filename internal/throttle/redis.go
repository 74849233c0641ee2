package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares the throttle window between instances. The key of an actor
// lives exactly one window, so the first SET NX inside it wins.
type Redis struct {
	client redis.Cmdable
	prefix string
}

func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Accept(ctx context.Context, actorID string, window time.Duration) (bool, error) {
	const op = "throttle.Redis.Accept"

	ok, err := r.client.SetNX(ctx, r.prefix+actorID, time.Now().UnixMilli(), window).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}
