package utils

import (
	"github.com/redis/go-redis/v9"
)

// OpenRedis opens a client against addr/pass/db as already resolved by
// config.Load (flags > GEOQUAD_REDIS_* env > defaults), returning nil if
// no address was configured so callers can fall back to an uncached
// oracle.
func OpenRedis(addr, pass string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}
