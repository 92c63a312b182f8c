// Package redis wraps go-redis with logging, config defaults and a typed
// JSON store. Scribe uses it to cache enhancement results across restarts
// and replicas:
//
//	client, err := redis.New(redis.Config{Enabled: true, Addr: "localhost:6379"}, log)
//	store := redis.NewTypedStore[enhance.Enhancement](client, "scribe:enhance")
package redis
