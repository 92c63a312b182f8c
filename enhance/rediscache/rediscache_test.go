package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/matryer/is"

	"github.com/kbukum/scribe/enhance"
	"github.com/kbukum/scribe/redis"
)

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)
	client, err := redis.New(redis.Config{Enabled: true, Addr: mini.Addr()}, nil)
	if err != nil {
		t.Fatalf("redis.New: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return New(client), mini
}

func TestCache_RoundTrip(t *testing.T) {
	is := is.New(t)
	c, mini := newCache(t)
	ctx := context.Background()

	miss, err := c.Get(ctx, "k")
	is.NoErr(err)
	is.True(miss == nil)

	want := enhance.Enhancement{Title: "Budget review", Summary: "1. Cut costs.", Source: enhance.SourceCloudSemantic}
	is.NoErr(c.Put(ctx, "k", want, time.Minute))
	is.True(mini.Exists(KeyPrefix + ":k"))

	got, err := c.Get(ctx, "k")
	is.NoErr(err)
	is.Equal(*got, want)

	mini.FastForward(2 * time.Minute)
	gone, err := c.Get(ctx, "k")
	is.NoErr(err)
	is.True(gone == nil)
}

func TestCache_WithPipeline(t *testing.T) {
	is := is.New(t)
	c, _ := newCache(t)
	ctx := context.Background()

	key := enhance.CacheKey("we met to plan the launch.", "llama3.2", enhance.DefaultPrompts())
	is.NoErr(c.Put(ctx, key, enhance.Enhancement{Title: "Launch plan", Summary: "s", Source: enhance.SourceLocalLLM}, 0))

	p := enhance.New(enhance.Config{}, enhance.WithCache(c))
	e, err := p.Enhance(ctx, nil, "we met to plan the launch.", enhance.Prompts{}, "llama3.2")
	is.NoErr(err)
	is.Equal(e.Title, "Launch plan")
	is.Equal(e.Source, enhance.SourceLocalLLM)
}
