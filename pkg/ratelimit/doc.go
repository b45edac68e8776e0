// Package ratelimit throttles lifecycle actions per actor.
//
// Only mutating requests are limited; reads are never throttled. Requests
// are keyed by the X-Actor identity, falling back to the client address.
// With Redis configured the window is shared across replicas:
//
//	limiter := ratelimit.NewRedis(redisClient, ratelimit.DefaultConfig(), "clientops:ratelimit")
//	server.Use(ratelimit.Middleware(limiter, logger))
//
// A Redis failure lets the request through.
package ratelimit
