// Package cache holds the aggregated dashboard between aggregator runs.
//
// Memory is a per-process expirable LRU, Redis shares values between
// processes, and Tiered puts the first in front of the second. Values are
// JSON encoded through GetJSON and SetJSON.
package cache
