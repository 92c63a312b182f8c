// Package rediscache implements enhance.Cache on Redis.
package rediscache
