// Package cache provides a small generic LRU cache.
//
// The gpu backend keeps compiled kernel binaries here, keyed by a hash of
// the kernel source, so reopening a converter in the same process skips
// the shader compiler.
//
//	c := cache.New[string, int](100)
//	c.Set("key", 42)
//	value, ok := c.Get("key")
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
