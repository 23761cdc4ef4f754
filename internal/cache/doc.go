// Package cache provides a generic LRU cache for values that own external
// resources, such as device textures.
//
// A Cache calls its release function whenever a value leaves the cache:
// on eviction, on Delete, on Clear, and when Set replaces a key.
//
//	c := cache.New[string, gpucore.TextureID](8, func(path string, id gpucore.TextureID) {
//	    dev.DestroyTexture(id)
//	})
//	id, err := c.GetOrLoad(path, func() (gpucore.TextureID, error) {
//	    return load(path)
//	})
//
// # Thread Safety
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
