package localstore

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/zwaldoo1/Cerveza-artesanal/internal/cart"
)

// Factory returns the local store scoped to one device.
type Factory func(deviceID string) cart.LocalStore

// FileFactory keeps each device under root/<deviceID>.
func FileFactory(root string) Factory {
	return func(deviceID string) cart.LocalStore {
		return NewFile(filepath.Join(root, deviceID))
	}
}

// RedisFactory keeps each device under the "cart:device:<deviceID>:" prefix.
func RedisFactory(client RedisCmdable, timeout, ttl time.Duration) Factory {
	return func(deviceID string) cart.LocalStore {
		return NewRedis(client, "cart:device:"+deviceID+":", timeout, ttl)
	}
}

// MemoryFactory hands out the same Memory for a device across calls, so a
// reopened session finds what the previous one wrote.
func MemoryFactory() Factory {
	var mu sync.Mutex
	devices := make(map[string]*Memory)
	return func(deviceID string) cart.LocalStore {
		mu.Lock()
		defer mu.Unlock()
		m, ok := devices[deviceID]
		if !ok {
			m = NewMemory()
			devices[deviceID] = m
		}
		return m
	}
}
