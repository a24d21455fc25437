package cache

import (
	"context"
	"sync"
	"time"

	"telegram-member-export/internal/domain"
)

// entry представляет закешированный результат разрешения чата.
type entry struct {
	entity    *domain.ChatEntity
	expiresAt time.Time
}

// ResolutionCache хранит результаты разрешения чатов, ключом служит само
// каноническое описание: два ввода с равными описаниями — один запрос.
// Так дедуплицируются повторные разрешения (в том числе превью из UI).
type ResolutionCache struct {
	cache map[domain.ChatReference]*entry
	mutex sync.RWMutex
}

// NewResolutionCache создает новый экземпляр ResolutionCache.
func NewResolutionCache() *ResolutionCache {
	return &ResolutionCache{
		cache: make(map[domain.ChatReference]*entry),
	}
}

// Get извлекает закешированную сущность по каноническому описанию.
func (rc *ResolutionCache) Get(ref domain.ChatReference) (*domain.ChatEntity, bool) {
	rc.mutex.RLock()
	defer rc.mutex.RUnlock()

	item, exists := rc.cache[ref]
	if !exists || time.Now().After(item.expiresAt) {
		return nil, false
	}

	return item.entity, true
}

// Put сохраняет разрешенную сущность с указанным сроком действия.
func (rc *ResolutionCache) Put(ref domain.ChatReference, entity *domain.ChatEntity, ttl time.Duration) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	rc.cache[ref] = &entry{
		entity:    entity,
		expiresAt: time.Now().Add(ttl),
	}
}

// CleanupExpired удаляет просроченные элементы из кэша.
func (rc *ResolutionCache) CleanupExpired() {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	now := time.Now()
	for key, item := range rc.cache {
		if now.After(item.expiresAt) {
			delete(rc.cache, key)
		}
	}
}

// StartCleanupTicker запускает таймер для периодической очистки просроченных элементов.
func (rc *ResolutionCache) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rc.CleanupExpired()
			}
		}
	}()
}
