package nlp

import "sync"

// boundedCache — простой ограниченный кэш со строковыми ключами. Безопасен
// для конкурентного доступа: перекрывающиеся прогоны делят один процессор.
// При превышении границы вытесняется старейшая ~1/5 записей (FIFO-обрезка,
// не строгий LRU): это защита по памяти, а не гарантия корректности.
type boundedCache[V any] struct {
	mu     sync.Mutex
	limit  int
	values map[string]V
	order  []string
}

func newBoundedCache[V any](limit int) *boundedCache[V] {
	if limit <= 0 {
		limit = 10000
	}
	return &boundedCache[V]{
		limit:  limit,
		values: make(map[string]V),
	}
}

func (c *boundedCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

func (c *boundedCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.values[key]; !exists {
		c.order = append(c.order, key)
	}
	c.values[key] = value
	if len(c.values) > c.limit {
		c.evictOldest()
	}
}

// evictOldest вызывается под c.mu.
func (c *boundedCache[V]) evictOldest() {
	drop := len(c.order) / 5
	if drop < 1 {
		drop = 1
	}
	for _, key := range c.order[:drop] {
		delete(c.values, key)
	}
	c.order = c.order[drop:]
}

func (c *boundedCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}
