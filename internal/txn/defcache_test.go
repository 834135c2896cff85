package txn

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDefinitionCacheInvalidatedByVersionChange(t *testing.T) {
	c := newDefinitionCache()
	v1 := uuid.New()
	c.Put("ns:db:tb", v1, "cached-table-def")

	got, ok := c.Get("ns:db:tb", v1)
	assert.True(t, ok)
	assert.Equal(t, "cached-table-def", got)

	v2 := uuid.New()
	_, ok = c.Get("ns:db:tb", v2)
	assert.False(t, ok)
}

func TestDefinitionCacheClear(t *testing.T) {
	c := newDefinitionCache()
	v := uuid.New()
	c.Put("k", v, "x")
	c.Clear()
	_, ok := c.Get("k", v)
	assert.False(t, ok)
}
