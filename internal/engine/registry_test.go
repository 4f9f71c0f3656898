package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/notitia/internal/queryir"
)

func TestRegistry(t *testing.T) {
	r := newRegistry()
	sub := func(id, table string) *Subscription {
		return &Subscription{id: id, spec: queryir.QuerySpec{Table: table}}
	}
	a, b, c := sub("b", "users"), sub("a", "users"), sub("c", "tags")
	r.add(a)
	r.add(b)
	r.add(c)

	assert.Equal(t, 3, r.count())
	assert.Equal(t, []*Subscription{b, a}, r.forTable("users"))
	assert.Equal(t, []*Subscription{c, b, a}, r.all())
	assert.Empty(t, r.forTable("orders"))

	assert.True(t, r.remove(a))
	assert.False(t, r.remove(a))
	assert.True(t, r.remove(c))
	assert.Equal(t, 1, r.count())
	assert.Equal(t, []*Subscription{b}, r.all())
}
