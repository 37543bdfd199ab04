package policy

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCacheable(t *testing.T) {
	p := MustNew(Config{})

	tests := []struct {
		query string
		want  bool
	}{
		{"mutation DoLogin { x }", false},
		{"MUTATION upper { x }", false},
		{"query { generateCustomerToken(email: \"a\") { token } }", false},
		{"query Cart($id: String!) { cart(cart_id: $id) { id } }", false},
		{"query { customerOrders { items { id } } }", false},
		{"query Categories { categories { items { name } } }", true},
		{"query { products(search: \"shoe\") { total_count } }", true},
		{"{ storeConfig { locale } }", true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsCacheable(tt.query))
		})
	}
}

func TestIsCacheable_customDenylist(t *testing.T) {
	p := MustNew(Config{Denylist: []string{" Secret "}})
	assert.False(t, p.IsCacheable("query { secretThing }"))
	assert.True(t, p.IsCacheable("mutation { x }"), "custom denylist replaces the default one")
}

func TestTTL(t *testing.T) {
	p := MustNew(Config{})

	assert.Equal(t, time.Hour, p.TTL("query { categoryList { name } }"))
	assert.Equal(t, time.Hour, p.TTL("query { CATEGORIES { name } }"))
	assert.Equal(t, 5*time.Minute, p.TTL("query { products { total_count } }"))
	assert.Equal(t, 2*time.Minute, p.TTL("query { search(term: \"a\") { id } }"))
	assert.Equal(t, 24*time.Hour, p.TTL("query { customAttributeMetadata { items { attribute_code } } }"))
	assert.Equal(t, DefaultTTL, p.TTL("query { storeConfig { locale } }"))
}

func TestTTL_firstMatchWins(t *testing.T) {
	p := MustNew(Config{
		Rules: []Rule{
			{Match: "products", TTL: time.Minute},
			{Match: "categor", TTL: time.Hour},
		},
		DefaultTTL: 30 * time.Second,
	})
	q := "query { products(filter: {category_uid: {eq: \"x\"}}) { total_count } }"
	assert.Equal(t, time.Minute, p.TTL(q))
	assert.Equal(t, 30*time.Second, p.TTL("query { cmsPage { title } }"))
}

func TestTTL_emptyRules(t *testing.T) {
	p := MustNew(Config{Rules: []Rule{}, DefaultTTL: time.Second})
	assert.Equal(t, time.Second, p.TTL("query { categories { name } }"))
	assert.Empty(t, p.Rules())
}

func TestNew_invalid(t *testing.T) {
	_, err := New(Config{Rules: []Rule{{Match: "x", TTL: 0}}})
	assert.Error(t, err)
	_, err = New(Config{Rules: []Rule{{Match: "  ", TTL: time.Second}}})
	assert.Error(t, err)
	_, err = New(Config{DefaultTTL: -time.Second})
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	const q = "query P($a: Int, $b: Int) { p(a: $a, b: $b) }"

	t.Run("insertion order does not matter", func(t *testing.T) {
		k1, err := Key(q, map[string]any{"a": 1, "b": 2})
		require.NoError(t, err)
		k2, err := Key(q, map[string]any{"b": 2, "a": 1})
		require.NoError(t, err)
		assert.Equal(t, k1, k2)
		assert.Equal(t, q+`|a:1,b:2`, k1)
	})

	t.Run("nil values are dropped", func(t *testing.T) {
		k1, _ := Key(q, map[string]any{"a": 1, "b": nil})
		k2, _ := Key(q, map[string]any{"a": 1})
		assert.Equal(t, k1, k2)
	})

	t.Run("nil and empty vars", func(t *testing.T) {
		k1, _ := Key(q, nil)
		k2, _ := Key(q, map[string]any{})
		assert.Equal(t, k1, k2)
		assert.Equal(t, q+"|", k1)
	})

	t.Run("nested maps are canonical", func(t *testing.T) {
		k1, _ := Key(q, map[string]any{"f": map[string]any{"x": 1, "y": []any{"a", 2}}})
		k2, _ := Key(q, map[string]any{"f": map[string]any{"y": []any{"a", 2}, "x": 1}})
		assert.Equal(t, k1, k2)
	})

	t.Run("different requests differ", func(t *testing.T) {
		k1, _ := Key(q, map[string]any{"a": 1})
		k2, _ := Key(q, map[string]any{"a": "1"})
		k3, _ := Key(q, map[string]any{"b": 1})
		k4, _ := Key(strings.Replace(q, "P", "Q", 1), map[string]any{"a": 1})
		assert.NotEqual(t, k1, k2)
		assert.NotEqual(t, k1, k3)
		assert.NotEqual(t, k1, k4)
	})

	t.Run("unencodable value", func(t *testing.T) {
		_, err := Key(q, map[string]any{"c": make(chan int)})
		assert.Error(t, err)
	})
}
