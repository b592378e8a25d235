package schema

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/insight-cli/internal/model"
)

func TestCache_ResolveDerivesOnce(t *testing.T) {
	c := NewCache()
	tables := storeTables()

	calls := 0
	derive := func(ts []model.Table) *model.SchemaDescriptor {
		calls++
		d := Analyze(ts)
		return &d
	}

	first := c.Resolve(tables, derive)
	second := c.Resolve(tables, derive)

	assert.Equal(t, 1, calls)
	assert.Same(t, first, second)
	assert.Equal(t, 1, c.Len())
}

func TestCache_NewFingerprintReplacesNothing(t *testing.T) {
	c := NewCache()
	a := storeTables()
	b := storeTables()
	b[0].Columns[2].Name = "unit_price"

	derive := func(ts []model.Table) *model.SchemaDescriptor {
		d := Analyze(ts)
		return &d
	}

	da := c.Resolve(a, derive)
	db := c.Resolve(b, derive)

	assert.NotEqual(t, da.Fingerprint, db.Fingerprint)
	assert.Equal(t, 2, c.Len())
	// The original entry is untouched by the new one.
	assert.Same(t, da, c.Get(da.Fingerprint))
}

func TestCache_ConcurrentReaders(t *testing.T) {
	c := NewCache()
	d := Analyze(storeTables())
	c.Put(&d)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := c.Get(d.Fingerprint)
			require.NotNil(t, got)
			assert.Equal(t, d.Fingerprint, got.Fingerprint)
		}()
	}
	wg.Wait()
}

func TestCache_PreservesTier1Mark(t *testing.T) {
	c := NewCache()
	d := Analyze([]model.Table{{Name: "t1", Columns: []model.Column{{Name: "a", DeclaredType: "INT"}}}})
	d.DerivedViaTier1 = true
	c.Put(&d)

	got := c.Get(d.Fingerprint)
	require.NotNil(t, got)
	assert.True(t, got.DerivedViaTier1)
}
