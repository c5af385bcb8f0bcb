package bufpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPool(t *testing.T, cfg Config) *Pool {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "builders"
	}
	if cfg.MaxCapacity == 0 {
		cfg.MaxCapacity = 8
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func TestBuilderWrites(t *testing.T) {
	b := NewBuilder(16)
	b.WriteString("id=")
	b.WriteInt(42)
	require.NoError(t, b.WriteByte(';'))
	b.WriteBytes([]byte("ok"))

	n, err := b.Write([]byte("!"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, "id=42;ok!", b.String())
	assert.Equal(t, 9, b.Len())

	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, "", b.String())
	assert.Equal(t, "", b.UnsafeString())
}

func TestPoolRecyclesBuilders(t *testing.T) {
	p := newPool(t, Config{})

	l, err := p.Get()
	require.NoError(t, err)
	l.Value.WriteString("first")
	require.NoError(t, p.Put(l))

	l, err = p.Get()
	require.NoError(t, err)
	assert.Equal(t, 0, l.Value.Len(), "recycled builder arrives reset")
	require.NoError(t, p.Put(l))

	s := p.Statistics()
	assert.EqualValues(t, 1, s.Creations)
	assert.EqualValues(t, 2, s.Gets)
}

func TestBuildStringDetaches(t *testing.T) {
	p := newPool(t, Config{})

	out, err := p.BuildString(func(b *Builder) {
		b.WriteString("hello ")
		b.WriteInt(7)
	})
	require.NoError(t, err)
	assert.Equal(t, "hello 7", out)

	// The copy survives the builder's reuse.
	_, err = p.BuildString(func(b *Builder) { b.WriteString("overwrite") })
	require.NoError(t, err)
	assert.Equal(t, "hello 7", out)
}

func TestOversizedBuilderDiscarded(t *testing.T) {
	p := newPool(t, Config{BuilderCapacity: 8, MaxBuilderCapacity: 64})

	l, err := p.Get()
	require.NoError(t, err)
	l.Value.WriteBytes(make([]byte, 1024))
	require.NoError(t, p.Put(l))

	s := p.Statistics()
	assert.Equal(t, 0, s.Available, "grown builder is not recycled")
	assert.EqualValues(t, 1, s.Destructions)
	assert.EqualValues(t, 1, s.ValidationErrors)
}

func TestUnsafeStringAliasesBuffer(t *testing.T) {
	b := NewBuilder(8)
	b.WriteString("abc")

	alias := b.UnsafeString()
	copied := b.String()
	b.Reset()
	b.WriteString("xyz")

	assert.Equal(t, "abc", copied)
	assert.Equal(t, "xyz", b.String())
	_ = alias // aliased content is undefined after Reset; only the copy is stable
}
