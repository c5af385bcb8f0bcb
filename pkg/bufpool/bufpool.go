// Package bufpool provides a pooled byte-buffer builder for callers that
// assemble strings or payloads on hot paths. It is a thin, concrete
// wrapper over the generic pool: builders are recycled, reset before
// reuse, and discarded when they grow past a configurable cap so one
// oversized payload cannot pin memory for the lifetime of the pool.
package bufpool

import (
	"strconv"
	"unsafe"

	"github.com/ajitpratap0/poolkit/pkg/pool"
)

// Builder is a growable byte buffer with cheap append operations.
type Builder struct {
	buf []byte
}

// NewBuilder creates a builder with the given initial capacity.
func NewBuilder(capacity int) *Builder {
	return &Builder{buf: make([]byte, 0, capacity)}
}

// WriteString appends s.
func (b *Builder) WriteString(s string) {
	b.buf = append(b.buf, s...)
}

// WriteBytes appends data.
func (b *Builder) WriteBytes(data []byte) {
	b.buf = append(b.buf, data...)
}

// WriteByte appends a single byte.
func (b *Builder) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

// WriteInt appends the decimal representation of n.
func (b *Builder) WriteInt(n int64) {
	b.buf = strconv.AppendInt(b.buf, n, 10)
}

// Write implements io.Writer.
func (b *Builder) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// String returns a copy of the built content. The copy is safe to hold
// after the builder returns to the pool.
func (b *Builder) String() string {
	return string(b.buf)
}

// UnsafeString returns the content without copying. The result aliases
// the builder's buffer and is invalid once the builder is reset or
// returned to the pool.
func (b *Builder) UnsafeString() string {
	if len(b.buf) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b.buf), len(b.buf))
}

// Bytes returns the underlying buffer. Same aliasing rules as
// UnsafeString.
func (b *Builder) Bytes() []byte { return b.buf }

// Len returns the number of bytes written.
func (b *Builder) Len() int { return len(b.buf) }

// Cap returns the current buffer capacity.
func (b *Builder) Cap() int { return cap(b.buf) }

// Reset truncates the builder, keeping its capacity.
func (b *Builder) Reset() { b.buf = b.buf[:0] }

// Config sizes a builder pool.
type Config struct {
	// Name identifies the pool in logs and statistics. Required.
	Name string

	// InitialCapacity and MaxCapacity bound the number of pooled
	// builders, not their byte sizes.
	InitialCapacity int
	MaxCapacity     int

	// BuilderCapacity is the initial byte capacity of each builder.
	BuilderCapacity int

	// MaxBuilderCapacity discards builders that grew beyond this many
	// bytes instead of recycling them. Zero keeps every builder.
	MaxBuilderCapacity int
}

// Pool hands out recycled builders.
type Pool struct {
	inner *pool.Pool[*Builder]
}

const defaultBuilderCapacity = 1024

// New constructs a builder pool.
func New(cfg Config) (*Pool, error) {
	builderCap := cfg.BuilderCapacity
	if builderCap <= 0 {
		builderCap = defaultBuilderCapacity
	}

	pc := pool.Config[*Builder]{
		Name:            cfg.Name,
		InitialCapacity: cfg.InitialCapacity,
		MaxCapacity:     cfg.MaxCapacity,
		Factory: func() (*Builder, error) {
			return NewBuilder(builderCap), nil
		},
		Reset: func(b *Builder) { b.Reset() },
	}
	if cfg.MaxBuilderCapacity > 0 {
		maxCap := cfg.MaxBuilderCapacity
		pc.Validate = func(b *Builder) bool { return b.Cap() <= maxCap }
	}

	inner, err := pool.New(pc)
	if err != nil {
		return nil, err
	}
	return &Pool{inner: inner}, nil
}

// Get leases a reset builder.
func (p *Pool) Get() (pool.Lease[*Builder], error) {
	return p.inner.Get()
}

// Put returns a leased builder.
func (p *Pool) Put(l pool.Lease[*Builder]) error {
	return p.inner.Return(l)
}

// BuildString runs fn with a pooled builder and returns a detached copy
// of what it wrote.
func (p *Pool) BuildString(fn func(*Builder)) (string, error) {
	l, err := p.inner.Get()
	if err != nil {
		return "", err
	}
	fn(l.Value)
	s := l.Value.String()
	if err := p.inner.Return(l); err != nil {
		return "", err
	}
	return s, nil
}

// Statistics exposes the underlying pool snapshot.
func (p *Pool) Statistics() pool.Stats { return p.inner.Statistics() }

// Inner returns the wrapped pool, for registration in a registry.
func (p *Pool) Inner() *pool.Pool[*Builder] { return p.inner }
