// Package strpool implements the two-level string-interning table shared
// by the hierarchical-container reader and writer.
package strpool

import "errors"

// ErrOutOfRange is a fatal parse error: an (outer, inner) pair did not
// resolve within the pool.
var ErrOutOfRange = errors.New("strpool: index out of range")

// Ref identifies an interned string by its two-level index.
type Ref struct {
	Outer uint16
	Inner uint16
}

// Pool is the two-level outer-bucket/inner-index string table. The
// concrete bucketing policy is left to the caller: a reader rebuilds
// buckets exactly as found on disk, while Intern here defaults to a
// single growing bucket, an acceptable write-time policy since any
// legal two-level layout must be readable regardless of how buckets
// were split at write time.
type Pool struct {
	buckets [][]string
	index   map[string]Ref
}

// New returns an empty pool with a single outer bucket.
func New() *Pool {
	return &Pool{
		buckets: [][]string{{}},
		index:   make(map[string]Ref),
	}
}

// NewWithBuckets wraps an existing on-disk bucket layout for reading.
func NewWithBuckets(buckets [][]string) *Pool {
	p := &Pool{buckets: buckets, index: make(map[string]Ref)}
	for o, bucket := range buckets {
		for i, s := range bucket {
			if _, exists := p.index[s]; !exists {
				p.index[s] = Ref{Outer: uint16(o), Inner: uint16(i)}
			}
		}
	}
	return p
}

// Name resolves a reference to its string, or ErrOutOfRange.
func (p *Pool) Name(ref Ref) (string, error) {
	if int(ref.Outer) >= len(p.buckets) {
		return "", ErrOutOfRange
	}
	bucket := p.buckets[ref.Outer]
	if int(ref.Inner) >= len(bucket) {
		return "", ErrOutOfRange
	}
	return bucket[ref.Inner], nil
}

// Intern returns the existing reference for s, inserting it into the
// last outer bucket if absent.
func (p *Pool) Intern(s string) Ref {
	if ref, ok := p.index[s]; ok {
		return ref
	}
	outer := len(p.buckets) - 1
	bucket := p.buckets[outer]
	ref := Ref{Outer: uint16(outer), Inner: uint16(len(bucket))}
	p.buckets[outer] = append(bucket, s)
	p.index[s] = ref
	return ref
}

// Buckets returns the outer bucket list, e.g. for serialization.
func (p *Pool) Buckets() [][]string {
	return p.buckets
}

// NewBucket starts a fresh outer bucket; subsequent Intern calls append
// to it until the next NewBucket.
func (p *Pool) NewBucket() {
	p.buckets = append(p.buckets, []string{})
}
