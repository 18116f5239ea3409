package store

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/tKV/lib/codec"
	"github.com/ValentinKolb/tKV/lib/db"
)

// Lookup is the result of Store.GetAsync. Found is false if no record exists for the key.
type Lookup[V any] struct {
	Value V
	Found bool
}

// Store is a typed view of an accessor. Values are encoded with the codec before
// they reach the engine, so any value the codec supports round-trips deep-equal.
//
// The blocking methods await the underlying futures with the given context; the
// *Async variants return the futures themselves.
type Store[V any] struct {
	accessor *Accessor
	codec    codec.ICodec
}

// NewStore binds an accessor and a codec
func NewStore[V any](a *Accessor, c codec.ICodec) *Store[V] {
	return &Store[V]{accessor: a, codec: c}
}

// Accessor returns the underlying accessor
func (s *Store[V]) Accessor() *Accessor {
	return s.accessor
}

// --------------------------------------------------------------------------
// Async Methods
// --------------------------------------------------------------------------

func (s *Store[V]) SetAsync(key string, value V) *Future[struct{}] {
	data, err := s.codec.Encode(value)
	if err != nil {
		return rejected[struct{}](wrapError(RetCEncodingError,
			fmt.Sprintf("encoding value for %q with %s", key, s.codec.Name()), err))
	}
	return Set(s.accessor, key, data)
}

// GetAsync resolves with the decoded value and whether the key was found
func (s *Store[V]) GetAsync(key string) *Future[Lookup[V]] {
	return then(Get(s.accessor, key), func(l db.Lookup) *Future[Lookup[V]] {
		if !l.Found {
			return resolved(Lookup[V]{})
		}
		v, err := s.decode(key, l.Value)
		if err != nil {
			return rejected[Lookup[V]](err)
		}
		return resolved(Lookup[V]{Value: v, Found: true})
	})
}

func (s *Store[V]) DeleteAsync(key string) *Future[struct{}] {
	return Delete(s.accessor, key)
}

// ValuesAsync resolves with all decoded values in key order. One undecodable record fails the whole call.
func (s *Store[V]) ValuesAsync() *Future[[]V] {
	return then(Entries(s.accessor), func(entries []Entry) *Future[[]V] {
		values := make([]V, 0, len(entries))
		for _, e := range entries {
			v, err := s.decode(e.Key, e.Value)
			if err != nil {
				return rejected[[]V](err)
			}
			values = append(values, v)
		}
		return resolved(values)
	})
}

func (s *Store[V]) decode(key string, data []byte) (V, error) {
	var v V
	if err := s.codec.Decode(data, &v); err != nil {
		return v, wrapError(RetCEncodingError,
			fmt.Sprintf("decoding value of %q with %s", key, s.codec.Name()), err)
	}
	return v, nil
}

// --------------------------------------------------------------------------
// Blocking Methods
// --------------------------------------------------------------------------

func (s *Store[V]) Set(ctx context.Context, key string, value V) error {
	_, err := s.SetAsync(key, value).Await(ctx)
	return err
}

// Get returns the value for key. The boolean return value indicates whether a value for the key was found.
func (s *Store[V]) Get(ctx context.Context, key string) (V, bool, error) {
	l, err := s.GetAsync(key).Await(ctx)
	return l.Value, l.Found, err
}

func (s *Store[V]) Delete(ctx context.Context, key string) error {
	_, err := s.DeleteAsync(key).Await(ctx)
	return err
}

func (s *Store[V]) Values(ctx context.Context) ([]V, error) {
	return s.ValuesAsync().Await(ctx)
}
