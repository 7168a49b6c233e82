// Package storage defines the object store boundary used for daily
// partitions and derived artifacts.
package storage

import "context"

// ObjectStore is the durable key/value boundary for partitions, datasets and
// model artifacts. Keys are flat strings; the only directory semantics are
// the "/"-prefix conventions (aggregates/..., models/...).
//
// Get is deliberately tri-state: (value, true, nil) when the key exists,
// (nil, false, nil) when it does not, and (nil, false, err) on any other
// store failure. Absent keys are never reported as errors so callers cannot
// conflate "not found" with a transport problem.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}
