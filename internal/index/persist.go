package index

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/kailas-cloud/layoutdex/internal/domain"
	"github.com/kailas-cloud/layoutdex/internal/domain/layout"
)

// BlobStore persists the two index artifacts under the index name key.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// metaVersion guards the artifact format.
const metaVersion = 1

// meta is the parallel metadata artifact: record ids in insertion order
// plus the vector dimensionality.
type meta struct {
	Version int      `json:"version"`
	Dim     int      `json:"dim"`
	IDs     []string `json:"ids"`
}

func (ix *Index) vectorsKey() string { return ix.name + ".vec" }
func (ix *Index) metaKey() string    { return ix.name + ".meta" }

// Persist writes the active snapshot's vector blob and metadata artifact.
func (ix *Index) Persist(ctx context.Context, store BlobStore) error {
	snap := ix.active.Load()
	if snap == nil {
		return fmt.Errorf("no active snapshot to persist")
	}

	blob := make([]byte, 0, len(snap.ids)*snap.dim*4)
	for _, vec := range snap.vectors {
		blob = append(blob, vectorBytes(vec)...)
	}

	metaJSON, err := json.Marshal(meta{Version: metaVersion, Dim: snap.dim, IDs: snap.ids})
	if err != nil {
		return fmt.Errorf("marshal index meta: %w", err)
	}

	if err := store.Set(ctx, ix.vectorsKey(), blob); err != nil {
		return fmt.Errorf("persist vectors: %w", err)
	}
	if err := store.Set(ctx, ix.metaKey(), metaJSON); err != nil {
		return fmt.Errorf("persist meta: %w", err)
	}
	return nil
}

// Load restores a snapshot from persisted artifacts and verifies it is
// consistent with the given corpus records (same count, same id order).
// Any inconsistency returns ErrIndexLoadMismatch so the caller rebuilds.
func (ix *Index) Load(ctx context.Context, store BlobStore, records []layout.Record) error {
	metaJSON, err := store.Get(ctx, ix.metaKey())
	if err != nil {
		return fmt.Errorf("load meta: %v: %w", err, domain.ErrIndexLoadMismatch)
	}
	blob, err := store.Get(ctx, ix.vectorsKey())
	if err != nil {
		return fmt.Errorf("load vectors: %v: %w", err, domain.ErrIndexLoadMismatch)
	}

	var m meta
	if err := json.Unmarshal(metaJSON, &m); err != nil {
		return fmt.Errorf("parse meta: %v: %w", err, domain.ErrIndexLoadMismatch)
	}
	if m.Version != metaVersion {
		return fmt.Errorf("meta version %d, want %d: %w", m.Version, metaVersion, domain.ErrIndexLoadMismatch)
	}
	if m.Dim <= 0 {
		return fmt.Errorf("meta dim %d: %w", m.Dim, domain.ErrIndexLoadMismatch)
	}
	if len(m.IDs) != len(records) {
		return fmt.Errorf("meta has %d ids, corpus has %d records: %w",
			len(m.IDs), len(records), domain.ErrIndexLoadMismatch)
	}
	for i := range records {
		if m.IDs[i] != records[i].ID() {
			return fmt.Errorf("meta id %q at %d, corpus id %q: %w",
				m.IDs[i], i, records[i].ID(), domain.ErrIndexLoadMismatch)
		}
	}
	if len(blob) != len(m.IDs)*m.Dim*4 {
		return fmt.Errorf("vector blob %d bytes, want %d: %w",
			len(blob), len(m.IDs)*m.Dim*4, domain.ErrIndexLoadMismatch)
	}

	snap := &snapshot{
		dim:     m.Dim,
		ids:     m.IDs,
		vectors: make([][]float32, len(m.IDs)),
	}
	stride := m.Dim * 4
	for i := range m.IDs {
		snap.vectors[i] = bytesVector(blob[i*stride : (i+1)*stride])
	}

	ix.active.Store(snap)
	return nil
}

func vectorBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesVector(data []byte) []float32 {
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}
