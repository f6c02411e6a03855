package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"intramind/internal/domain"
)

var (
	bucketManifest = []byte("manifest")
	bucketChunks   = []byte("chunks")
	bucketVectors  = []byte("vectors")
	keyManifest    = []byte("manifest")
)

const openTimeout = time.Second

type storedChunk struct {
	ID       string            `json:"id"`
	Index    int               `json:"index"`
	Start    int               `json:"start"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func seqKey(i int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(i))
	return k
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

// Save writes idx to a fresh bbolt file next to path and renames it over
// path, so readers see either the previous index or the new one.
func Save(path string, idx *ChunkIndex) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	m := idx.Manifest()
	tmp := fmt.Sprintf("%s.tmp-%s", path, m.BuildID)
	_ = os.Remove(tmp)

	if err := writeIndex(tmp, idx); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to publish index: %w", err)
	}
	syncDir(filepath.Dir(path))
	return nil
}

func writeIndex(path string, idx *ChunkIndex) error {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		mb, err := tx.CreateBucket(bucketManifest)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketManifest, err)
		}
		cb, err := tx.CreateBucket(bucketChunks)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketChunks, err)
		}
		vb, err := tx.CreateBucket(bucketVectors)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketVectors, err)
		}

		manifest, err := json.Marshal(idx.Manifest())
		if err != nil {
			return err
		}
		if err := mb.Put(keyManifest, manifest); err != nil {
			return err
		}

		for i, c := range idx.chunks {
			data, err := json.Marshal(storedChunk{
				ID:       c.ID,
				Index:    c.Index,
				Start:    c.Start,
				Text:     c.Text,
				Metadata: c.Metadata,
			})
			if err != nil {
				return err
			}
			if err := cb.Put(seqKey(i), data); err != nil {
				return err
			}
			if err := vb.Put(seqKey(i), encodeVector(idx.vectors[i])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to write index: %w", err)
	}
	return db.Close()
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func openReadOnly(path string) (*bbolt.DB, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &domain.IndexFormatError{Path: path, Reason: "index file not found", Err: err}
		}
		return nil, err
	}
	db, err := bbolt.Open(path, 0400, &bbolt.Options{ReadOnly: true, Timeout: openTimeout})
	if err != nil {
		return nil, &domain.IndexFormatError{Path: path, Reason: "not a readable index", Err: err}
	}
	return db, nil
}

func readManifest(tx *bbolt.Tx, path string) (domain.Manifest, error) {
	var m domain.Manifest

	b := tx.Bucket(bucketManifest)
	if b == nil {
		return m, &domain.IndexFormatError{Path: path, Reason: "missing manifest bucket"}
	}
	data := b.Get(keyManifest)
	if data == nil {
		return m, &domain.IndexFormatError{Path: path, Reason: "missing manifest"}
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, &domain.IndexFormatError{Path: path, Reason: "unparsable manifest", Err: err}
	}
	if err := checkSchema(m); err != nil {
		return m, &domain.IndexFormatError{Path: path, Reason: err.Error()}
	}
	if _, err := ParseMetric(m.Metric); err != nil || m.Metric == "" {
		return m, &domain.IndexFormatError{Path: path, Reason: fmt.Sprintf("unknown metric %q", m.Metric)}
	}
	return m, nil
}

// ReadManifest returns the manifest of the index at path without loading
// its chunks.
func ReadManifest(path string) (domain.Manifest, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return domain.Manifest{}, err
	}
	defer db.Close()

	var m domain.Manifest
	err = db.View(func(tx *bbolt.Tx) error {
		var err error
		m, err = readManifest(tx, path)
		return err
	})
	return m, err
}

// Load reads the index at path. When expectedModelID is non-empty and
// differs from the manifest's model, a ModelMismatchError is returned
// before any chunk is read.
func Load(path, expectedModelID string) (*ChunkIndex, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	idx := &ChunkIndex{}
	err = db.View(func(tx *bbolt.Tx) error {
		m, err := readManifest(tx, path)
		if err != nil {
			return err
		}
		if expectedModelID != "" && m.ModelID != expectedModelID {
			return &domain.ModelMismatchError{IndexModel: m.ModelID, QueryModel: expectedModelID}
		}
		idx.manifest = m

		cb := tx.Bucket(bucketChunks)
		vb := tx.Bucket(bucketVectors)
		if cb == nil || vb == nil {
			return &domain.IndexFormatError{Path: path, Reason: "missing chunks or vectors bucket"}
		}

		if err := cb.ForEach(func(k, v []byte) error {
			var sc storedChunk
			if err := json.Unmarshal(v, &sc); err != nil {
				return &domain.IndexFormatError{Path: path, Reason: "unparsable chunk", Err: err}
			}
			idx.chunks = append(idx.chunks, domain.Chunk{
				ID:       sc.ID,
				Index:    sc.Index,
				Start:    sc.Start,
				Text:     sc.Text,
				Metadata: sc.Metadata,
			})
			return nil
		}); err != nil {
			return err
		}

		if err := vb.ForEach(func(k, v []byte) error {
			vec, err := decodeVector(v)
			if err != nil {
				return &domain.IndexFormatError{Path: path, Reason: "corrupt vector", Err: err}
			}
			if len(vec) != m.Dimension {
				return &domain.IndexFormatError{Path: path, Reason: fmt.Sprintf("vector dimension %d, manifest says %d", len(vec), m.Dimension)}
			}
			idx.vectors = append(idx.vectors, vec)
			return nil
		}); err != nil {
			return err
		}

		if len(idx.chunks) != len(idx.vectors) || len(idx.chunks) != m.Chunks {
			return &domain.IndexFormatError{
				Path:   path,
				Reason: fmt.Sprintf("count mismatch: %d chunks, %d vectors, manifest says %d", len(idx.chunks), len(idx.vectors), m.Chunks),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}
