package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/core/ports"
	"github.com/kirillkom/docsearch/internal/infrastructure/vector/memory"
)

var (
	_ ports.VectorIndex = (*Index)(nil)

	bucketSegments = []byte("segments")
)

// Index persists segments in a bbolt bucket keyed by insertion sequence and
// serves searches from an in-memory copy loaded in key order at open.
type Index struct {
	db *bbolt.DB

	mu       sync.RWMutex
	dim      int
	segments []domain.Segment
}

type storedSegment struct {
	DocumentID    string    `json:"d"`
	Text          string    `json:"t"`
	SequenceIndex int       `json:"i"`
	Vector        []float32 `json:"v"`
}

func Open(path string) (*Index, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "bolt open", err)
	}
	x, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return x, nil
}

func New(db *bbolt.DB) (*Index, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSegments)
		return err
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "bolt create bucket", err)
	}

	x := &Index{db: db}
	if err := x.load(); err != nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "bolt load segments", err)
	}
	return x, nil
}

func (x *Index) load() error {
	return x.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSegments).ForEach(func(_, v []byte) error {
			var s storedSegment
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("decode segment: %w", err)
			}
			if x.dim == 0 {
				x.dim = len(s.Vector)
			}
			x.segments = append(x.segments, domain.Segment{
				DocumentID:    s.DocumentID,
				Text:          s.Text,
				SequenceIndex: s.SequenceIndex,
				Vector:        s.Vector,
			})
			return nil
		})
	})
}

func (x *Index) Add(_ context.Context, segment domain.Segment) error {
	if len(segment.Vector) == 0 {
		return domain.WrapError(domain.ErrInvalidArgument, "bolt index add", fmt.Errorf("segment %s/%d has no vector", segment.DocumentID, segment.SequenceIndex))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dim != 0 && len(segment.Vector) != x.dim {
		return domain.WrapError(domain.ErrInvalidArgument, "bolt index add", fmt.Errorf("vector dimension %d, index dimension %d", len(segment.Vector), x.dim))
	}

	stored := storedSegment{
		DocumentID:    segment.DocumentID,
		Text:          segment.Text,
		SequenceIndex: segment.SequenceIndex,
		Vector:        append([]float32(nil), segment.Vector...),
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal segment: %w", err)
	}

	err = x.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSegments)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, data)
	})
	if err != nil {
		return domain.WrapError(domain.ErrIndexUnavailable, "bolt index add", err)
	}

	if x.dim == 0 {
		x.dim = len(stored.Vector)
	}
	segment.Vector = stored.Vector
	x.segments = append(x.segments, segment)
	return nil
}

func (x *Index) Search(_ context.Context, queryVector []float32, k int) ([]domain.SegmentMatch, error) {
	if k <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "bolt index search", fmt.Errorf("k must be positive, got %d", k))
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.segments) == 0 {
		return []domain.SegmentMatch{}, nil
	}
	if len(queryVector) != x.dim {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "bolt index search", fmt.Errorf("query dimension %d, index dimension %d", len(queryVector), x.dim))
	}
	return memory.TopK(x.segments, queryVector, k), nil
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.segments)
}

func (x *Index) Close() error {
	return x.db.Close()
}
