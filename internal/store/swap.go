package store

import (
	"context"
	"sync/atomic"

	inqerrors "github.com/inquira/inquira/internal/errors"
)

// SwappableKeywordIndex is a KeywordIndex holder whose backing index can
// be replaced atomically. Readers always see a complete index: the
// startup rebuild constructs the new index fully, then swaps it in.
type SwappableKeywordIndex struct {
	current atomic.Pointer[keywordIndexBox]
}

// keywordIndexBox exists so the atomic pointer has a concrete type to
// point at while the held value stays an interface.
type keywordIndexBox struct {
	index KeywordIndex
}

var _ KeywordIndex = (*SwappableKeywordIndex)(nil)

// NewSwappableKeywordIndex wraps index. A nil index is allowed; all
// operations fail with an index-unavailable error until Swap installs one.
func NewSwappableKeywordIndex(index KeywordIndex) *SwappableKeywordIndex {
	s := &SwappableKeywordIndex{}
	s.current.Store(&keywordIndexBox{index: index})
	return s
}

// Swap installs a new backing index and returns the previous one, which
// the caller is responsible for closing.
func (s *SwappableKeywordIndex) Swap(index KeywordIndex) KeywordIndex {
	old := s.current.Swap(&keywordIndexBox{index: index})
	if old == nil {
		return nil
	}
	return old.index
}

func (s *SwappableKeywordIndex) get() (KeywordIndex, error) {
	box := s.current.Load()
	if box == nil || box.index == nil {
		return nil, inqerrors.IndexUnavailableError("keyword index not ready", nil)
	}
	return box.index, nil
}

func (s *SwappableKeywordIndex) Index(ctx context.Context, chunks []*Chunk) error {
	idx, err := s.get()
	if err != nil {
		return err
	}
	return idx.Index(ctx, chunks)
}

func (s *SwappableKeywordIndex) Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error) {
	idx, err := s.get()
	if err != nil {
		return nil, err
	}
	return idx.Search(ctx, query, limit)
}

func (s *SwappableKeywordIndex) Delete(ctx context.Context, chunkIDs []string) error {
	idx, err := s.get()
	if err != nil {
		return err
	}
	return idx.Delete(ctx, chunkIDs)
}

func (s *SwappableKeywordIndex) AllIDs() ([]string, error) {
	idx, err := s.get()
	if err != nil {
		return nil, err
	}
	return idx.AllIDs()
}

func (s *SwappableKeywordIndex) Count() int {
	idx, err := s.get()
	if err != nil {
		return 0
	}
	return idx.Count()
}

// Close closes the currently held index and empties the holder.
func (s *SwappableKeywordIndex) Close() error {
	old := s.Swap(nil)
	if old == nil {
		return nil
	}
	return old.Close()
}
