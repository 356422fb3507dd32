package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inqerrors "github.com/inquira/inquira/internal/errors"
)

func TestSwappableKeywordIndex_EmptyHolderFails(t *testing.T) {
	holder := NewSwappableKeywordIndex(nil)

	_, err := holder.Search(context.Background(), "volcano", 10)

	require.Error(t, err)
	assert.Equal(t, inqerrors.ErrCodeIndexUnavailable, inqerrors.GetCode(err))
	assert.Equal(t, 0, holder.Count())
}

func TestSwappableKeywordIndex_SwapReplacesBackingIndex(t *testing.T) {
	first := newTestKeywordIndex(t)
	require.NoError(t, first.Index(context.Background(), testChunks()))
	holder := NewSwappableKeywordIndex(first)
	require.Equal(t, 3, holder.Count())

	second, err := NewBleveIndex()
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	old := holder.Swap(second)

	assert.Same(t, KeywordIndex(first), old)
	assert.Equal(t, 0, holder.Count())

	// The holder delegates to the new index
	require.NoError(t, holder.Index(context.Background(), testChunks()[:1]))
	assert.Equal(t, 1, second.Count())
}

func TestSwappableKeywordIndex_CloseEmptiesHolder(t *testing.T) {
	idx, err := NewBleveIndex()
	require.NoError(t, err)
	holder := NewSwappableKeywordIndex(idx)

	require.NoError(t, holder.Close())

	_, err = holder.Search(context.Background(), "volcano", 10)
	assert.Error(t, err)
}
