//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package memory

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/dynstruct/errors"
)

func TestMapped_AllocFree(t *testing.T) {
	m := NewMapped()
	require.NotZero(t, m.PageSize())

	size := m.PageSize() + 10
	ptr, err := m.Alloc(size, 64, nil)
	require.NoError(t, err)
	assert.Zero(t, uintptr(ptr)%m.PageSize(), "mappings start on a page")

	block := unsafe.Slice((*uint64)(ptr), size/8)
	for i := range block {
		require.Zero(t, block[i])
		block[i] = uint64(i)
	}
	assert.Equal(t, uint64(len(block)-1), block[len(block)-1])

	m.Free(ptr, size, 64)
}

func TestMapped_RejectsShape(t *testing.T) {
	m := NewMapped()

	_, err := m.Alloc(16, 8, reflect.TypeFor[struct{ S string }]())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnsupported))
}

func TestMapped_RejectsHugeAlignment(t *testing.T) {
	m := NewMapped()

	_, err := m.Alloc(16, m.PageSize()*2, nil)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnsupported))
}
