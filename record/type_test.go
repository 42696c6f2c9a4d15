package record

import (
	"context"
	"math"
	"runtime"
	"slices"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/dynstruct/errors"
	"github.com/wippyai/dynstruct/layout"
	"github.com/wippyai/dynstruct/memory"
)

func TestCollect(t *testing.T) {
	alloc := memory.NewCounting(nil)
	r := Collect(stamp{ID: 2}, 5, slices.Values([]int32{5, 4, 3, 2, 1}), WithAllocator(alloc))
	defer r.Release()

	assert.Equal(t, uint32(2), r.Header().ID)
	assert.Equal(t, []int32{5, 4, 3, 2, 1}, r.Elements())
	assert.Equal(t, int64(1), alloc.Stats().Allocs)
}

func TestCollect_Empty(t *testing.T) {
	r := Collect(uint16(1), 0, slices.Values([]uint64(nil)))
	defer r.Release()
	assert.Zero(t, r.Len())
	assert.Equal(t, uint16(1), *r.Header())
}

func TestCollect_LengthMismatch(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		yield []uint64
	}{
		{"short", 4, []uint64{1, 2, 3}},
		{"long", 2, []uint64{1, 2, 3}},
		{"nothing", 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc := memory.NewCounting(nil)
			err := panicError(t, func() {
				Collect(uint8(0), tt.n, slices.Values(tt.yield), WithAllocator(alloc))
			})
			assert.Equal(t, errors.KindLengthMismatch, err.Kind)
			assert.Equal(t, errors.PhaseConstruct, err.Phase)
			assert.Zero(t, alloc.Stats().Allocs, "checked before allocation")
		})
	}
}

func TestCollect_NegativeCount(t *testing.T) {
	err := panicError(t, func() {
		Collect(0, -1, slices.Values([]int{}))
	})
	assert.Equal(t, errors.KindInvalidInput, err.Kind)
}

func TestCollect_HugeCountShortSequence(t *testing.T) {
	alloc := memory.NewCounting(nil)
	err := panicError(t, func() {
		Collect(uint64(0), math.MaxInt/16, slices.Values([]uint64{1, 2}), WithAllocator(alloc))
	})
	assert.Equal(t, errors.KindLengthMismatch, err.Kind)
	assert.Zero(t, alloc.Stats().Allocs)
}

func TestType_LayoutMatchesWIT(t *testing.T) {
	header := &wit.Record{Fields: []wit.Field{
		{Name: "id", Type: wit.U32{}},
		{Name: "flags", Type: wit.U8{}},
		{Name: "when", Type: wit.S64{}},
	}}
	calc := layout.NewWITCalculator()
	typ := NewType[stamp, uint32]()

	for _, n := range []int{0, 1, 7} {
		want, err := calc.Combined(&wit.TypeDef{Kind: header}, wit.U32{}, n)
		require.NoError(t, err)
		got, err := typ.Layout(n)
		require.NoError(t, err)
		assert.Equal(t, want, got, "n=%d", n)
	}

	offs := calc.FieldOffsets(header)
	assert.Equal(t, unsafe.Offsetof(stamp{}.ID), offs["id"])
	assert.Equal(t, unsafe.Offsetof(stamp{}.Flags), offs["flags"])
	assert.Equal(t, unsafe.Offsetof(stamp{}.When), offs["when"])

	r := typ.New(stamp{ID: 3, Flags: 1, When: -42}, []uint32{10, 20, 30})
	defer r.Release()
	l := r.Layout()
	base := unsafe.Pointer(r.Header())
	assert.Equal(t, int64(-42), *(*int64)(unsafe.Add(base, offs["when"])))
	assert.Equal(t, uint32(30), *(*uint32)(unsafe.Add(base, l.ElemOffset+2*l.ElemSize)))
}

func TestType_Reuse(t *testing.T) {
	alloc := memory.NewCounting(nil)
	typ := NewType[stamp, uint64](WithAllocator(alloc))

	l, err := typ.Layout(3)
	require.NoError(t, err)
	assert.Equal(t, uintptr(16), l.ElemOffset)
	assert.Equal(t, uintptr(40), l.Size)

	var records []*Record[stamp, uint64]
	for i := range 10 {
		records = append(records, typ.New(stamp{ID: uint32(i)}, []uint64{uint64(i), 1, 2}))
	}
	assert.Equal(t, int64(10), alloc.Stats().Allocs)
	assert.Equal(t, int64(400), alloc.Stats().LiveBytes)

	for i, r := range records {
		assert.Equal(t, uint32(i), r.Header().ID)
		assert.Equal(t, l, r.Layout())
		require.NoError(t, r.Release())
	}
	assert.Zero(t, alloc.Stats().LiveBytes)
}

func TestType_Concurrent(t *testing.T) {
	alloc := memory.NewCounting(nil)
	typ := NewType[named, string](WithAllocator(alloc))

	const workers, rounds = 8, 100
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rounds {
				r := typ.New(named{Name: "w"}, []string{"a", "b"})
				if got := r.Header().Name; got != "w" {
					t.Errorf("worker %d round %d: header %q", w, i, got)
				}
				if err := r.Release(); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()

	s := alloc.Stats()
	assert.Equal(t, int64(workers*rounds), s.Allocs)
	assert.Equal(t, s.Allocs, s.Frees)
	assert.Zero(t, s.LiveBytes)
}

func TestWithAllocator_Backends(t *testing.T) {
	ctx := context.Background()
	linear, err := memory.NewLinear(ctx, &memory.LinearConfig{Pages: 1})
	require.NoError(t, err)
	defer linear.Close(ctx)

	t.Run("linear", func(t *testing.T) {
		used := linear.Used()
		r := New(stamp{ID: 9, When: 1234}, []uint32{1, 2, 3}, WithAllocator(linear))

		off, ok := linear.Offset(unsafe.Pointer(r.Header()))
		require.True(t, ok)
		id, ok := linear.Memory().ReadUint32Le(off)
		require.True(t, ok)
		assert.Equal(t, uint32(9), id)
		last, ok := linear.Memory().ReadUint32Le(off + uint32(r.Layout().ElemAt(2)))
		require.True(t, ok)
		assert.Equal(t, uint32(3), last)

		require.NoError(t, r.Release())
		assert.Equal(t, used, linear.Used(), "block handed back")
	})

	t.Run("linear rejects pointers", func(t *testing.T) {
		err := panicError(t, func() {
			New("header", []string{"x"}, WithAllocator(linear))
		})
		assert.Equal(t, errors.KindAllocation, err.Kind)
		assert.True(t, errors.IsKind(err.Cause, errors.KindUnsupported))
	})

	t.Run("mapped", func(t *testing.T) {
		mapped := memory.NewMapped()
		block, err := mapped.Alloc(8, 8, nil)
		if err != nil {
			t.Skipf("no anonymous mappings: %v", err)
		}
		mapped.Free(block, 8, 8)

		r := New(stamp{ID: 3}, []uint64{7, 8}, WithAllocator(mapped))
		assert.Equal(t, []uint64{7, 8}, r.Elements())
		require.NoError(t, r.Release())
	})
}

func TestWithLeakCheck(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	defer SetLogger(prev)

	leak := func() {
		New(uint64(1), []uint64{2, 3}, WithLeakCheck())
	}
	leak()

	kept := New(uint64(1), []uint64{2}, WithLeakCheck())
	require.NoError(t, kept.Release())

	require.Eventually(t, func() bool {
		runtime.GC()
		return logs.FilterMessage("record collected without Release").Len() > 0
	}, 5*time.Second, 10*time.Millisecond)

	runtime.GC()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, logs.FilterMessage("record collected without Release").Len(),
		"released records are not reported")
}
