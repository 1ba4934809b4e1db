package window

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_New_InvalidCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) }, "zero capacity should panic")
	assert.Panics(t, func() { New[int](-5) }, "negative capacity should panic")
}

// Test_Push_LengthBound verifies length == min(N, C) for a range of push
// counts and capacities, and that the front element is always the most
// recently pushed item.
func Test_Push_LengthBound(t *testing.T) {
	tests := []struct {
		capacity int
		pushes   int
	}{
		{capacity: 1, pushes: 0},
		{capacity: 1, pushes: 1},
		{capacity: 1, pushes: 10},
		{capacity: 5, pushes: 3},
		{capacity: 5, pushes: 5},
		{capacity: 5, pushes: 6},
		{capacity: 50, pushes: 49},
		{capacity: 50, pushes: 50},
		{capacity: 50, pushes: 51},
		{capacity: 50, pushes: 500},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("cap=%d_pushes=%d", tt.capacity, tt.pushes), func(t *testing.T) {
			b := New[int](tt.capacity)
			for i := 1; i <= tt.pushes; i++ {
				b.Push(i)
			}

			want := tt.pushes
			if want > tt.capacity {
				want = tt.capacity
			}
			assert.Equal(t, want, b.Len(), "length should be min(N, C)")
			assert.Equal(t, tt.capacity, b.Cap(), "capacity should be fixed")

			if tt.pushes > 0 {
				front, ok := b.Front()
				require.True(t, ok)
				assert.Equal(t, tt.pushes, front, "front should be the newest item")
			} else {
				_, ok := b.Front()
				assert.False(t, ok, "empty buffer has no front")
			}
		})
	}
}

// Test_Items_NewestFirst verifies ordering and eviction: after pushing one
// past capacity the first item is gone and the newest leads the snapshot.
func Test_Items_NewestFirst(t *testing.T) {
	b := New[int](3)
	b.Push(1)
	b.Push(2)
	b.Push(3)
	assert.Equal(t, []int{3, 2, 1}, b.Items())

	b.Push(4) // evicts 1
	assert.Equal(t, []int{4, 3, 2}, b.Items())
	assert.NotContains(t, b.Items(), 1, "oldest item should be evicted")
}

// Test_FiftyOnePushes mirrors the transaction window sizing: 51 distinct
// events through a capacity-50 buffer.
func Test_FiftyOnePushes(t *testing.T) {
	b := New[int](50)
	for i := 1; i <= 51; i++ {
		b.Push(i)
	}

	items := b.Items()
	require.Len(t, items, 50)
	assert.Equal(t, 51, items[0], "51st push should be at the front")
	assert.NotContains(t, items, 1, "1st push should be absent")
	assert.Equal(t, 2, items[49], "2nd push should be the oldest retained")
}

// Test_Items_IsACopy ensures the returned snapshot does not alias buffer
// storage.
func Test_Items_IsACopy(t *testing.T) {
	b := New[int](3)
	b.Push(1)
	b.Push(2)

	items := b.Items()
	items[0] = 99

	fresh := b.Items()
	assert.Equal(t, []int{2, 1}, fresh, "mutating a snapshot should not affect the buffer")
}

func Benchmark_Push(b *testing.B) {
	buf := New[int](50)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		buf.Push(i)
	}
}
