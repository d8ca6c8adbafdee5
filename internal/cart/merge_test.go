package cart

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func owned(id, userID int64) *Cart { return &Cart{ID: id, UserID: &userID} }

func TestPlan(t *testing.T) {
	tests := []struct {
		name    string
		guest   *Cart
		current *Cart
		want    Outcome
	}{
		{"no guest", nil, owned(1, 7), Noop},
		{"no guest no current", nil, nil, Noop},
		{"guest is current", owned(3, 7), owned(3, 7), Noop},
		{"guest already owned", owned(3, 8), owned(1, 7), Noop},
		{"no current", &Cart{ID: 3}, nil, Assign},
		{"both", &Cart{ID: 3}, owned(1, 7), MergeCarts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Plan(tt.guest, tt.current))
		})
	}
}

func TestMergeSumsOverlap(t *testing.T) {
	dst := []Item{{ID: 10, CartID: 1, VariantID: 1, Quantity: 2}}
	src := []Item{
		{ID: 20, CartID: 2, VariantID: 1, Quantity: 1},
		{ID: 21, CartID: 2, VariantID: 2, Quantity: 1},
	}

	got := Merge(1, dst, src)

	require.Len(t, got, 2)
	assert.Equal(t, Item{ID: 10, CartID: 1, VariantID: 1, Quantity: 3}, got[0])
	assert.Equal(t, Item{ID: 0, CartID: 1, VariantID: 2, Quantity: 1}, got[1])
}

func TestMergeDisjoint(t *testing.T) {
	dst := []Item{{ID: 10, CartID: 1, VariantID: 1, Quantity: 2}}
	src := []Item{{ID: 20, CartID: 2, VariantID: 2, Quantity: 1}}

	got := Merge(1, dst, src)

	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Quantity)
	assert.Equal(t, 1, got[1].Quantity)
	assert.Equal(t, int64(1), got[1].CartID)
}

func TestMergeEmptySource(t *testing.T) {
	dst := []Item{{ID: 10, CartID: 1, VariantID: 4, Quantity: 2}}
	assert.Equal(t, dst, Merge(1, dst, nil))
}

func TestMergeIgnoresSourceOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	dst := []Item{
		{ID: 1, CartID: 1, VariantID: 3, Quantity: 1},
		{ID: 2, CartID: 1, VariantID: 5, Quantity: 4},
	}
	src := []Item{
		{ID: 7, CartID: 2, VariantID: 5, Quantity: 1},
		{ID: 8, CartID: 2, VariantID: 6, Quantity: 2},
		{ID: 9, CartID: 2, VariantID: 1, Quantity: 3},
		{ID: 10, CartID: 2, VariantID: 3, Quantity: 2},
	}
	want := Merge(1, dst, src)

	for i := 0; i < 50; i++ {
		shuffled := append([]Item(nil), src...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, Merge(1, dst, shuffled))
	}

	total := 0
	for _, it := range want {
		total += it.Quantity
	}
	assert.Equal(t, 13, total)
}
