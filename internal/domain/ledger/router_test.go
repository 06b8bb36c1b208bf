package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivePartitionID(t *testing.T) {
	tests := []struct {
		district string
		expected PartitionID
	}{
		{"Guntur", "dcb_guntur"},
		{"East Godavari", "dcb_east_godavari"},
		{"Y.S.R. Kadapa", "dcb_y_s_r_kadapa"},
		{"Sri Potti Sriramulu Nellore", "dcb_sri_potti_sriramulu_nellore"},
		{"D'Souza Nagar", "dcb_dsouza_nagar"},
		{"  Anantapur  ", "dcb_anantapur"},
		{"Nandyal-West", "dcb_nandyal_west"},
		{"NTR", "dcb_ntr"},
	}

	for _, tt := range tests {
		t.Run(tt.district, func(t *testing.T) {
			assert.Equal(t, tt.expected, DerivePartitionID(tt.district))
		})
	}
}

func TestNewRouter(t *testing.T) {
	router, err := NewRouter([]string{"Guntur", "Krishna", "East Godavari"})
	require.NoError(t, err)
	assert.Equal(t, 3, router.Size())
}

func TestNewRouter_RejectsCollision(t *testing.T) {
	// Both derive dcb_east_godavari
	_, err := NewRouter([]string{"East Godavari", "east-godavari"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "same partition")
}

func TestNewRouter_RejectsDuplicateDistrict(t *testing.T) {
	_, err := NewRouter([]string{"Guntur", "GUNTUR"})
	require.Error(t, err)
}

func TestNewRouter_RejectsEmptyName(t *testing.T) {
	_, err := NewRouter([]string{"Guntur", "   "})
	require.Error(t, err)
}

func TestRouter_Resolve(t *testing.T) {
	router, err := NewRouter([]string{"Guntur", "Krishna"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		district string
		expected PartitionID
		wantErr  bool
	}{
		{"exact match", "Guntur", "dcb_guntur", false},
		{"case-insensitive", "gUnTuR", "dcb_guntur", false},
		{"surrounding whitespace", "  Krishna ", "dcb_krishna", false},
		{"unknown district", "Chittoor", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := router.Resolve(tt.district)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestRouter_ResolveIsDeterministic(t *testing.T) {
	router, err := NewRouter([]string{"Guntur"})
	require.NoError(t, err)

	first, err := router.Resolve("Guntur")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		id, err := router.Resolve("Guntur")
		require.NoError(t, err)
		assert.Equal(t, first, id)
	}
}

func TestRouter_PartitionsOrdered(t *testing.T) {
	router, err := NewRouter([]string{"Krishna", "Anantapur", "Guntur"})
	require.NoError(t, err)

	parts := router.Partitions()
	require.Len(t, parts, 3)
	assert.Equal(t, "Anantapur", parts[0].District)
	assert.Equal(t, "Guntur", parts[1].District)
	assert.Equal(t, "Krishna", parts[2].District)
}
