package riscv

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResetVector64(t *testing.T) {
	vec, err := NewResetVector(64, 0x20000000, 0)
	require.NoError(t, err)

	require.Equal(t, []uint32{
		0x00000297,
		0x02828613,
		0xf1402573,
		0x0202b583,
		0x0182b283,
		0x00028067,
		0x20000000,
		0x00000000,
		0x00000000,
		0x00000000,
	}, vec.Words())
}

func TestResetVector32(t *testing.T) {
	vec, err := NewResetVector(32, 0x20000000, 0x87e00000)
	require.NoError(t, err)

	words := vec.Words()
	require.Len(t, words, ResetVectorWords)
	require.Equal(t, uint32(0x0202a583), words[3])
	require.Equal(t, uint32(0x0182a283), words[4])
	require.Equal(t, uint32(0x20000000), words[6])
	require.Equal(t, uint32(0), words[7])
	require.Equal(t, uint32(0x87e00000), words[8])
	require.Equal(t, uint32(0), words[9])
}

func TestResetVectorHighWords(t *testing.T) {
	vec, err := NewResetVector(64, 0x1_2000_0000, 0x2_0000_1000)
	require.NoError(t, err)

	words := vec.Words()
	require.Equal(t, []uint32{0x20000000, 0x1, 0x00001000, 0x2}, words[6:])
}

func TestResetVectorIsLittleEndian(t *testing.T) {
	vec, err := NewResetVector(64, 0x20000000, 0)
	require.NoError(t, err)

	b := vec.Bytes()
	require.Len(t, b, 40)
	require.Equal(t, []byte{0x97, 0x02, 0x00, 0x00}, b[:4])
	for i, w := range vec.Words() {
		require.Equal(t, w, binary.LittleEndian.Uint32(b[i*4:]), "word %d", i)
	}
}

func TestResetVectorReproducible(t *testing.T) {
	a, err := NewResetVector(64, 0x20000000, 0x1000)
	require.NoError(t, err)
	b, err := NewResetVector(64, 0x20000000, 0x1000)
	require.NoError(t, err)
	require.Equal(t, a.Bytes(), b.Bytes())
}

func TestResetVectorRejects(t *testing.T) {
	for _, tt := range []struct {
		name       string
		xlen       int
		entry, fdt uint64
	}{
		{"rv32 entry above 4g", 32, 0x1_0000_0000, 0},
		{"rv32 fdt above 4g", 32, 0x20000000, 0x1_0000_0000},
		{"rv128", 128, 0x20000000, 0},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResetVector(tt.xlen, tt.entry, tt.fdt)
			require.Error(t, err)
		})
	}
}
