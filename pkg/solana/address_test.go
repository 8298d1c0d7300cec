package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"hash"
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProgramAddress(t *testing.T) {
	exceededSeed := make([]byte, maxSeedLength+1)
	maxSeed := make([]byte, maxSeedLength)

	// The typo here was taken directly from the Solana test case,
	// which was used to derive the expected outputs.
	publicKey, err := base58.Decode("SeedPubey1111111111111111111111111111111111")
	require.NoError(t, err)
	programID, err := base58.Decode("BPFLoader1111111111111111111111111111111111")
	require.NoError(t, err)

	_, err = CreateProgramAddress(programID, exceededSeed)
	assert.Equal(t, ErrMaxSeedLengthExceeded, err)
	_, err = CreateProgramAddress(programID, []byte("short seed"), exceededSeed)
	assert.Equal(t, ErrMaxSeedLengthExceeded, err)

	_, err = CreateProgramAddress(programID, maxSeed)
	assert.NoError(t, err)

	tooMany := make([][]byte, maxSeeds+1)
	_, err = CreateProgramAddress(programID, tooMany...)
	assert.Equal(t, ErrTooManySeeds, err)

	for _, tc := range []struct {
		expected string
		input    [][]byte
	}{
		{
			expected: "3gF2KMe9KiC6FNVBmfg9i267aMPvK37FewCip4eGBFcT",
			input:    [][]byte{{}, {1}},
		},
		{
			expected: "7ytmC1nT1xY4RfxCV2ZgyA7UakC93do5ZdyhdF3EtPj7",
			input:    [][]byte{[]byte("☉")},
		},
		{
			expected: "HwRVBufQ4haG5XSgpspwKtNd3PC9GM9m1196uJW36vds",
			input:    [][]byte{[]byte("Talking"), []byte("Squirrels")},
		},
		{
			expected: "GUs5qLUfsEHkcMB9T38vjr18ypEhRuNWiePW2LoK4E3K",
			input:    [][]byte{publicKey},
		},
	} {
		key, err := CreateProgramAddress(programID, tc.input...)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, base58.Encode(key))
		assert.False(t, IsOnCurve(key))
	}

	a, err := CreateProgramAddress(programID, []byte("Talking"))
	require.NoError(t, err)
	b, err := CreateProgramAddress(programID, []byte("Talking"), []byte("Squirrels"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

type fixedHash struct {
	sum []byte
}

func (h *fixedHash) Write(p []byte) (int, error) { return len(p), nil }
func (h *fixedHash) Sum(b []byte) []byte         { return h.sum }
func (h *fixedHash) Reset()                      {}
func (h *fixedHash) Size() int                   { return sha256.Size }
func (h *fixedHash) BlockSize() int              { return sha256.BlockSize }

func TestCreateProgramAddress_OnCurveRejected(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	programHashCtor = func() hash.Hash {
		return &fixedHash{sum: pub}
	}
	defer func() {
		programHashCtor = sha256.New
	}()

	programID, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	_, err = CreateProgramAddress(programID, []byte("Lil'"), []byte("Bits"))
	assert.Equal(t, ErrInvalidPublicKey, err)

	_, _, err = FindProgramAddressAndBump(programID, []byte("Lil'"))
	assert.Equal(t, ErrNoViableBump, err)
}

func TestIsOnCurve(t *testing.T) {
	for i := 0; i < 100; i++ {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		assert.True(t, IsOnCurve(pub))
	}

	assert.False(t, IsOnCurve(nil))
	assert.False(t, IsOnCurve(make([]byte, 31)))
}

func TestFindProgramAddressAndBump_Canonical(t *testing.T) {
	for i := 0; i < 100; i++ {
		programID, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		seed, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)

		address, bump, err := FindProgramAddressAndBump(programID, []byte("store"), seed)
		require.NoError(t, err)
		assert.False(t, IsOnCurve(address))
		assert.True(t, VerifyProgramAddress(address, programID, bump, []byte("store"), seed))

		again, againBump, err := FindProgramAddressAndBump(programID, []byte("store"), seed)
		require.NoError(t, err)
		assert.EqualValues(t, address, again)
		assert.Equal(t, bump, againBump)

		// Every larger bump must land on the curve, otherwise it would have
		// been selected instead.
		for higher := int(bump) + 1; higher <= 255; higher++ {
			_, err := CreateProgramAddress(programID, []byte("store"), seed, []byte{byte(higher)})
			assert.Equal(t, ErrInvalidPublicKey, err)
		}

		if bump > 0 {
			assert.False(t, VerifyProgramAddress(address, programID, bump-1, []byte("store"), seed))
		}
	}
}

func TestFindProgramAddress_Ref(t *testing.T) {
	references := []struct {
		programID string
		expected  string
	}{
		{
			programID: "4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM",
			expected:  "Bn9pAWUXWc5Kd849xTkQcHqiCbHUEizLFn4r5Cf8XYnd",
		},
		{
			programID: "8opHzTAnfzRpPEx21XtnrVTX28YQuCpAjcn1PczScKh",
			expected:  "oDvUHiiGdMo31xYzjefAzUekWH8EbCKrxgs2FkyTs1S",
		},
		{
			programID: "CiDwVBFgWV9E5MvXWoLgnEgn2hK7rJikbvfWavzAQz3",
			expected:  "B2vBn2bmF9GuaGkebrm8oUqDC34pE6m4bagjNcVE6msv",
		},
		{
			programID: "GcdayuLaLyrdmUu324nahyv33G5poQdLUEZ1nEytDeP",
			expected:  "2mN5Nfq9v1EwTV9FPTHPESZ3XiZce9wi5PQoULFuxvev",
		},
		{
			programID: "LX3EUdRUBUa3TbsYXLEUdj9J3prXkWXvLYSWyYyc2Jj",
			expected:  "9CqF6oTZtW5zSeoLnZRoQmj3s2tXGPqifM1W8Z8LVE1z",
		},
	}

	for _, r := range references {
		programID, err := base58.Decode(r.programID)
		require.NoError(t, err)
		expected, err := base58.Decode(r.expected)
		require.NoError(t, err)

		actual, err := FindProgramAddress(programID, []byte("Lil'"), []byte("Bits"))
		require.NoError(t, err)
		assert.EqualValues(t, expected, actual)
	}
}
