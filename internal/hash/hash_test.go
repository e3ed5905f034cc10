package hash

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestFile(t *testing.T) {
	testData := []byte("This is some test data.")
	path := writeTemp(t, "hash_test", testData)

	blake := blake3.Sum256(testData)
	sha := sha256.Sum256(testData)

	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"BLAKE3, default options", DefaultOptions(), hex.EncodeToString(blake[:])},
		{"XXH64", Options{Algorithm: XXH64}, fmt.Sprintf("%016x", xxhash.Sum64(testData))},
		{"SHA256", Options{Algorithm: SHA256}, hex.EncodeToString(sha[:])},
		{"small buffer", Options{Algorithm: BLAKE3, BufferSize: 3}, hex.EncodeToString(blake[:])},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := File(path, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Hash)
			assert.Equal(t, tt.opts.Algorithm, got.Algorithm)
			assert.Equal(t, int64(len(testData)), got.Size)
			assert.Equal(t, path, got.Path)
		})
	}

	_, err := File(filepath.Join(t.TempDir(), "missing"), DefaultOptions())
	assert.Error(t, err)

	_, err = File(path, Options{Algorithm: UndefinedAlgorithm})
	assert.Error(t, err)
}

func TestBytesAndReader(t *testing.T) {
	data := bytes.Repeat([]byte("flashpack"), 1000)
	fromBytes, err := Bytes(data, BLAKE3)
	require.NoError(t, err)
	fromReader, err := Reader(bytes.NewReader(data), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, fromBytes.Hash, fromReader.Hash)
	assert.Equal(t, int64(len(data)), fromReader.Size)

	_, err = Bytes(data, UndefinedAlgorithm)
	assert.Error(t, err)
}

func TestParseAlgorithm(t *testing.T) {
	for in, want := range map[string]Algorithm{
		"":       BLAKE3,
		"BLAKE3": BLAKE3,
		"xxh64":  XXH64,
		"xxhash": XXH64,
		"sha256": SHA256,
	} {
		got, err := ParseAlgorithm(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	got, err := ParseAlgorithm("md5")
	assert.Error(t, err)
	assert.Equal(t, UndefinedAlgorithm, got)
	assert.Equal(t, "Undefined", got.String())
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 10; i++ {
		path := filepath.Join(dir, fmt.Sprintf("file%d", i))
		require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", i*100)), 0o644))
		paths = append(paths, path)
	}

	results, err := Files(context.Background(), paths, Options{Algorithm: XXH64, Concurrency: 3})
	require.NoError(t, err)
	require.Len(t, results, len(paths))
	for i, res := range results {
		assert.Equal(t, paths[i], res.Path)
		assert.Equal(t, int64(i*100), res.Size)
	}

	_, err = Files(context.Background(), append(paths, filepath.Join(dir, "missing")), DefaultOptions())
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	a := writeTemp(t, "a", []byte("same content"))
	b := writeTemp(t, "b", []byte("same content"))
	c := writeTemp(t, "c", []byte("different content"))

	same, pair, err := Compare(context.Background(), a, b, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, same)
	assert.Equal(t, pair[0].Hash, pair[1].Hash)

	same, _, err = Compare(context.Background(), a, c, DefaultOptions())
	require.NoError(t, err)
	assert.False(t, same)
}
