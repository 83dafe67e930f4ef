package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeImages creates n empty files named img_000.png ... in dir.
func writeImages(t *testing.T, dir string, n int) []string {
	t.Helper()
	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p := filepath.Join(dir, fmt.Sprintf("img_%03d.png", i))
		require.NoError(t, os.WriteFile(p, nil, 0o600))
		paths = append(paths, p)
	}
	return paths
}

func TestCount(t *testing.T) {
	tests := []struct {
		n, size, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{25, 1, 25},
		{5, 0, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.n, tt.size), func(t *testing.T) {
			assert.Equal(t, tt.want, Count(tt.n, tt.size))
		})
	}
}

func TestPartition(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 11, 25, 30} {
		for _, size := range []int{1, 3, 10} {
			t.Run(fmt.Sprintf("n=%d size=%d", n, size), func(t *testing.T) {
				files := make([]string, n)
				for i := range files {
					files[i] = fmt.Sprintf("f%03d", i)
				}

				var got []string
				var batches []Batch
				for b := range Partition(files, size) {
					batches = append(batches, b)
					got = append(got, b.Images...)
				}

				require.Len(t, batches, Count(n, size))
				for i, b := range batches {
					assert.Equal(t, i, b.Index)
					if i < len(batches)-1 {
						assert.Equal(t, size, b.Len())
					} else {
						assert.LessOrEqual(t, b.Len(), size)
						assert.Positive(t, b.Len())
					}
				}
				assert.Equal(t, len(files), len(got))
				if n > 0 {
					assert.Equal(t, files, got)
				}
			})
		}
	}
}

func TestPartition_BatchesOwnTheirSlice(t *testing.T) {
	files := []string{"a", "b", "c", "d"}

	var first Batch
	for b := range Partition(files, 2) {
		first = b
		break
	}
	files[0] = "mutated"

	assert.Equal(t, []string{"a", "b"}, first.Images)
}

func TestPartition_NonPositiveSize(t *testing.T) {
	count := 0
	for range Partition([]string{"a"}, 0) {
		count++
	}
	assert.Zero(t, count)
}

func TestDiscover(t *testing.T) {
	t.Run("sorts lexicographically and filters extension", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{"b.png", "a.png", "c.jpg", "10.png", "2.PNG", "notes.txt"} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
		}
		require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o750))

		files, err := Discover(dir, ".png")
		require.NoError(t, err)

		var names []string
		for _, f := range files {
			names = append(names, filepath.Base(f))
		}
		assert.Equal(t, []string{"10.png", "2.PNG", "a.png", "b.png"}, names)
	})

	t.Run("empty directory yields nothing", func(t *testing.T) {
		files, err := Discover(t.TempDir(), ".png")
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := Discover(filepath.Join(t.TempDir(), "missing"), ".png")
		var derr *DiscoveryError
		require.ErrorAs(t, err, &derr)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("path is a file", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "file.png")
		require.NoError(t, os.WriteFile(p, nil, 0o600))

		_, err := Discover(p, ".png")
		var derr *DiscoveryError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, p, derr.Dir)
	})
}

func TestDiscover_FollowsSymlinks(t *testing.T) {
	src := t.TempDir()
	dir := t.TempDir()

	target := filepath.Join(src, "real.png")
	require.NoError(t, os.WriteFile(target, nil, 0o600))
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "a_linked.png")))
	require.NoError(t, os.Symlink(filepath.Join(src, "gone.png"), filepath.Join(dir, "b_dangling.png")))
	require.NoError(t, os.Mkdir(filepath.Join(src, "sub.png"), 0o750))
	require.NoError(t, os.Symlink(filepath.Join(src, "sub.png"), filepath.Join(dir, "c_dir.png")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d_plain.png"), nil, 0o600))

	files, err := Discover(dir, ".png")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_linked.png"),
		filepath.Join(dir, "d_plain.png"),
	}, files)
}

func TestBatcher_Batches(t *testing.T) {
	dir := t.TempDir()
	want := writeImages(t, dir, 25)

	b := &Batcher{Dir: dir, Ext: ".png", Size: 10}
	seq, total, err := b.Batches()
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	var sizes []int
	var got []string
	for batch := range seq {
		sizes = append(sizes, batch.Len())
		got = append(got, batch.Images...)
	}
	assert.Equal(t, []int{10, 10, 5}, sizes)
	assert.Equal(t, want, got)

	// Recomputing yields the identical partition.
	seq2, _, err := b.Batches()
	require.NoError(t, err)
	var again []Batch
	for batch := range seq2 {
		again = append(again, batch)
	}
	require.Len(t, again, 3)
	assert.True(t, slices.Equal(want[20:], again[2].Images))
}

func TestBatcher_MissingDirectory(t *testing.T) {
	b := &Batcher{Dir: "/does/not/exist", Ext: ".png", Size: 10}
	_, _, err := b.Batches()
	var derr *DiscoveryError
	assert.ErrorAs(t, err, &derr)
}
