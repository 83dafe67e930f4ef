// Package batch discovers slideshow images and partitions them into
// fixed-size batches in a deterministic order.
package batch

import (
	"iter"
	"slices"
)

// Batch is a contiguous group of images rendered together into one clip.
type Batch struct {
	// Index is the zero-based emission order of the batch.
	Index int
	// Images holds the image paths in playback order.
	Images []string
}

// Len returns the number of images in the batch.
func (b Batch) Len() int {
	return len(b.Images)
}

// Count returns the number of batches n images split into at the given size.
func Count(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Partition lazily splits files into contiguous batches of size elements.
// The final batch may be shorter. Each yielded batch owns a private copy of
// its slice, so callers may retain it after iteration advances.
func Partition(files []string, size int) iter.Seq[Batch] {
	return func(yield func(Batch) bool) {
		if size <= 0 {
			return
		}
		for i, start := 0, 0; start < len(files); i, start = i+1, start+size {
			end := min(start+size, len(files))
			if !yield(Batch{Index: i, Images: slices.Clone(files[start:end])}) {
				return
			}
		}
	}
}

// Batcher produces the batches for one image directory.
type Batcher struct {
	// Dir is the image directory.
	Dir string
	// Ext is the extension filter, including the leading dot (".png").
	Ext string
	// Size is the maximum number of images per batch.
	Size int
}

// Batches discovers the images once and returns the lazy batch sequence along
// with the total number of batches it will yield. Calling Batches again
// re-reads the directory.
func (b *Batcher) Batches() (iter.Seq[Batch], int, error) {
	files, err := Discover(b.Dir, b.Ext)
	if err != nil {
		return nil, 0, err
	}
	return Partition(files, b.Size), Count(len(files), b.Size), nil
}
