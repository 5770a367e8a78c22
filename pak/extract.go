package pak

import (
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/CyberDeco/MacPak-sub002/compress"
)

// ExtractOptions controls selective and full extraction.
type ExtractOptions struct {
	// VerifyCRC re-computes each entry's CRC-32 after decompression and
	// fails the extraction if it disagrees with the stored value.
	VerifyCRC bool

	// OnItem, if set, is called after each file is extracted.
	OnItem func(path string, index, total int)

	// Cancel stops the extraction at the next file boundary when
	// closed. Files already written stay on disk.
	Cancel <-chan struct{}
}

// FileData pairs an entry path with its decompressed bytes.
type FileData struct {
	Path string
	Data []byte
}

// ReadMany reads several entries in one pass, in the order given.
func (a *Archive) ReadMany(paths []string) ([]FileData, error) {
	out := make([]FileData, 0, len(paths))
	for _, p := range paths {
		data, err := a.Read(p)
		if err != nil {
			return nil, err
		}
		out = append(out, FileData{Path: p, Data: data})
	}
	return out, nil
}

// Read returns the decompressed bytes of the entry at path.
func (a *Archive) Read(path string) ([]byte, error) {
	e := a.Find(path)
	if e == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return a.readEntry(e)
}

func (a *Archive) readEntry(e *Entry) ([]byte, error) {
	part, err := a.partData(e.PartIndex)
	if err != nil {
		return nil, fmt.Errorf("pak: map part %d: %w", e.PartIndex, err)
	}
	end := e.Offset + uint64(e.CompressedSize)
	if end > uint64(len(part)) {
		return nil, fmt.Errorf("%w: %s", ErrOutOfBounds, e.Path)
	}
	raw := part[e.Offset:end]

	var out []byte
	switch e.Method {
	case MethodNone:
		out = append([]byte{}, raw...)
	case MethodLZ4:
		if e.CompressedSize == e.UncompressedSize {
			// compressLZ4Block stores incompressible data raw rather
			// than as a valid LZ4 block (compress/lz4.go); equal sizes
			// mean "skip the LZ4 decoder".
			out = append([]byte{}, raw...)
		} else {
			out, err = compress.Decompress(compress.MethodLZ4Block, raw, int(e.UncompressedSize))
		}
	case MethodZlib:
		out, err = compress.Decompress(compress.MethodZlib, raw, int(e.UncompressedSize))
	default:
		return nil, fmt.Errorf("pak: %s: unknown method %d", e.Path, e.Method)
	}
	if err != nil {
		return nil, fmt.Errorf("pak: decompress %s: %w", e.Path, err)
	}

	if e.CRC != 0 {
		if crc32.ChecksumIEEE(out) != e.CRC {
			return nil, fmt.Errorf("%w: %s", ErrCRCMismatch, e.Path)
		}
	}
	return out, nil
}

// ExtractAll writes every entry under destDir, recreating the archive's
// relative directory structure.
func (a *Archive) ExtractAll(destDir string, opts *ExtractOptions) error {
	return a.ExtractSelected(a.entries, destDir, opts)
}

// ExtractSelected writes only the given entries under destDir.
func (a *Archive) ExtractSelected(entries []*Entry, destDir string, opts *ExtractOptions) error {
	if opts == nil {
		opts = &ExtractOptions{}
	}
	for i, e := range entries {
		if cancelled(opts.Cancel) {
			return ErrCancelled
		}
		data, err := a.readEntry(e)
		if err != nil {
			return err
		}
		if opts.VerifyCRC && e.CRC != 0 && crc32.ChecksumIEEE(data) != e.CRC {
			return fmt.Errorf("%w: %s", ErrCRCMismatch, e.Path)
		}
		outPath := filepath.Join(destDir, filepath.FromSlash(e.Path))
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return fmt.Errorf("pak: mkdir for %s: %w", e.Path, err)
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return fmt.Errorf("pak: write %s: %w", e.Path, err)
		}
		if opts.OnItem != nil {
			opts.OnItem(e.Path, i+1, len(entries))
		}
	}
	a.logger.Infof("extracted %d entries to %s", len(entries), destDir)
	return nil
}

// Bundler is implemented by packages that need to accompany an
// extracted entry with extra output files of their own, such as a mesh
// container codec pulling in the textures it references through an
// asset database. ExtractWithBundler calls it once per entry.
type Bundler interface {
	// Bundle receives the destination directory, the entry's archive
	// path, and its decompressed bytes. It may write additional files
	// under destDir itself and returns the bytes that should be written
	// for the entry itself (unchanged, if nothing applies to it).
	Bundle(destDir, path string, data []byte) ([]byte, error)
}

// ExtractWithBundler behaves like ExtractSelected but runs each entry's
// bytes through b.Bundle before writing it to disk, letting the bundler
// write companion files alongside the entry under destDir.
func (a *Archive) ExtractWithBundler(entries []*Entry, destDir string, b Bundler, opts *ExtractOptions) error {
	if opts == nil {
		opts = &ExtractOptions{}
	}
	for i, e := range entries {
		if cancelled(opts.Cancel) {
			return ErrCancelled
		}
		data, err := a.readEntry(e)
		if err != nil {
			return err
		}
		data, err = b.Bundle(destDir, e.Path, data)
		if err != nil {
			return fmt.Errorf("pak: bundle %s: %w", e.Path, err)
		}
		outPath := filepath.Join(destDir, filepath.FromSlash(e.Path))
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return fmt.Errorf("pak: mkdir for %s: %w", e.Path, err)
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return fmt.Errorf("pak: write %s: %w", e.Path, err)
		}
		if opts.OnItem != nil {
			opts.OnItem(e.Path, i+1, len(entries))
		}
	}
	return nil
}
