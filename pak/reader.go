package pak

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/CyberDeco/MacPak-sub002/compress"
	"github.com/CyberDeco/MacPak-sub002/log"
)

// header is the fixed 16-byte primary-part prefix: magic, version, and
// a footer offset patched in at write time.
type header struct {
	Version      uint32
	FooterOffset uint64
}

const headerSize = 4 + 4 + 8

// Options configures archive opening.
type Options struct {
	// Logger overrides the default stdout logger.
	Logger log.Logger
}

// Archive is an open, read-only multi-part archive. The primary part and
// every referenced sibling part are memory-mapped.
type Archive struct {
	Version uint32
	entries []*Entry
	byPath  map[string]*Entry

	primaryPath string
	parts       []mmap.MMap
	files       []*os.File
	logger      *log.Helper
}

// Open memory-maps the primary part at name, reads its trailing file
// table, and lazily resolves sibling parts as they are referenced. Part
// N >= 1 is expected to live alongside the primary at "<stem>_<N>.pak";
// part 0 is the primary file itself.
func Open(name string, opts *Options) (*Archive, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewStdLogger(os.Stdout)
	}

	a := &Archive{
		byPath:      map[string]*Entry{},
		primaryPath: name,
		logger:      log.NewHelper(log.NewFilter(logger, log.FilterLevel(log.LevelError))),
	}

	if _, err := a.mapPartAt(name, 0); err != nil {
		return nil, err
	}
	data := a.parts[0]

	if len(data) < 4 || string(data[:4]) != magic {
		return nil, ErrBadMagic
	}
	var h header
	r := bytes.NewReader(data[4:])
	if err := binary.Read(r, binary.LittleEndian, &h.Version); err != nil {
		return nil, fmt.Errorf("pak: read version: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.FooterOffset); err != nil {
		return nil, fmt.Errorf("pak: read footer offset: %w", err)
	}
	a.Version = h.Version

	if int(h.FooterOffset) > len(data) {
		return nil, ErrOutOfBounds
	}
	footer := bytes.NewReader(data[h.FooterOffset:])
	var fileCount, tableCompressedSize uint32
	if err := binary.Read(footer, binary.LittleEndian, &fileCount); err != nil {
		return nil, fmt.Errorf("pak: read file count: %w", err)
	}
	if err := binary.Read(footer, binary.LittleEndian, &tableCompressedSize); err != nil {
		return nil, fmt.Errorf("pak: read table size: %w", err)
	}
	tableCompressed := make([]byte, tableCompressedSize)
	if _, err := footer.Read(tableCompressed); err != nil {
		return nil, fmt.Errorf("pak: read table bytes: %w", err)
	}

	uncompressedSize := int(fileCount) * entrySize
	var tableRaw []byte
	if len(tableCompressed) == uncompressedSize {
		// Stored raw: compressLZ4Block falls back to a raw copy for
		// incompressible input, so equal sizes mean "not actually
		// LZ4-framed" (compress/lz4.go).
		tableRaw = tableCompressed
	} else {
		decoded, err := compress.Decompress(compress.MethodLZ4Block, tableCompressed, uncompressedSize)
		if err != nil {
			return nil, fmt.Errorf("pak: decompress file table: %w", err)
		}
		tableRaw = decoded
	}

	tr := bytes.NewReader(tableRaw)
	for i := uint32(0); i < fileCount; i++ {
		e, err := decodeEntry(tr)
		if err != nil {
			return nil, fmt.Errorf("pak: entry %d: %w", i, err)
		}
		a.entries = append(a.entries, e)
		a.byPath[e.Path] = e
	}
	a.logger.Infof("opened archive %s: %d entries across parts", name, len(a.entries))
	return a, nil
}

// partPath returns the on-disk path of part index idx given the
// primary's path, following the "<stem>_<N>.pak" convention.
func partPath(primaryPath string, idx uint8) string {
	if idx == 0 {
		return primaryPath
	}
	ext := filepath.Ext(primaryPath)
	stem := strings.TrimSuffix(primaryPath, ext)
	return fmt.Sprintf("%s_%d%s", stem, idx, ext)
}

// partData returns the mapped bytes for part idx, mapping it on first
// use relative to the archive's primary path.
func (a *Archive) partData(idx uint8) (mmap.MMap, error) {
	for len(a.parts) <= int(idx) {
		a.parts = append(a.parts, nil)
		a.files = append(a.files, nil)
	}
	if a.parts[idx] != nil {
		return a.parts[idx], nil
	}
	return a.mapPartAt(partPath(a.primaryPath, idx), int(idx))
}

// mapPartAt memory-maps name into slot idx, growing the part/file
// slices as needed.
func (a *Archive) mapPartAt(name string, idx int) (mmap.MMap, error) {
	for len(a.parts) <= idx {
		a.parts = append(a.parts, nil)
		a.files = append(a.files, nil)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.files[idx] = f
	a.parts[idx] = data
	return data, nil
}

// Entries returns every file-table entry in archive order.
func (a *Archive) Entries() []*Entry {
	return a.entries
}

// Find returns the entry for path, or nil.
func (a *Archive) Find(path string) *Entry {
	return a.byPath[path]
}

// Close unmaps and closes every mapped part.
func (a *Archive) Close() error {
	var firstErr error
	for i, m := range a.parts {
		if m == nil {
			continue
		}
		if err := m.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
		if a.files[i] != nil {
			if err := a.files[i].Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
