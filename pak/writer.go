package pak

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"runtime"
	"sync"

	"github.com/CyberDeco/MacPak-sub002/compress"
)

// Source is one input file for Build: its archive-relative path and raw
// bytes.
type Source struct {
	Path string
	Data []byte
}

// WriteOptions configures Build.
type WriteOptions struct {
	// Method compresses every source with the same method; the zero
	// value is MethodNone.
	Method Method

	// MaxPartSize splits payload bytes across additional parts once the
	// running total within a part would exceed it. Zero means "one
	// part, no splitting".
	MaxPartSize uint64

	// Workers bounds the compression worker pool; defaults to
	// runtime.NumCPU().
	Workers int

	// ComputeCRC stores a CRC-32 of each file's uncompressed bytes in
	// its table entry.
	ComputeCRC bool

	// OnItem, if set, is called after each source finishes compressing.
	OnItem func(path string, index, total int)

	// Cancel aborts the build at the next file boundary when closed; no
	// parts are produced.
	Cancel <-chan struct{}
}

type compressedSource struct {
	path             string
	data             []byte
	uncompressedSize uint32
	crc              uint32
	method           Method
}

// Build compresses every source (in parallel, per WriteOptions.Workers)
// and packs them into one or more parts, returning each part's bytes in
// order. parts[0] is the primary part and carries the file table; the
// caller is responsible for writing parts[i] to "<stem>_<i>.pak" for
// i >= 1 per the sibling-part naming convention.
func Build(sources []Source, opts *WriteOptions) ([][]byte, error) {
	if opts == nil {
		opts = &WriteOptions{}
	}
	method := opts.Method
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	compressedBySrc := make([]*compressedSource, len(sources))
	jobs := make(chan int)
	var wg sync.WaitGroup
	var firstErr error
	var errMu sync.Mutex
	var done int

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			if cancelled(opts.Cancel) {
				errMu.Lock()
				if firstErr == nil {
					firstErr = ErrCancelled
				}
				errMu.Unlock()
				continue
			}
			src := sources[i]
			cs, err := compressSource(src, method, opts.ComputeCRC)
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("pak: compress %s: %w", src.Path, err)
				}
				errMu.Unlock()
				continue
			}
			compressedBySrc[i] = cs
			if opts.OnItem != nil {
				errMu.Lock()
				done++
				n := done
				errMu.Unlock()
				opts.OnItem(src.Path, n, len(sources))
			}
		}
	}

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go worker()
	}
	for i := range sources {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	return assembleParts(compressedBySrc, opts.MaxPartSize)
}

// Create collects every file under sourceDir, builds the archive in
// memory, and writes all parts to disk; the primary part lands at
// destPath and sibling parts follow the "<stem>_<N>" naming convention
// partPath implements. Nothing is written until the whole archive has
// been assembled, and if any part's write fails the parts written so
// far are removed, so a partial archive is never left in place.
func Create(sourceDir, destPath string, opts *WriteOptions) ([]string, error) {
	sources, err := CollectSources(sourceDir)
	if err != nil {
		return nil, err
	}
	parts, err := Build(sources, opts)
	if err != nil {
		return nil, err
	}

	written := make([]string, 0, len(parts))
	for i, part := range parts {
		name := destPath
		if i > 0 {
			name = partPath(destPath, uint8(i))
		}
		if err := os.WriteFile(name, part, 0o644); err != nil {
			os.Remove(name)
			for _, w := range written {
				os.Remove(w)
			}
			return nil, fmt.Errorf("pak: write %s: %w", name, err)
		}
		written = append(written, name)
	}
	return written, nil
}

func compressSource(src Source, method Method, computeCRC bool) (*compressedSource, error) {
	if len(src.Path) > PathFieldSize {
		return nil, fmt.Errorf("%w: %q", ErrPathTooLong, src.Path)
	}
	var compressed []byte
	var err error
	switch method {
	case MethodNone:
		compressed = src.Data
	case MethodLZ4:
		compressed, err = compress.Compress(compress.MethodLZ4Block, src.Data)
	case MethodZlib:
		compressed, err = compress.Compress(compress.MethodZlib, src.Data)
	default:
		return nil, fmt.Errorf("pak: unknown method %d", method)
	}
	if err != nil {
		return nil, err
	}
	cs := &compressedSource{
		path:             src.Path,
		data:             compressed,
		uncompressedSize: uint32(len(src.Data)),
		method:           method,
	}
	if computeCRC {
		cs.crc = crc32.ChecksumIEEE(src.Data)
	}
	return cs, nil
}

// assembleParts lays out compressed payloads sequentially into one or
// more parts, builds the file table, and returns every part's final
// bytes with the primary part's header/footer patched in.
func assembleParts(sources []*compressedSource, maxPartSize uint64) ([][]byte, error) {
	var parts []*bytes.Buffer
	var entries []*Entry
	var cur *bytes.Buffer
	var curIdx uint8

	newPart := func() {
		cur = &bytes.Buffer{}
		parts = append(parts, cur)
	}
	newPart()

	for _, cs := range sources {
		if maxPartSize > 0 && uint64(cur.Len())+uint64(len(cs.data)) > maxPartSize && cur.Len() > 0 {
			newPart()
			curIdx = uint8(len(parts) - 1)
		}
		entries = append(entries, &Entry{
			Path:             cs.path,
			Offset:           uint64(cur.Len()),
			CompressedSize:   uint32(len(cs.data)),
			UncompressedSize: cs.uncompressedSize,
			PartIndex:        curIdx,
			Method:           cs.method,
			CRC:              cs.crc,
		})
		cur.Write(cs.data)
	}

	// Entries in part 0 were offset against an empty payload buffer;
	// the primary part's final bytes are prefixed with a headerSize
	// magic/version/footer-offset block, so those entries need the
	// header width folded into their stored offsets. Sibling parts
	// (index >= 1) are written with no such prefix.
	for _, e := range entries {
		if e.PartIndex == 0 {
			e.Offset += uint64(headerSize)
		}
	}

	tableBuf := &bytes.Buffer{}
	for _, e := range entries {
		if err := encodeEntry(tableBuf, e); err != nil {
			return nil, err
		}
	}
	tableCompressed, err := compress.Compress(compress.MethodLZ4Block, tableBuf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("pak: compress file table: %w", err)
	}

	primaryPayload := parts[0].Bytes()
	footerOffset := uint64(headerSize) + uint64(len(primaryPayload))

	primary := &bytes.Buffer{}
	primary.WriteString(magic)
	binary.Write(primary, binary.LittleEndian, uint32(1))
	binary.Write(primary, binary.LittleEndian, footerOffset)
	primary.Write(primaryPayload)
	binary.Write(primary, binary.LittleEndian, uint32(len(entries)))
	binary.Write(primary, binary.LittleEndian, uint32(len(tableCompressed)))
	primary.Write(tableCompressed)

	out := make([][]byte, len(parts))
	out[0] = primary.Bytes()
	for i := 1; i < len(parts); i++ {
		out[i] = parts[i].Bytes()
	}
	return out, nil
}
