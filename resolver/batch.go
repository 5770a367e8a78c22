package resolver

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/CyberDeco/MacPak-sub002/hc"
)

// ErrCancelled is returned by IngestFiles when its cancellation token
// fires between file boundaries.
var ErrCancelled = errors.New("resolver: ingest cancelled")

// IngestOptions configures IngestFiles.
type IngestOptions struct {
	// Workers bounds the parse worker pool; defaults to
	// runtime.NumCPU().
	Workers int

	// Cancel stops the ingest at the next file boundary when closed.
	Cancel <-chan struct{}
}

// FileError records one document that failed to load or parse.
type FileError struct {
	Path string
	Err  error
}

// IngestReport accumulates per-file failures; a bad document is
// skipped rather than failing the whole batch.
type IngestReport struct {
	Parsed int
	Failed []FileError
}

// FindMergedDocuments walks root and returns every merged asset
// document (a file whose basename stem ends in "_merged"), in walk
// order.
func FindMergedDocuments(root string) ([]string, error) {
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		name := info.Name()
		ext := filepath.Ext(name)
		if ext == "" {
			return nil
		}
		stem := strings.ToLower(strings.TrimSuffix(name, ext))
		if strings.HasSuffix(stem, "_merged") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// parseDocument loads one hierarchical-container document, picking the
// parser by file extension; anything that isn't XML or JSON is treated
// as the binary form.
func parseDocument(path string) (*hc.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".lsx":
		return hc.ParseXML(data)
	case ".json", ".lsj":
		return hc.ParseJSON(data)
	default:
		return hc.ParseBinary(data)
	}
}

// IngestFiles parses every document on a worker pool, then ingests the
// results sequentially in input order into a fresh database, so the
// merged maps come out the same regardless of which parse finished
// first. Unparsable documents land in the report; the rest of the
// batch proceeds.
func IngestFiles(paths []string, opts *IngestOptions) (*Database, *IngestReport, error) {
	if opts == nil {
		opts = &IngestOptions{}
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	type result struct {
		doc *hc.Document
		err error
	}
	results := make([]result, len(paths))
	jobs := make(chan int)
	var wg sync.WaitGroup

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				if cancelled(opts.Cancel) {
					results[i] = result{err: ErrCancelled}
					continue
				}
				doc, err := parseDocument(paths[i])
				results[i] = result{doc: doc, err: err}
			}
		}()
	}
	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if cancelled(opts.Cancel) {
		return nil, nil, ErrCancelled
	}

	sourcePath := ""
	if len(paths) > 0 {
		sourcePath = paths[0]
	}
	db := NewDatabase(sourcePath)
	report := &IngestReport{}
	for i, r := range results {
		if r.err != nil {
			report.Failed = append(report.Failed, FileError{Path: paths[i], Err: r.err})
			continue
		}
		Ingest(r.doc, db)
		report.Parsed++
	}
	return db, report, nil
}

func cancelled(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
