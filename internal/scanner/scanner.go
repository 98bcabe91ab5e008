// Package scanner walks the target tree, decides which files to analyze,
// and fans the work out over a bounded worker pool.
package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"go.uber.org/zap"

	"sqlscout/internal/model"
)

// FileKind tells the processor how to treat a discovered file.
type FileKind int

const (
	// KindSource is a Python file analyzed through the syntax tree.
	KindSource FileKind = iota
	// KindRawSQL is a file whose whole content is validated as SQL.
	KindRawSQL
)

// WalkedFile is one file selected for processing.
type WalkedFile struct {
	Path string
	Kind FileKind
}

// FileWalker is responsible for traversing directories and feeding files
// to a channel.
type FileWalker struct {
	SourcePatterns []string
	RawPatterns    []string
	Excludes       []string
	IncludeHidden  bool
	ignore         gitignore.Matcher
	log            *zap.Logger
}

// NewFileWalker builds a walker. When respectGitignore is set, patterns are
// collected from the .gitignore files under root; failure to read them only
// disables the feature.
func NewFileWalker(sourcePatterns, rawPatterns, excludes []string, includeHidden, respectGitignore bool, root string, log *zap.Logger) *FileWalker {
	fw := &FileWalker{
		SourcePatterns: sourcePatterns,
		RawPatterns:    rawPatterns,
		Excludes:       excludes,
		IncludeHidden:  includeHidden,
		log:            log,
	}
	if respectGitignore {
		ps, err := gitignore.ReadPatterns(osfs.New(root), nil)
		if err != nil {
			log.Warn("could not read .gitignore patterns", zap.Error(err))
		} else if len(ps) > 0 {
			fw.ignore = gitignore.NewMatcher(ps)
		}
	}
	return fw
}

// Walk starts the traversal and returns a channel of selected files.
// It runs in a separate goroutine and closes the channel when done.
func (fw *FileWalker) Walk(ctx context.Context, root string) (<-chan WalkedFile, <-chan error) {
	files := make(chan WalkedFile, 100)
	errs := make(chan error, 1)

	go func() {
		defer close(files)
		defer close(errs)

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable entries are skipped; the rest of the tree is
				// still scanned.
				fw.log.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}

			if d.IsDir() {
				if path != root {
					if !fw.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
						return filepath.SkipDir
					}
					if fw.excluded(rel, d.Name()) || fw.gitIgnored(rel, true) {
						return filepath.SkipDir
					}
				}
				return nil
			}

			if !fw.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
				return nil
			}
			if fw.excluded(rel, d.Name()) || fw.gitIgnored(rel, false) {
				return nil
			}

			kind, ok := fw.classify(d.Name())
			if !ok {
				return nil
			}
			select {
			case files <- WalkedFile{Path: path, Kind: kind}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})

		if err != nil {
			errs <- err
		}
	}()

	return files, errs
}

// classify matches the base name against the source patterns first, then
// the raw SQL patterns.
func (fw *FileWalker) classify(name string) (FileKind, bool) {
	if matchAny(fw.SourcePatterns, name) {
		return KindSource, true
	}
	if matchAny(fw.RawPatterns, name) {
		return KindRawSQL, true
	}
	return 0, false
}

// excluded checks exclusion patterns against the base name and, for
// path-ish patterns, against the relative path.
func (fw *FileWalker) excluded(rel, name string) bool {
	for _, exclude := range fw.Excludes {
		if matched, _ := filepath.Match(exclude, name); matched {
			return true
		}
		if strings.Contains(rel, exclude) {
			return true
		}
	}
	return false
}

func (fw *FileWalker) gitIgnored(rel string, isDir bool) bool {
	if fw.ignore == nil {
		return false
	}
	return fw.ignore.Match(strings.Split(filepath.ToSlash(rel), "/"), isDir)
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if matched, _ := filepath.Match(p, name); matched {
			return true
		}
	}
	return false
}

// ScanResult carries the outcome of processing one file.
type ScanResult struct {
	File        string
	Report      *model.FileReport
	Diagnostics []model.Diagnostic
	Error       error
}

// Processor processes one file. Implementations are not expected to be
// safe for concurrent use; the pool builds one per worker.
type Processor interface {
	Process(ctx context.Context, file WalkedFile) (*model.FileReport, []model.Diagnostic, error)
}

// WorkerPool manages concurrent processing. Each worker owns a Processor
// built by the factory, so processors can hold single-threaded state like
// parser instances.
type WorkerPool struct {
	Concurrency int
	NewProc     func() Processor
}

func NewWorkerPool(concurrency int, factory func() Processor) *WorkerPool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &WorkerPool{Concurrency: concurrency, NewProc: factory}
}

func (wp *WorkerPool) Start(ctx context.Context, files <-chan WalkedFile) <-chan ScanResult {
	results := make(chan ScanResult)
	var wg sync.WaitGroup

	for i := 0; i < wp.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			proc := wp.NewProc()
			for file := range files {
				select {
				case <-ctx.Done():
					return
				default:
				}
				report, diags, err := proc.Process(ctx, file)
				// Errors are sent too, so the caller can report files that
				// failed to parse.
				select {
				case results <- ScanResult{File: file.Path, Report: report, Diagnostics: diags, Error: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
