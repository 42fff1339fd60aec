package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Op names a FileSystem operation that a Fault can target.
type Op uint8

const (
	OpOpen Op = 1 << iota
	OpRead
	OpWrite
	OpSync
	OpRename
	OpRemove
	OpMkdir
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault error")

// Fault defines specific failure behavior.
type Fault struct {
	Ops Op    // Operations that fail.
	Err error // Defaults to ErrInjected.
}

// FaultyFS is a FileSystem wrapper that can inject errors.
type FaultyFS struct {
	FS    FileSystem
	mu    sync.Mutex
	rules map[string]Fault // Path substring -> Fault

	calls atomic.Int64
}

// NewFaultyFS creates a new FaultyFS wrapping the provided FS (or Default if nil).
func NewFaultyFS(fs FileSystem) *FaultyFS {
	if fs == nil {
		fs = Default
	}
	return &FaultyFS{
		FS:    fs,
		rules: make(map[string]Fault),
	}
}

// AddRule adds a fault injection rule for paths containing pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

// ClearRules removes all rules.
func (f *FaultyFS) ClearRules() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = make(map[string]Fault)
}

// Calls returns the number of FileSystem calls observed so far.
func (f *FaultyFS) Calls() int64 {
	return f.calls.Load()
}

func (f *FaultyFS) fault(name string, op Op) error {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()

	for pattern, rule := range f.rules {
		if rule.Ops&op != 0 && strings.Contains(name, pattern) {
			if rule.Err != nil {
				return rule.Err
			}
			return ErrInjected
		}
	}
	return nil
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	if err := f.fault(name, OpOpen); err != nil {
		return nil, err
	}
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fs: f}, nil
}

func (f *FaultyFS) ReadFile(name string) ([]byte, error) {
	if err := f.fault(name, OpRead); err != nil {
		return nil, err
	}
	return f.FS.ReadFile(name)
}

func (f *FaultyFS) Remove(name string) error {
	if err := f.fault(name, OpRemove); err != nil {
		return err
	}
	return f.FS.Remove(name)
}

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	if err := f.fault(newpath, OpRename); err != nil {
		return err
	}
	return f.FS.Rename(oldpath, newpath)
}

func (f *FaultyFS) Stat(name string) (os.FileInfo, error) {
	f.calls.Add(1)
	return f.FS.Stat(name)
}

func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	if err := f.fault(path, OpMkdir); err != nil {
		return err
	}
	return f.FS.MkdirAll(path, perm)
}

func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error) {
	f.calls.Add(1)
	return f.FS.ReadDir(name)
}

type faultyFile struct {
	File
	fs *FaultyFS
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if err := ff.fs.fault(ff.Name(), OpWrite); err != nil {
		return 0, err
	}
	return ff.File.Write(p)
}

func (ff *faultyFile) Sync() error {
	if err := ff.fs.fault(ff.Name(), OpSync); err != nil {
		return err
	}
	return ff.File.Sync()
}
