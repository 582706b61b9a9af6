// Package depdb implements the append-only, line-oriented incremental-build
// metadata file described in spec §4.F: a sequence of lines compared
// prefix-wise against what a rule recomputes on each build, where the first
// mismatch invalidates everything after it.
package depdb

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/forgebuild/forge/src/core"
)

// Mode is the depdb's current disposition, spec §4.F's "reading / writing /
// reopen" trio collapsed to two states (reopen is just Open on an already-
// closed file, landing back in reading mode until the first mismatch).
type Mode int

const (
	ModeReading Mode = iota
	ModeWriting
)

// A Depdb is one open `<target-path>.d` file (spec §4.F/§6). Reading mode
// loads the stored line sequence into memory up front (these files are a
// handful of lines per target, never worth streaming); writing mode holds
// an open file handle that Write/Close append to and flush.
type Depdb struct {
	path string

	mu       sync.Mutex
	mode     Mode
	lines    []string // remaining stored lines, reading mode only
	consumed []string // stored lines confirmed matching so far
	file     *os.File
	writer   *bufio.Writer
	dirty    bool
	start    time.Time
}

// Open opens path for reading if it exists, otherwise begins writing a
// fresh file. The Depdb records the time Open was called; neither Close
// nor CheckMtime consults it, and Close does not check mtimes.
func Open(path string) (*Depdb, error) {
	d := &Depdb{path: path, start: time.Now()}
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, core.NewSystemError("open", path, err)
		}
		if err := d.beginWriting(); err != nil {
			return nil, err
		}
		return d, nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break // blank line terminates the chain, spec §3 "Depdb record"
		}
		d.lines = append(d.lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, core.NewSystemError("read", path, err)
	}
	d.mode = ModeReading
	return d, nil
}

// Reopen opens a previously closed depdb in reading mode so byproduct
// dyndep (spec §4.H) can append discovered dependencies after the recipe
// body has already run. It behaves exactly like Open on an existing file;
// the name documents the spec's distinct "reopen" mode at the call site.
func Reopen(path string) (*Depdb, error) { return Open(path) }

func (d *Depdb) beginWriting() error {
	f, err := os.Create(d.path)
	if err != nil {
		return core.NewSystemError("create", d.path, err)
	}
	d.file = f
	d.writer = bufio.NewWriter(f)
	d.mode = ModeWriting
	d.dirty = true
	return nil
}

// switchToWriting truncates the file (by recreating it) and rewrites the
// consumed prefix, then leaves the depdb ready for further writes. Callers
// must hold d.mu.
func (d *Depdb) switchToWriting() error {
	if err := d.beginWriting(); err != nil {
		return err
	}
	for _, l := range d.consumed {
		if _, err := fmt.Fprintln(d.writer, l); err != nil {
			return core.NewSystemError("write", d.path, err)
		}
	}
	return nil
}

func (d *Depdb) writeLocked(line string) error {
	if _, err := fmt.Fprintln(d.writer, line); err != nil {
		return core.NewSystemError("write", d.path, err)
	}
	d.dirty = true
	return nil
}

// Mode returns the depdb's current mode.
func (d *Depdb) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Dirty reports whether anything has been written this session (spec
// §4.F: "Any write makes the db dirty").
func (d *Depdb) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

// Expect is the central primitive of spec §4.F: in reading mode, compares
// line against the next stored line. If they match, it is consumed and nil
// is returned. Otherwise (or at EOF, or already in writing mode) the file
// is truncated to its already-confirmed prefix, switched to writing mode,
// and line is appended; the previously-stored line that didn't match is
// returned for diagnostics (nil at EOF or once already writing, since
// there is no mismatched line to report).
func (d *Depdb) Expect(line string) (*string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mode == ModeWriting {
		return nil, d.writeLocked(line)
	}
	if len(d.lines) == 0 {
		if err := d.switchToWriting(); err != nil {
			return nil, err
		}
		return nil, d.writeLocked(line)
	}
	got := d.lines[0]
	d.lines = d.lines[1:]
	if got == line {
		d.consumed = append(d.consumed, got)
		return nil, nil
	}
	if err := d.switchToWriting(); err != nil {
		return nil, err
	}
	if err := d.writeLocked(line); err != nil {
		return nil, err
	}
	return &got, nil
}

// Write appends line unconditionally, switching out of reading mode first
// if necessary (spec §4.F "writing -- write(line) appends").
func (d *Depdb) Write(line string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == ModeReading {
		if err := d.switchToWriting(); err != nil {
			return err
		}
	}
	return d.writeLocked(line)
}

// NextStored consumes and returns the next stored line without comparing
// it to anything, for callers (Chain.RuleVersion) implementing a
// richer-than-literal-equality comparison on top of Expect's primitive.
func (d *Depdb) NextStored() (line string, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode != ModeReading || len(d.lines) == 0 {
		return "", false
	}
	line = d.lines[0]
	d.lines = d.lines[1:]
	return line, true
}

// Accept records a line fetched via NextStored as confirmed-matching, so a
// later mismatch rewrites it verbatim as part of the preserved prefix.
func (d *Depdb) Accept(line string) {
	d.mu.Lock()
	d.consumed = append(d.consumed, line)
	d.mu.Unlock()
}

// ForceWrite truncates any stored remainder exactly as a mismatched Expect
// would, then writes line. Used by callers with their own notion of
// "matches" broader than string equality.
func (d *Depdb) ForceWrite(line string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == ModeReading {
		if err := d.switchToWriting(); err != nil {
			return err
		}
	}
	return d.writeLocked(line)
}

// Close finalizes the depdb. If nothing was written, this is a no-op (the
// file was only ever read). Otherwise it appends the terminating blank
// line, flushes, and closes the handle.
func (d *Depdb) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode != ModeWriting {
		return nil
	}
	if _, err := fmt.Fprintln(d.writer); err != nil {
		return core.NewSystemError("write", d.path, err)
	}
	if err := d.writer.Flush(); err != nil {
		return core.NewSystemError("flush", d.path, err)
	}
	if err := d.file.Close(); err != nil {
		return core.NewSystemError("close", d.path, err)
	}
	return nil
}

// CheckMtime verifies that depdbPath's modification time is no later than
// targetPath's (spec §4.F: "check_mtime(start, depdb_path, target_path,
// end) verifies depdb_mtime ≤ target_mtime"), and additionally refuses to
// trust the comparison when both timestamps round to the same
// whole-second slot: a filesystem with second-granularity mtimes can make
// two writes a few hundred milliseconds apart look simultaneous, which
// this treats as "can't confirm clean" rather than silently believing it.
func CheckMtime(depdbPath, targetPath string) (bool, error) {
	di, err := os.Stat(depdbPath)
	if err != nil {
		return false, core.NewSystemError("stat", depdbPath, err)
	}
	ti, err := os.Stat(targetPath)
	if err != nil {
		return false, core.NewSystemError("stat", targetPath, err)
	}
	dm, tm := di.ModTime(), ti.ModTime()
	if dm.Truncate(time.Second).Equal(tm.Truncate(time.Second)) {
		return false, nil
	}
	return !dm.After(tm), nil
}
