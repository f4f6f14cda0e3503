package repository

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/club-payments/internal/model"
)

// BackendFile names the flat-file backend in errors and logs.
const BackendFile = "file"

// PaymentFileRepo keeps one payment per line in a plain text file: the
// total price as a decimal with two places, newline terminated, no header.
// A record's id is its 0-based line number, so deleting a line shifts the id
// of every later record.  Only the total is stored; payments read back are
// summaries without line items.
type PaymentFileRepo struct {
	path string
	mu   sync.Mutex
}

// NewPaymentFileRepo returns a repo backed by the file at path.  The file is
// created on the first Save; a missing file reads as an empty store.
func NewPaymentFileRepo(path string) *PaymentFileRepo { return &PaymentFileRepo{path: path} }

// Path returns the backing file.
func (r *PaymentFileRepo) Path() string { return r.path }

// Save appends the payment's total as a new line.
func (r *PaymentFileRepo) Save(ctx context.Context, p *model.Payment) error {
	if err := ctx.Err(); err != nil {
		return storageErr(BackendFile, "save", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return storageErr(BackendFile, "save", err)
	}
	if _, err := f.WriteString(p.TotalPrice().StringFixed(2) + "\n"); err != nil {
		_ = f.Close()
		return storageErr(BackendFile, "save", err)
	}
	if err := f.Close(); err != nil {
		return storageErr(BackendFile, "save", err)
	}
	return nil
}

// FindByID scans from the top counting lines until it reaches id.
func (r *PaymentFileRepo) FindByID(ctx context.Context, id int64) (*model.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr(BackendFile, "find", err)
	}
	if id < 0 {
		return nil, ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr(BackendFile, "find", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	var index int64
	for sc.Scan() {
		if index == id {
			total, err := parseTotal(sc.Text(), index)
			if err != nil {
				return nil, storageErr(BackendFile, "find", err)
			}
			return model.NewSummary(id, total), nil
		}
		index++
	}
	if err := sc.Err(); err != nil {
		return nil, storageErr(BackendFile, "find", err)
	}
	return nil, ErrNotFound
}

// FindAll reads every line.
func (r *PaymentFileRepo) FindAll(ctx context.Context) ([]*model.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr(BackendFile, "find_all", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	lines, err := r.readLines()
	if err != nil {
		return nil, storageErr(BackendFile, "find_all", err)
	}
	out := make([]*model.Payment, 0, len(lines))
	for i, line := range lines {
		total, err := parseTotal(line, int64(i))
		if err != nil {
			return nil, storageErr(BackendFile, "find_all", err)
		}
		out = append(out, model.NewSummary(int64(i), total))
	}
	return out, nil
}

// Update is not available: the file keeps no line items to replace.
func (r *PaymentFileRepo) Update(context.Context, *model.Payment) error {
	return fmt.Errorf("%s: update: %w", BackendFile, ErrUnsupported)
}

// Delete loads every line, drops the one at id and rewrites the file.  An
// id past the end is a no-op.
func (r *PaymentFileRepo) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return storageErr(BackendFile, "delete", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	lines, err := r.readLines()
	if err != nil {
		return storageErr(BackendFile, "delete", err)
	}
	if id < 0 || id >= int64(len(lines)) {
		return nil
	}
	lines = append(lines[:id], lines[id+1:]...)
	if err := r.rewrite(lines); err != nil {
		return storageErr(BackendFile, "delete", err)
	}
	return nil
}

func (r *PaymentFileRepo) readLines() ([]string, error) {
	f, err := os.Open(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// rewrite writes lines to a temp file next to the target and renames it
// into place, so readers never observe a half-written file.
func (r *PaymentFileRepo) rewrite(lines []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	w := bufio.NewWriter(tmp)
	for _, l := range lines {
		if _, err := w.WriteString(l + "\n"); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), r.path)
}

func parseTotal(line string, index int64) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(line))
	if err != nil {
		return decimal.Zero, fmt.Errorf("line %d: %w", index, err)
	}
	return d, nil
}
