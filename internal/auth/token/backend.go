package token

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Backend persists one credential per account id.
//
// Load returns ErrRecordNotFound or a *RecordCorruptError when no usable
// record exists. List skips records it cannot decode.
type Backend interface {
	Load(accountID string) (Credential, error)
	Store(cred Credential) error
	List() ([]Credential, error)
	Delete(accountID string) (bool, error)
}

const recordExt = ".json"

// FileBackend keeps each credential in <dir>/<account_id>.json.
type FileBackend struct {
	dir string
}

// NewFileBackend creates dir if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create token directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

// Dir returns the directory holding the records.
func (b *FileBackend) Dir() string { return b.dir }

func (b *FileBackend) path(accountID string) (string, bool) {
	if accountID == "" || accountID == "." || accountID == ".." ||
		strings.ContainsAny(accountID, `/\`) || strings.ContainsRune(accountID, 0) {
		return "", false
	}
	return filepath.Join(b.dir, accountID+recordExt), true
}

func (b *FileBackend) Load(accountID string) (Credential, error) {
	p, ok := b.path(accountID)
	if !ok {
		return Credential{}, ErrRecordNotFound
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return Credential{}, ErrRecordNotFound
	}
	if err != nil {
		return Credential{}, &RecordCorruptError{AccountID: accountID, Err: err}
	}
	return decodeRecord(accountID, data)
}

// Store writes through a temp file and rename so readers never see a partial record.
func (b *FileBackend) Store(cred Credential) error {
	if err := cred.validate(); err != nil {
		return fmt.Errorf("refusing to store credential: %w", err)
	}
	p, ok := b.path(cred.AccountID)
	if !ok {
		return fmt.Errorf("invalid account id %q", cred.AccountID)
	}
	data, err := encodeRecord(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	tmp, err := os.CreateTemp(b.dir, "."+cred.AccountID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close record: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("replace record: %w", err)
	}
	return nil
}

func (b *FileBackend) List() ([]Credential, error) {
	entries, err := os.ReadDir(b.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token directory: %w", err)
	}

	creds := make([]Credential, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != recordExt {
			continue
		}
		cred, err := b.Load(strings.TrimSuffix(name, recordExt))
		if err != nil {
			log.Printf("⚠️ [Store] Skipping %s: %v", name, err)
			continue
		}
		creds = append(creds, cred)
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].AccountID < creds[j].AccountID })
	return creds, nil
}

func (b *FileBackend) Delete(accountID string) (bool, error) {
	p, ok := b.path(accountID)
	if !ok {
		return false, nil
	}
	err := os.Remove(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	return true, nil
}
