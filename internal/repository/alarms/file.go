package alarms

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	domain "github.com/oshokin/alarm-agent/internal/domain/alarm"
)

// fileDocument is the on-disk layout of a FileSource.
type fileDocument struct {
	Alarms []Record `yaml:"alarms"`
}

// FileSource keeps alarm records in a YAML file.
// A missing file is an empty source.
type FileSource struct {
	// path is the location of the YAML document.
	path string
	// mu serialises read-modify-write cycles.
	mu sync.Mutex
}

// NewFileSource creates a source backed by path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// FetchAlarms implements Source.
func (s *FileSource) FetchAlarms(ctx context.Context, ownerID string) ([]*domain.Alarm, error) {
	records, err := s.owned(ownerID)
	if err != nil {
		return nil, fmt.Errorf("fetch alarms: %w", err)
	}

	return toAlarms(ctx, records), nil
}

// GetAlarm implements Source.
func (s *FileSource) GetAlarm(ctx context.Context, id, ownerID string) (*domain.Alarm, error) {
	records, err := s.owned(ownerID)
	if err != nil {
		return nil, fmt.Errorf("get alarm %s: %w", id, err)
	}

	i := slices.IndexFunc(records, func(r Record) bool { return r.ID == id })
	if i < 0 {
		return nil, fmt.Errorf("get alarm %s: %w", id, ErrNotFound)
	}

	return records[i].ToAlarm(ctx), nil
}

// FetchPending implements Source.
func (s *FileSource) FetchPending(ctx context.Context, ownerID string) ([]*domain.Alarm, error) {
	records, err := s.owned(ownerID)
	if err != nil {
		return nil, fmt.Errorf("fetch pending alarms: %w", err)
	}

	records = slices.DeleteFunc(records, func(r Record) bool {
		return r.Status != string(domain.StatusPending)
	})

	slices.SortStableFunc(records, func(a, b Record) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return toAlarms(ctx, records), nil
}

// SetStatus implements Source.
func (s *FileSource) SetStatus(_ context.Context, id, ownerID string, status domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return fmt.Errorf("set status of alarm %s: %w", id, err)
	}

	i := slices.IndexFunc(doc.Alarms, func(r Record) bool {
		return r.ID == id && r.ChildID == ownerID
	})
	if i < 0 {
		return fmt.Errorf("set status of alarm %s: %w", id, ErrNotFound)
	}

	doc.Alarms[i].Status = string(status)

	if err = s.write(doc); err != nil {
		return fmt.Errorf("set status of alarm %s: %w", id, err)
	}

	return nil
}

// Put inserts or replaces records, keyed by id.
func (s *FileSource) Put(records ...Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}

	for _, record := range records {
		i := slices.IndexFunc(doc.Alarms, func(r Record) bool { return r.ID == record.ID })
		if i < 0 {
			doc.Alarms = append(doc.Alarms, record)
			continue
		}

		doc.Alarms[i] = record
	}

	slices.SortFunc(doc.Alarms, func(a, b Record) int { return cmp.Compare(a.ID, b.ID) })

	return s.write(doc)
}

func (s *FileSource) owned(ownerID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}

	return slices.DeleteFunc(doc.Alarms, func(r Record) bool { return r.ChildID != ownerID }), nil
}

func (s *FileSource) read() (*fileDocument, error) {
	doc := new(fileDocument)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	if err = yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}

	return doc, nil
}

func (s *FileSource) write(doc *fileDocument) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode alarms: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()

	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	if err = os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	return nil
}
