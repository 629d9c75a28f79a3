// Package registry persists the mapping from project fingerprints to
// their containers and host ports as one JSON document on disk. A single
// goroutine owns the document, so concurrent deployments cannot interleave
// read-modify-write cycles or clobber the file.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Gleb-Shall/full-project/internal/deploy"
	"github.com/Gleb-Shall/full-project/internal/domain"
)

// ErrClosed is returned for operations on a closed store.
var ErrClosed = errors.New("registry: store closed")

var _ deploy.Registry = (*Store)(nil)

// Store serializes access to the registry document.
type Store struct {
	path   string
	logger *slog.Logger

	lookups  chan lookupReq
	saves    chan saveReq
	reserves chan reserveReq
	lists    chan listReq

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type lookupReq struct {
	fingerprint string
	reply       chan lookupReply
}

type lookupReply struct {
	rec domain.Record
	ok  bool
}

type saveReq struct {
	rec   domain.Record
	reply chan error
}

type reserveReq struct {
	fingerprint string
	preferred   int
	reply       chan int
}

type listReq struct {
	reply chan []domain.Record
}

// Open loads the document at path, or starts empty when the file is
// missing or unreadable, and starts the owning goroutine.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("registry: path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:     path,
		logger:   logger,
		lookups:  make(chan lookupReq),
		saves:    make(chan saveReq),
		reserves: make(chan reserveReq),
		lists:    make(chan listReq),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run(s.load())
	return s, nil
}

// Lookup returns the record for a fingerprint.
func (s *Store) Lookup(ctx context.Context, fingerprint string) (domain.Record, bool) {
	reply := make(chan lookupReply, 1)
	select {
	case s.lookups <- lookupReq{fingerprint: fingerprint, reply: reply}:
	case <-ctx.Done():
		return domain.Record{}, false
	case <-s.done:
		return domain.Record{}, false
	}
	select {
	case r := <-reply:
		return r.rec, r.ok
	case <-ctx.Done():
		return domain.Record{}, false
	}
}

// Save upserts a record and writes the document to disk before returning.
func (s *Store) Save(ctx context.Context, rec domain.Record) error {
	if strings.TrimSpace(rec.Fingerprint) == "" {
		return fmt.Errorf("registry: record fingerprint cannot be empty")
	}
	reply := make(chan error, 1)
	select {
	case s.saves <- saveReq{rec: rec, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReservePort picks the host port to request for a fingerprint: its
// recorded port when grantable, else a positive preferred port when
// grantable, else 0 meaning the runtime should assign one.
func (s *Store) ReservePort(ctx context.Context, fingerprint string, preferred int) (int, error) {
	reply := make(chan int, 1)
	select {
	case s.reserves <- reserveReq{fingerprint: fingerprint, preferred: preferred, reply: reply}:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.done:
		return 0, ErrClosed
	}
	select {
	case port := <-reply:
		return port, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// All returns every record, ordered by fingerprint.
func (s *Store) All(ctx context.Context) []domain.Record {
	reply := make(chan []domain.Record, 1)
	select {
	case s.lists <- listReq{reply: reply}:
	case <-ctx.Done():
		return nil
	case <-s.done:
		return nil
	}
	select {
	case recs := <-reply:
		return recs
	case <-ctx.Done():
		return nil
	}
}

// Close stops the owning goroutine. Operations after Close fail with
// ErrClosed.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
}

func (s *Store) run(records map[string]domain.Record) {
	defer close(s.done)
	for {
		select {
		case req := <-s.lookups:
			rec, ok := records[req.fingerprint]
			req.reply <- lookupReply{rec: rec, ok: ok}
		case req := <-s.saves:
			records[req.rec.Fingerprint] = req.rec
			req.reply <- s.persist(records)
		case req := <-s.reserves:
			req.reply <- arbitrate(records, req.fingerprint, req.preferred)
		case req := <-s.lists:
			out := make([]domain.Record, 0, len(records))
			for _, rec := range records {
				out = append(out, rec)
			}
			sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
			req.reply <- out
		case <-s.quit:
			return
		}
	}
}

func (s *Store) load() map[string]domain.Record {
	records := make(map[string]domain.Record)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("registry unreadable, starting empty", "path", s.path, "error", err)
		}
		return records
	}
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("registry corrupt, starting empty", "path", s.path, "error", err)
		return make(map[string]domain.Record)
	}
	// Documents written by earlier versions keyed records without
	// repeating the fingerprint inside the value.
	for fp, rec := range records {
		if rec.Fingerprint == "" {
			rec.Fingerprint = fp
			records[fp] = rec
		}
	}
	return records
}

func (s *Store) persist(records map[string]domain.Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("registry: create dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("registry: write %s: %w", s.path, err)
	}
	return nil
}

// arbitrate grants a port only when no other fingerprint claims it and
// nothing on the host is already listening on it.
func arbitrate(records map[string]domain.Record, fingerprint string, preferred int) int {
	if rec, ok := records[fingerprint]; ok && rec.ContainerPort > 0 && grantable(records, fingerprint, rec.ContainerPort) {
		return rec.ContainerPort
	}
	if preferred > 0 && grantable(records, fingerprint, preferred) {
		return preferred
	}
	return 0
}

func grantable(records map[string]domain.Record, fingerprint string, port int) bool {
	for other, rec := range records {
		if other != fingerprint && rec.ContainerPort == port {
			return false
		}
	}
	return portFree(port)
}
