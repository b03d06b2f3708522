package services

import (
	"sync"
	"time"

	"stockdash/internal/dataprocessing"
	"stockdash/internal/files"
	"stockdash/pkg/contracts/domain"
)

// Upload is one file received through the upload channel.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Session is the state of one dashboard user. Nothing in it is shared with
// other sessions: the filesystem snapshot is a private copy and the dataset
// is rebuilt from the session's own sources.
//
// A Dataset is never mutated after it is built; rebuilds swap the pointer.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.RWMutex
	snapshot   files.Snapshot
	uploads    []Upload
	dataset    *domain.Dataset
	selection  domain.Selection
	warnings   []*dataprocessing.SourceParseError
	lastAccess time.Time
}

// SessionSummary is the externally visible state of a session.
type SessionSummary struct {
	ID          string                             `json:"id"`
	CreatedAt   time.Time                          `json:"created_at"`
	LastAccess  time.Time                          `json:"last_access"`
	Rows        int                                `json:"rows"`
	RawRows     int                                `json:"raw_rows"`
	DroppedRows int                                `json:"dropped_rows"`
	Columns     []string                           `json:"columns"`
	Companies   []string                           `json:"companies"`
	Sources     []domain.SourceSummary             `json:"sources"`
	DataFiles   []files.FileInfo                   `json:"data_files"`
	Uploads     int                                `json:"uploads"`
	Selection   domain.Selection                   `json:"selection"`
	Warnings    []*dataprocessing.SourceParseError `json:"warnings"`
}

func newSession(id string, now time.Time, snapshot files.Snapshot) *Session {
	return &Session{
		ID:         id,
		CreatedAt:  now,
		snapshot:   snapshot,
		lastAccess: now,
	}
}

// sources lists the filesystem channel followed by the uploads in arrival
// order. Caller holds mu.
func (s *Session) sources() []domain.Source {
	sources := s.snapshot.Sources()
	for _, u := range s.uploads {
		sources = append(sources, domain.BytesSource(u.Name, domain.ChannelUpload, u.Data))
	}
	return sources
}

// Dataset returns the current dataset.
func (s *Session) Dataset() *domain.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset
}

// Selection returns the last resolved selection.
func (s *Session) Selection() domain.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccess
}

// Summary snapshots the session for presentation.
func (s *Session) Summary() *SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &SessionSummary{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		LastAccess: s.lastAccess,
		Companies:  dataprocessing.Companies(s.dataset),
		Uploads:    len(s.uploads),
		Selection:  s.selection,
		Warnings:   s.warnings,
		DataFiles:  s.snapshot.Infos(),
	}
	if s.dataset != nil {
		summary.Rows = s.dataset.Len()
		summary.RawRows = s.dataset.RawRows
		summary.DroppedRows = s.dataset.DroppedRows
		summary.Columns = s.dataset.Columns
		summary.Sources = s.dataset.Sources
	}
	if summary.Companies == nil {
		summary.Companies = []string{}
	}
	if summary.Warnings == nil {
		summary.Warnings = []*dataprocessing.SourceParseError{}
	}
	return summary
}
