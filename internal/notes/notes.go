// Package notes handles uploads, the public listing, audited downloads and
// the owner's dashboard.
package notes

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"notedrop/internal/apperr"
	"notedrop/internal/blob"
	"notedrop/internal/logging"
	"notedrop/internal/store"
)

var (
	ErrNoFile       = apperr.New(apperr.ErrValidation, "No file uploaded")
	ErrNoteNotFound = apperr.New(apperr.ErrNotFound, "Note not found")
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Repository is the persistence the service needs.
type Repository interface {
	CreateNote(ctx context.Context, n *store.Note) error
	GetNote(ctx context.Context, id int64) (*store.Note, error)
	ListNotes(ctx context.Context) ([]store.Note, error)
	NoteSummaries(ctx context.Context) ([]store.NoteSummary, error)
	CreateDownload(ctx context.Context, d *store.Download) error
	DownloadsForNote(ctx context.Context, noteID int64) ([]store.Download, error)
}

type UploadInput struct {
	File          io.Reader
	OriginalName  string
	Subject       string
	UploaderLabel string
}

type DownloadInput struct {
	NoteID   int64
	Name     string
	Subject  string
	Phone    string
	Roll     string
	SourceIP string
}

// Transfer is a recorded download ready to stream. The caller closes Body.
type Transfer struct {
	Record *store.Download
	Note   *store.Note
	Body   io.ReadCloser
}

type Service struct {
	repo  Repository
	blobs blob.Store
	log   *slog.Logger
	now   func() time.Time
}

// NewService wires the service. now defaults to time.Now.
func NewService(repo Repository, blobs blob.Store, log *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, blobs: blobs, log: log.With("component", "notes"), now: now}
}

// SanitizeFilename replaces every character outside [A-Za-z0-9._-] with "_".
func SanitizeFilename(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

const maxKeyAttempts = 8

// blobKey is "<unix millis>-<name>", with a counter after the timestamp when
// the plain key is already taken.
func blobKey(now time.Time, attempt int, name string) string {
	prefix := strconv.FormatInt(now.UnixMilli(), 10)
	if attempt > 0 {
		prefix += "-" + strconv.Itoa(attempt)
	}
	return prefix + "-" + SanitizeFilename(name)
}

// UploadNote stores the payload, then the row. If the row cannot be written
// the payload is removed again.
func (s *Service) UploadNote(ctx context.Context, in UploadInput) (*store.Note, error) {
	if in.File == nil {
		return nil, ErrNoFile
	}
	body := bufio.NewReader(in.File)
	if _, err := body.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoFile
		}
		return nil, apperr.Storage(err)
	}

	now := s.now()
	log := logging.FromContext(ctx, s.log)

	var (
		key  string
		size int64
		err  error
	)
	for attempt := 0; ; attempt++ {
		key = blobKey(now, attempt, in.OriginalName)
		size, err = s.blobs.Put(ctx, key, body)
		if errors.Is(err, blob.ErrExists) && attempt+1 < maxKeyAttempts {
			continue
		}
		break
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}

	n := &store.Note{
		Filename:      key,
		OriginalName:  in.OriginalName,
		Subject:       in.Subject,
		UploaderLabel: in.UploaderLabel,
		CreatedAt:     now,
	}
	if err := s.repo.CreateNote(ctx, n); err != nil {
		if rmErr := s.blobs.Remove(context.WithoutCancel(ctx), key); rmErr != nil {
			log.Error("orphaned blob after failed insert", "key", key, "err", rmErr)
		}
		return nil, apperr.Storage(err)
	}

	log.Info("note uploaded", "note_id", n.ID, "key", key, "bytes", size, "uploader", n.UploaderLabel)
	return n, nil
}

// ListNotes returns every note, newest first.
func (s *Service) ListNotes(ctx context.Context) ([]store.Note, error) {
	notes, err := s.repo.ListNotes(ctx)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return notes, nil
}

func (s *Service) GetNote(ctx context.Context, id int64) (*store.Note, error) {
	n, err := s.repo.GetNote(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return n, nil
}

// RecordDownload writes the audit record and then opens the payload. A
// payload that cannot be opened leaves the record in place.
func (s *Service) RecordDownload(ctx context.Context, in DownloadInput) (*Transfer, error) {
	n, err := s.GetNote(ctx, in.NoteID)
	if err != nil {
		return nil, err
	}

	rec := &store.Download{
		NoteID:            n.ID,
		DownloaderName:    in.Name,
		DownloaderSubject: in.Subject,
		Phone:             in.Phone,
		Roll:              in.Roll,
		SourceIP:          in.SourceIP,
		CreatedAt:         s.now(),
	}
	if err := s.repo.CreateDownload(ctx, rec); err != nil {
		return nil, apperr.Storage(err)
	}

	log := logging.FromContext(ctx, s.log)
	log.Info("download recorded", "note_id", n.ID, "download_id", rec.ID, "ip", rec.SourceIP)

	body, err := s.blobs.Open(ctx, n.Filename)
	if err != nil {
		log.Error("recorded download has no payload", "note_id", n.ID, "key", n.Filename, "err", err)
		return nil, apperr.Storage(err)
	}
	return &Transfer{Record: rec, Note: n, Body: body}, nil
}

// DashboardSummary lists every note with its download count.
func (s *Service) DashboardSummary(ctx context.Context) ([]store.NoteSummary, error) {
	out, err := s.repo.NoteSummaries(ctx)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return out, nil
}

// DownloadsForNote returns the audit trail of a note, newest first. An
// unknown id yields an empty list.
func (s *Service) DownloadsForNote(ctx context.Context, noteID int64) ([]store.Download, error) {
	out, err := s.repo.DownloadsForNote(ctx, noteID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return out, nil
}
