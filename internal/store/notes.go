package store

import (
	"context"
	"database/sql"
	"errors"
)

// CreateNote inserts a note row and fills in its id.
func (s *SQLStore) CreateNote(ctx context.Context, n *Note) error {
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO notes (filename, original_name, subject, uploader, created_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`),
		n.Filename, n.OriginalName, n.Subject, n.UploaderLabel, toMillis(n.CreatedAt),
	).Scan(&n.ID)
	if err != nil {
		return dbErr(err)
	}
	n.CreatedAt = fromMillis(toMillis(n.CreatedAt))
	return nil
}

// GetNote returns one note or ErrNotFound.
func (s *SQLStore) GetNote(ctx context.Context, id int64) (*Note, error) {
	var (
		n         Note
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, filename, original_name, subject, uploader, created_at
		 FROM notes WHERE id = ?`), id,
	).Scan(&n.ID, &n.Filename, &n.OriginalName, &n.Subject, &n.UploaderLabel, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbErr(err)
	}
	n.CreatedAt = fromMillis(createdAt)
	return &n, nil
}

// ListNotes returns every note, newest first.
func (s *SQLStore) ListNotes(ctx context.Context) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, original_name, subject, uploader, created_at
		 FROM notes ORDER BY id DESC`)
	if err != nil {
		return nil, dbErr(err)
	}
	defer func() { _ = rows.Close() }()

	notes := []Note{}
	for rows.Next() {
		var (
			n         Note
			createdAt int64
		)
		if err := rows.Scan(&n.ID, &n.Filename, &n.OriginalName, &n.Subject, &n.UploaderLabel, &createdAt); err != nil {
			return nil, dbErr(err)
		}
		n.CreatedAt = fromMillis(createdAt)
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return notes, nil
}

// NoteSummaries returns every note, newest first, with its download count.
func (s *SQLStore) NoteSummaries(ctx context.Context) ([]NoteSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT n.id, n.filename, n.original_name, n.subject, n.uploader, n.created_at,
		        (SELECT COUNT(*) FROM downloads d WHERE d.note_id = n.id) AS downloads
		 FROM notes n ORDER BY n.id DESC`)
	if err != nil {
		return nil, dbErr(err)
	}
	defer func() { _ = rows.Close() }()

	out := []NoteSummary{}
	for rows.Next() {
		var (
			ns        NoteSummary
			createdAt int64
		)
		if err := rows.Scan(&ns.ID, &ns.Filename, &ns.OriginalName, &ns.Subject, &ns.UploaderLabel,
			&createdAt, &ns.Downloads); err != nil {
			return nil, dbErr(err)
		}
		ns.CreatedAt = fromMillis(createdAt)
		out = append(out, ns)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return out, nil
}

// CreateDownload appends an audit record and fills in its id.
func (s *SQLStore) CreateDownload(ctx context.Context, d *Download) error {
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO downloads (note_id, downloader_name, downloader_subject, phone, roll, ip, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		d.NoteID, d.DownloaderName, d.DownloaderSubject, d.Phone, d.Roll, d.SourceIP, toMillis(d.CreatedAt),
	).Scan(&d.ID)
	if err != nil {
		return dbErr(err)
	}
	d.CreatedAt = fromMillis(toMillis(d.CreatedAt))
	return nil
}

// DownloadsForNote returns the audit trail of a note, newest first.
func (s *SQLStore) DownloadsForNote(ctx context.Context, noteID int64) ([]Download, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, note_id, downloader_name, downloader_subject, phone, roll, ip, created_at
		 FROM downloads WHERE note_id = ? ORDER BY id DESC`), noteID)
	if err != nil {
		return nil, dbErr(err)
	}
	defer func() { _ = rows.Close() }()

	out := []Download{}
	for rows.Next() {
		var (
			d         Download
			createdAt int64
		)
		if err := rows.Scan(&d.ID, &d.NoteID, &d.DownloaderName, &d.DownloaderSubject,
			&d.Phone, &d.Roll, &d.SourceIP, &createdAt); err != nil {
			return nil, dbErr(err)
		}
		d.CreatedAt = fromMillis(createdAt)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return out, nil
}
