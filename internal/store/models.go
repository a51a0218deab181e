package store

import "time"

// Note is an uploaded file plus its descriptive metadata. Immutable once stored.
type Note struct {
	ID            int64
	Filename      string // blob storage key
	OriginalName  string // display and download name
	Subject       string
	UploaderLabel string
	CreatedAt     time.Time
}

// NoteSummary is a Note annotated with how many times it was downloaded.
type NoteSummary struct {
	Note
	Downloads int64
}

// Download is one audit entry for a confirmed download. Append-only.
type Download struct {
	ID                int64
	NoteID            int64
	DownloaderName    string
	DownloaderSubject string
	Phone             string
	Roll              string
	SourceIP          string
	CreatedAt         time.Time
}

// Owner is the single privileged account.
type Owner struct {
	ID           int64
	Phone        string
	PasswordHash string
}

// OTP is a password-recovery challenge. Only the newest row for a phone counts.
type OTP struct {
	ID         int64
	Phone      string
	Code       string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// Expired reports whether the challenge lapsed before now. The boundary
// instant itself is still valid.
func (o *OTP) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
