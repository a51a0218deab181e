package server

import (
	"sync"
	"time"
)

// Metrics holds in-process counters exposed at /metrics.
type Metrics struct {
	mu sync.RWMutex

	uploadsTotal        int64
	uploadBytesTotal    int64
	uploadErrorsTotal   int64
	uploadDurationTotal time.Duration

	downloadsTotal        int64
	downloadBytesTotal    int64
	downloadErrorsTotal   int64
	downloadDurationTotal time.Duration

	loginAttemptsTotal int64
	loginSuccessTotal  int64
	loginFailuresTotal int64

	otpIssuedTotal      int64
	passwordResetsTotal int64

	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64
}

func (m *Metrics) RecordUpload(bytes int64, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
	m.uploadDurationTotal += d
}

func (m *Metrics) RecordUploadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrorsTotal++
}

func (m *Metrics) RecordDownload(bytes int64, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadsTotal++
	m.downloadBytesTotal += bytes
	m.downloadDurationTotal += d
}

func (m *Metrics) RecordDownloadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadErrorsTotal++
}

func (m *Metrics) RecordLoginAttempt(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginAttemptsTotal++
	if success {
		m.loginSuccessTotal++
	} else {
		m.loginFailuresTotal++
	}
}

func (m *Metrics) RecordOTPIssued() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otpIssuedTotal++
}

func (m *Metrics) RecordPasswordReset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passwordResetsTotal++
}

func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++
	switch {
	case statusCode >= 500:
		m.requestErrors5xx++
	case statusCode >= 400:
		m.requestErrors4xx++
	}
}

// Snapshot returns a point-in-time copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		UploadsTotal:          m.uploadsTotal,
		UploadBytesTotal:      m.uploadBytesTotal,
		UploadErrorsTotal:     m.uploadErrorsTotal,
		UploadAvgDurationMs:   avgDuration(m.uploadDurationTotal, m.uploadsTotal),
		DownloadsTotal:        m.downloadsTotal,
		DownloadBytesTotal:    m.downloadBytesTotal,
		DownloadErrorsTotal:   m.downloadErrorsTotal,
		DownloadAvgDurationMs: avgDuration(m.downloadDurationTotal, m.downloadsTotal),
		LoginAttemptsTotal:    m.loginAttemptsTotal,
		LoginSuccessTotal:     m.loginSuccessTotal,
		LoginFailuresTotal:    m.loginFailuresTotal,
		OTPIssuedTotal:        m.otpIssuedTotal,
		PasswordResetsTotal:   m.passwordResetsTotal,
		RequestsTotal:         m.requestsTotal,
		RequestErrors5xx:      m.requestErrors5xx,
		RequestErrors4xx:      m.requestErrors4xx,
	}
}

type MetricsSnapshot struct {
	UploadsTotal        int64
	UploadBytesTotal    int64
	UploadErrorsTotal   int64
	UploadAvgDurationMs float64

	DownloadsTotal        int64
	DownloadBytesTotal    int64
	DownloadErrorsTotal   int64
	DownloadAvgDurationMs float64

	LoginAttemptsTotal int64
	LoginSuccessTotal  int64
	LoginFailuresTotal int64

	OTPIssuedTotal      int64
	PasswordResetsTotal int64

	RequestsTotal    int64
	RequestErrors5xx int64
	RequestErrors4xx int64
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
