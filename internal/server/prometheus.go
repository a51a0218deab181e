package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

type promMetric struct {
	name, help, kind string
	value            string
}

// handleMetrics writes the counters in the Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := s.metrics.Snapshot()
	i := func(v int64) string { return fmt.Sprintf("%d", v) }
	f := func(v float64) string { return fmt.Sprintf("%g", v) }

	metrics := []promMetric{
		{"notedrop_requests_total", "Total number of HTTP requests", "counter", i(snap.RequestsTotal)},
		{"notedrop_request_errors_4xx_total", "HTTP requests answered with a 4xx status", "counter", i(snap.RequestErrors4xx)},
		{"notedrop_request_errors_5xx_total", "HTTP requests answered with a 5xx status", "counter", i(snap.RequestErrors5xx)},
		{"notedrop_uploads_total", "Notes uploaded", "counter", i(snap.UploadsTotal)},
		{"notedrop_upload_bytes_total", "Bytes uploaded", "counter", i(snap.UploadBytesTotal)},
		{"notedrop_upload_errors_total", "Rejected or failed uploads", "counter", i(snap.UploadErrorsTotal)},
		{"notedrop_upload_avg_duration_ms", "Mean upload handling time", "gauge", f(snap.UploadAvgDurationMs)},
		{"notedrop_downloads_total", "Notes downloaded", "counter", i(snap.DownloadsTotal)},
		{"notedrop_download_bytes_total", "Bytes sent to downloaders", "counter", i(snap.DownloadBytesTotal)},
		{"notedrop_download_errors_total", "Failed or interrupted downloads", "counter", i(snap.DownloadErrorsTotal)},
		{"notedrop_download_avg_duration_ms", "Mean download handling time", "gauge", f(snap.DownloadAvgDurationMs)},
		{"notedrop_login_attempts_total", "Owner login attempts", "counter", i(snap.LoginAttemptsTotal)},
		{"notedrop_login_success_total", "Successful owner logins", "counter", i(snap.LoginSuccessTotal)},
		{"notedrop_login_failures_total", "Failed owner logins", "counter", i(snap.LoginFailuresTotal)},
		{"notedrop_otp_issued_total", "Recovery codes issued", "counter", i(snap.OTPIssuedTotal)},
		{"notedrop_password_resets_total", "Owner password resets", "counter", i(snap.PasswordResetsTotal)},
		{"notedrop_uptime_seconds", "Seconds since the server started", "gauge", fmt.Sprintf("%.0f", time.Since(s.started).Seconds())},
	}

	var out strings.Builder
	fmt.Fprintf(&out, "# HELP notedrop_info Application version info\n# TYPE notedrop_info gauge\n")
	fmt.Fprintf(&out, "notedrop_info{version=\"%s\"} 1\n", prometheusLabel(s.cfg.Version))
	for _, m := range metrics {
		fmt.Fprintf(&out, "# HELP %s %s\n# TYPE %s %s\n%s %s\n", m.name, m.help, m.name, m.kind, m.name, m.value)
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out.String()))
}

func prometheusLabel(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `"`, `\"`)
	value = strings.ReplaceAll(value, "\n", `\n`)
	return value
}
