package certbot

import (
	"strings"
	"time"

	"github.com/certops/certbot-ui/pkg/models"
)

// expiringSoonWindow is how close to expiry a certificate is flagged.
const expiringSoonWindow = 30 * 24 * time.Hour

// parseCertificates extracts certificate entries from the human-readable
// output of `certbot certificates`. Lines look like:
//
//	Certificate Name: example.com
//	  Serial Number: 4f3a...
//	  Domains: example.com www.example.com
//	  Expiry Date: 2025-09-01 12:00:00+00:00 (VALID: 89 days)
//	  Certificate Path: /etc/letsencrypt/live/example.com/fullchain.pem
func parseCertificates(output string, now time.Time) []models.Certificate {
	certs := make([]models.Certificate, 0)
	var current *models.Certificate

	flush := func() {
		if current != nil && current.Name != "" {
			certs = append(certs, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.Contains(line, "Certificate Name:"):
			flush()
			current = &models.Certificate{
				Name:    valueAfter(line, "Certificate Name:"),
				Domains: []string{},
				Status:  models.CertStatusValid,
			}
		case current == nil:
			// Preamble before the first entry.
		case strings.Contains(line, "Domains:"):
			current.Domains = strings.Fields(valueAfter(line, "Domains:"))
		case strings.Contains(line, "Expiry Date:"):
			raw := valueAfter(line, "Expiry Date:")
			if idx := strings.Index(raw, "("); idx >= 0 {
				raw = strings.TrimSpace(raw[:idx])
			}
			if expiry, ok := parseExpiry(raw); ok {
				current.Expiry = expiry
				current.Status = certStatus(expiry, now)
			}
		case strings.Contains(line, "Serial Number:"):
			current.SerialNumber = valueAfter(line, "Serial Number:")
		case strings.Contains(line, "Certificate Path:"):
			current.Path = valueAfter(line, "Certificate Path:")
		}
	}
	flush()

	return certs
}

// valueAfter returns the trimmed text following the first occurrence of marker.
func valueAfter(line, marker string) string {
	idx := strings.Index(line, marker)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(line[idx+len(marker):])
}

// parseExpiry accepts the timestamp formats certbot has emitted over time.
func parseExpiry(raw string) (time.Time, bool) {
	for _, layout := range []string{
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05",
		time.RFC3339,
	} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func certStatus(expiry, now time.Time) models.CertificateStatus {
	switch {
	case expiry.Before(now):
		return models.CertStatusExpired
	case expiry.Sub(now) < expiringSoonWindow:
		return models.CertStatusExpiringSoon
	default:
		return models.CertStatusValid
	}
}
