package certbot

import (
	"testing"
	"time"

	"github.com/certops/certbot-ui/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCertbotOutput = `Saving debug log to /var/log/letsencrypt/letsencrypt.log

- - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - -
Found the following certs:
  Certificate Name: example.com
    Serial Number: 4f3a9bc1d2e5
    Key Type: ECDSA
    Domains: example.com www.example.com
    Expiry Date: 2026-11-20 10:30:00+00:00 (VALID: 84 days)
    Certificate Path: /etc/letsencrypt/live/example.com/fullchain.pem
    Private Key Path: /etc/letsencrypt/live/example.com/privkey.pem
  Certificate Name: soon.example.org
    Serial Number: 77aa88bb99cc
    Domains: soon.example.org
    Expiry Date: 2026-09-10 00:00:00+00:00 (VALID: 12 days)
    Certificate Path: /etc/letsencrypt/live/soon.example.org/fullchain.pem
  Certificate Name: old.example.net
    Serial Number: 0011223344
    Domains: old.example.net alias.example.net more.example.net
    Expiry Date: 2026-07-01 00:00:00+00:00 (INVALID: EXPIRED)
    Certificate Path: /etc/letsencrypt/live/old.example.net/fullchain.pem
- - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - -
`

func TestParseCertificates(t *testing.T) {
	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	certs := parseCertificates(sampleCertbotOutput, now)
	require.Len(t, certs, 3)

	first := certs[0]
	assert.Equal(t, "example.com", first.Name)
	assert.Equal(t, []string{"example.com", "www.example.com"}, first.Domains)
	assert.Equal(t, "4f3a9bc1d2e5", first.SerialNumber)
	assert.Equal(t, "/etc/letsencrypt/live/example.com/fullchain.pem", first.Path)
	assert.Equal(t, models.CertStatusValid, first.Status)
	assert.Equal(t, time.Date(2026, 11, 20, 10, 30, 0, 0, time.UTC), first.Expiry.UTC())

	assert.Equal(t, "soon.example.org", certs[1].Name)
	assert.Equal(t, models.CertStatusExpiringSoon, certs[1].Status)

	assert.Equal(t, "old.example.net", certs[2].Name)
	assert.Len(t, certs[2].Domains, 3)
	assert.Equal(t, models.CertStatusExpired, certs[2].Status)
}

func TestParseCertificates_NoCertificates(t *testing.T) {
	output := `Saving debug log to /var/log/letsencrypt/letsencrypt.log

No certificates found.
`
	certs := parseCertificates(output, time.Now())
	assert.Empty(t, certs)
}

func TestParseCertificates_EmptyOutput(t *testing.T) {
	certs := parseCertificates("", time.Now())
	assert.NotNil(t, certs)
	assert.Empty(t, certs)
}

func TestParseCertificates_UnparseableExpiryKeptValid(t *testing.T) {
	output := `  Certificate Name: weird.example.com
    Domains: weird.example.com
    Expiry Date: sometime next year
    Certificate Path: /etc/letsencrypt/live/weird.example.com/fullchain.pem
`
	certs := parseCertificates(output, time.Now())
	require.Len(t, certs, 1)
	assert.True(t, certs[0].Expiry.IsZero())
	assert.Equal(t, models.CertStatusValid, certs[0].Status)
}

func TestCertStatus_Boundaries(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry time.Time
		want   models.CertificateStatus
	}{
		{"well in the future", now.Add(90 * 24 * time.Hour), models.CertStatusValid},
		{"just inside the window", now.Add(29 * 24 * time.Hour), models.CertStatusExpiringSoon},
		{"one hour from now", now.Add(time.Hour), models.CertStatusExpiringSoon},
		{"already expired", now.Add(-time.Hour), models.CertStatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, certStatus(tt.expiry, now))
		})
	}
}
