package certbot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/certops/certbot-ui/pkg/models"
)

const (
	authHookName    = "certbot-manual-auth-hook.sh"
	cleanupHookName = "certbot-manual-cleanup-hook.sh"
	challengeName   = "dns-challenge.json"
)

// ChallengeFile returns the fixed path the auth hook writes the DNS challenge
// snapshot to. The path is shared by all jobs; concurrent manual-DNS obtains
// are a documented single-flight limitation.
func ChallengeFile(hooksDir string) string {
	return filepath.Join(hooksDir, challengeName)
}

// WriteHooks materializes the manual-DNS auth and cleanup hook scripts under
// hooksDir and returns their paths. The auth hook records the challenge for
// the dashboard and then blocks ~90 seconds for DNS propagation; the cleanup
// hook removes the snapshot once validation succeeds.
func WriteHooks(hooksDir string) (authPath, cleanupPath string, err error) {
	challengeFile := ChallengeFile(hooksDir)

	authScript := fmt.Sprintf(`#!/bin/sh
# Store DNS challenge information for the web UI to display

cat > %s << EOF
{
  "domain": "$CERTBOT_DOMAIN",
  "validation": "$CERTBOT_VALIDATION",
  "record_name": "_acme-challenge.$CERTBOT_DOMAIN",
  "timestamp": "$(date -u +%%Y-%%m-%%dT%%H:%%M:%%SZ)"
}
EOF

echo ""
echo "================================================"
echo "DNS CHALLENGE REQUIRED - Action Needed!"
echo "================================================"
echo ""
echo "Domain: $CERTBOT_DOMAIN"
echo ""
echo "Please add this DNS TXT record to your DNS provider:"
echo ""
echo "  Record Type: TXT"
echo "  Name:        _acme-challenge.$CERTBOT_DOMAIN"
echo "  Value:       $CERTBOT_VALIDATION"
echo "  TTL:         300 (or lowest available)"
echo ""
echo "Waiting 90 seconds for you to add the record and for DNS to propagate..."
echo ""

sleep 90
`, challengeFile)

	cleanupScript := fmt.Sprintf(`#!/bin/sh
# Cleanup hook - remove challenge file

echo ""
echo "DNS validation successful!"
echo "You can now remove the TXT record: _acme-challenge.$CERTBOT_DOMAIN"
echo ""

rm -f %s
`, challengeFile)

	authPath = filepath.Join(hooksDir, authHookName)
	cleanupPath = filepath.Join(hooksDir, cleanupHookName)

	if err := os.WriteFile(authPath, []byte(authScript), 0o755); err != nil {
		return "", "", fmt.Errorf("write auth hook: %w", err)
	}
	if err := os.WriteFile(cleanupPath, []byte(cleanupScript), 0o755); err != nil {
		return "", "", fmt.Errorf("write cleanup hook: %w", err)
	}
	return authPath, cleanupPath, nil
}

// ReadChallenge reads the current DNS challenge snapshot. A missing file is
// the normal no-active-challenge state and returns (nil, nil).
func ReadChallenge(path string) (*models.DNSChallenge, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read challenge file: %w", err)
	}

	var challenge models.DNSChallenge
	if err := json.Unmarshal(data, &challenge); err != nil {
		return nil, fmt.Errorf("parse challenge file: %w", err)
	}
	return &challenge, nil
}
