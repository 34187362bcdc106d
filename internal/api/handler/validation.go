// Package handler contains the HTTP handlers for the certbot-ui API.
package handler

import (
	"regexp"
	"strings"

	"github.com/certops/certbot-ui/pkg/models"
)

var (
	// Accepts plain domains and a single leading wildcard label.
	domainPattern = regexp.MustCompile(`^(\*\.)?([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	// Live directory names come from certbot itself; reject anything that
	// could traverse outside it.
	certNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)
)

// Revocation reasons certbot accepts on the --reason flag.
var validRevocationReasons = map[string]bool{
	"unspecified":          true,
	"keycompromise":        true,
	"affiliationchanged":   true,
	"superseded":           true,
	"cessationofoperation": true,
}

var validPlugins = map[string]bool{
	"webroot":    true,
	"standalone": true,
	"nginx":      true,
	"apache":     true,
	"dns":        true,
}

// fieldErrors accumulates per-field validation failures for the error
// envelope's details.
type fieldErrors map[string][]string

func (fe fieldErrors) add(field, message string) {
	fe[field] = append(fe[field], message)
}

func validateCertificateRequest(req models.CertificateRequest) fieldErrors {
	fe := fieldErrors{}

	if len(req.Domains) == 0 {
		fe.add("domains", "at least one domain is required")
	}
	for _, domain := range req.Domains {
		if !domainPattern.MatchString(domain) {
			fe.add("domains", "invalid domain: "+domain)
		}
	}

	if req.Email == "" {
		fe.add("email", "email is required")
	} else if !emailPattern.MatchString(req.Email) {
		fe.add("email", "invalid email address")
	}

	if !validPlugins[req.Plugin] {
		fe.add("plugin", "plugin must be one of: webroot, standalone, nginx, apache, dns")
	}
	if req.Plugin == "webroot" && strings.TrimSpace(req.WebrootPath) == "" {
		fe.add("webroot_path", "webroot_path is required for the webroot plugin")
	}

	if !req.AgreeTOS {
		fe.add("agree_tos", "you must agree to the Let's Encrypt terms of service")
	}

	if len(fe) == 0 {
		return nil
	}
	return fe
}

func validCertName(name string) bool {
	return name != "" && len(name) <= 255 && certNamePattern.MatchString(name)
}
