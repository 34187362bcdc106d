package models

import "time"

// CertificateStatus classifies a certificate by how close it is to expiry.
type CertificateStatus string

const (
	CertStatusValid        CertificateStatus = "valid"
	CertStatusExpiringSoon CertificateStatus = "expiring_soon"
	CertStatusExpired      CertificateStatus = "expired"
)

// Certificate is one entry parsed from `certbot certificates` output.
type Certificate struct {
	Name         string            `json:"name"`
	Domains      []string          `json:"domains"`
	Expiry       time.Time         `json:"expiry"`
	Status       CertificateStatus `json:"status"`
	SerialNumber string            `json:"serial_number,omitempty"`
	Path         string            `json:"path,omitempty"`
}

// CertificateRequest is the body of POST /api/certificates (obtain).
type CertificateRequest struct {
	Domains        []string `json:"domains"`
	Email          string   `json:"email"`
	Plugin         string   `json:"plugin"`
	WebrootPath    string   `json:"webroot_path,omitempty"`
	DNSProvider    string   `json:"dns_provider,omitempty"`
	DNSCredentials string   `json:"dns_credentials,omitempty"`
	AgreeTOS       bool     `json:"agree_tos"`
	Staging        bool     `json:"staging,omitempty"`
}

// RenewalOptions is the body of POST /api/certificates/renew.
type RenewalOptions struct {
	CertName     string `json:"cert_name,omitempty"`
	DryRun       bool   `json:"dry_run,omitempty"`
	ForceRenewal bool   `json:"force_renewal,omitempty"`
}

// RevocationOptions is the body of POST /api/certificates/revoke.
type RevocationOptions struct {
	CertName          string `json:"cert_name"`
	Reason            string `json:"reason,omitempty"`
	DeleteAfterRevoke bool   `json:"delete_after_revoke,omitempty"`
}

// DeletionRequest records which certificate a delete job targets.
type DeletionRequest struct {
	CertName string `json:"certName"`
}
