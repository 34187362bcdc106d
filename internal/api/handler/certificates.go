package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/certops/certbot-ui/internal/api/middleware"
	"github.com/certops/certbot-ui/internal/api/response"
	"github.com/certops/certbot-ui/internal/certbot"
	"github.com/certops/certbot-ui/internal/jobs"
	"github.com/certops/certbot-ui/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// pemComponents maps the download query parameter to files under the
// certificate's live directory.
var pemComponents = map[string]string{
	"fullchain": "fullchain.pem",
	"cert":      "cert.pem",
	"chain":     "chain.pem",
	"privkey":   "privkey.pem",
}

// CertificateHandler serves the certificate inventory and lifecycle
// operations. Lifecycle POSTs are asynchronous: they enqueue a job, return
// 202 Accepted with the job ID, and run certbot on a background goroutine.
type CertificateHandler struct {
	svc       *certbot.Service
	jobs      *jobs.Store
	configDir string
}

// NewCertificateHandler creates the certificate handler. configDir is
// certbot's config directory, the parent of live/.
func NewCertificateHandler(svc *certbot.Service, jobStore *jobs.Store, configDir string) *CertificateHandler {
	return &CertificateHandler{svc: svc, jobs: jobStore, configDir: configDir}
}

// List handles GET /api/certificates.
func (h *CertificateHandler) List(w http.ResponseWriter, r *http.Request) {
	certs, err := h.svc.ListCertificates(r.Context())
	if err != nil {
		slog.Error("certificate listing failed", "error", err)
		response.Error(w, http.StatusServiceUnavailable,
			"CERTBOT_UNAVAILABLE", "Failed to list certificates", nil)
		return
	}
	response.JSON(w, certs)
}

// Get handles GET /api/certificates/{certName}.
func (h *CertificateHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "certName")
	if !validCertName(name) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid certificate name", nil)
		return
	}

	cert, err := h.svc.GetCertificateInfo(r.Context(), name)
	if err != nil {
		slog.Error("certificate lookup failed", "cert_name", name, "error", err)
		response.Error(w, http.StatusServiceUnavailable,
			"CERTBOT_UNAVAILABLE", "Failed to look up certificate", nil)
		return
	}
	if cert == nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Certificate not found", nil)
		return
	}
	response.JSON(w, cert)
}

// Download handles GET /api/certificates/{certName}/download. The component
// query parameter selects which PEM file to serve; it defaults to the full
// chain.
func (h *CertificateHandler) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "certName")
	if !validCertName(name) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid certificate name", nil)
		return
	}

	component := r.URL.Query().Get("component")
	if component == "" {
		component = "fullchain"
	}

	var data []byte
	var err error
	switch {
	case component == "bundle":
		// Full chain plus private key, the shape most servers consume.
		data, err = h.readPEMBundle(name)
	case pemComponents[component] != "":
		data, err = os.ReadFile(filepath.Join(h.configDir, "live", name, pemComponents[component]))
	default:
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"component must be one of: fullchain, cert, chain, privkey, bundle", nil)
		return
	}
	if err != nil {
		if os.IsNotExist(err) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Certificate not found", nil)
			return
		}
		slog.Error("certificate read failed", "cert_name", name, "component", component, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read certificate", nil)
		return
	}

	w.Header().Set("Content-Type", "application/x-pem-file")
	w.Header().Set("Content-Disposition", "attachment; filename="+name+"-"+component+".pem")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *CertificateHandler) readPEMBundle(name string) ([]byte, error) {
	liveDir := filepath.Join(h.configDir, "live", name)
	chain, err := os.ReadFile(filepath.Join(liveDir, "fullchain.pem"))
	if err != nil {
		return nil, err
	}
	key, err := os.ReadFile(filepath.Join(liveDir, "privkey.pem"))
	if err != nil {
		return nil, err
	}
	return append(chain, key...), nil
}

// Obtain handles POST /api/certificates.
func (h *CertificateHandler) Obtain(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	var req models.CertificateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON", nil)
		return
	}
	if fe := validateCertificateRequest(req); fe != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid certificate request", fe)
		return
	}

	job := h.jobs.Create(models.JobTypeObtain, userID, req)
	go h.svc.ObtainAsync(context.Background(), job.ID, userID, req)

	h.accepted(w, job)
}

// Renew handles POST /api/certificates/renew.
func (h *CertificateHandler) Renew(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	var opts models.RenewalOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON", nil)
		return
	}
	if opts.CertName != "" && !validCertName(opts.CertName) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid certificate name", nil)
		return
	}

	job := h.jobs.Create(models.JobTypeRenew, userID, opts)
	go h.svc.RenewAsync(context.Background(), job.ID, userID, opts)

	h.accepted(w, job)
}

// Revoke handles POST /api/certificates/revoke.
func (h *CertificateHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	var opts models.RevocationOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON", nil)
		return
	}
	if !validCertName(opts.CertName) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid certificate name", nil)
		return
	}
	if opts.Reason != "" && !validRevocationReasons[opts.Reason] {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", fieldErrors{
			"reason": {"reason must be one of: unspecified, keycompromise, affiliationchanged, superseded, cessationofoperation"},
		})
		return
	}

	job := h.jobs.Create(models.JobTypeRevoke, userID, opts)
	go h.svc.RevokeAsync(context.Background(), job.ID, userID, opts)

	h.accepted(w, job)
}

// Delete handles DELETE /api/certificates/{certName}.
func (h *CertificateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	name := chi.URLParam(r, "certName")
	if !validCertName(name) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid certificate name", nil)
		return
	}

	job := h.jobs.Create(models.JobTypeDelete, userID, models.DeletionRequest{CertName: name})
	go h.svc.DeleteAsync(context.Background(), job.ID, userID, name)

	h.accepted(w, job)
}

// Logs handles GET /api/certificates/logs.
func (h *CertificateHandler) Logs(w http.ResponseWriter, r *http.Request) {
	limit := certbot.DefaultLogLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"lines must be an integer between 1 and 1000", nil)
			return
		}
		limit = n
	}

	lines, err := h.svc.Logs(limit)
	if err != nil {
		slog.Error("log read failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read logs", nil)
		return
	}
	if lines == nil {
		lines = []string{}
	}
	response.JSON(w, map[string]any{"lines": lines})
}

// DNSChallenge handles GET /api/certificates/dns-challenge, returning the
// currently pending manual validation record, if any.
func (h *CertificateHandler) DNSChallenge(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.svc.CurrentChallenge()
	if err != nil {
		slog.Error("dns challenge read failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read DNS challenge", nil)
		return
	}
	if challenge == nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "No DNS challenge is pending", nil)
		return
	}
	response.JSON(w, challenge)
}

type jobAccepted struct {
	JobID  uuid.UUID        `json:"jobId"`
	Status models.JobStatus `json:"status"`
}

func (h *CertificateHandler) accepted(w http.ResponseWriter, job models.Job) {
	response.Accepted(w, jobAccepted{JobID: job.ID, Status: job.Status})
}
