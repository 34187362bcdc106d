package certbot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/certops/certbot-ui/internal/cache"
	"github.com/certops/certbot-ui/internal/config"
	"github.com/certops/certbot-ui/internal/jobs"
	"github.com/certops/certbot-ui/pkg/models"
	"github.com/google/uuid"
)

// busyMarker is the sole criterion certbot gives us for its single-instance
// lock being held.
const busyMarker = "Another instance of Certbot is already running"

const (
	listMaxAttempts = 3
	listRetryBase   = time.Second
	certListTTL     = 30 * time.Second
)

// Notifier pushes typed events to a user's live realtime connections.
type Notifier interface {
	SendOperationProgress(userID string, operation models.JobType, progress int, message string)
	SendOperationComplete(userID string, operation models.JobType, success bool, data any)
	// Certificate inventory is shared; updates go to every connected user.
	SendCertificateUpdate(event string, certificate any)
	SendDNSChallenge(userID string, challenge models.DNSChallenge)
}

// dnsPlugins maps provider names to certbot DNS plugin flags.
var dnsPlugins = map[string]string{
	"cloudflare":   "dns-cloudflare",
	"route53":      "dns-route53",
	"digitalocean": "dns-digitalocean",
	"google":       "dns-google",
}

// Service is the job orchestrator: it owns the certbot workflows, driving the
// runner, the job store, the challenge watcher, and the notifier.
type Service struct {
	cfg      config.CertbotConfig
	runner   Runner
	jobs     *jobs.Store
	notifier Notifier
	cache    cache.Cache

	// Shrunk by tests.
	retryBase time.Duration
	watcher   *Watcher
}

// NewService wires the orchestrator. cache may be nil, in which case the
// certificate list is re-parsed on every request.
func NewService(cfg config.CertbotConfig, runner Runner, jobStore *jobs.Store, notifier Notifier, c cache.Cache) *Service {
	s := &Service{
		cfg:       cfg,
		runner:    runner,
		jobs:      jobStore,
		notifier:  notifier,
		cache:     c,
		retryBase: listRetryBase,
	}
	s.watcher = NewWatcher(ChallengeFile(cfg.HooksDir), jobStore, notifier)
	return s
}

// ListCertificates runs `certbot certificates` and parses the result. Because
// certbot refuses concurrent invocations, this read path retries up to three
// attempts with exponential backoff (1s, 2s) on the busy condition and on any
// other failure, returning the last error once attempts are exhausted.
func (s *Service) ListCertificates(ctx context.Context) ([]models.Certificate, error) {
	if cached, ok := s.cachedCertificates(ctx); ok {
		return cached, nil
	}

	var lastErr error
	for attempt := 1; attempt <= listMaxAttempts; attempt++ {
		result := s.run(ctx, "certificates")
		if result.Success {
			certs := parseCertificates(result.Stdout, time.Now())
			s.storeCertificates(ctx, certs)
			return certs, nil
		}

		lastErr = fmt.Errorf("list certificates: %s", errorText(result))
		if attempt == listMaxAttempts {
			break
		}

		delay := s.retryBase << (attempt - 1)
		if strings.Contains(result.Stderr, busyMarker) {
			slog.Warn("certbot is busy, retrying", "delay", delay, "attempt", attempt, "max_attempts", listMaxAttempts)
		} else {
			slog.Warn("error listing certificates, retrying", "delay", delay, "attempt", attempt, "max_attempts", listMaxAttempts)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	slog.Error("listing certificates failed", "attempts", listMaxAttempts, "error", lastErr)
	return nil, lastErr
}

// GetCertificateInfo returns the named certificate, or nil when absent.
func (s *Service) GetCertificateInfo(ctx context.Context, name string) (*models.Certificate, error) {
	certs, err := s.ListCertificates(ctx)
	if err != nil {
		return nil, err
	}
	for i := range certs {
		if certs[i].Name == name {
			return &certs[i], nil
		}
	}
	return nil, nil
}

// Version reports the certbot binary version, for the health endpoint.
func (s *Service) Version(ctx context.Context) (string, error) {
	result := s.run(ctx, "--version")
	if !result.Success {
		return "", fmt.Errorf("certbot not available: %s", errorText(result))
	}
	version := strings.TrimSpace(result.Stdout)
	if version == "" {
		version = strings.TrimSpace(result.Stderr)
	}
	return version, nil
}

// CurrentChallenge reads the active DNS challenge snapshot, nil when none.
func (s *Service) CurrentChallenge() (*models.DNSChallenge, error) {
	return ReadChallenge(ChallengeFile(s.cfg.HooksDir))
}

// ObtainAsync drives an obtain job to a terminal state. Run on its own
// goroutine; never lets an error or panic escape.
func (s *Service) ObtainAsync(ctx context.Context, jobID uuid.UUID, userID string, req models.CertificateRequest) {
	defer s.recoverJob(jobID, userID, models.JobTypeObtain)

	s.begin(jobID, userID, models.JobTypeObtain, "Starting certificate request...")

	args, err := s.prepareObtainArgs(ctx, jobID, userID, req)
	if err != nil {
		s.failJob(jobID, userID, models.JobTypeObtain, err)
		return
	}

	result := s.execute(ctx, jobID, userID, models.JobTypeObtain, args, "Executing certbot command...")
	if result.Success {
		s.notifier.SendCertificateUpdate("obtained", map[string]any{"domains": req.Domains})
	}
}

// RenewAsync drives a renew job to a terminal state.
func (s *Service) RenewAsync(ctx context.Context, jobID uuid.UUID, userID string, opts models.RenewalOptions) {
	defer s.recoverJob(jobID, userID, models.JobTypeRenew)

	s.begin(jobID, userID, models.JobTypeRenew, "Starting certificate renewal...")

	args := []string{"renew"}
	if opts.CertName != "" {
		args = append(args, "--cert-name", opts.CertName)
	}
	if opts.DryRun {
		args = append(args, "--dry-run")
	}
	if opts.ForceRenewal {
		args = append(args, "--force-renewal")
	}

	result := s.execute(ctx, jobID, userID, models.JobTypeRenew, args, "Executing renewal command...")
	if result.Success && opts.CertName != "" {
		s.notifier.SendCertificateUpdate("renewed", map[string]any{"certName": opts.CertName})
	}
}

// RevokeAsync drives a revoke job to a terminal state.
func (s *Service) RevokeAsync(ctx context.Context, jobID uuid.UUID, userID string, opts models.RevocationOptions) {
	defer s.recoverJob(jobID, userID, models.JobTypeRevoke)

	s.begin(jobID, userID, models.JobTypeRevoke, "Starting certificate revocation...")

	args := []string{"revoke", "--cert-name", opts.CertName}
	if opts.Reason != "" {
		args = append(args, "--reason", opts.Reason)
	}
	if opts.DeleteAfterRevoke {
		args = append(args, "--delete-after-revoke")
	}

	result := s.execute(ctx, jobID, userID, models.JobTypeRevoke, args, "Executing revocation command...")
	if result.Success {
		s.notifier.SendCertificateUpdate("revoked", map[string]any{"certName": opts.CertName})
	}
}

// DeleteAsync drives a delete job to a terminal state.
func (s *Service) DeleteAsync(ctx context.Context, jobID uuid.UUID, userID string, certName string) {
	defer s.recoverJob(jobID, userID, models.JobTypeDelete)

	s.begin(jobID, userID, models.JobTypeDelete, "Starting certificate deletion...")

	args := []string{"delete", "--cert-name", certName}

	result := s.execute(ctx, jobID, userID, models.JobTypeDelete, args, "Executing deletion command...")
	if result.Success {
		s.notifier.SendCertificateUpdate("deleted", map[string]any{"certName": certName})
	}
}

// begin moves the job to in_progress and emits the 0% progress event.
func (s *Service) begin(jobID uuid.UUID, userID string, op models.JobType, message string) {
	s.jobs.SetStatus(jobID, models.JobStatusInProgress)
	s.jobs.SetProgress(jobID, 0, message)
	s.notifier.SendOperationProgress(userID, op, 0, message)
}

// execute emits the 20% progress event, runs certbot, finalizes the job, and
// broadcasts the outcome. The runner call is the workflow's only
// long-latency step.
func (s *Service) execute(ctx context.Context, jobID uuid.UUID, userID string, op models.JobType, args []string, message string) models.CommandResult {
	s.jobs.SetProgress(jobID, 20, message)
	s.notifier.SendOperationProgress(userID, op, 20, message)

	result := s.run(ctx, args...)
	s.jobs.Complete(jobID, result)

	if result.Success {
		s.invalidateCertificates(ctx)
		s.notifier.SendOperationComplete(userID, op, true, result)
	} else {
		s.notifier.SendOperationComplete(userID, op, false, map[string]any{"error": result.Stderr})
	}
	return result
}

// prepareObtainArgs builds the certonly argument vector. For manual DNS
// validation it also writes the hook scripts and starts the challenge
// watcher concurrently with the certbot run.
func (s *Service) prepareObtainArgs(ctx context.Context, jobID uuid.UUID, userID string, req models.CertificateRequest) ([]string, error) {
	args := []string{"certonly", "--non-interactive"}

	switch {
	case req.Plugin == "dns" && (req.DNSProvider == "" || req.DNSProvider == "manual"):
		args = append(args, "--manual", "--preferred-challenges", "dns")

		authHook, cleanupHook, err := WriteHooks(s.cfg.HooksDir)
		if err != nil {
			return nil, err
		}
		args = append(args, "--manual-auth-hook", authHook, "--manual-cleanup-hook", cleanupHook)

		s.jobs.SetProgress(jobID, 10, "DNS challenge hooks created, starting validation...")
		s.notifier.SendOperationProgress(userID, models.JobTypeObtain, 10, "DNS challenge hooks created, starting validation...")

		go s.watcher.Watch(ctx, jobID, userID)

	case req.Plugin == "dns":
		plugin, ok := dnsPlugins[req.DNSProvider]
		if !ok {
			return nil, fmt.Errorf("unsupported dns provider %q", req.DNSProvider)
		}
		args = append(args, "--"+plugin)
		if req.DNSCredentials != "" {
			// TODO: materialize the credentials into a provider config file
			// and pass --dns-<provider>-credentials; today they are accepted
			// but not applied.
			slog.Info("dns provider credentials supplied", "provider", req.DNSProvider)
		}

	default:
		args = append(args, "--"+req.Plugin)
	}

	if req.Plugin == "webroot" && req.WebrootPath != "" {
		args = append(args, "-w", req.WebrootPath)
	}

	for _, domain := range req.Domains {
		args = append(args, "-d", domain)
	}

	args = append(args, "--email", req.Email)
	if req.AgreeTOS {
		args = append(args, "--agree-tos")
	}
	if req.Staging {
		args = append(args, "--staging")
	}

	return args, nil
}

// run invokes certbot with the configured directory flags appended, so the
// service honors non-default letsencrypt layouts for every subcommand.
func (s *Service) run(ctx context.Context, args ...string) models.CommandResult {
	if s.cfg.ConfigDir != "" {
		args = append(args, "--config-dir", s.cfg.ConfigDir)
	}
	if s.cfg.WorkDir != "" {
		args = append(args, "--work-dir", s.cfg.WorkDir)
	}
	if s.cfg.LogsDir != "" {
		args = append(args, "--logs-dir", s.cfg.LogsDir)
	}
	return s.runner.Run(ctx, args...)
}

// failJob records a workflow error that occurred before a command result
// exists and reports it to the user.
func (s *Service) failJob(jobID uuid.UUID, userID string, op models.JobType, err error) {
	slog.Error("job workflow error", "job_id", jobID, "operation", op, "error", err)
	s.jobs.Fail(jobID, err.Error())
	s.notifier.SendOperationComplete(userID, op, false, map[string]any{"error": err.Error()})
}

// recoverJob is the workflow's last line of defense: a panicking background
// job must still reach a terminal state and notify the user.
func (s *Service) recoverJob(jobID uuid.UUID, userID string, op models.JobType) {
	if r := recover(); r != nil {
		s.failJob(jobID, userID, op, fmt.Errorf("internal error: %v", r))
	}
}

func (s *Service) cachedCertificates(ctx context.Context) ([]models.Certificate, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, found, err := s.cache.Get(ctx, cache.CertificateListKey())
	if err != nil || !found {
		return nil, false
	}
	var certs []models.Certificate
	if err := json.Unmarshal(data, &certs); err != nil {
		return nil, false
	}
	return certs, true
}

func (s *Service) storeCertificates(ctx context.Context, certs []models.Certificate) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(certs)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cache.CertificateListKey(), data, certListTTL); err != nil {
		slog.Warn("failed to cache certificate list", "error", err)
	}
}

func (s *Service) invalidateCertificates(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.CertificateListKey()); err != nil {
		slog.Warn("failed to invalidate certificate list cache", "error", err)
	}
}

// errorText picks the most useful text out of a failed command result.
func errorText(result models.CommandResult) string {
	if result.Stderr != "" {
		return result.Stderr
	}
	if result.Stdout != "" {
		return result.Stdout
	}
	return fmt.Sprintf("exit code %d", result.ExitCode)
}
