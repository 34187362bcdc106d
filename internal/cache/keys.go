package cache

import "fmt"

// CertificateListKey caches the parsed output of `certbot certificates`.
// Invalidated whenever a lifecycle job completes successfully.
func CertificateListKey() string {
	return "certbot:certificates"
}

func RateLimitKey(userID string) string {
	return fmt.Sprintf("ratelimit:%s", userID)
}

func AuthRateLimitKey(remoteAddr string) string {
	return fmt.Sprintf("ratelimit:auth:%s", remoteAddr)
}
