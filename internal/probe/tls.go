package probe

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"
	"time"

	"webwatch/internal/model"
)

// CheckTLS connects to the target and summarizes its leaf certificate:
// issuer, subject, validity window, and days until expiry. Failures come
// back as an invalid summary with the error recorded, never as a Go error.
func (c *Checker) CheckTLS(ctx context.Context, rawURL string) model.TLSInfo {
	fail := func(msg string) model.TLSInfo {
		return model.TLSInfo{Valid: false, Error: &msg}
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return fail("invalid URL")
	}
	if u.Scheme != "https" {
		return fail("not an HTTPS URL")
	}

	port := u.Port()
	if port == "" {
		port = "443"
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.TLSTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: c.cfg.TLSTimeout},
		Config:    &tls.Config{ServerName: u.Hostname()},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(u.Hostname(), port))
	if err != nil {
		return fail("connection error: " + err.Error())
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return fail("no certificate found")
	}

	cert := state.PeerCertificates[0]
	daysRemaining := int(time.Until(cert.NotAfter).Hours() / 24)

	issuer := cert.Issuer.CommonName
	if len(cert.Issuer.Organization) > 0 {
		issuer = cert.Issuer.Organization[0]
	}
	subject := cert.Subject.CommonName

	validFrom := cert.NotBefore
	validTo := cert.NotAfter

	return model.TLSInfo{
		Valid:         daysRemaining > 0,
		Issuer:        &issuer,
		Subject:       &subject,
		ValidFrom:     &validFrom,
		ValidTo:       &validTo,
		DaysRemaining: &daysRemaining,
	}
}
