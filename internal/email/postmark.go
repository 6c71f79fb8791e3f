// Package email sends transactional mail through Postmark.
package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

type Client struct {
	serverToken string
	fromEmail   string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendWelcome greets a newly registered user.
func (c *Client) SendWelcome(toEmail, name string) error {
	subject := "Welcome to Webwatch"
	textBody := fmt.Sprintf("Hi %s,\n\nYour account is ready. Sites you were monitoring as a guest are now attached to your account and will keep their check history.\n", name)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p>Your account is ready. Sites you were monitoring as a guest are now attached to your account and will keep their check history.</p>`,
		name,
	)
	return c.send(toEmail, subject, htmlBody, textBody)
}

// SendDowntimeAlert notifies an owner that a monitored site went offline.
func (c *Client) SendDowntimeAlert(toEmail, siteName, siteURL string) error {
	subject := fmt.Sprintf("%s is down", siteName)
	textBody := fmt.Sprintf("Our latest check of %s (%s) failed. We will keep checking and you can trigger a recheck from your dashboard at any time.\n", siteName, siteURL)
	htmlBody := fmt.Sprintf(
		`<p>Our latest check of <strong>%s</strong> (<a href="%s">%s</a>) failed.</p><p>We will keep checking and you can trigger a recheck from your dashboard at any time.</p>`,
		siteName, siteURL, siteURL,
	)
	return c.send(toEmail, subject, htmlBody, textBody)
}

func (c *Client) send(toEmail, subject, htmlBody, textBody string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.postmarkapp.com/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
