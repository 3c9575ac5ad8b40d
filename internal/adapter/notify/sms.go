package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kentwatersensors/floodwatch/internal/config"
)

// SMSClient sends text messages through the Vonage SMS API.
type SMSClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
	from       string
}

// NewSMSClient creates an SMS client from the Vonage settings in config.
func NewSMSClient(cfg *config.Config) *SMSClient {
	return &SMSClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:   "https://rest.nexmo.com",
		apiKey:    cfg.VonageAPIKey,
		apiSecret: cfg.VonageAPISecret,
		from:      cfg.SMSFrom,
	}
}

// Send delivers one text message to an E.164 number, e.g. "447700900123".
func (c *SMSClient) Send(ctx context.Context, to, text string) error {
	form := url.Values{
		"api_key":    {c.apiKey},
		"api_secret": {c.apiSecret},
		"from":       {c.from},
		"to":         {to},
		"text":       {text},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sms/json", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms API error: status %d: %s", resp.StatusCode, body)
	}

	var smsResp smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&smsResp); err != nil {
		return fmt.Errorf("decode sms response: %w", err)
	}

	// The API reports per-message status; "0" means accepted.
	for _, m := range smsResp.Messages {
		if m.Status != "0" {
			return fmt.Errorf("sms rejected: status %s: %s", m.Status, m.ErrorText)
		}
	}
	return nil
}

// Vonage API response types.

type smsResponse struct {
	Messages []smsMessage `json:"messages"`
}

type smsMessage struct {
	Status    string `json:"status"`
	ErrorText string `json:"error-text"`
}
