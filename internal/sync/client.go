package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rmonterroso/fieldledger-backend/pkg/db/models"
)

// Client talks to the ledger server's HTTP API on behalf of a field device.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("server url required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type submitEnvelope struct {
	Data struct {
		Status string `json:"status"`
	} `json:"data"`
}

type uploadEnvelope struct {
	Data struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// UploadAttachment streams one queued file to the server and returns the
// stable reference to embed in the event payload.
func (c *Client) UploadAttachment(ctx context.Context, attachment models.OutboxAttachment) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("client_uuid", attachment.ClientUUID.String()); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", attachment.FileName)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(attachment.Data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/attachments", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading attachment: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.apiError(resp)
	}

	var envelope uploadEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if envelope.Data.Reference == "" {
		return "", fmt.Errorf("upload response carried no reference")
	}
	return envelope.Data.Reference, nil
}

// SubmitEvent delivers one entry keyed by its client uuid. A server verdict
// of "duplicate" maps to OutcomeConflict: the capture already landed.
func (c *Client) SubmitEvent(ctx context.Context, entry models.OutboxEntry) (Outcome, error) {
	payload, err := json.Marshal(map[string]any{
		"client_uuid": entry.ClientUUID,
		"event_type":  entry.EventType,
		"project_id":  entry.ProjectID,
		"payload":     entry.Payload,
		"created_by":  entry.CreatedBy,
		"device_id":   entry.DeviceID,
		"geolocation": entry.Geolocation,
		"created_at":  entry.CreatedAt,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/events", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting event: %w", err)
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var envelope submitEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return "", fmt.Errorf("decoding submit response: %w", err)
		}
		if envelope.Data.Status == "duplicate" {
			return OutcomeConflict, nil
		}
		return OutcomeAccepted, nil
	case http.StatusConflict:
		return OutcomeConflict, nil
	default:
		return "", c.apiError(resp)
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) apiError(resp *http.Response) error {
	var envelope errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Errorf("server %d %s: %s", resp.StatusCode, envelope.Error.Code, envelope.Error.Message)
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
