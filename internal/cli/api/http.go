package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"KeeBridge/internal/protocol"
)

// ErrVaultLocked — сервер ответил 503: хранилище закрыто.
var ErrVaultLocked = errors.New("vault is locked")

// ErrRejected — сервер отклонил запрос (статус 400 или 403).
var ErrRejected = errors.New("request rejected")

// Client отправляет запросы протокола на сервер KeeBridge.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient создаёт клиента с разумным таймаутом.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/") + "/",
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Send отправляет запрос и разбирает ответ.
// При статусе, отличном от 200, ответ (если он есть) возвращается вместе с ошибкой.
func (c *Client) Send(ctx context.Context, preq *protocol.Request) (*protocol.Response, error) {
	var buf bytes.Buffer
	if err := protocol.EncodeRequest(&buf, preq); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, ErrVaultLocked
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return nil, fmt.Errorf("server status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	presp, err := protocol.DecodeResponse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return presp, fmt.Errorf("%w: server status %d: %s", ErrRejected, resp.StatusCode, presp.Error)
	}
	return presp, nil
}
