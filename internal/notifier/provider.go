package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hmoradi/banking-saga/internal/model"
)

// Provider delivers a notification to one downstream channel (mail hook,
// push gateway, ...). The core treats delivery as an opaque side effect.
type Provider interface {
	Name() string
	Ready() bool
	Acquire() bool
	Deliver(ctx context.Context, n model.Notification) error
}

type HTTPProvider struct {
	name       string
	baseURL    string
	notifyPath string
	client     *http.Client
	br         *Breaker
}

func NewHTTPProvider(name, baseURL, notifyPath string, timeoutMs, failThreshold, openForMs int) *HTTPProvider {
	if timeoutMs <= 0 {
		timeoutMs = 3000
	}

	if failThreshold <= 0 {
		failThreshold = 3
	}

	if openForMs <= 0 {
		openForMs = 15000
	}

	return &HTTPProvider{
		name:       name,
		baseURL:    baseURL,
		notifyPath: notifyPath,
		client:     &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:         NewBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

func (p *HTTPProvider) Name() string  { return p.name }
func (p *HTTPProvider) Ready() bool   { return p.br.Ready() }
func (p *HTTPProvider) Acquire() bool { return p.br.TryAcquire() }

func (p *HTTPProvider) Deliver(ctx context.Context, n model.Notification) error {
	if err := p.post(ctx, n); err != nil {
		p.br.OnFailure()
		return err
	}

	p.br.OnSuccess()

	return nil
}

func (p *HTTPProvider) post(ctx context.Context, n model.Notification) error {
	b, _ := json.Marshal(n)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+p.notifyPath, bytes.NewReader(b))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return err
	}

	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return fmt.Errorf("provider=%s status=%d", p.name, res.StatusCode)
	}

	return nil
}
