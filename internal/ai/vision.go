package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultImagePrompt is substituted when a request carries an image but
// no text.
const defaultImagePrompt = "Describe this image."

// VisionProvider calls the third-party vision endpoint. The request is
// a GET with the prompt, owner id, image URL and credential as query
// parameters.
type VisionProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewVisionProvider(baseURL, apiKey string) *VisionProvider {
	if baseURL == "" {
		baseURL = "https://kaiz-apis.gleeze.com/api"
	}
	return &VisionProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type visionResp struct {
	Response string `json:"response"`
}

func (p *VisionProvider) Describe(ctx context.Context, q Query) (string, error) {
	if p.Client == nil {
		return "", errors.New("vision: http client is nil")
	}

	prompt := strings.TrimSpace(q.Prompt)
	if prompt == "" {
		if q.ImageURL == "" {
			return "", errors.New("vision: empty query")
		}
		prompt = defaultImagePrompt
	}

	params := url.Values{}
	params.Set("q", prompt)
	params.Set("uid", q.OwnerID)
	params.Set("imageUrl", q.ImageURL)
	params.Set("apikey", p.APIKey)

	reqURL := fmt.Sprintf("%s/gemini-vision?%s",
		strings.TrimRight(p.BaseURL, "/"), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("vision: %s", msg)
	}

	var decoded visionResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if decoded.Response == "" {
		return "", ErrMalformedResponse
	}
	return decoded.Response, nil
}
