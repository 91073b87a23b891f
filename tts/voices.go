package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Voice describes one entry of the edge backend voice catalog.
type Voice struct {
	Name        string `json:"Name"`
	ShortName   string `json:"ShortName"`
	Gender      string `json:"Gender"`
	Locale      string `json:"Locale"`
	DisplayName string `json:"DisplayName"`
}

// ListVoices fetches the voice catalog of the edge backend. It never opens
// a synthesis connection.
func ListVoices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, edgeVoiceListEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", edgeUserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch voice list: %v", ErrSynthesis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: voice list request failed with status %d", ErrSynthesis, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read voice list: %v", ErrSynthesis, err)
	}

	var voices []Voice
	if err := json.Unmarshal(body, &voices); err != nil {
		return nil, fmt.Errorf("%w: decode voice list: %v", ErrSynthesis, err)
	}
	return voices, nil
}
