package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Concept is one unit of knowledge extracted from free text.
type Concept struct {
	Title           string  `json:"title"`
	Category        string  `json:"category"`
	Summary         string  `json:"summary"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// Extractor turns free text into concepts via the Ollama HTTP API.
type Extractor struct {
	URL   string
	Model string
}

const extractPrompt = `Extract the distinct concepts from the text below.
Return ONLY a JSON array. Each element must have:
  "title": short name of the concept
  "category": hierarchical category path, segments joined by " > " (e.g. "Backend > Databases")
  "summary": one or two sentences explaining the concept
  "confidence_score": 0.0-1.0, how confident you are in the categorization

Text:
%s`

// Extract sends the text to the model and parses the returned concept list.
// Uses a 2-minute timeout to prevent hanging indefinitely.
func (e *Extractor) Extract(ctx context.Context, text string) ([]Concept, error) {
	reqBody, err := json.Marshal(map[string]any{
		"model":  e.Model,
		"prompt": fmt.Sprintf(extractPrompt, text),
		"stream": false,
		"format": "json",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extractor request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read extractor response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extractor returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse extractor response: %w", err)
	}

	return parseConcepts(result.Response)
}

// parseConcepts decodes the model output, tolerating prose around the
// JSON array. Models occasionally wrap the array in explanation text.
func parseConcepts(response string) ([]Concept, error) {
	raw := strings.TrimSpace(response)

	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in model output: %q", truncate(raw, 120))
	}

	var concepts []Concept
	if err := json.Unmarshal([]byte(raw[start:end+1]), &concepts); err != nil {
		return nil, fmt.Errorf("parse concepts: %w", err)
	}

	out := concepts[:0]
	for _, c := range concepts {
		if strings.TrimSpace(c.Title) == "" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
