package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fixnow-app/fixnow/internal/engine"
)

// Client calls the external AI media analysis service. It implements
// engine.MediaAnalyzer; callers treat any error as a degrade-to-empty
// condition, so the client only reports, it never retries.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// New builds a client for the given endpoint. Timeout zero means 5s.
func New(url, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	Category   string `json:"category"`
	SubProblem string `json:"sub_problem"`
	Complexity string `json:"complexity"`
	IsVideo    bool   `json:"is_video"`
}

type analyzeResponse struct {
	Summary            string   `json:"summary"`
	DetectedIssues     []string `json:"detected_issues"`
	EstimatedMaterials []string `json:"estimated_materials"`
	ConfidenceScore    float64  `json:"confidence_score"`
}

// Analyze posts the job context to the analysis service and returns its
// findings. Called once per job creation.
func (c *Client) Analyze(ctx context.Context, category, subProblem string, complexity engine.Complexity, isVideo bool) (engine.MediaAnalysis, error) {
	body, _ := json.Marshal(analyzeRequest{
		Category:   category,
		SubProblem: subProblem,
		Complexity: string(complexity),
		IsVideo:    isVideo,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return engine.MediaAnalysis{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return engine.MediaAnalysis{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return engine.MediaAnalysis{}, fmt.Errorf("analysis service returned status=%d", resp.StatusCode)
	}

	var parsed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return engine.MediaAnalysis{}, fmt.Errorf("decode analysis response: %w", err)
	}
	return engine.MediaAnalysis{
		Summary:            parsed.Summary,
		DetectedIssues:     parsed.DetectedIssues,
		EstimatedMaterials: parsed.EstimatedMaterials,
		ConfidenceScore:    parsed.ConfidenceScore,
	}, nil
}
