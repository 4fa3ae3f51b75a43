package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"shieldswap-client/internal/types"
)

// ProverClient calls an external proving service over HTTP. Proof
// construction itself (witness building, Groth16) lives entirely on the
// other side of this boundary.
type ProverClient struct {
	baseURL string
	http    *http.Client
	log     *logrus.Entry
}

// NewProverClient creates a client for the proving service at baseURL.
func NewProverClient(baseURL string, timeout time.Duration) *ProverClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ProverClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     logrus.WithField("component", "prover_client"),
	}
}

// GenerateProof posts the proof input and returns the prover's proof and
// public signals.
func (c *ProverClient) GenerateProof(ctx context.Context, input *types.ProofInput) (*types.ProofResult, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode proof input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prove", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build prover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call prover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("prover returned status %d: %s", resp.StatusCode, string(raw))
	}

	var result types.ProofResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode prover response: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"duration":       time.Since(started),
		"public_signals": len(result.PublicSignals),
	}).Info("Proof generated")
	return &result, nil
}
