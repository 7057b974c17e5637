package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/airchains-network/settlement-bridge/proof"
	"github.com/airchains-network/settlement-bridge/prover/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxAttempts = 5
	defaultTimeout     = 30 * time.Second
	maxBackoff         = 60 * time.Second
)

// RemoteVerifier asks an external verifier service whether a proof is valid.
type RemoteVerifier struct {
	endpoint    string
	maxAttempts int
	backoff     time.Duration
	client      *http.Client
	log         *logrus.Logger
}

var _ proof.Verifier = (*RemoteVerifier)(nil)

// NewRemoteVerifier creates a RemoteVerifier with a 30-second timeout per attempt.
// maxAttempts <= 0 selects the default.
func NewRemoteVerifier(endpoint string, maxAttempts int, log *logrus.Logger) *RemoteVerifier {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if log == nil {
		log = logrus.New()
	}
	return &RemoteVerifier{
		endpoint:    strings.TrimSuffix(endpoint, "/"),
		maxAttempts: maxAttempts,
		backoff:     time.Second,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		log: log,
	}
}

// SetTimeout changes the timeout of a single attempt.
func (p *RemoteVerifier) SetTimeout(d time.Duration) {
	p.client.Timeout = d
}

// SetBackoff changes the base delay between attempts.
func (p *RemoteVerifier) SetBackoff(d time.Duration) {
	p.backoff = d
}

func (p *RemoteVerifier) proverRequest(ctx context.Context, uri string, body any) ([]byte, int, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("error encoding JSON body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, 0, fmt.Errorf("error creating POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("error making HTTP request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return bodyBytes, resp.StatusCode, fmt.Errorf("verifier responded %s", resp.Status)
	}
	return bodyBytes, resp.StatusCode, nil
}

// Verify implements proof.Verifier. Transport failures and 5xx responses are
// retried with a linear backoff; 400, 401, 403 and 404 are final.
func (p *RemoteVerifier) Verify(ctx context.Context, t proof.Transition, blob []byte) (bool, error) {
	body := types.VerifyRequest{
		Kind:         t.Kind.String(),
		PreviousRoot: hexutil.Encode(t.PreviousRoot),
		Sequence:     t.Sequence,
		Recipient:    t.Recipient,
		Nonce:        t.Nonce,
		Proof:        hexutil.Encode(blob),
	}
	if len(t.NewRoot) > 0 {
		body.NewRoot = hexutil.Encode(t.NewRoot)
	}
	if t.Amount != nil {
		body.Amount = t.Amount.Dec()
	}

	uri := fmt.Sprintf("%s/api/v1/proof/verify", p.endpoint)

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, fmt.Errorf("proof verification cancelled: %w", err)
		}

		res, statusCode, err := p.proverRequest(ctx, uri, body)
		if err == nil {
			var bodyRes types.VerifyResponse
			if unmarshalErr := json.Unmarshal(res, &bodyRes); unmarshalErr != nil {
				lastErr = fmt.Errorf("error unmarshalling response: %w", unmarshalErr)
			} else if !bodyRes.Success {
				lastErr = fmt.Errorf("verifier failed: %s", bodyRes.Description)
			} else {
				if !bodyRes.Data.Valid {
					p.log.Infof("Verifier rejected %s proof at sequence %d: %s", t.Kind, t.Sequence, bodyRes.Data.Reason)
				}
				return bodyRes.Data.Valid, nil
			}
		} else {
			if statusCode == http.StatusBadRequest || // 400
				statusCode == http.StatusUnauthorized || // 401
				statusCode == http.StatusForbidden || // 403
				statusCode == http.StatusNotFound { // 404
				return false, fmt.Errorf("non-retryable error (HTTP %d): %w", statusCode, err)
			}
			lastErr = err
		}

		if attempt == p.maxAttempts {
			break
		}
		wait := p.delay(attempt)
		p.log.Warnf("Attempt %d: %v, retrying in %s", attempt, lastErr, wait)
		select {
		case <-ctx.Done():
			return false, fmt.Errorf("proof verification cancelled: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return false, fmt.Errorf("proof verification failed after %d attempts: %w", p.maxAttempts, lastErr)
}

func (p *RemoteVerifier) delay(attempt int) time.Duration {
	d := time.Duration(attempt) * p.backoff
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}
