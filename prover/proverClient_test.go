package prover

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/airchains-network/settlement-bridge/proof"
	"github.com/airchains-network/settlement-bridge/prover/types"
	stypes "github.com/airchains-network/settlement-bridge/types"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newVerifier(url string, attempts int) *RemoteVerifier {
	v := NewRemoteVerifier(url, attempts, quietLogger())
	v.SetBackoff(time.Millisecond)
	return v
}

func TestRemoteVerifierSendsTransition(t *testing.T) {
	var got types.VerifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/proof/verify", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(types.VerifyResponse{Status: 200, Success: true, Data: types.VerifyData{Valid: true}})
	}))
	defer srv.Close()

	ok, err := newVerifier(srv.URL+"/", 3).Verify(context.Background(), proof.Transition{
		Kind:         proof.KindWithdrawal,
		PreviousRoot: stypes.Root{0xab},
		Amount:       uint256.NewInt(60),
		Recipient:    "main-purse-01",
		Nonce:        4,
	}, []byte{0x01, 0x02})
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "withdrawal", got.Kind)
	assert.Equal(t, "0xab", got.PreviousRoot)
	assert.Empty(t, got.NewRoot)
	assert.Equal(t, "60", got.Amount)
	assert.Equal(t, "main-purse-01", got.Recipient)
	assert.Equal(t, uint64(4), got.Nonce)
	assert.Equal(t, "0x0102", got.Proof)
}

func TestRemoteVerifierRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(types.VerifyResponse{Status: 200, Success: true, Data: types.VerifyData{Valid: false, Reason: "bad pairing"}})
	}))
	defer srv.Close()

	ok, err := newVerifier(srv.URL, 3).Verify(context.Background(), proof.Transition{Kind: proof.KindBatch}, []byte{0x01})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoteVerifierRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(types.VerifyResponse{Status: 200, Success: true, Data: types.VerifyData{Valid: true}})
	}))
	defer srv.Close()

	ok, err := newVerifier(srv.URL, 5).Verify(context.Background(), proof.Transition{Kind: proof.KindBatch}, []byte{0x01})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRemoteVerifierGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(types.VerifyResponse{Status: 500, Success: false, Description: "busy"})
	}))
	defer srv.Close()

	_, err := newVerifier(srv.URL, 2).Verify(context.Background(), proof.Transition{Kind: proof.KindBatch}, []byte{0x01})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy")
	assert.Equal(t, int32(2), calls.Load())
}

func TestRemoteVerifierNonRetryable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newVerifier(srv.URL, 5).Verify(context.Background(), proof.Transition{Kind: proof.KindBatch}, []byte{0x01})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-retryable")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRemoteVerifierCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newVerifier("http://127.0.0.1:1", 3).Verify(ctx, proof.Transition{Kind: proof.KindBatch}, []byte{0x01})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRemoteVerifierAttemptTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	v := newVerifier(srv.URL, 2)
	v.SetTimeout(50 * time.Millisecond)

	start := time.Now()
	_, err := v.Verify(context.Background(), proof.Transition{Kind: proof.KindBatch}, []byte{0x01})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRemoteVerifierDeadlineStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	v := newVerifier(srv.URL, 5)
	v.SetBackoff(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := v.Verify(ctx, proof.Transition{Kind: proof.KindBatch}, []byte{0x01})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
