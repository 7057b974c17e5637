package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/airchains-network/settlement-bridge/custody"
	"github.com/airchains-network/settlement-bridge/identity"
	"github.com/airchains-network/settlement-bridge/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
)

// JSON-RPC protocol error codes. Bridge failures use the codes in package types.
const (
	codeParseError       = -32700
	codeMethodNotFound   = -32601
	codeInvalidParams    = -32602
	codeInvalidSignature = -32001
	codeInvalidNonce     = -32002
	codeNotFound         = -32004
)

const maxDepositsPage = 100

type rpcRequest struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return e.Message
}

type rpcResponse struct {
	Jsonrpc string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

func invalidParams(format string, args ...any) *rpcError {
	return &rpcError{Code: codeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) *rpcError {
	return &rpcError{Code: codeNotFound, Message: fmt.Sprintf(format, args...)}
}

// handleRPC processes incoming RPC requests
func (s *Server) handleRPC(c *gin.Context) {
	log := s.log.WithField("request_id", c.GetString(requestIDHeader))

	var req rpcRequest
	if err := c.BindJSON(&req); err != nil {
		log.Errorf("Failed to parse JSON-RPC request: %v", err)
		c.JSON(http.StatusBadRequest, rpcResponse{
			Jsonrpc: "2.0",
			Error:   &rpcError{Code: codeParseError, Message: "Invalid JSON-RPC request"},
		})
		return
	}

	resp := rpcResponse{Jsonrpc: "2.0", ID: req.ID}

	caller, rerr := s.authenticate(c, req.Method, req.Params)
	if rerr != nil {
		log.Debugf("%s refused: %s", req.Method, rerr.Message)
		resp.Error = rerr
		c.JSON(http.StatusOK, resp)
		return
	}
	ctx := identity.WithCaller(c.Request.Context(), caller)

	result, err := s.dispatch(ctx, req.Method, req.Params)
	if err != nil {
		resp.Error = toRPCError(err)
		if resp.Error.Code == types.CodeInternal {
			log.Errorf("%s failed: %v", req.Method, err)
		} else {
			log.Debugf("%s rejected: %v", req.Method, err)
		}
	} else {
		resp.Result = result
	}
	c.JSON(http.StatusOK, resp)
}

// authenticate resolves the caller of a request. Unsigned requests run as the
// zero identity. A signed request must carry the signer's next nonce and
// consumes it.
func (s *Server) authenticate(c *gin.Context, method string, params []byte) (identity.Identity, *rpcError) {
	header := c.GetHeader(SignatureHeader)
	if header == "" {
		return identity.Zero, nil
	}
	nonceText := c.GetHeader(NonceHeader)
	if nonceText == "" {
		return identity.Zero, &rpcError{Code: codeInvalidSignature, Message: "Missing " + NonceHeader + " header"}
	}
	nonce, err := strconv.ParseUint(nonceText, 10, 64)
	if err != nil {
		return identity.Zero, &rpcError{Code: codeInvalidSignature, Message: fmt.Sprintf("Invalid %s header: %v", NonceHeader, err)}
	}
	caller, err := recoverCaller(header, s.chainID, method, params, nonce)
	if err != nil {
		return identity.Zero, &rpcError{Code: codeInvalidSignature, Message: err.Error()}
	}
	if err := s.nonces.Use(caller, nonce); err != nil {
		if errors.Is(err, ErrStaleNonce) {
			return identity.Zero, &rpcError{Code: codeInvalidNonce, Message: err.Error()}
		}
		return identity.Zero, &rpcError{Code: types.CodeInternal, Message: err.Error()}
	}
	return caller, nil
}

func toRPCError(err error) *rpcError {
	var rerr *rpcError
	if errors.As(err, &rerr) {
		return rerr
	}
	if errors.Is(err, custody.ErrInvalidPurse) || errors.Is(err, custody.ErrBalanceOverflow) {
		return invalidParams("%v", err)
	}
	return &rpcError{Code: types.Code(err), Message: err.Error()}
}

func (s *Server) dispatch(ctx context.Context, method string, raw json.RawMessage) (any, error) {
	var params []json.RawMessage
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, invalidParams("params must be an array")
		}
	}
	arg := func(i int) json.RawMessage {
		if i < len(params) {
			return params[i]
		}
		return nil
	}

	switch method {
	case "bridge_initialize":
		root, err := parseRoot(arg(0), "initial root")
		if err != nil {
			return nil, err
		}
		var seqText string
		if err := parseString(arg(1), &seqText, "sequencer"); err != nil {
			return nil, err
		}
		sequencer, err := identity.Parse(seqText)
		if err != nil {
			return nil, invalidParams("invalid sequencer: %v", err)
		}
		if err := s.bridge.Initialize(ctx, root, sequencer); err != nil {
			return nil, err
		}
		return true, nil

	case "bridge_submitBatch":
		root, err := parseRoot(arg(0), "new root")
		if err != nil {
			return nil, err
		}
		proofBlob, err := parseBytes(arg(1), "proof")
		if err != nil {
			return nil, err
		}
		return s.bridge.SubmitBatch(ctx, root, proofBlob)

	case "bridge_deposit":
		amount, err := parseAmount(arg(0))
		if err != nil {
			return nil, err
		}
		var source, l2Address string
		if err := parseOptionalString(arg(1), &source, "source purse"); err != nil {
			return nil, err
		}
		if err := parseString(arg(2), &l2Address, "L2 address"); err != nil {
			return nil, err
		}
		return s.bridge.Deposit(ctx, amount, custody.AccountRef(source), l2Address)

	case "bridge_withdraw":
		amount, err := parseAmount(arg(0))
		if err != nil {
			return nil, err
		}
		proofBlob, err := parseBytes(arg(1), "proof")
		if err != nil {
			return nil, err
		}
		var recipient string
		if err := parseString(arg(2), &recipient, "recipient purse"); err != nil {
			return nil, err
		}
		return s.bridge.Withdraw(ctx, amount, proofBlob, custody.AccountRef(recipient))

	case "bridge_getState":
		return s.bridge.State(ctx)

	case "bridge_getNonce":
		var text string
		if err := parseString(arg(0), &text, "account"); err != nil {
			return nil, err
		}
		id, err := identity.Parse(text)
		if err != nil {
			return nil, invalidParams("invalid account: %v", err)
		}
		return s.nonces.Next(id)

	case "bridge_getBatchByNumber":
		n, err := parseUint(arg(0), "batch number")
		if err != nil {
			return nil, err
		}
		rec, err := s.bridge.Batch(n)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, notFound("Batch #%d not found", n)
		}
		return rec, nil

	case "bridge_getLatestBatch":
		rec, err := s.bridge.LatestBatch()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, notFound("No batches found")
		}
		return rec, nil

	case "bridge_getDeposit":
		n, err := parseUint(arg(0), "deposit nonce")
		if err != nil {
			return nil, err
		}
		rec, err := s.bridge.DepositRecord(n)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, notFound("Deposit #%d not found", n)
		}
		return rec, nil

	case "bridge_getDeposits":
		from, err := parseUint(arg(0), "start nonce")
		if err != nil {
			return nil, err
		}
		limit := uint64(maxDepositsPage)
		if arg(1) != nil {
			if limit, err = parseUint(arg(1), "limit"); err != nil {
				return nil, err
			}
		}
		if limit == 0 || limit > maxDepositsPage {
			return nil, invalidParams("limit must be between 1 and %d", maxDepositsPage)
		}
		return s.bridge.Deposits(from, int(limit))

	case "bridge_getWithdrawal":
		n, err := parseUint(arg(0), "withdrawal nonce")
		if err != nil {
			return nil, err
		}
		rec, err := s.bridge.WithdrawalRecord(n)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, notFound("Withdrawal #%d not found", n)
		}
		return rec, nil

	case "custody_balance":
		var ref string
		if err := parseString(arg(0), &ref, "purse"); err != nil {
			return nil, err
		}
		return s.purses.Balance(custody.AccountRef(ref))

	case "custody_mint":
		if !s.faucet {
			return nil, &rpcError{Code: codeMethodNotFound, Message: "Method not supported: " + method}
		}
		var ref string
		if err := parseString(arg(0), &ref, "purse"); err != nil {
			return nil, err
		}
		amount, err := parseAmount(arg(1))
		if err != nil {
			return nil, err
		}
		if err := s.purses.Mint(custody.AccountRef(ref), amount); err != nil {
			return nil, err
		}
		return s.purses.Balance(custody.AccountRef(ref))

	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: "Method not supported: " + method}
	}
}

func parseString(raw json.RawMessage, dst *string, name string) error {
	if raw == nil {
		return invalidParams("Missing %s", name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return invalidParams("Invalid %s", name)
	}
	return nil
}

func parseOptionalString(raw json.RawMessage, dst *string, name string) error {
	if raw == nil || string(raw) == "null" {
		*dst = ""
		return nil
	}
	return parseString(raw, dst, name)
}

func parseBytes(raw json.RawMessage, name string) ([]byte, error) {
	var text string
	if err := parseString(raw, &text, name); err != nil {
		return nil, err
	}
	b, err := hexutil.Decode(text)
	if err != nil {
		return nil, invalidParams("Invalid %s: %v", name, err)
	}
	return b, nil
}

func parseRoot(raw json.RawMessage, name string) (types.Root, error) {
	b, err := parseBytes(raw, name)
	if err != nil {
		return nil, err
	}
	return types.Root(b), nil
}

// parseAmount accepts a decimal or 0x-prefixed hex string, or a JSON number.
func parseAmount(raw json.RawMessage) (*uint256.Int, error) {
	if raw == nil {
		return nil, invalidParams("Missing amount")
	}
	amount := new(uint256.Int)
	if err := amount.UnmarshalJSON(raw); err != nil {
		return nil, invalidParams("Invalid amount: %v", err)
	}
	return amount, nil
}

// parseUint accepts a JSON number or a decimal or 0x-prefixed string.
func parseUint(raw json.RawMessage, name string) (uint64, error) {
	if raw == nil {
		return 0, invalidParams("Missing %s", name)
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, invalidParams("Invalid %s", name)
	}
	n, err := strconv.ParseUint(text, 0, 64)
	if err != nil {
		return 0, invalidParams("Invalid %s: %v", name, err)
	}
	return n, nil
}
