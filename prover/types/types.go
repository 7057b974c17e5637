package types

// VerifyRequest is the body of POST /api/v1/proof/verify.
type VerifyRequest struct {
	Kind         string `json:"kind"`
	PreviousRoot string `json:"previous_root"`
	NewRoot      string `json:"new_root,omitempty"`
	Sequence     uint64 `json:"sequence"`
	Amount       string `json:"amount,omitempty"`
	Recipient    string `json:"recipient,omitempty"`
	Nonce        uint64 `json:"nonce"`
	Proof        string `json:"proof"`
}

type VerifyData struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type VerifyResponse struct {
	Status      int        `json:"status"`
	Success     bool       `json:"success"`
	Message     string     `json:"message"`
	Description string     `json:"description"`
	Data        VerifyData `json:"data,omitempty"`
}
