package proof

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
	"github.com/holiman/uint256"
)

// ExprPolicy evaluates a boolean expr-lang expression against the
// transition. Variables:
//
//	kind           "batch" or "withdrawal"
//	proof          proof blob as 0x hex
//	proof_len      proof length in bytes
//	previous_root  0x hex
//	new_root       0x hex, "0x" for withdrawals
//	sequence       batch number the transition would get
//	amount         *uint256.Int, zero for batches (amount.Uint64(), amount.IsZero())
//	recipient      withdrawal recipient purse
//	nonce          withdrawal nonce
type ExprPolicy struct {
	expression string
	program    *exprvm.Program
}

// NewExprPolicy compiles expression once; evaluation errors surface from Verify.
func NewExprPolicy(expression string) (*ExprPolicy, error) {
	if expression == "" {
		return nil, fmt.Errorf("proof expression must not be empty")
	}
	program, err := exprlang.Compile(expression,
		exprlang.Env(environment(Transition{}, nil)),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile proof expression %q: %w", expression, err)
	}
	return &ExprPolicy{expression: expression, program: program}, nil
}

func (p *ExprPolicy) Verify(ctx context.Context, t Transition, proof []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	out, err := exprlang.Run(p.program, environment(t, proof))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate proof expression %q: %w", p.expression, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

func (p *ExprPolicy) String() string {
	return p.expression
}

func environment(t Transition, proof []byte) map[string]any {
	amount := new(uint256.Int)
	if t.Amount != nil {
		amount.Set(t.Amount)
	}
	return map[string]any{
		"kind":          t.Kind.String(),
		"proof":         hexutil.Encode(proof),
		"proof_len":     len(proof),
		"previous_root": hexutil.Encode(t.PreviousRoot),
		"new_root":      hexutil.Encode(t.NewRoot),
		"sequence":      t.Sequence,
		"amount":        amount,
		"recipient":     t.Recipient,
		"nonce":         t.Nonce,
	}
}
