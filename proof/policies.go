package proof

import "context"

// AcceptAll approves every transition.
type AcceptAll struct{}

func (AcceptAll) Verify(context.Context, Transition, []byte) (bool, error) {
	return true, nil
}

// RejectAll refuses every transition.
type RejectAll struct{}

func (RejectAll) Verify(context.Context, Transition, []byte) (bool, error) {
	return false, nil
}

// NonEmpty accepts any non-empty proof. It is the placeholder policy the
// bridge shipped with and does not look at the transition at all.
type NonEmpty struct{}

func (NonEmpty) Verify(_ context.Context, _ Transition, proof []byte) (bool, error) {
	return len(proof) > 0, nil
}
