package gateway

import "context"

// StubClient is an in-memory Client for tests and local development. Verify
// verdicts are keyed by reference; unknown references are rejected.
type StubClient struct {
	InitializeFn func(ctx context.Context, req InitializeRequest) (*InitializeResponse, error)
	Outcomes     map[string]*Outcome
}

func NewStubClient() *StubClient {
	return &StubClient{Outcomes: make(map[string]*Outcome)}
}

func (s *StubClient) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	if s.InitializeFn != nil {
		return s.InitializeFn(ctx, req)
	}
	return &InitializeResponse{
		AuthorizationURL: "https://checkout.example/" + req.Reference,
		AccessCode:       "access_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (s *StubClient) VerifyTransaction(_ context.Context, reference string) (*Outcome, error) {
	outcome, ok := s.Outcomes[reference]
	if !ok {
		return nil, ErrRejected
	}
	return outcome, nil
}
