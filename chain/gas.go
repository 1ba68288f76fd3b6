package chain

import (
	"context"
	"log"

	ethereum "github.com/ethereum/go-ethereum"
)

// GasBuffer is the safety margin applied on top of the node's estimate.
const gasBufferNumerator = 120
const gasBufferDenominator = 100

type gasBackend interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// Estimator estimates transaction gas with a 20% margin. Estimation is
// advisory: a failure returns 0, meaning "leave the gas limit unset and let
// the signing transport estimate". Never retried.
type Estimator struct {
	backend gasBackend
}

func NewEstimator(backend gasBackend) *Estimator {
	return &Estimator{backend: backend}
}

// WithBuffer returns the buffered gas limit for msg, or 0 on estimation
// failure.
func (e *Estimator) WithBuffer(ctx context.Context, msg ethereum.CallMsg) uint64 {
	estimate, err := e.backend.EstimateGas(ctx, msg)
	if err != nil {
		log.Printf("chain: gas estimation failed, deferring to wallet: %v", err)
		return 0
	}
	return estimate * gasBufferNumerator / gasBufferDenominator
}
