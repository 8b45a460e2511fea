// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package probe

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var errUnhealthyStatus = errors.New("unhealthy status code")

type breakerOptions struct {
	name        string
	maxRequests uint32
	timeout     time.Duration
	tripCount   uint32
	statusCodes []int
}

// circuitRoundTripper stops sending requests to a server which keeps
// failing until the breaker timeout elapses. Responses with one of the
// configured status codes count as failures but are still returned.
type circuitRoundTripper struct {
	http.RoundTripper
	cb          *gobreaker.CircuitBreaker
	statusCodes []int
}

func newCircuitRoundTripper(rt http.RoundTripper, log *zap.Logger, bo breakerOptions) *circuitRoundTripper {
	log = log.Named(bo.name)

	return &circuitRoundTripper{
		RoundTripper: rt,
		statusCodes:  bo.statusCodes,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        bo.name,
			MaxRequests: bo.maxRequests,
			Timeout:     bo.timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= bo.tripCount
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				switch to {
				case gobreaker.StateOpen:
					log.Error("circuit has been opened")
				case gobreaker.StateHalfOpen:
					log.Warn("circuit is now half open and letting some requests through", zap.Uint32("max_requests_allowed_through", bo.maxRequests))
				case gobreaker.StateClosed:
					log.Info("circuit has been closed")
				}
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

func (rt *circuitRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	v, err := rt.cb.Execute(func() (interface{}, error) {
		resp, err := rt.RoundTripper.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if slices.Contains(rt.statusCodes, resp.StatusCode) {
			return resp, errUnhealthyStatus
		}
		return resp, nil
	})
	resp, _ := v.(*http.Response)
	if errors.Is(err, errUnhealthyStatus) && resp != nil {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// State reports the current state of the breaker.
func (rt *circuitRoundTripper) State() gobreaker.State {
	return rt.cb.State()
}
