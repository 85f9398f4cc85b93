package gateway

import (
	"net/http"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDecisionMetrics(t *testing.T) {
	_, router := newTestGateway(t, nil)
	metrics := GetMetrics()

	read := func(outcome string) float64 {
		var m dto.Metric
		require.NoError(t, metrics.checkDecisionsTotal.WithLabelValues(outcome).Write(&m))
		return m.GetCounter().GetValue()
	}

	allowedBefore := read(outcomeAllowed)
	deniedBefore := read(outcomeDenied)

	assert.Equal(t, http.StatusOK, doCheck(router, "app", "/public").Code)
	assert.Equal(t, http.StatusUnauthorized, doCheck(router, "app", "/private").Code)

	assert.Equal(t, allowedBefore+1, read(outcomeAllowed))
	assert.Equal(t, deniedBefore+1, read(outcomeDenied))
}

func TestLoginAttemptMetrics(t *testing.T) {
	_, router := newTestGateway(t, nil)
	metrics := GetMetrics()

	read := func(result string) float64 {
		var m dto.Metric
		require.NoError(t, metrics.loginAttemptsTotal.WithLabelValues(result).Write(&m))
		return m.GetCounter().GetValue()
	}

	successBefore := read(loginSuccess)
	failureBefore := read(loginFailure)

	doLogin(router, "alice", "secret")
	doLogin(router, "alice", "nope")

	assert.Equal(t, successBefore+1, read(loginSuccess))
	assert.Equal(t, failureBefore+1, read(loginFailure))
}
