package sources

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"NarrativeScout/backend/go/internal/config"
	"NarrativeScout/backend/go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcHandler answers JSON-RPC calls from a method -> raw response body table.
func rpcHandler(t *testing.T, responses map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		key := req.Method
		if req.Method == "getSignaturesForAddress" && len(req.Params) > 0 {
			var addr string
			_ = json.Unmarshal(req.Params[0], &addr)
			key += ":" + addr
		}
		body, ok := responses[key]
		if !ok {
			body = `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}
}

var healthyRPC = map[string]string{
	"getRecentPerformanceSamples": `{"jsonrpc":"2.0","id":1,"result":[
		{"numTransactions":6000,"numNonVoteTransactions":1200,"numSlots":150,"samplePeriodSecs":60},
		{"numTransactions":3000,"numNonVoteTransactions":600,"numSlots":150,"samplePeriodSecs":60},
		{"numTransactions":100,"numSlots":0,"samplePeriodSecs":0}]}`,
	"getEpochInfo":                 `{"jsonrpc":"2.0","id":1,"result":{"epoch":700,"slotIndex":108000,"slotsInEpoch":432000,"absoluteSlot":302508000,"transactionCount":400000000000}}`,
	"getSupply":                    `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":{"total":600000000000000000,"circulating":480000000000000000,"nonCirculating":120000000000000000,"nonCirculatingAccounts":[]}}}`,
	"getSignaturesForAddress:JUP6": `{"jsonrpc":"2.0","id":1,"result":[{"signature":"a"},{"signature":"b"},{"signature":"c"}]}`,
}

func newSolanaCollector(t *testing.T, url string, programs ...config.TrackedProgram) *SolanaCollector {
	t.Helper()
	c := NewSolanaCollector(config.SolanaConfig{
		RPCURL:          url,
		SignatureLimit:  100,
		TrackedPrograms: programs,
	}, newTestTransport(), nil)
	c.now = func() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) }
	return c
}

func TestSolanaCollector_Collect(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, healthyRPC))
	defer srv.Close()

	c := newSolanaCollector(t, srv.URL,
		config.TrackedProgram{Name: "Jupiter", Address: "JUP6", Category: "DeFi"},
		config.TrackedProgram{Name: "Broken", Address: "NOPE", Category: "NFT"},
	)
	signals, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 4, "performance, epoch, supply and one program; the failing program is skipped")

	perf := signals[0]
	assert.Equal(t, "Network Performance", perf.Category)
	assert.Equal(t, "Solana TPS: 75 total, 15 non-vote", perf.Title)
	assert.InDelta(t, 75.0, perf.Metrics[0].Value, 1e-9)
	assert.Contains(t, perf.Description, "Average over 2 recent samples")

	epoch := signals[1]
	assert.Equal(t, "Epoch 700: 25.0% complete", epoch.Title)
	assert.Contains(t, epoch.Description, "Total transactions: 400000000000")

	sup := signals[2]
	assert.Equal(t, "SOL Supply: 480.0M circulating (80.0%)", sup.Title)
	assert.Nil(t, sup.URL)

	prog := signals[3]
	assert.Equal(t, models.SourceSolanaOnchain, prog.Source)
	assert.Equal(t, "DeFi", prog.Category)
	assert.Equal(t, "Jupiter: 3 recent transactions", prog.Title)
	assert.Equal(t, "https://explorer.solana.com/address/JUP6", prog.URLOrEmpty())
	for _, s := range signals {
		assert.Equal(t, time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC), s.Timestamp)
	}
}

func TestSolanaCollector_NetworkCallFailureFailsCollector(t *testing.T) {
	responses := map[string]string{}
	for k, v := range healthyRPC {
		responses[k] = v
	}
	responses["getEpochInfo"] = `{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"Node is behind"}}`

	srv := httptest.NewServer(rpcHandler(t, responses))
	defer srv.Close()

	_, err := newSolanaCollector(t, srv.URL).Collect(context.Background())

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "getEpochInfo", rpcErr.Method)
	assert.Equal(t, -32005, rpcErr.Code)
	assert.Equal(t, "solana rpc getEpochInfo: Node is behind (code -32005)", err.Error())
}

func TestSolanaCollector_MissingResult(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]string{
		"getRecentPerformanceSamples": `{"jsonrpc":"2.0","id":1,"result":null}`,
	}))
	defer srv.Close()

	_, err := newSolanaCollector(t, srv.URL).Collect(context.Background())
	assert.ErrorContains(t, err, "response missing result")
}

func TestSolanaCollector_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newSolanaCollector(t, srv.URL).Collect(context.Background())
	assert.ErrorContains(t, err, "HTTP 503")
}

func TestPerformanceSignal_NoUsableSamples(t *testing.T) {
	_, ok := performanceSignal([]performanceSample{{NumTransactions: 10}}, time.Now())
	assert.False(t, ok)
}
