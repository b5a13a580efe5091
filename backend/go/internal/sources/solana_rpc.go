package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"NarrativeScout/backend/go/internal/config"
	"NarrativeScout/backend/go/internal/models"
	transport "NarrativeScout/backend/go/pkg/http"
	"NarrativeScout/backend/go/pkg/logger"
	"NarrativeScout/backend/go/pkg/ratelimiter"
)

const explorerURL = "https://explorer.solana.com/"

// RPCError is an error object returned by a JSON-RPC endpoint.
type RPCError struct {
	Method  string `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("solana rpc %s: %s (code %d)", e.Method, e.Message, e.Code)
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

type performanceSample struct {
	NumTransactions        uint64  `json:"numTransactions"`
	NumNonVoteTransactions *uint64 `json:"numNonVoteTransactions"`
	NumSlots               uint64  `json:"numSlots"`
	SamplePeriodSecs       uint64  `json:"samplePeriodSecs"`
}

type epochInfo struct {
	Epoch            uint64  `json:"epoch"`
	SlotIndex        uint64  `json:"slotIndex"`
	SlotsInEpoch     uint64  `json:"slotsInEpoch"`
	AbsoluteSlot     uint64  `json:"absoluteSlot"`
	TransactionCount *uint64 `json:"transactionCount"`
}

type supply struct {
	Value struct {
		Total          uint64 `json:"total"`
		Circulating    uint64 `json:"circulating"`
		NonCirculating uint64 `json:"nonCirculating"`
	} `json:"value"`
}

// SolanaCollector reads network-level metrics and tracked-program activity over JSON-RPC.
type SolanaCollector struct {
	http    *transport.Client
	cfg     config.SolanaConfig
	limiter ratelimiter.RateLimiter
	now     func() time.Time
	log     *logger.Logger
}

// NewSolanaCollector creates the collector. RPC calls are throttled to cfg.RequestsPerSecond.
func NewSolanaCollector(cfg config.SolanaConfig, hc *transport.Client, log *logger.Logger) *SolanaCollector {
	if log == nil {
		log = logger.Nop()
	}
	return &SolanaCollector{
		http:    hc,
		cfg:     cfg,
		limiter: ratelimiter.NewTokenBucket(cfg.RequestsPerSecond, cfg.Burst),
		now:     time.Now,
		log:     log.Named("solana"),
	}
}

// Name implements Collector.
func (s *SolanaCollector) Name() string { return models.SourceSolanaOnchain.String() }

// Collect fetches performance samples, epoch info and supply, then per-program activity.
// Any of the first three failing fails the collector; a tracked program failing is skipped.
func (s *SolanaCollector) Collect(ctx context.Context) ([]models.Signal, error) {
	now := s.now().UTC()
	var signals []models.Signal

	var samples []performanceSample
	if err := s.call(ctx, "getRecentPerformanceSamples", []interface{}{10}, &samples); err != nil {
		return nil, err
	}
	if sig, ok := performanceSignal(samples, now); ok {
		signals = append(signals, sig)
	}

	var epoch epochInfo
	if err := s.call(ctx, "getEpochInfo", []interface{}{}, &epoch); err != nil {
		return nil, err
	}
	signals = append(signals, epochSignal(epoch, now))

	var sup supply
	if err := s.call(ctx, "getSupply", []interface{}{}, &sup); err != nil {
		return nil, err
	}
	signals = append(signals, supplySignal(sup, now))

	for _, program := range s.cfg.TrackedPrograms {
		var sigs []struct {
			Signature string `json:"signature"`
		}
		params := []interface{}{program.Address, map[string]int{"limit": s.cfg.SignatureLimit}}
		if err := s.call(ctx, "getSignaturesForAddress", params, &sigs); err != nil {
			s.log.WithField("program", program.Name).
				WithError(models.ErrorInfo{Message: err.Error(), Type: "rpc_error", Source: "SolanaOnchain"}).
				Warn("failed to get program activity")
			continue
		}
		signals = append(signals, models.Signal{
			Source:      models.SourceSolanaOnchain,
			Category:    program.Category,
			Title:       fmt.Sprintf("%s: %d recent transactions", program.Name, len(sigs)),
			Description: fmt.Sprintf("Program %s (%s) had %d transactions in recent history.", program.Name, program.Address, len(sigs)),
			Metrics:     []models.Metric{{Name: "recent_tx_count", Value: float64(len(sigs)), Unit: "txs"}},
			URL:         models.StringPtr(explorerURL + "address/" + program.Address),
			Timestamp:   now,
		})
	}

	s.log.WithField("count", len(signals)).Debug("collected solana onchain signals")
	return signals, nil
}

// call performs one JSON-RPC request and decodes its result into out.
func (s *SolanaCollector) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("serialize %s: %w", method, err)
	}

	raw, err := s.http.PostJSON(ctx, s.cfg.RPCURL, body, nil)
	if err != nil {
		return fmt.Errorf("solana rpc %s: %w", method, err)
	}

	var resp rpcResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return fmt.Errorf("parse %s response: %w", method, err)
	}
	if resp.Error != nil {
		resp.Error.Method = method
		return resp.Error
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return fmt.Errorf("solana rpc %s: response missing result", method)
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func performanceSignal(samples []performanceSample, now time.Time) (models.Signal, bool) {
	var tps, nonVote float64
	used := 0
	for _, s := range samples {
		if s.SamplePeriodSecs == 0 {
			continue
		}
		period := float64(s.SamplePeriodSecs)
		tps += float64(s.NumTransactions) / period
		if s.NumNonVoteTransactions != nil {
			nonVote += float64(*s.NumNonVoteTransactions) / period
		}
		used++
	}
	if used == 0 {
		return models.Signal{}, false
	}
	tps /= float64(used)
	nonVote /= float64(used)

	return models.Signal{
		Source:      models.SourceSolanaOnchain,
		Category:    "Network Performance",
		Title:       fmt.Sprintf("Solana TPS: %.0f total, %.0f non-vote", tps, nonVote),
		Description: fmt.Sprintf("Average over %d recent samples. Non-vote TPS indicates real user activity vs consensus overhead.", used),
		Metrics: []models.Metric{
			{Name: "avg_tps", Value: tps, Unit: "tx/s"},
			{Name: "avg_non_vote_tps", Value: nonVote, Unit: "tx/s"},
		},
		URL:       models.StringPtr(explorerURL),
		Timestamp: now,
	}, true
}

func epochSignal(e epochInfo, now time.Time) models.Signal {
	var progress float64
	if e.SlotsInEpoch > 0 {
		progress = float64(e.SlotIndex) / float64(e.SlotsInEpoch) * 100
	}
	desc := fmt.Sprintf("Slot %d/%d, absolute slot %d.", e.SlotIndex, e.SlotsInEpoch, e.AbsoluteSlot)
	if e.TransactionCount != nil {
		desc += fmt.Sprintf(" Total transactions: %d", *e.TransactionCount)
	}

	return models.Signal{
		Source:      models.SourceSolanaOnchain,
		Category:    "Network State",
		Title:       fmt.Sprintf("Epoch %d: %.1f%% complete", e.Epoch, progress),
		Description: desc,
		Metrics: []models.Metric{
			{Name: "epoch", Value: float64(e.Epoch)},
			{Name: "epoch_progress", Value: progress, Unit: "%"},
			{Name: "absolute_slot", Value: float64(e.AbsoluteSlot), Unit: "slot"},
		},
		URL:       models.StringPtr(explorerURL),
		Timestamp: now,
	}
}

// lamportsPerMillionSOL converts lamports to millions of SOL.
const lamportsPerMillionSOL = 1e15

func supplySignal(s supply, now time.Time) models.Signal {
	v := s.Value
	var pct float64
	if v.Total > 0 {
		pct = float64(v.Circulating) / float64(v.Total) * 100
	}

	return models.Signal{
		Source:   models.SourceSolanaOnchain,
		Category: "Token Economics",
		Title:    fmt.Sprintf("SOL Supply: %.1fM circulating (%.1f%%)", float64(v.Circulating)/lamportsPerMillionSOL, pct),
		Description: fmt.Sprintf("Total: %.1fM SOL, Circulating: %.1fM SOL, Non-circulating: %.1fM SOL",
			float64(v.Total)/lamportsPerMillionSOL,
			float64(v.Circulating)/lamportsPerMillionSOL,
			float64(v.NonCirculating)/lamportsPerMillionSOL),
		Metrics: []models.Metric{
			{Name: "circulating_sol", Value: float64(v.Circulating) / 1e9, Unit: "SOL"},
			{Name: "circulating_pct", Value: pct, Unit: "%"},
		},
		Timestamp: now,
	}
}
