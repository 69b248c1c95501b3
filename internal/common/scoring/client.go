// internal/common/scoring/client.go
package scoring

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"net"

	"tranche-workers/internal/common/config"
	"tranche-workers/internal/common/errors"
	httpclient "tranche-workers/internal/common/http"
	"tranche-workers/internal/models"
)

// Predictor fills PredictedRiskScore for a batch of loans.
type Predictor interface {
	Predict(ctx context.Context, loans []*models.LoanRecord) ([]float64, error)
}

// Client talks to the risk model service.
type Client struct {
	http   *httpclient.Client
	url    string
	apiKey string
}

type predictRequest struct {
	Loans []features `json:"loans"`
}

type predictResponse struct {
	Predictions []float64 `json:"predictions"`
}

// features is one model input row: the normalized record plus the derived
// ratios the model was trained on.
type features struct {
	*models.LoanRecord
	LiquidityRatio     *float64 `json:"Liquidity_Ratio"`
	RelativeRatio      *float64 `json:"Relative_Ratio"`
	IncomePerDependent *float64 `json:"IncomePerDependent"`
}

func NewClient(cfg config.ScoringConfig) *Client {
	return &Client{
		http:   httpclient.NewClient(config.GetDuration(cfg.Timeout)),
		url:    cfg.URL,
		apiKey: cfg.APIKey,
	}
}

// Predict returns one score per loan, in order.
func (c *Client) Predict(ctx context.Context, loans []*models.LoanRecord) ([]float64, error) {
	if len(loans) == 0 {
		return []float64{}, nil
	}

	req := predictRequest{Loans: make([]features, len(loans))}
	for i, l := range loans {
		req.Loans[i] = features{
			LoanRecord:         l,
			LiquidityRatio:     finite(l.LiquidityRatio()),
			RelativeRatio:      finite(l.RelativeRatio()),
			IncomePerDependent: finite(l.IncomePerDependent()),
		}
	}

	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	var resp predictResponse
	if err := c.http.PostJSON(ctx, c.url, headers, req, &resp); err != nil {
		if isTimeout(ctx, err) {
			return nil, errors.NewScoringTimeoutError()
		}
		return nil, errors.NewScoringFailedError(err)
	}

	if len(resp.Predictions) != len(loans) {
		return nil, errors.NewScoringFailedError(
			fmt.Errorf("got %d predictions for %d loans", len(resp.Predictions), len(loans)))
	}
	return resp.Predictions, nil
}

// Apply sets PredictedRiskScore on each loan from predictions.
func Apply(loans []*models.LoanRecord, predictions []float64) {
	for i := range loans {
		if i >= len(predictions) {
			return
		}
		p := predictions[i]
		loans[i].PredictedRiskScore = &p
	}
}

// finite maps NaN and +-Inf to null; encoding/json refuses them.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func isTimeout(ctx context.Context, err error) bool {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
