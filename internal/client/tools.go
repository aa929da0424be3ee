package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Backend paths.
const (
	PathIndex      = "/"
	PathHealth     = "/tools/health"
	PathPredict    = "/tools/predict"
	PathScanAll    = "/tools/scan_all"
	PathAnalyze    = "/tools/analyze"
	PathConfirm    = "/tools/confirm"
	PathFeedback   = "/tools/feedback"
	PathAuthStatus = "/auth/status"
	PathLogin      = "/auth/login"
)

// Horizons accepted by the prediction endpoints.
var Horizons = []string{"intraday", "short", "long"}

// ValidHorizon reports whether h is an accepted horizon.
func ValidHorizon(h string) bool {
	for _, v := range Horizons {
		if strings.EqualFold(v, h) {
			return true
		}
	}

	return false
}

// ServiceInfo is the backend index document.
type ServiceInfo struct {
	Name       string         `json:"name"`
	Version    string         `json:"version"`
	AuthStatus string         `json:"auth_status"`
	RateLimits map[string]int `json:"rate_limits,omitempty"`
}

// Health is the backend health document. Only Status or Healthy is required.
type Health struct {
	Status    string         `json:"status"`
	Healthy   *bool          `json:"healthy,omitempty"`
	Message   string         `json:"message,omitempty"`
	Version   string         `json:"version,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	System    map[string]any `json:"system,omitempty"`
	Models    *ModelsInfo    `json:"models,omitempty"`
}

// ModelsInfo describes the trained models reported by the health endpoint.
type ModelsInfo struct {
	Available    bool `json:"available"`
	TotalTrained int  `json:"total_trained"`
}

// PredictRequest is the body for the predict endpoint.
type PredictRequest struct {
	Symbols          []string `json:"symbols"`
	Horizon          string   `json:"horizon"`
	RiskProfile      string   `json:"risk_profile,omitempty"`
	StopLossPct      float64  `json:"stop_loss_pct,omitempty"`
	CapitalRiskPct   float64  `json:"capital_risk_pct,omitempty"`
	DrawdownLimitPct float64  `json:"drawdown_limit_pct,omitempty"`
}

// Prediction is one model prediction.
type Prediction struct {
	Symbol     string  `json:"symbol"`
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
	EntryPrice float64 `json:"entry_price"`
	Timestamp  string  `json:"timestamp"`
	Timeframe  string  `json:"timeframe"`
}

// ScanRequest is the body for the scan endpoint.
type ScanRequest struct {
	Symbols        []string `json:"symbols"`
	Horizon        string   `json:"horizon"`
	MinConfidence  float64  `json:"min_confidence"`
	StopLossPct    float64  `json:"stop_loss_pct,omitempty"`
	CapitalRiskPct float64  `json:"capital_risk_pct,omitempty"`
}

// ScanResult is one ranked symbol from a scan.
type ScanResult struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        string  `json:"volume"`
	Direction     string  `json:"direction,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
}

// AnalyzeRequest is the body for the analyze endpoint.
type AnalyzeRequest struct {
	Symbol           string   `json:"symbol"`
	Horizons         []string `json:"horizons"`
	StopLossPct      float64  `json:"stop_loss_pct,omitempty"`
	CapitalRiskPct   float64  `json:"capital_risk_pct,omitempty"`
	DrawdownLimitPct float64  `json:"drawdown_limit_pct,omitempty"`
}

// Analysis is the multi-horizon analysis of one symbol.
type Analysis struct {
	Symbol   string                     `json:"symbol"`
	Horizons map[string]HorizonAnalysis `json:"horizons"`
}

// HorizonAnalysis holds the candles and indicators for one horizon.
type HorizonAnalysis struct {
	PriceData  []Candle       `json:"price_data"`
	Indicators map[string]any `json:"indicators,omitempty"`
}

// Candle is one OHLCV bar.
type Candle struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// TradeRequest is the body for the trade confirmation endpoint.
type TradeRequest struct {
	StopLoss     float64 `json:"stopLoss"`
	TargetProfit float64 `json:"targetProfit"`
	Amount       float64 `json:"amount"`
	RiskMode     bool    `json:"riskMode"`
}

// TradeConfirmation is the backend's answer to a trade request.
type TradeConfirmation struct {
	Success bool   `json:"success"`
	TradeID string `json:"trade_id,omitempty"`
	Message string `json:"message"`
}

// FeedbackRequest reports user feedback on a prediction.
type FeedbackRequest struct {
	Symbol          string   `json:"symbol"`
	PredictedAction string   `json:"predicted_action"`
	UserFeedback    string   `json:"user_feedback"`
	ActualReturn    *float64 `json:"actual_return,omitempty"`
	Message         string   `json:"message,omitempty"`
}

// LoginResult is returned by the login endpoint.
type LoginResult struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
	Token    string `json:"token"`
	Message  string `json:"message"`
}

// ConnectionStatus is the result of a connectivity check.
type ConnectionStatus struct {
	Connected bool
	Info      *ServiceInfo
	Err       error
}

// CheckConnection calls the index endpoint. Any HTTP response counts as
// connected; only transport failures and timeouts count as disconnected.
func (c *Client) CheckConnection(ctx context.Context) ConnectionStatus {
	outcome, err := c.Execute(ctx, &Request{Method: http.MethodGet, Path: PathIndex})
	if outcome == nil || !outcome.Responded() {
		return ConnectionStatus{Err: err}
	}

	status := ConnectionStatus{Connected: true, Err: err}

	if err == nil {
		var info ServiceInfo
		if decodeErr := outcome.Decode(&info); decodeErr == nil {
			status.Info = &info
		}
	}

	return status
}

// Health fetches the backend health document.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var health Health
	if err := c.call(ctx, http.MethodGet, PathHealth, nil, &health); err != nil {
		return nil, err
	}

	return &health, nil
}

// Predict requests predictions. The response may be a bare list or wrapped
// in a "predictions" field.
func (c *Client) Predict(ctx context.Context, req *PredictRequest) ([]Prediction, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodPost, PathPredict, req, &raw); err != nil {
		return nil, err
	}

	var predictions []Prediction
	if err := decodeList(raw, "predictions", &predictions); err != nil {
		return nil, fmt.Errorf("failed to parse predict response: %w", err)
	}

	return predictions, nil
}

// ScanAll ranks the given symbols. The response may be a bare list or wrapped
// in a "results" field.
func (c *Client) ScanAll(ctx context.Context, req *ScanRequest) ([]ScanResult, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodPost, PathScanAll, req, &raw); err != nil {
		return nil, err
	}

	var results []ScanResult
	if err := decodeList(raw, "results", &results); err != nil {
		return nil, fmt.Errorf("failed to parse scan response: %w", err)
	}

	return results, nil
}

// Analyze runs a multi-horizon analysis of one symbol.
func (c *Client) Analyze(ctx context.Context, req *AnalyzeRequest) (*Analysis, error) {
	var analysis Analysis
	if err := c.call(ctx, http.MethodPost, PathAnalyze, req, &analysis); err != nil {
		return nil, err
	}

	return &analysis, nil
}

// ConfirmTrade submits trade parameters. Not idempotent: the automatic retry
// only fires when no response was received.
func (c *Client) ConfirmTrade(ctx context.Context, req *TradeRequest) (*TradeConfirmation, error) {
	var confirmation TradeConfirmation
	if err := c.call(ctx, http.MethodPost, PathConfirm, req, &confirmation); err != nil {
		return nil, err
	}

	return &confirmation, nil
}

// SendFeedback reports feedback on a prediction.
func (c *Client) SendFeedback(ctx context.Context, req *FeedbackRequest) (map[string]any, error) {
	result := map[string]any{}
	if err := c.call(ctx, http.MethodPost, PathFeedback, req, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// AuthStatus returns the caller's rate-limit status.
func (c *Client) AuthStatus(ctx context.Context) (map[string]any, error) {
	result := map[string]any{}
	if err := c.call(ctx, http.MethodGet, PathAuthStatus, nil, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// Login exchanges a username and password for a bearer token. When the
// backend has authentication disabled the returned token is the no-auth sentinel.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body := map[string]string{"username": username, "password": password}

	var result LoginResult
	if err := c.call(ctx, http.MethodPost, PathLogin, body, &result); err != nil {
		return nil, err
	}

	if result.Token == "" {
		return nil, fmt.Errorf("login response did not include a token")
	}

	return &result, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	outcome, err := c.Execute(ctx, &Request{Method: method, Path: path, Body: body})
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	if err := outcome.Decode(out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}

	return nil
}

// decodeList accepts either a JSON array or an object holding the array under key.
func decodeList(raw json.RawMessage, key string, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return err
	}

	list, ok := wrapper[key]
	if !ok {
		return fmt.Errorf("missing %q field", key)
	}

	return json.Unmarshal(list, out)
}
