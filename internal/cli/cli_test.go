package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/pkg/utils"
)

// run executes the CLI against a private config directory and returns
// stdout.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", dir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func runJSON(t *testing.T, dir string, v interface{}, args ...string) {
	t.Helper()
	out, err := run(t, dir, append(args, "--json")...)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func TestParseLeg(t *testing.T) {
	expiry := time.Date(2025, 7, 31, 0, 0, 0, 0, utils.IndiaLocation)

	leg, err := ParseLeg("sell:pe:24800:2@55.5", "nifty", expiry)
	require.NoError(t, err)
	assert.Equal(t, "NIFTY", leg.Symbol)
	assert.Equal(t, models.ActionSell, leg.Action)
	assert.Equal(t, models.OptionTypePut, leg.Type)
	assert.Equal(t, 24800.0, leg.Strike)
	assert.Equal(t, 2, leg.Quantity)
	p, ok := leg.PremiumValue()
	require.True(t, ok)
	assert.Equal(t, 55.5, p)
	assert.Equal(t, expiry, leg.Expiry)

	leg, err = ParseLeg("BUY:CE:25000:1", "NIFTY", expiry)
	require.NoError(t, err)
	assert.False(t, leg.HasPremium())

	invalid := []string{
		"BUY:CE:25000",
		"HOLD:CE:25000:1",
		"BUY:XX:25000:1",
		"BUY:CE:abc:1",
		"BUY:CE:25000:0",
		"BUY:CE:-25000:1",
		"BUY:CE:25000:1@-5",
		"BUY:CE:25000:1@x",
		"BUY:CE:Inf:1",
		"BUY:CE:25000:1@Inf",
		"BUY:CE:25000:1@NaN",
	}
	for _, s := range invalid {
		t.Run(s, func(t *testing.T) {
			_, err := ParseLeg(s, "NIFTY", expiry)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidInput))
		})
	}
}

func TestLoadLegsFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "straddle.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
symbol: banknifty
expiry: 2025-07-31
legs:
  - action: SELL
    option_type: CE
    strike: 56000
    quantity: 1
    premium: 320
  - action: SELL
    option_type: PE
    strike: 56000
    quantity: 1
`), 0644))

	legs, err := LoadLegsFile(yamlPath)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.Equal(t, "BANKNIFTY", legs[0].Symbol)
	assert.Equal(t, "2025-07-31", legs[0].Expiry.Format("2006-01-02"))
	assert.True(t, legs[0].HasPremium())
	assert.False(t, legs[1].HasPremium())

	jsonPath := filepath.Join(dir, "spread.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{
  "symbol": "NIFTY",
  "legs": [
    {"action": "BUY", "option_type": "CE", "strike": 25000, "quantity": 1, "premium": 100},
    {"action": "SELL", "option_type": "CE", "strike": 25200, "quantity": 1, "premium": 40, "expiry": "31-Jul-2025"}
  ]
}`), 0644))

	legs, err = LoadLegsFile(jsonPath)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.True(t, legs[0].Expiry.IsZero())
	assert.Equal(t, "2025-07-31", legs[1].Expiry.Format("2006-01-02"))

	badPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("legs:\n  - action: BUY\n    option_type: CE\n    strike: 0\n    quantity: 1\n"), 0644))
	_, err = LoadLegsFile(badPath)
	require.Error(t, err)
	var legErr *errors.LegError
	assert.True(t, errors.As(err, &legErr))
}

func TestPriceCommand(t *testing.T) {
	var res struct {
		Price float64 `json:"price"`
	}
	runJSON(t, t.TempDir(), &res, "price", "--spot", "100", "--strike", "100", "--days", "365", "--vol", "0.2", "--rate", "0.05")
	assert.InDelta(t, 10.45, res.Price, 0.01)
}

func TestAnalyzeCommand(t *testing.T) {
	dir := t.TempDir()

	var res models.StrategyAnalysisResult
	runJSON(t, dir, &res, "analyze", "--leg", "BUY:CE:25000:1@100", "--leg", "SELL:CE:25200:1@40")
	assert.Equal(t, "Bull Call Spread", res.StrategyName)
	require.Len(t, res.BreakevenPoints, 1)
	assert.InDelta(t, 25060, res.BreakevenPoints[0], 0.01)
	assert.Equal(t, "input", res.Details["price_source"])

	var closed models.StrategyAnalysisResult
	runJSON(t, dir, &closed, "analyze", "--strategy", "Bull Call Spread", "--leg", "BUY:CE:25000:1@100", "--leg", "SELL:CE:25200:1@40")
	assert.Equal(t, []float64{25060}, closed.BreakevenPoints)
	v, ok := closed.MaxProfit.Value()
	require.True(t, ok)
	assert.InDelta(t, 140, v, 0.01)

	_, err := run(t, dir, "analyze", "--strategy", "Bear Put Spread", "--leg", "BUY:CE:25000:1@100", "--leg", "SELL:CE:25200:1@40")
	assert.True(t, errors.Is(err, errors.ErrStrategyMismatch))

	_, err = run(t, dir, "analyze")
	assert.True(t, errors.Is(err, errors.ErrNoLegs))
}

func TestAnalyzeCommand_SaveAndHistory(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "analyze", "--save", "--leg", "SELL:CE:25000:1@150", "--leg", "SELL:PE:25000:1@130")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved to journal")

	var records []struct {
		Kind         string `json:"kind"`
		StrategyName string `json:"strategy_name"`
	}
	runJSON(t, dir, &records, "history")
	require.Len(t, records, 1)
	assert.Equal(t, "numeric", records[0].Kind)
}

func TestPayoffCommand(t *testing.T) {
	var table []struct {
		Price  float64 `json:"price"`
		Payoff float64 `json:"payoff"`
	}
	runJSON(t, t.TempDir(), &table, "payoff", "--leg", "BUY:CE:25000:1@100", "--at", "24900,25100,25300")
	require.Len(t, table, 3)
	assert.Equal(t, -100.0, table[0].Payoff)
	assert.Equal(t, 0.0, table[1].Payoff)
	assert.Equal(t, 200.0, table[2].Payoff)
}

func TestClassifyCommand(t *testing.T) {
	var res struct {
		Strategy string `json:"strategy"`
		Known    bool   `json:"known"`
	}
	runJSON(t, t.TempDir(), &res, "classify", "--leg", "BUY:PE:24800:1", "--leg", "SELL:PE:25000:1", "--leg", "BUY:PE:24800:1")
	assert.Equal(t, "Put Ratio Back Spread", res.Strategy)
	assert.True(t, res.Known)

	runJSON(t, t.TempDir(), &res, "classify", "--leg", "BUY:PE:24800:2", "--leg", "SELL:PE:25000:1")
	assert.Equal(t, "Bull Put Spread", res.Strategy)
}

func TestPositionsWorkflow(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "positions", "add", "-e", "2025-07-31", "--strike", "25000", "--type", "CE", "--qty", "-1", "--premium", "150")
	require.NoError(t, err)
	_, err = run(t, dir, "positions", "add", "-e", "2025-07-31", "--strike", "25000", "--type", "PE", "--qty", "-1", "--premium", "130")
	require.NoError(t, err)

	var positions []models.Position
	runJSON(t, dir, &positions, "positions", "list")
	require.Len(t, positions, 2)
	assert.Equal(t, 75, positions[0].MarketLot)
	assert.Equal(t, "manual", positions[0].Source)

	var report struct {
		Strategy   string    `json:"strategy"`
		Breakevens []float64 `json:"breakeven_points"`
	}
	runJSON(t, dir, &report, "positions", "breakevens")
	require.Len(t, report.Breakevens, 2)
	assert.InDelta(t, 24720, report.Breakevens[0], 0.01)
	assert.InDelta(t, 25280, report.Breakevens[1], 0.01)

	_, err = run(t, dir, "positions", "close", positions[0].ID[:8])
	require.NoError(t, err)
	runJSON(t, dir, &positions, "positions", "list")
	assert.Len(t, positions, 1)

	_, err = run(t, dir, "positions", "close", "does-not-exist")
	assert.True(t, errors.Is(err, errors.ErrPositionNotFound))
}

func TestAnalyzeCommand_PremiumsFromJournal(t *testing.T) {
	dir := t.TempDir()
	expiry := time.Now().AddDate(0, 1, 0).Format("2006-01-02")

	_, err := run(t, dir, "quotes", "add", "-e", expiry, "--strike", "25000", "--type", "CE", "--ltp", "210")
	require.NoError(t, err)

	var res models.StrategyAnalysisResult
	runJSON(t, dir, &res, "analyze", "-e", expiry, "--leg", "BUY:CE:25000:1")
	assert.Equal(t, "store", res.Details["price_source"])
	require.Len(t, res.BreakevenPoints, 1)
	assert.InDelta(t, 25210, res.BreakevenPoints[0], 0.01)

	_, err = run(t, dir, "analyze", "-e", expiry, "--leg", "BUY:PE:25000:1")
	assert.True(t, errors.Is(err, errors.ErrPremiumUnavailable))
}

func TestRecommendCommand(t *testing.T) {
	expiry := time.Now().AddDate(0, 0, 10).Format("2006-01-02")
	var report struct {
		Strike       float64            `json:"recommended_strike"`
		Alternatives map[string]float64 `json:"alternatives"`
	}
	runJSON(t, t.TempDir(), &report, "recommend", "--spot", "25020", "--expiry", expiry, "--method", "atm")
	assert.Equal(t, 25000.0, report.Strike)
	assert.Len(t, report.Alternatives, 4)

	_, err := run(t, t.TempDir(), "recommend", "--spot", "25020", "--expiry", expiry, "--method", "astrology")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = run(t, t.TempDir(), "recommend", "--expiry", expiry)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput), "spot is required without kite credentials")
}

func TestAdjustCommand_RequiresPremiumOnPositions(t *testing.T) {
	_, err := run(t, t.TempDir(), "adjust", "--spot", "25000", "-e", "2025-07-31", "--position", "SELL:CE:25000:1")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), strings.TrimSpace(out))

	out, err = run(t, dir, "config", "show", "--json")
	require.NoError(t, err)
	assert.NotContains(t, out, "Credentials")
	assert.Contains(t, out, "RiskFreeRate")

	out, err = run(t, dir, "version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestErrorMessage(t *testing.T) {
	err := errors.Wrap(errors.ErrNotAuthenticated, "kite")
	assert.Contains(t, ErrorMessage(err), "credentials.toml")

	err = errors.NewInvalidInputError("spot", -1, "must be positive")
	assert.Equal(t, err.Error(), ErrorMessage(err))
}

func TestTableRender(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{writer: &buf, errWriter: &buf}

	table := NewTable(out, "Price", "Payoff")
	table.AddRow("24,900", "-100")
	table.AddRow("25,100", "0")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Price   Payoff", lines[0])
	assert.Equal(t, "------  ------", lines[1])
	assert.Equal(t, "24,900  -100", lines[2])
}

func TestStripANSI(t *testing.T) {
	assert.Equal(t, "ok", stripANSI("\x1b[32mok\x1b[0m"))
	assert.Equal(t, "bold", stripANSI("\x1b[1;31mbold\x1b[0m"))
}
