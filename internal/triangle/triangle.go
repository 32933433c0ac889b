// Package triangle defines the three-pair cycle the bot trades and the fee
// model applied when scoring it.
package triangle

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Triangle names the three tracked pairs. With base=BTC, bridge=ETH,
// quote=USDT the cycle is: buy bridge with quote, sell bridge for base,
// sell base back to quote.
type Triangle struct {
	BaseQuote   string `yaml:"base_quote"`   // e.g. BTCUSDT
	BridgeBase  string `yaml:"bridge_base"`  // e.g. ETHBTC
	BridgeQuote string `yaml:"bridge_quote"` // e.g. ETHUSDT
}

// Fees is the venue fee model in decimal rates. A negative maker rate is a
// rebate.
type Fees struct {
	Maker float64 `yaml:"maker"`
	Taker float64 `yaml:"taker"`
}

// Config is the top-level YAML structure.
type Config struct {
	Triangle  Triangle `yaml:"triangle"`
	Fees      Fees     `yaml:"fees"`
	Threshold float64  `yaml:"threshold"`
	Epsilon   float64  `yaml:"epsilon"`
}

// Default returns the compiled-in BTC/ETH/USDT cycle with the exchange's
// published spot fee tiers.
func Default() Config {
	return Config{
		Triangle: Triangle{
			BaseQuote:   "BTCUSDT",
			BridgeBase:  "ETHBTC",
			BridgeQuote: "ETHUSDT",
		},
		Fees:      Fees{Maker: -0.0001, Taker: 0.0004},
		Threshold: 0.0008,
		Epsilon:   1e-6,
	}
}

// Load reads a triangle config from a YAML file, falling back to defaults
// for fields the file omits. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse triangle config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configs that would make the scanner fire on garbage.
func (c Config) Validate() error {
	t := c.Triangle
	if t.BaseQuote == "" || t.BridgeBase == "" || t.BridgeQuote == "" {
		return fmt.Errorf("triangle: all three pairs are required, got %q/%q/%q", t.BaseQuote, t.BridgeBase, t.BridgeQuote)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("triangle: threshold must be positive, got %v", c.Threshold)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("triangle: epsilon must be positive, got %v", c.Epsilon)
	}
	return nil
}

// Symbols returns the pairs in cache order: base/quote, bridge/base,
// bridge/quote.
func (t Triangle) Symbols() []string {
	return []string{t.BaseQuote, t.BridgeBase, t.BridgeQuote}
}

// StreamName returns the combined-stream channel for a symbol.
func (t Triangle) StreamName(symbol string) string {
	return strings.ToLower(symbol) + "@depth5@100ms"
}

// StreamTarget returns the combined-stream request target subscribing to
// top-of-book depth for all three pairs.
func (t Triangle) StreamTarget() string {
	names := make([]string, 0, 3)
	for _, s := range t.Symbols() {
		names = append(names, t.StreamName(s))
	}
	return "/stream?streams=" + strings.Join(names, "/")
}
