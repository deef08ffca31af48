package backtester

import (
	"fmt"
	"strings"

	"github.com/quantbench/strategy-tester/pkg/types"
)

// FormatReport renders metrics as the familiar strategy-tester summary.
func FormatReport(m *types.PerformanceMetrics) string {
	rule := strings.Repeat("=", 50)
	lines := []string{
		rule,
		"  BACKTEST PERFORMANCE REPORT",
		rule,
		fmt.Sprintf("  Net Profit:          $%12.2f (%+.2f%%)", m.NetProfit, m.NetProfitPct),
		fmt.Sprintf("  Max Drawdown:        $%12.2f (%.2f%%)", m.MaxDrawdown, m.MaxDrawdownPct),
		fmt.Sprintf("  Total Trades:        %8d", m.TotalTrades),
		fmt.Sprintf("  Winning Trades:      %8d", m.WinningTrades),
		fmt.Sprintf("  Losing Trades:       %8d", m.LosingTrades),
		fmt.Sprintf("  Win Rate:            %8.1f%%", m.WinRate),
		fmt.Sprintf("  Profit Factor:       %8.2f", m.ProfitFactor),
		fmt.Sprintf("  Sharpe Ratio:        %8.2f", m.SharpeRatio),
		fmt.Sprintf("  Profit/Drawdown:     %8.2f", m.ProfitToDrawdown),
		rule,
	}
	return strings.Join(lines, "\n")
}
