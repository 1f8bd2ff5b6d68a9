// Package console renders detected opportunities and execution results
// to a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	executionDomain "github.com/fd1az/dex-arb-bot/business/execution/domain"
	scannerDomain "github.com/fd1az/dex-arb-bot/business/scanner/domain"
	"github.com/fd1az/dex-arb-bot/internal/asset"
)

// Colors
var (
	colorPrimary = lipgloss.Color("#7C3AED") // Purple
	colorProfit  = lipgloss.Color("#10B981") // Green
	colorDanger  = lipgloss.Color("#EF4444") // Red
	colorMuted   = lipgloss.Color("#6B7280") // Gray
	colorBorder  = lipgloss.Color("#374151") // Dark gray
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorPrimary).
			Padding(0, 2)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	profitStyle = lipgloss.NewStyle().
			Foreground(colorProfit).
			Bold(true)

	lossStyle = lipgloss.NewStyle().
			Foreground(colorDanger).
			Bold(true)
)

// Reporter prints opportunity and execution summaries. Safe for
// concurrent use.
type Reporter struct {
	mu     sync.Mutex
	out    io.Writer
	tokens *asset.Registry
}

// NewReporter creates a reporter writing to stdout.
func NewReporter() *Reporter {
	return &Reporter{out: os.Stdout, tokens: asset.Default()}
}

// NewReporterTo creates a reporter writing to w.
func NewReporterTo(w io.Writer) *Reporter {
	return &Reporter{out: w, tokens: asset.Default()}
}

// Banner prints the startup header.
func (r *Reporter) Banner(name, version string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, titleStyle.Render(fmt.Sprintf("%s %s", name, version)))
}

// ReportOpportunities renders the ranked batch from one scan. The
// signature matches the pipeline's opportunity sink.
func (r *Reporter) ReportOpportunities(ctx context.Context, opps []scannerDomain.ArbitrageOpportunity) {
	if len(opps) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	best := opps[0]
	pair := r.tokens.PairLabel(uint64(best.Chain), best.Token0, best.Token1)
	lines := fmt.Sprintf(
		"%s\n%s  %s\n%s  %s -> %s\n%s  %s bps\n%s  %s\n%s  %s",
		profitStyle.Render("ARBITRAGE OPPORTUNITY"),
		labelStyle.Render("pair:    "), pair,
		labelStyle.Render("route:   "), best.BuyExchange, best.SellExchange,
		labelStyle.Render("spread:  "), fmt.Sprintf("%d", best.SpreadBps),
		labelStyle.Render("size:    "), formatTokens(best.TradeSize),
		labelStyle.Render("profit:  "), profitStyle.Render(formatTokens(best.EstimatedProfit)),
	)
	if len(opps) > 1 {
		lines += "\n" + labelStyle.Render(fmt.Sprintf("+%d more this scan", len(opps)-1))
	}

	fmt.Fprintln(r.out, boxStyle.Render(lines))
}

// ReportExecution renders a relay submission outcome.
func (r *Reporter) ReportExecution(res executionDomain.ExecutionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res.Success {
		fmt.Fprintf(r.out, "%s bundle %s at %s\n",
			profitStyle.Render("ACCEPTED"),
			res.BundleHash,
			res.SubmittedAt.Format(time.TimeOnly))
		return
	}
	fmt.Fprintln(r.out, lossStyle.Render("SUBMISSION FAILED"))
}

// formatTokens renders a wei amount as whole tokens.
func formatTokens(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	return decimal.NewFromBigInt(x.ToBig(), -18).StringFixed(6)
}
