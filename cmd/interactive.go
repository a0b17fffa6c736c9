package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stellar-swap/pkg/fee"
	"stellar-swap/pkg/parser"
	"stellar-swap/pkg/poller"
	"stellar-swap/pkg/quote"
	"stellar-swap/pkg/tokens"
	"stellar-swap/pkg/wallet"
)

const interactiveHelp = `Commands:
  <amount>                   quote an amount of the current pay token
  <amount> <pay> to <recv>   change the pair and quote
  flip                       swap pay and receive
  connect | disconnect       open or close the wallet session
  balances                   show balances of the current pair
  quit`

// feeUpdater is the debounced side of the fee estimator
type feeUpdater interface {
	Update(ctx context.Context, in fee.Input)
}

// walletSession is the part of the session the quote prompt drives
type walletSession interface {
	Connect(ctx context.Context) (wallet.Notice, error)
	Disconnect() wallet.Notice
}

// balanceReader answers balance lookups for the current pair
type balanceReader interface {
	Balance(symbol string) (string, bool)
}

// quoteSession is the interactive quote prompt. Every amount edit requotes at
// once and restarts the fee estimate; settled fees are printed as they arrive.
type quoteSession struct {
	engine      *quote.Engine
	fees        feeUpdater
	wallet      walletSession
	balances    balanceReader
	slippageBps int

	mu      sync.Mutex
	out     io.Writer
	current quote.Quote
}

var errQuit = errors.New("quit")

func newQuoteSession(engine *quote.Engine, fees feeUpdater, session walletSession, balances balanceReader, slippageBps int, out io.Writer) *quoteSession {
	pay, receive := tokens.DefaultPair()
	return &quoteSession{
		engine:      engine,
		fees:        fees,
		wallet:      session,
		balances:    balances,
		slippageBps: slippageBps,
		out:         out,
		current:     quote.Quote{Pay: pay, Receive: receive},
	}
}

// handle runs one line. errQuit ends the prompt; other errors are shown and
// the prompt continues.
func (s *quoteSession) handle(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "":
		return nil
	case "quit", "exit", "q":
		return errQuit
	case "help", "?":
		s.println(interactiveHelp)
		return nil
	case "flip":
		s.mu.Lock()
		s.current = s.engine.Flip(s.current)
		q := s.current
		s.mu.Unlock()
		s.fees.Update(ctx, fee.Input{Amount: q.PayAmount, Pay: q.Pay, Receive: q.Receive})
		s.show(q)
		return nil
	case "connect":
		notice, err := s.wallet.Connect(ctx)
		if notice.Message != "" {
			s.println(notice.Message)
		}
		if err != nil && notice.Message == "" {
			return err
		}
		return nil
	case "disconnect":
		s.println(s.wallet.Disconnect().Message)
		return nil
	case "balances":
		s.showBalances()
		return nil
	}

	s.mu.Lock()
	pay, receive := s.current.Pay, s.current.Receive
	s.mu.Unlock()
	amount := line
	if strings.ContainsAny(line, " \t") {
		req, err := parser.ParseSwapCommand(line)
		if err == nil {
			err = parser.ValidateSwapRequest(req)
		}
		if err != nil {
			return err
		}
		if pay, receive, err = pair(req.PayToken, req.ReceiveToken); err != nil {
			return err
		}
		amount = req.Amount
	}
	if _, ok := quote.ParseAmount(amount); !ok {
		return fmt.Errorf("invalid amount %q, type help for commands", amount)
	}
	if pay.Symbol == receive.Symbol {
		return fmt.Errorf("cannot swap %s for itself", pay.Symbol)
	}
	if !s.engine.Supports(pay.Symbol) || !s.engine.Supports(receive.Symbol) {
		return fmt.Errorf("%s/%s is not traded by the pool", pay.Symbol, receive.Symbol)
	}

	q := s.engine.Quote(pay, receive, amount)
	s.mu.Lock()
	s.current = q
	s.mu.Unlock()
	s.fees.Update(ctx, fee.Input{Amount: q.PayAmount, Pay: pay, Receive: receive})
	s.show(q)
	return nil
}

func (s *quoteSession) show(q quote.Quote) {
	if q.Empty() {
		s.println("  No quote for " + q.Pay.Symbol + " to " + q.Receive.Symbol)
		return
	}
	lines := []string{
		fmt.Sprintf("  %s %s -> ~%s %s", q.PayAmount, q.Pay.Symbol, q.ReceiveAmount, q.Receive.Symbol),
	}
	if d, ok := quote.ParseAmount(q.ReceiveAmount); ok {
		floor := quote.MinimumOutput(q.Receive.ToUnits(d), s.slippageBps)
		lines = append(lines, fmt.Sprintf("  Minimum received ~%s %s", quote.Display(q.Receive.FromUnits(floor), q.Receive), q.Receive.Symbol))
	}
	if rate := s.engine.RateString(q.Pay, q.Receive); rate != "" {
		lines = append(lines, "  "+rate)
	}
	s.println(strings.Join(lines, "\n"))
}

func (s *quoteSession) showBalances() {
	if s.balances == nil {
		s.println("  Balances are not available")
		return
	}
	s.mu.Lock()
	shown := []tokens.Token{s.current.Pay, s.current.Receive}
	s.mu.Unlock()
	for _, t := range shown {
		if v, ok := s.balances.Balance(t.Symbol); ok {
			s.println(fmt.Sprintf("  %-6s %s", t.Symbol, v))
		} else {
			s.println(fmt.Sprintf("  %-6s --", t.Symbol))
		}
	}
}

// showFee prints a settled estimate; pending and empty ones are skipped
func (s *quoteSession) showFee(est fee.Estimate) {
	if est.Status != fee.Settled {
		return
	}
	s.println("  Network fee " + est.XLM())
}

func (s *quoteSession) println(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, text)
}

// displayBalances adapts the balances poller to fixed token precision
type displayBalances struct {
	b *poller.Balances
}

func (d displayBalances) Balance(symbol string) (string, bool) {
	v, ok := d.b.Balance(symbol)
	if !ok {
		return "", false
	}
	if t, found := tokens.Find(symbol); found {
		return v.StringFixed(int32(t.Decimals)), true
	}
	return v.String(), true
}

// runInteractiveQuote keeps quoting lines read from the terminal. Rates are
// polled in the background and balances refresh on every wallet change.
func runInteractiveQuote(cmd *cobra.Command, a *app, prompter *terminalPrompter) {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rates := a.rates()
	rates.Refresh(ctx)
	go rates.Run(ctx)

	balances := a.balances()
	go poller.TriggerOn(ctx, a.session.Subscribe(), balances.Trigger)
	go balances.Run(ctx)

	fees := a.fees()
	defer fees.Stop()

	s := newQuoteSession(a.quotes, fees, a.session, displayBalances{balances}, a.cfg.Swap.SlippageBps, prompter.out)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case est := <-fees.Updates():
				s.showFee(est)
			}
		}
	}()

	color.Green("\nInteractive quotes (mode %s). Type help for commands.\n", a.cfg.Mode)
	for {
		fmt.Fprint(prompter.out, "> ")
		line, err := prompter.readLine()
		if err != nil {
			break
		}
		if err := s.handle(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				break
			}
			printError(err)
		}
	}
	a.session.Disconnect()
}
