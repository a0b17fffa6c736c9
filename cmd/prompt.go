package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"stellar-swap/pkg/wallet"
)

// terminalPrompter plays the wallet popup on stdin/stdout
type terminalPrompter struct {
	walletID    string
	autoApprove bool
	in          *bufio.Reader
	out         io.Writer
}

func newTerminalPrompter(walletID string, autoApprove bool) *terminalPrompter {
	return &terminalPrompter{walletID: walletID, autoApprove: autoApprove, in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

// Choose picks --wallet, the only configured wallet, or asks. An empty answer cancels.
func (p *terminalPrompter) Choose(ctx context.Context, options []wallet.Handle) (wallet.Handle, bool, error) {
	if p.walletID != "" || len(options) == 1 {
		return wallet.StaticPrompter{WalletID: p.walletID}.Choose(ctx, options)
	}

	fmt.Fprintln(p.out, "\nSelect a wallet:")
	for i, o := range options {
		fmt.Fprintf(p.out, "  %d) %s %s\n", i+1, o.Name, color.HiBlackString("("+o.ID+")"))
	}
	fmt.Fprint(p.out, "Wallet number (empty to cancel): ")

	answer, err := p.readLine()
	if err != nil || answer == "" {
		return wallet.Handle{}, false, nil
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(options) {
		return wallet.Handle{}, false, fmt.Errorf("invalid selection %q", answer)
	}
	return options[n-1], true, nil
}

// Approve shows the transaction and asks for confirmation
func (p *terminalPrompter) Approve(_ context.Context, h wallet.Handle, summary string) (bool, error) {
	if p.autoApprove {
		return true, nil
	}
	fmt.Fprintf(p.out, "\n%s asks you to sign:\n  %s\n", color.CyanString(h.Name), summary)
	return p.confirm("Sign this transaction? (y/N): "), nil
}

func (p *terminalPrompter) confirm(question string) bool {
	fmt.Fprint(p.out, "\n"+question)
	response, err := p.readLine()
	if err != nil {
		return false
	}
	response = strings.ToLower(response)
	return response == "y" || response == "yes"
}

func (p *terminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func printNotice(n wallet.Notice) {
	switch n.Kind {
	case wallet.NoticeConnected:
		color.Green("\n✓ %s", n.Message)
	case wallet.NoticeDisconnected:
		fmt.Printf("\n%s\n", n.Message)
	case wallet.NoticeCancelled:
		color.Yellow("\n%s", n.Message)
	case "":
	default:
		color.Red("\n%s", n.Message)
	}
}
