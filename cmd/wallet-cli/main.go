// wallet-cli is a command-line client for interacting with a walletd
// daemon.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Klingon-tech/klingnet-wallet/internal/router"
	"github.com/Klingon-tech/klingnet-wallet/internal/rpcclient"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Parse global flags that appear before the subcommand.
	rpcURL := "http://127.0.0.1:8560"
	origin := ""

	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		case args[0] == "--origin" && len(args) > 1:
			origin = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--origin="):
			origin = args[0][len("--origin="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	// Provider calls block while their approval prompt sits open, so
	// the client timeout has to outlast the approval ceiling.
	client := rpcclient.NewWithTimeout(rpcURL, 6*time.Minute)
	if origin != "" {
		client.SetOrigin(origin)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "status":
		cmdStatus(client)
	case "init":
		cmdInit(client)
	case "restore":
		cmdRestore(client)
	case "unlock":
		cmdUnlock(client)
	case "lock":
		cmdControl(client, "lock")
	case "background":
		cmdControl(client, "background")
	case "suspend":
		cmdControl(client, "suspend")
	case "remember-pin":
		cmdControl(client, "remember-pin")
	case "forget-pin":
		cmdControl(client, "forget-pin")
	case "reset":
		cmdReset(client)
	case "approvals":
		cmdApprovals(client)
	case "approve":
		cmdRespond(client, cmdArgs, true)
	case "reject":
		cmdRespond(client, cmdArgs, false)
	case "chains":
		cmdCall(client, "wallet_supportedChains", nil)
	case "accounts":
		cmdCall(client, "wallet_accounts", nil)
	case "connect":
		cmdConnect(client, cmdArgs)
	case "sign-message":
		cmdSignMessage(client, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fatal("unknown command %q (run wallet-cli help)", cmd)
	}
}

// ── Operator commands ───────────────────────────────────────────────────

func cmdStatus(client *rpcclient.Client) {
	var status json.RawMessage
	if err := client.Control("status", nil, &status); err != nil {
		fatal("%v", err)
	}
	printJSON(status)
}

func cmdInit(client *rpcclient.Client) {
	pin := mustReadPIN("New PIN: ")
	confirm := mustReadPIN("Confirm PIN: ")
	if pin != confirm {
		fatal("PINs do not match")
	}

	var res struct {
		Mnemonic string `json:"mnemonic"`
	}
	if err := client.Control("init", map[string]string{"pin": pin}, &res); err != nil {
		fatal("%v", err)
	}

	fmt.Println("Wallet created. Write down the recovery phrase below;")
	fmt.Println("it is shown exactly once and never stored in plaintext.")
	fmt.Println()
	fmt.Println("  " + res.Mnemonic)
}

func cmdRestore(client *rpcclient.Client) {
	fmt.Fprint(os.Stderr, "Recovery phrase: ")
	var words []string
	scanner := newLineScanner()
	if scanner.Scan() {
		words = strings.Fields(scanner.Text())
	}
	if len(words) == 0 {
		fatal("no recovery phrase given")
	}

	pin := mustReadPIN("New PIN: ")
	confirm := mustReadPIN("Confirm PIN: ")
	if pin != confirm {
		fatal("PINs do not match")
	}

	params := map[string]string{
		"pin":      pin,
		"mnemonic": strings.Join(words, " "),
	}
	if err := client.Control("restore", params, nil); err != nil {
		fatal("%v", err)
	}
	fmt.Println("Wallet restored.")
}

func cmdUnlock(client *rpcclient.Client) {
	pin := mustReadPIN("PIN: ")
	var res json.RawMessage
	if err := client.Control("unlock", map[string]string{"pin": pin}, &res); err != nil {
		fatal("%v", err)
	}
	fmt.Println("Unlocked.")
}

func cmdControl(client *rpcclient.Client, action string) {
	if err := client.Control(action, nil, nil); err != nil {
		fatal("%v", err)
	}
	fmt.Println("OK.")
}

func cmdReset(client *rpcclient.Client) {
	fmt.Fprint(os.Stderr, "This erases the wallet permanently. Type 'erase' to confirm: ")
	scanner := newLineScanner()
	if !scanner.Scan() || scanner.Text() != "erase" {
		fatal("aborted")
	}
	if err := client.Control("reset", nil, nil); err != nil {
		fatal("%v", err)
	}
	fmt.Println("Wallet erased.")
}

// ── Approval commands ───────────────────────────────────────────────────

func cmdApprovals(client *rpcclient.Client) {
	pending, err := client.Approvals()
	if err != nil {
		fatal("%v", err)
	}
	if len(pending) == 0 {
		fmt.Println("No pending requests.")
		return
	}
	for _, p := range pending {
		fmt.Printf("%-24s %-26s %s\n", p.ID, p.Method, p.Origin)
	}
}

func cmdRespond(client *rpcclient.Client, args []string, approved bool) {
	if len(args) < 1 {
		fatal("usage: wallet-cli approve|reject <request-id>")
	}
	err := client.Respond(router.ApprovalResponse{
		RequestID: args[0],
		Approved:  approved,
	})
	if err != nil {
		fatal("%v", err)
	}
	if approved {
		fmt.Println("Approved.")
	} else {
		fmt.Println("Rejected.")
	}
}

// ── Provider commands (exercise the dApp surface from the CLI) ──────────

func cmdCall(client *rpcclient.Client, method string, params interface{}) {
	var res json.RawMessage
	if err := client.Call(method, params, &res); err != nil {
		fatal("%v", err)
	}
	printJSON(res)
}

func cmdConnect(client *rpcclient.Client, args []string) {
	params := map[string]string{}
	if len(args) > 0 {
		params["chain"] = args[0]
	}
	cmdCall(client, "wallet_connect", params)
}

func cmdSignMessage(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("usage: wallet-cli sign-message <message> [chain]")
	}
	params := map[string]string{"message": args[0]}
	if len(args) > 1 {
		params["chain"] = args[1]
	}
	cmdCall(client, "wallet_signMessage", params)
}

// ── Helpers ─────────────────────────────────────────────────────────────

func mustReadPIN(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	pin, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		fatal("reading PIN: %v", err)
	}
	if len(pin) == 0 {
		fatal("empty PIN")
	}
	return string(pin)
}

func newLineScanner() *bufio.Scanner {
	return bufio.NewScanner(os.Stdin)
}

func printJSON(raw json.RawMessage) {
	var buf map[string]interface{}
	if err := json.Unmarshal(raw, &buf); err != nil {
		// Not an object; print as-is (arrays, booleans).
		fmt.Println(string(raw))
		return
	}
	out, _ := json.MarshalIndent(buf, "", "  ")
	fmt.Println(string(out))
}

func usage() {
	fmt.Print(`wallet-cli - client for the Klingnet wallet daemon

Usage:
  wallet-cli [--rpc=URL] [--origin=ORIGIN] <command> [args]

Operator commands:
  status              Show daemon status
  init                Create a new wallet (prints the recovery phrase once)
  restore             Restore a wallet from a recovery phrase
  unlock              Unlock with the PIN
  lock                Lock immediately
  background          Signal backgrounding (grace window applies)
  suspend             Signal suspend (locks immediately)
  remember-pin        Persist the encrypted PIN across daemon restarts
  forget-pin          Remove the persisted PIN
  reset               Erase the wallet permanently

Approval commands:
  approvals           List prompts awaiting an answer
  approve <id>        Approve a pending request
  reject <id>         Reject a pending request

Provider commands (sent with the --origin identity):
  chains              List supported chains
  accounts            List the connected account
  connect [chain]     Connect and grant account access
  sign-message <msg> [chain]
                      Sign a message (may require approval)

Global options:
  --rpc     Daemon URL (default: http://127.0.0.1:8560)
  --origin  Origin identity for provider commands
`)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
