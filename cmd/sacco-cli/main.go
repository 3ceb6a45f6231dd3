package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"saccochain/cmd/internal/passphrase"
	"saccochain/crypto"
)

const keystorePassEnv = "SACCO_KEYSTORE_PASS"

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via SACCO_RPC_URL or --rpc flag
var rpcAuthToken = os.Getenv("SACCO_RPC_TOKEN")

func main() {
	args := os.Args[1:]
	var err error
	rpcEndpoint = defaultRPCEndpoint()
	args, err = applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	switch command {
	case "generate-key":
		os.Exit(runGenerateKey(args[1:], os.Stdout, os.Stderr))
	case "address":
		os.Exit(runAddress(args[1:], os.Stdout, os.Stderr))
	case "balance":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: Please provide an address.")
			printUsage()
			os.Exit(1)
		}
		os.Exit(runBalance(args[1], os.Stdout, os.Stderr))
	case "coop":
		os.Exit(runCoopCommand(args[1:], os.Stdout, os.Stderr))
	case "loan":
		os.Exit(runLoanCommand(args[1:], os.Stdout, os.Stderr))
	case "treasury":
		os.Exit(runTreasuryCommand(args[1:], os.Stdout, os.Stderr))
	case "rewards":
		os.Exit(runRewardsCommand(args[1:], os.Stdout, os.Stderr))
	case "id":
		os.Exit(runIdentityCommand(args[1:], os.Stdout, os.Stderr))
	case "docs":
		os.Exit(runDocsCommand(args[1:], os.Stdout, os.Stderr))
	case "restake":
		os.Exit(runRestakeCommand(args[1:], os.Stdout, os.Stderr))
	case "admin":
		os.Exit(runAdminCommand(args[1:], os.Stdout, os.Stderr))
	case "export":
		os.Exit(runExportCommand(args[1:], os.Stdout, os.Stderr))
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("SACCO_RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func runGenerateKey(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("generate-key", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var out string
	fs.StringVar(&out, "out", "wallet.keystore", "path for the new encrypted keystore")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if _, err := os.Stat(out); err == nil {
		fmt.Fprintf(stderr, "Error: %s already exists; refusing to overwrite\n", out)
		return 1
	}
	pass, err := passphrase.NewSource(keystorePassEnv).Get()
	if err != nil {
		fmt.Fprintf(stderr, "Error resolving passphrase: %v\n", err)
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(stderr, "Error generating key: %v\n", err)
		return 1
	}
	if err := crypto.SaveToKeystore(out, key, pass); err != nil {
		fmt.Fprintf(stderr, "Error saving keystore: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Generated new key and saved to %s\n", out)
	fmt.Fprintf(stdout, "Your address is: %s\n", key.PubKey().Address().String())
	return 0
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var keyPath string
	fs.StringVar(&keyPath, "key", "wallet.keystore", "path to the encrypted keystore")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadKeystore(keyPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading keystore: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, key.PubKey().Address().String())
	return 0
}

func loadKeystore(path string) (*crypto.PrivateKey, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("keystore %s not found. run sacco-cli generate-key first", path)
		}
		return nil, err
	}
	pass, err := passphrase.NewSource(keystorePassEnv).Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

type balanceResult struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
	Balance string `json:"balance"`
}

func runBalance(addr string, stdout, stderr io.Writer) int {
	result, rpcErr, err := rpcCall("sacco_getBalance", addressCLIParams{Address: addr}, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	var balance balanceResult
	if err := json.Unmarshal(result, &balance); err != nil {
		fmt.Fprintf(stderr, "Error decoding response: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Account: %s\n", balance.Address)
	fmt.Fprintf(stdout, "  Balance: %s wei\n", balance.Balance)
	fmt.Fprintf(stdout, "  Nonce:   %d\n", balance.Nonce)
	return 0
}

// --- RPC PLUMBING ---

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type addressCLIParams struct {
	Address string `json:"address"`
}

// rpcCall is swapped out by tests to capture outgoing requests.
var rpcCall = invokeRPC

func invokeRPC(method string, params interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
	payload := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		payload["params"] = []interface{}{params}
	} else {
		payload["params"] = []interface{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode request: %w", err)
	}
	resp, err := doRPCRequest(body, requireAuth)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode response from node")
	}
	return rpcResp.Result, rpcResp.Error, nil
}

func doRPCRequest(payload []byte, requireAuth bool) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if requireAuth {
		if rpcAuthToken == "" {
			return nil, fmt.Errorf("privileged RPC call requires SACCO_RPC_TOKEN to be set")
		}
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(rpcAuthToken))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	return resp, nil
}

func handleRPCError(w io.Writer, err *rpcError) int {
	if err == nil {
		return 0
	}
	detail := ""
	if len(err.Data) > 0 {
		var s string
		if jsonErr := json.Unmarshal(err.Data, &s); jsonErr == nil {
			detail = s
		} else {
			detail = string(err.Data)
		}
	}
	if detail != "" {
		fmt.Fprintf(w, "RPC error %d: %s: %s\n", err.Code, err.Message, detail)
	} else {
		fmt.Fprintf(w, "RPC error %d: %s\n", err.Code, err.Message)
	}
	return 1
}

func handleRPCCallError(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "RPC call failed: %v\n", err)
	return 1
}

func writeRPCResult(w io.Writer, result json.RawMessage) {
	if len(result) == 0 {
		fmt.Fprintln(w, "null")
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, result, "", "  "); err != nil {
		if _, werr := w.Write(result); werr == nil {
			fmt.Fprintln(w)
		}
		return
	}
	fmt.Fprintln(w, buf.String())
}

func printUsage() {
	fmt.Println("Usage: sacco-cli [--rpc <url>] <command> [arguments]")
	fmt.Println()
	fmt.Println("Mutating commands need SACCO_RPC_TOKEN set to the node's bearer token.")
	fmt.Println("Keystore commands read the passphrase from SACCO_KEYSTORE_PASS or prompt.")
	fmt.Println("Commands:")
	fmt.Println("  generate-key [--out <file>]   - Generate a new encrypted keystore")
	fmt.Println("  address [--key <file>]        - Print the address of a keystore")
	fmt.Println("  balance <address>             - Show an account's ledger balance")
	fmt.Println("  coop                          - Membership and cooperative queries")
	fmt.Println("  loan                          - Loan proposal and repayment lifecycle")
	fmt.Println("  treasury                      - Treasury withdrawal governance")
	fmt.Println("  rewards                       - Reward balances and claims")
	fmt.Println("  id                            - Alias and voting weight management")
	fmt.Println("  docs                          - Document hash registry")
	fmt.Println("  restake                       - Treasury restaking strategy")
	fmt.Println("  admin                         - Administrator and policy controls")
	fmt.Println("  export                        - Offline statement, loan book and audit exports")
}
