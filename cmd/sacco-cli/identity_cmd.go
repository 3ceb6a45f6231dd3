package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

type identitySetAliasCLIParams struct {
	Caller string `json:"caller"`
	Alias  string `json:"alias"`
}

type identityResolveCLIParams struct {
	Alias string `json:"alias"`
}

type identitySetWeightCLIParams struct {
	Caller string `json:"caller"`
	Target string `json:"target"`
	Weight uint64 `json:"weight"`
}

func runIdentityCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, identityUsage())
		return 1
	}
	switch args[0] {
	case "set-alias":
		return runIdentitySetAlias(args[1:], stdout, stderr)
	case "resolve":
		return runIdentityResolve(args[1:], stdout, stderr)
	case "alias-of":
		return runIdentityAliasOf(args[1:], stdout, stderr)
	case "set-weight":
		return runIdentitySetWeight(args[1:], stdout, stderr)
	case "weight":
		return runIdentityWeight(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown id subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, identityUsage())
		return 1
	}
}

func runIdentitySetAlias(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("id set-alias", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var addr, alias string
	fs.StringVar(&addr, "addr", "", "address owning the alias")
	fs.StringVar(&alias, "alias", "", "alias to register")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	if strings.TrimSpace(addr) == "" {
		fmt.Fprintln(stderr, "Error: --addr is required")
		return 1
	}
	if strings.TrimSpace(alias) == "" {
		fmt.Fprintln(stderr, "Error: --alias is required")
		return 1
	}
	result, rpcErr, err := rpcCall("identity_setAlias", identitySetAliasCLIParams{Caller: addr, Alias: strings.TrimSpace(alias)}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runIdentityResolve(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("id resolve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var alias string
	fs.StringVar(&alias, "alias", "", "alias to resolve")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(alias) == "" {
		fmt.Fprintln(stderr, "Error: --alias is required")
		return 1
	}
	result, rpcErr, err := rpcCall("identity_resolve", identityResolveCLIParams{Alias: strings.TrimSpace(alias)}, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runIdentityAliasOf(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("id alias-of", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var addr string
	fs.StringVar(&addr, "addr", "", "address to look up")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(addr) == "" {
		fmt.Fprintln(stderr, "Error: --addr is required")
		return 1
	}
	result, rpcErr, err := rpcCall("identity_aliasOf", addressCLIParams{Address: addr}, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runIdentitySetWeight(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("id set-weight", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var caller, target string
	var weight uint64
	fs.StringVar(&caller, "caller", "", "admin address applying the weight")
	fs.StringVar(&target, "target", "", "member address receiving the weight")
	fs.Uint64Var(&weight, "weight", 0, "voting weight; zero restores the default")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(caller) == "" {
		fmt.Fprintln(stderr, "Error: --caller is required")
		return 1
	}
	if strings.TrimSpace(target) == "" {
		fmt.Fprintln(stderr, "Error: --target is required")
		return 1
	}
	result, rpcErr, err := rpcCall("identity_setVotingWeight", identitySetWeightCLIParams{Caller: caller, Target: target, Weight: weight}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runIdentityWeight(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("id weight", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var addr string
	fs.StringVar(&addr, "addr", "", "address to query")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(addr) == "" {
		fmt.Fprintln(stderr, "Error: --addr is required")
		return 1
	}
	result, rpcErr, err := rpcCall("identity_votingWeight", addressCLIParams{Address: addr}, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func identityUsage() string {
	return strings.TrimSpace(`Usage:
  sacco-cli id <command> [flags]

Commands:
  set-alias   Register or update the alias for an address
  resolve     Resolve an alias to an address
  alias-of    Look up the alias associated with an address
  set-weight  Set a member's governance voting weight
  weight      Show a member's governance voting weight
`)
}
