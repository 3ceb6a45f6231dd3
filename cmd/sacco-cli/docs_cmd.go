package main

import (
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

type docsRegisterCLIParams struct {
	Caller   string `json:"caller"`
	EntityID string `json:"entityId"`
	Category string `json:"category"`
	Hash     string `json:"hash"`
}

type docsLookupCLIParams struct {
	EntityID string `json:"entityId"`
}

func runDocsCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, docsUsage())
		return 1
	}
	switch args[0] {
	case "register":
		return runDocsRegister(args[1:], stdout, stderr)
	case "lookup":
		return runDocsLookup(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown docs subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, docsUsage())
		return 1
	}
}

func runDocsRegister(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("docs register", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var caller, entity, category, hash, file string
	fs.StringVar(&caller, "caller", "", "admin address registering the document")
	fs.StringVar(&entity, "entity", "", "entity the document belongs to, e.g. loan:12")
	fs.StringVar(&category, "category", "", "document category, e.g. agreement")
	fs.StringVar(&hash, "hash", "", "0x-prefixed SHA-256 of the document")
	fs.StringVar(&file, "file", "", "local file to hash instead of supplying --hash")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(caller) == "" {
		fmt.Fprintln(stderr, "Error: --caller is required")
		return 1
	}
	if strings.TrimSpace(entity) == "" {
		fmt.Fprintln(stderr, "Error: --entity is required")
		return 1
	}
	if strings.TrimSpace(category) == "" {
		fmt.Fprintln(stderr, "Error: --category is required")
		return 1
	}
	trimmedHash := strings.TrimSpace(hash)
	trimmedFile := strings.TrimSpace(file)
	if (trimmedHash == "") == (trimmedFile == "") {
		fmt.Fprintln(stderr, "Error: exactly one of --hash or --file is required")
		return 1
	}
	if trimmedFile != "" {
		digest, err := hashFile(trimmedFile)
		if err != nil {
			fmt.Fprintf(stderr, "Error hashing %s: %v\n", trimmedFile, err)
			return 1
		}
		trimmedHash = digest
	}
	params := docsRegisterCLIParams{
		Caller:   caller,
		EntityID: strings.TrimSpace(entity),
		Category: strings.TrimSpace(category),
		Hash:     trimmedHash,
	}
	result, rpcErr, err := rpcCall("docs_register", params, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(h.Sum(nil)), nil
}

func runDocsLookup(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("docs lookup", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var entity string
	fs.StringVar(&entity, "entity", "", "entity to list documents for")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(entity) == "" {
		fmt.Fprintln(stderr, "Error: --entity is required")
		return 1
	}
	result, rpcErr, err := rpcCall("docs_lookup", docsLookupCLIParams{EntityID: strings.TrimSpace(entity)}, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func docsUsage() string {
	return strings.TrimSpace(`Usage:
  sacco-cli docs <command> [flags]

Commands:
  register  Anchor a document hash against a ledger entity
  lookup    List document hashes registered for an entity
`)
}
