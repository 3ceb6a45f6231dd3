package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestCoopRegisterArgValidation(t *testing.T) {
	defer failRPC(t)()
	addr := cliAddress(0x31)

	cases := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing_addr", args: []string{"register", "--amount", "100"}, want: "--addr is required"},
		{name: "missing_amount", args: []string{"register", "--addr", addr}, want: "--amount is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stdout := &bytes.Buffer{}
			stderr := &bytes.Buffer{}
			if exit := runCoopCommand(tc.args, stdout, stderr); exit != 1 {
				t.Fatalf("expected exit 1, got %d", exit)
			}
			if !strings.Contains(stderr.String(), tc.want) {
				t.Fatalf("unexpected stderr: %q", stderr.String())
			}
		})
	}
}

func TestCoopRegisterSubmits(t *testing.T) {
	addr := cliAddress(0x32)
	original := rpcCall
	rpcCall = func(method string, params interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
		if method != "coop_register" {
			t.Fatalf("unexpected method %s", method)
		}
		if !requireAuth {
			t.Fatalf("expected authenticated call")
		}
		register, ok := params.(coopRegisterCLIParams)
		if !ok {
			t.Fatalf("unexpected params type %T", params)
		}
		if register.Caller != addr || register.Amount != "150" {
			t.Fatalf("unexpected params: %+v", register)
		}
		payload := `{"member":{"address":"` + addr + `","status":"active"},"refund":"50"}`
		return json.RawMessage(payload), nil, nil
	}
	defer func() { rpcCall = original }()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	if exit := runCoopCommand([]string{"register", "--addr", addr, "--amount", "150"}, stdout, stderr); exit != 0 {
		t.Fatalf("exit %d: %s", exit, stderr.String())
	}
	if !strings.Contains(stdout.String(), `"refund": "50"`) {
		t.Fatalf("unexpected stdout: %q", stdout.String())
	}
}

func TestCoopQueriesRejectExtraArgs(t *testing.T) {
	defer failRPC(t)()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	if exit := runCoopCommand([]string{"members", "extra"}, stdout, stderr); exit != 1 {
		t.Fatalf("expected exit 1, got %d", exit)
	}
	if !strings.Contains(stderr.String(), "unexpected arguments") {
		t.Fatalf("unexpected stderr: %q", stderr.String())
	}
}
