// Command bootstrap-service-token generates a service token and its
// argon2id hash. The hash goes into SERVICE_TOKEN_HASH on the telemetry
// service; the token is handed to the consuming services and is not
// recoverable afterwards.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/aurelius/pulse/internal/auth"
)

type output struct {
	Token string `json:"token"`
	Hash  string `json:"hash"`
}

func main() {
	format := flag.String("format", "plain", "Output format: plain or json")
	flag.Parse()

	token, err := auth.NewToken()
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate token:", err)
		os.Exit(1)
	}

	hash, err := auth.HashToken(token)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash token:", err)
		os.Exit(1)
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(output{Token: token, Hash: hash}); err != nil {
			fmt.Fprintln(os.Stderr, "encode output:", err)
			os.Exit(1)
		}
	default:
		fmt.Println("Service token (give to callers, shown once):")
		fmt.Println("  " + token)
		fmt.Println()
		fmt.Println("SERVICE_TOKEN_HASH (set on the telemetry service):")
		fmt.Println("  " + hash)
	}
}
