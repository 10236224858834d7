// Package main provides a CLI tool for minting caller tokens for the registry
// API. Tokens use the dev signing key unless one is supplied and must not be
// used in production.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "vcregistry/internal/jwt_token"
	id "vcregistry/pkg/domain"
)

const (
	// Dev signing key - matches config.go when JWT_SIGNING_KEY is not set
	devSigningKey = "dev-secret-key-change-in-production"

	// Default values matching config.go
	defaultIssuer   = "vcregistry"
	defaultAudience = "vcregistry-api"
	defaultTokenTTL = 15 * time.Minute
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	ExpiresIn string            `json:"expires_in"`
	Claims    map[string]any    `json:"claims,omitempty"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	callerCmd := flag.NewFlagSet("caller", flag.ExitOnError)

	callerID := callerCmd.String("id", "", "Caller identity placed in the sub claim (required)")
	callerKey := callerCmd.String("key", "", "Signing key. Defaults to JWT_SIGNING_KEY, then the dev key.")
	callerIssuer := callerCmd.String("issuer", defaultIssuer, "Token issuer (iss)")
	callerAudience := callerCmd.String("audience", defaultAudience, "Token audience (aud)")
	callerTTL := callerCmd.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	callerJSON := callerCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "caller":
		_ = callerCmd.Parse(os.Args[2:]) //nolint:errcheck // ExitOnError
		generateCallerToken(*callerID, *callerKey, *callerIssuer, *callerAudience, *callerTTL, *callerJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate caller tokens for the vcregistry API

WARNING: Without -key or JWT_SIGNING_KEY these tokens use the dev signing key
         and will NOT work in production.

Usage:
  tokengen <command> [flags]

Commands:
  caller    Generate a caller token (JWT) for issue and revoke

Examples:
  # Token for an issuer identity
  tokengen caller -id did:example:university

  # Longer-lived token with a custom key
  tokengen caller -id did:example:university -ttl 1h -key "$JWT_SIGNING_KEY"

  # Output as JSON
  tokengen caller -id did:example:university -json

Use "tokengen <command> -h" for more information about a command.`)
}

func generateCallerToken(rawCaller, key, issuer, audience string, ttl time.Duration, jsonOutput bool) {
	caller, err := id.ParseCallerID(rawCaller)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -id: %v\n", err)
		os.Exit(1)
	}

	signingKey, keyType := resolveSigningKey(key)
	svc := jwttoken.NewJWTService(signingKey, issuer, audience, ttl)

	token, jti, err := svc.GenerateCallerToken(context.Background(), caller)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(tokenOutput{
			Token:     token,
			Type:      "caller_token",
			ExpiresIn: ttl.String(),
			Claims: map[string]any{
				"sub": caller.String(),
				"iss": issuer,
				"aud": audience,
				"jti": jti,
			},
			Usage: map[string]string{
				"header":      "Authorization: Bearer <token>",
				"signing_key": keyType,
			},
		})
		return
	}

	fmt.Println("Caller Token (JWT)")
	fmt.Println("==================")
	fmt.Printf("Signing Key: %s\n", keyType)
	fmt.Printf("Expires In:  %s\n", ttl)
	fmt.Printf("Caller:      %s\n", caller)
	fmt.Printf("JTI:         %s\n", jti)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" -d '{\"subject_did\":...,\"cid\":...}' http://localhost:8080/credentials")
}

func resolveSigningKey(flagKey string) (string, string) {
	if flagKey != "" {
		return flagKey, "flag"
	}
	if env := os.Getenv("JWT_SIGNING_KEY"); env != "" {
		return env, "env"
	}
	return devSigningKey, "dev"
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
