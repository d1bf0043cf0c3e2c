package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"

	"github.com/merkledrop-labs/merkledrop-go/pkg/eip712"
	"github.com/merkledrop-labs/merkledrop-go/pkg/sigverify"
	"github.com/merkledrop-labs/merkledrop-go/pkg/types"
)

func main() {
	app := &cli.App{
		Name:  "drop-client",
		Usage: "Submit and inspect merkle drop claims",
		Description: `Loads a claim file (account, amount, proof) produced by the offline
tree builder, signs the EIP-712 claim digest with the recipient's key
and submits it to a drop-server. The submitting machine need not hold
any funds: the signature, not the submitter, authorizes the claim.`,
		Version: "1.0.0",
		Commands: []*cli.Command{
			{
				Name:  "claim",
				Usage: "Sign and submit a claim",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "server", Value: "http://localhost:8080", Usage: "drop-server base URL"},
					&cli.StringFlag{Name: "claim-file", Required: true, Usage: "Path to the claim JSON file"},
					&cli.StringFlag{
						Name:     "private-key",
						Required: true,
						Usage:    "Recipient's hex private key",
						EnvVars:  []string{"DROP_CLAIM_PRIVATE_KEY"},
					},
					&cli.Uint64Flag{Name: "chain-id", Required: true, Usage: "Chain ID of the campaign's EIP-712 domain"},
					&cli.StringFlag{Name: "domain-name", Value: "MerkleDrop", Usage: "EIP-712 domain name"},
					&cli.StringFlag{Name: "domain-version", Value: "1", Usage: "EIP-712 domain version"},
					&cli.StringFlag{Name: "contract-address", Required: true, Usage: "Verifying contract address of the campaign"},
				},
				Action: runClaim,
			},
			{
				Name:  "status",
				Usage: "Check whether an account has claimed",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "server", Value: "http://localhost:8080", Usage: "drop-server base URL"},
					&cli.StringFlag{Name: "account", Required: true, Usage: "Account address to check"},
				},
				Action: runStatus,
			},
			{
				Name:  "root",
				Usage: "Print the server's committed merkle root",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "server", Value: "http://localhost:8080", Usage: "drop-server base URL"},
				},
				Action: runRoot,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runClaim(c *cli.Context) error {
	raw, err := os.ReadFile(c.String("claim-file"))
	if err != nil {
		return fmt.Errorf("failed to read claim file: %w", err)
	}

	var claimFile types.ClaimFile
	if err := json.Unmarshal(raw, &claimFile); err != nil {
		return fmt.Errorf("failed to parse claim file: %w", err)
	}

	if !common.IsHexAddress(claimFile.Account) {
		return fmt.Errorf("claim file account %q is not a valid address", claimFile.Account)
	}
	account := common.HexToAddress(claimFile.Account)

	amount, err := types.ParseAmount(claimFile.Amount)
	if err != nil {
		return fmt.Errorf("claim file amount: %w", err)
	}

	key, err := crypto.HexToECDSA(c.String("private-key"))
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}
	if signerAddr := crypto.PubkeyToAddress(key.PublicKey); signerAddr != account {
		return fmt.Errorf("private key belongs to %s, claim file is for %s", signerAddr.Hex(), account.Hex())
	}

	domain := eip712.NewDomain(
		c.String("domain-name"),
		c.String("domain-version"),
		new(big.Int).SetUint64(c.Uint64("chain-id")),
		common.HexToAddress(c.String("contract-address")),
	)

	digest := domain.ClaimDigest(account, amount)
	signature, err := sigverify.Sign(digest, key)
	if err != nil {
		return fmt.Errorf("failed to sign claim digest: %w", err)
	}

	req := types.ClaimRequestV1{
		Account:   account.Hex(),
		Amount:    amount.String(),
		Proof:     claimFile.Proof,
		Signature: hexutil.Encode(signature),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	resp, err := httpClient.Post(c.String("server")+"/claim", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("claim request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp types.ErrorResponseV1
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Code != "" {
			return fmt.Errorf("claim rejected (%s): %s", errResp.Code, errResp.Error)
		}
		return fmt.Errorf("claim rejected: HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var claimResp types.ClaimResponseV1
	if err := json.Unmarshal(respBody, &claimResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("Claim accepted\n")
	fmt.Printf("  Claim ID: %s\n", claimResp.ClaimID)
	fmt.Printf("  Account:  %s\n", claimResp.Account)
	fmt.Printf("  Amount:   %s\n", claimResp.Amount)
	return nil
}

func runStatus(c *cli.Context) error {
	account := c.String("account")
	if !common.IsHexAddress(account) {
		return fmt.Errorf("%q is not a valid address", account)
	}

	var status types.ClaimStatusResponseV1
	if err := getJSON(c.String("server")+"/claimed/"+account, &status); err != nil {
		return err
	}

	fmt.Printf("Account: %s\nClaimed: %v\n", status.Account, status.Claimed)
	return nil
}

func runRoot(c *cli.Context) error {
	var root types.RootResponseV1
	if err := getJSON(c.String("server")+"/root", &root); err != nil {
		return err
	}

	fmt.Printf("Root: %s\n", root.Root)
	return nil
}

func getJSON(url string, out interface{}) error {
	httpClient := &http.Client{Timeout: 15 * time.Second}
	resp, err := httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
