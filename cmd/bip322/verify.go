package main

import (
	"fmt"

	"github.com/Layr-Labs/bip322-go/pkg/client"
	"github.com/Layr-Labs/bip322-go/pkg/config"
	"github.com/Layr-Labs/bip322-go/pkg/types"
	"github.com/Layr-Labs/bip322-go/pkg/verifier"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
)

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Verify a BIP-322 or BIP-137 signature",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "address",
				Aliases:  []string{"a"},
				Usage:    "Bitcoin address that allegedly signed the message",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "signature",
				Aliases:  []string{"s"},
				Usage:    "Base64 signature (BIP-322 witness or 65-byte BIP-137)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "server",
				Usage:   "Verify through a bip322 server instead of locally",
				EnvVars: []string{config.EnvBIP322ServerURL},
			},
		}, messageFlags...),
		Action: runVerify,
	}
}

func runVerify(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	message, err := messageFromFlags(c)
	if err != nil {
		return err
	}

	addr := c.String("address")
	signature := c.String("signature")

	var valid bool
	if serverURL := c.String("server"); serverURL != "" {
		req := &types.VerifyRequest{Address: addr, MessageHex: hexutil.Encode(message), Signature: signature}
		resp, err := client.NewClient(serverURL, rt.logger).Verify(c.Context, req)
		if err != nil {
			return err
		}
		valid = resp.Valid
	} else {
		valid, err = verifier.NewVerifier(rt.provider, rt.logger).VerifySignature(addr, message, signature)
		if err != nil {
			return err
		}
	}

	fmt.Println(valid)
	if !valid {
		return cli.Exit("", 1)
	}
	return nil
}
