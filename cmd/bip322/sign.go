package main

import (
	"fmt"

	"github.com/Layr-Labs/bip322-go/internal/aws"
	"github.com/Layr-Labs/bip322-go/internal/keySigner"
	"github.com/Layr-Labs/bip322-go/internal/keySigner/awsKms"
	"github.com/Layr-Labs/bip322-go/pkg/address"
	"github.com/Layr-Labs/bip322-go/pkg/bip137"
	"github.com/Layr-Labs/bip322-go/pkg/config"
	"github.com/Layr-Labs/bip322-go/pkg/signer"
	"github.com/btcsuite/btcd/txscript"
	"github.com/urfave/cli/v2"
)

var legacyHints = map[string]bip137.Hint{
	bip137.HintP2PKHUncompressed.String(): bip137.HintP2PKHUncompressed,
	bip137.HintP2PKHCompressed.String():   bip137.HintP2PKHCompressed,
	bip137.HintP2SHP2WPKH.String():        bip137.HintP2SHP2WPKH,
	bip137.HintP2WPKH.String():            bip137.HintP2WPKH,
}

func signCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign",
		Usage: "Sign a message with a local private key",
		Description: `Either --wif with --address (the key must own the address), or
--private-key with --type. --legacy produces a 65-byte BIP-137 signature
with the given header family instead of a BIP-322 witness.`,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "wif",
				Usage: "Private key in wallet import format",
			},
			&cli.StringFlag{
				Name:    "address",
				Aliases: []string{"a"},
				Usage:   "Address to sign for (with --wif)",
			},
			&cli.StringFlag{
				Name:  "private-key",
				Usage: "32-byte private key as hex",
			},
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Address type: p2pkh, p2sh, p2wpkh or p2tr (with --private-key)",
			},
			&cli.StringFlag{
				Name:  "legacy",
				Usage: "Produce a BIP-137 signature with header family p2pkh-uncompressed, p2pkh-compressed, p2sh-p2wpkh or p2wpkh",
			},
			&cli.UintFlag{
				Name:  "sighash",
				Usage: "Explicit taproot sighash byte appended to the signature (p2tr only)",
			},
		}, messageFlags...),
		Action: runSign,
	}
}

func runSign(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	message, err := messageFromFlags(c)
	if err != nil {
		return err
	}
	s := signer.NewSigner(rt.provider, rt.logger)

	if wif := c.String("wif"); wif != "" {
		if c.String("address") == "" {
			return fmt.Errorf("--address is required with --wif")
		}
		sig, err := s.SignWIF(wif, c.String("address"), message)
		if err != nil {
			return err
		}
		fmt.Println(sig)
		return nil
	}

	if c.String("private-key") == "" {
		return fmt.Errorf("one of --wif or --private-key is required")
	}
	privateKey, err := decodeHex(c.String("private-key"))
	if err != nil {
		return fmt.Errorf("invalid --private-key: %w", err)
	}

	var sig string
	switch {
	case c.String("legacy") != "":
		hint, ok := legacyHints[c.String("legacy")]
		if !ok {
			return fmt.Errorf("unknown legacy header family '%s'", c.String("legacy"))
		}
		sig, err = s.SignLegacy(privateKey, message, hint)

	case c.IsSet("sighash"):
		sig, err = s.SignP2TRWithSighash(privateKey, message, txscript.SigHashType(c.Uint("sighash")))

	default:
		t, perr := address.ParseType(c.String("type"))
		if perr != nil {
			return perr
		}
		sig, err = s.Sign(privateKey, message, t)
	}
	if err != nil {
		return err
	}

	fmt.Println(sig)
	return nil
}

func signKMSCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign-kms",
		Usage: "Sign a message with a secp256k1 key held in AWS KMS",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "key-id",
				Usage:    "KMS key id, ARN or alias",
				EnvVars:  []string{config.EnvBIP322KMSKeyID},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "region",
				Usage:   "AWS region of the key",
				EnvVars: []string{config.EnvBIP322AWSRegion},
				Value:   "us-east-1",
			},
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Address type: p2pkh, p2sh or p2wpkh",
				Value:   address.P2WPKH.String(),
			},
		}, messageFlags...),
		Action: runSignKMS,
	}
}

func runSignKMS(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	kmsConfig := &config.KMSSignerConfig{
		KeyID:       c.String("key-id"),
		Region:      c.String("region"),
		AddressType: c.String("type"),
	}
	if err := kmsConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	message, err := messageFromFlags(c)
	if err != nil {
		return err
	}
	t, err := address.ParseType(kmsConfig.AddressType)
	if err != nil {
		return err
	}

	awsCfg, err := aws.LoadAWSConfig(c.Context, kmsConfig.Region)
	if err != nil {
		return err
	}
	if arn, err := aws.GetCallerIdentity(c.Context, awsCfg); err == nil {
		rt.logger.Sugar().Debugw("Signing with AWS identity", "arn", arn, "keyId", kmsConfig.KeyID)
	}

	ks := awsKms.NewAWSKMSKeySigner(awsCfg, kmsConfig.Region, rt.provider, rt.logger)
	handle := keySigner.ForKey(ks, kmsConfig.KeyID)

	pub, err := handle.PublicKey(c.Context)
	if err != nil {
		return err
	}
	addr, err := address.NewDeriver(rt.provider).FromPublicKeyForNetwork(pub, t, rt.network)
	if err != nil {
		return err
	}

	sig, err := signer.NewSigner(rt.provider, rt.logger).SignRemote(c.Context, handle, message, t)
	if err != nil {
		return err
	}

	fmt.Printf("address:   %s\n", addr)
	fmt.Printf("signature: %s\n", sig)
	return nil
}
