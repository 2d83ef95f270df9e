package main

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/Layr-Labs/bip322-go/pkg/address"
	"github.com/Layr-Labs/bip322-go/pkg/bip137"
	"github.com/Layr-Labs/bip322-go/pkg/transaction"
	"github.com/Layr-Labs/bip322-go/pkg/witness"
	"github.com/urfave/cli/v2"
)

func witnessCommand() *cli.Command {
	return &cli.Command{
		Name:  "witness",
		Usage: "Encode or decode base64 witness stacks",
		Subcommands: []*cli.Command{
			{
				Name:  "encode",
				Usage: "Serialize hex stack items into a base64 witness",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "item",
						Usage:    "Stack item as hex, repeat for each item in order",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					var items [][]byte
					for _, h := range c.StringSlice("item") {
						item, err := decodeHex(h)
						if err != nil {
							return fmt.Errorf("invalid item '%s': %w", h, err)
						}
						items = append(items, item)
					}
					fmt.Println(witness.Serialize(items))
					return nil
				},
			},
			{
				Name:  "decode",
				Usage: "Print the hex stack items of a base64 witness",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "witness", Aliases: []string{"w"}, Required: true},
				},
				Action: func(c *cli.Context) error {
					items, err := witness.Deserialize(c.String("witness"))
					if err != nil {
						return err
					}
					for i, item := range items {
						fmt.Printf("%d: %s\n", i, hex.EncodeToString(item))
					}
					return nil
				},
			},
		},
	}
}

func addressCommand() *cli.Command {
	return &cli.Command{
		Name:  "address",
		Usage: "Classify addresses and derive them from public keys",
		Subcommands: []*cli.Command{
			{
				Name:  "classify",
				Usage: "Print the type, network and scriptPubKey of an address",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Required: true},
				},
				Action: func(c *cli.Context) error {
					desc, err := address.Classify(c.String("address"))
					if err != nil {
						return err
					}
					fmt.Printf("address:      %s\n", desc.Address)
					fmt.Printf("type:         %s\n", desc.Type)
					fmt.Printf("network:      %s\n", desc.Network)
					fmt.Printf("scriptPubKey: %s\n", hex.EncodeToString(desc.ScriptPubKey))
					for _, n := range []address.Network{address.Mainnet, address.Testnet, address.Regtest} {
						if n == desc.Network {
							continue
						}
						if other, err := address.ScriptPubKeyToAddress(desc.ScriptPubKey, n); err == nil {
							fmt.Printf("%-13s %s\n", n.String()+":", other)
						}
					}
					return nil
				},
			},
			{
				Name:  "derive",
				Usage: "Derive every supported address of a public key",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "public-key", Usage: "Compressed or uncompressed public key as hex", Required: true},
				},
				Action: func(c *cli.Context) error {
					rt, err := newRuntime(c)
					if err != nil {
						return err
					}
					pub, err := decodeHex(c.String("public-key"))
					if err != nil {
						return err
					}
					deriver := address.NewDeriver(rt.provider)
					for _, t := range []address.Type{address.P2PKH, address.P2SH, address.P2WPKH, address.P2TR} {
						addr, err := deriver.FromPublicKeyForNetwork(pub, t, rt.network)
						if err != nil {
							fmt.Printf("%-7s %v\n", t, err)
							continue
						}
						fmt.Printf("%-7s %s\n", t, addr)
					}
					return nil
				},
			},
		},
	}
}

func headersCommand() *cli.Command {
	return &cli.Command{
		Name:  "headers",
		Usage: "Explain the header byte of a 65-byte BIP-137 signature",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "signature", Aliases: []string{"s"}, Required: true},
		},
		Action: func(c *cli.Context) error {
			raw, err := witness.DecodeBase64(c.String("signature"))
			if err != nil {
				return err
			}
			if len(raw) != bip137.SignatureLength {
				return fmt.Errorf("legacy signatures are %d bytes, got %d", bip137.SignatureLength, len(raw))
			}
			header := raw[0]
			recoveryID, err := bip137.RecoveryID(header)
			if err != nil {
				return err
			}
			hint, err := bip137.HintOf(header)
			if err != nil {
				return err
			}
			fmt.Printf("header:      %d\n", header)
			fmt.Printf("recovery id: %d\n", recoveryID)
			fmt.Printf("hint:        %s\n", hint)
			fmt.Printf("equivalent:  %v\n", bip137.CompatibleHeaders(header))
			return nil
		},
	}
}

func txCommand() *cli.Command {
	return &cli.Command{
		Name:  "tx",
		Usage: "Print the BIP-322 virtual transactions for an address and message",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Required: true},
			&cli.StringFlag{Name: "public-key", Usage: "Signer public key as hex, required for P2SH-P2WPKH"},
			&cli.StringFlag{Name: "signature", Aliases: []string{"s"}, Usage: "BIP-322 witness to attach, prints the signed toSign transaction"},
		}, messageFlags...),
		Action: func(c *cli.Context) error {
			message, err := messageFromFlags(c)
			if err != nil {
				return err
			}
			desc, err := address.Classify(c.String("address"))
			if err != nil {
				return err
			}
			toSpend, err := transaction.BuildToSpendTx(message, desc.ScriptPubKey)
			if err != nil {
				return err
			}

			var pub []byte
			if h := c.String("public-key"); h != "" {
				if pub, err = decodeHex(h); err != nil {
					return err
				}
			}

			spendScript, scriptHash, internalKey := desc.ScriptPubKey, false, []byte(nil)
			switch desc.Type {
			case address.P2SH:
				if pub == nil {
					return fmt.Errorf("--public-key is required for P2SH-P2WPKH addresses")
				}
				spendScript, scriptHash = address.P2WPKHScript(pub), true
			case address.P2TR:
				internalKey = pub
			}

			packet, err := transaction.BuildToSignTx(toSpend.TxHash(), spendScript, scriptHash, internalKey)
			if err != nil {
				return err
			}
			encoded, err := packet.B64Encode()
			if err != nil {
				return err
			}

			fmt.Printf("toSpend txid: %s\n", toSpend.TxHash())
			fmt.Printf("toSign txid:  %s\n", packet.UnsignedTx.TxHash())
			fmt.Printf("toSign psbt:  %s\n", encoded)

			if sig := c.String("signature"); sig != "" {
				items, err := witness.Deserialize(sig)
				if err != nil {
					return err
				}
				signed, err := transaction.ExtractToSignTx(packet, items)
				if err != nil {
					return err
				}
				var buf bytes.Buffer
				if err := signed.Serialize(&buf); err != nil {
					return err
				}
				fmt.Printf("signed wtxid: %s\n", signed.WitnessHash())
				fmt.Printf("signed tx:    %s\n", hex.EncodeToString(buf.Bytes()))
			}
			return nil
		},
	}
}
