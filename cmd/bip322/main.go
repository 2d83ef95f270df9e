package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Layr-Labs/bip322-go/pkg/address"
	"github.com/Layr-Labs/bip322-go/pkg/config"
	"github.com/Layr-Labs/bip322-go/pkg/crypto"
	"github.com/Layr-Labs/bip322-go/pkg/logger"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "bip322",
		Usage: "Sign and verify Bitcoin messages with BIP-322 and BIP-137",
		Description: `Generic message signing for Bitcoin addresses.

Supports:
- BIP-322 simple signatures for P2WPKH, P2SH-P2WPKH and single-key P2TR addresses
- Legacy BIP-137 signatures for P2PKH and segwit addresses
- Signing with local keys, WIF keys and AWS KMS secp256k1 keys
- Inspecting witness stacks, addresses and the virtual transactions`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "curve-provider",
				Usage:   fmt.Sprintf("secp256k1 backend: %s", strings.Join(crypto.ListProviders(), ", ")),
				Value:   crypto.ProviderBtcec,
				EnvVars: []string{config.EnvBIP322Provider},
			},
			&cli.StringFlag{
				Name:    "network",
				Usage:   "Network used when deriving addresses: mainnet, testnet or regtest",
				Value:   address.Mainnet.String(),
				EnvVars: []string{config.EnvBIP322Network},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				EnvVars: []string{config.EnvBIP322Debug},
			},
		},
		Commands: []*cli.Command{
			verifyCommand(),
			signCommand(),
			signKMSCommand(),
			witnessCommand(),
			addressCommand(),
			headersCommand(),
			txCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

// runtime holds the objects every subcommand builds from the global flags
type runtime struct {
	cfg      *config.CLIConfig
	provider crypto.ICurveProvider
	network  address.Network
	logger   *zap.Logger
}

func newRuntime(c *cli.Context) (*runtime, error) {
	cfg := &config.CLIConfig{
		CurveProvider: c.String("curve-provider"),
		Network:       c.String("network"),
		Debug:         c.Bool("debug"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	provider, err := crypto.NewCurveProvider(cfg.CurveProvider)
	if err != nil {
		return nil, err
	}
	network, err := address.ParseNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}

	var l *zap.Logger
	if cfg.Debug {
		if l, err = logger.NewLogger(&logger.LoggerConfig{Debug: true}); err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	} else {
		l = zap.NewNop()
	}

	return &runtime{cfg: cfg, provider: provider, network: network, logger: l}, nil
}

// decodeHex accepts hex with or without a 0x prefix
func decodeHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}

var messageFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "message",
		Aliases: []string{"m"},
		Usage:   "Message as a UTF-8 string",
	},
	&cli.StringFlag{
		Name:  "message-hex",
		Usage: "Message as hex bytes (takes precedence over --message)",
	},
}

// messageFromFlags reads --message-hex or --message
func messageFromFlags(c *cli.Context) ([]byte, error) {
	if h := c.String("message-hex"); h != "" {
		msg, err := decodeHex(h)
		if err != nil {
			return nil, fmt.Errorf("invalid --message-hex: %w", err)
		}
		return msg, nil
	}
	if !c.IsSet("message") {
		return nil, fmt.Errorf("one of --message or --message-hex is required")
	}
	return []byte(c.String("message")), nil
}
