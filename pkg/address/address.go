// Package address classifies Bitcoin address strings and derives addresses
// from public keys for the script types BIP-322 signing understands.
package address

import (
	"fmt"
	"strings"

	"github.com/Layr-Labs/bip322-go/pkg/types"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// Type is the closed set of address variants
type Type int

const (
	Unsupported Type = iota
	P2PKH
	P2SH
	P2WPKH
	P2WSH
	P2TR
)

func (t Type) String() string {
	switch t {
	case P2PKH:
		return "p2pkh"
	case P2SH:
		return "p2sh"
	case P2WPKH:
		return "p2wpkh"
	case P2WSH:
		return "p2wsh"
	case P2TR:
		return "p2tr"
	default:
		return "unsupported"
	}
}

// ParseType parses the lower-case names produced by Type.String
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "p2pkh":
		return P2PKH, nil
	case "p2sh", "p2sh-p2wpkh":
		return P2SH, nil
	case "p2wpkh":
		return P2WPKH, nil
	case "p2wsh":
		return P2WSH, nil
	case "p2tr":
		return P2TR, nil
	default:
		return Unsupported, fmt.Errorf("unknown address type '%s'", s)
	}
}

// Network identifies the chain an address belongs to
type Network int

const (
	Mainnet Network = iota
	Testnet
	Regtest
)

// decodeOrder is the order in which networks are tried when decoding
var decodeOrder = []Network{Mainnet, Testnet, Regtest}

func (n Network) String() string {
	switch n {
	case Testnet:
		return "testnet"
	case Regtest:
		return "regtest"
	default:
		return "mainnet"
	}
}

// Params returns the chaincfg parameters of the network
func (n Network) Params() *chaincfg.Params {
	switch n {
	case Testnet:
		return &chaincfg.TestNet3Params
	case Regtest:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

// ParseNetwork parses a network name
func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(s) {
	case "mainnet", "main", "bitcoin":
		return Mainnet, nil
	case "testnet", "testnet3", "test":
		return Testnet, nil
	case "regtest":
		return Regtest, nil
	default:
		return Mainnet, fmt.Errorf("unknown network '%s'", s)
	}
}

// Descriptor is a classified address
type Descriptor struct {
	// Address is the canonical encoding of the input
	Address      string
	Type         Type
	Network      Network
	ScriptPubKey []byte
}

// decode tries every supported network in turn and returns the first match
func decode(addr string) (btcutil.Address, Network, error) {
	var lastErr error
	for _, network := range decodeOrder {
		params := network.Params()
		decoded, err := btcutil.DecodeAddress(addr, params)
		if err != nil {
			lastErr = err
			continue
		}
		// bech32 decoding does not check the hrp against params
		if !decoded.IsForNet(params) {
			lastErr = fmt.Errorf("address is not for %s", network)
			continue
		}
		return decoded, network, nil
	}
	return nil, Mainnet, types.WrapError(types.KindInvalidAddress, lastErr, "invalid address '%s'", addr)
}

// IsValidAddress reports whether addr decodes on mainnet, testnet or regtest
func IsValidAddress(addr string) bool {
	_, _, err := decode(addr)
	return err == nil
}

// ToScriptPubKey returns the locking script of addr
func ToScriptPubKey(addr string) ([]byte, error) {
	decoded, _, err := decode(addr)
	if err != nil {
		return nil, err
	}
	script, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return nil, types.WrapError(types.KindInvalidAddress, err, "no script template for '%s'", addr)
	}
	return script, nil
}

// typeFromPrefix applies the string prefix rules. Witness v0 needs the
// script length to tell P2WPKH from P2WSH.
func typeFromPrefix(addr string, scriptPubKey []byte) Type {
	if addr == "" {
		return Unsupported
	}
	switch addr[0] {
	case '1', 'm', 'n':
		return P2PKH
	case '3', '2':
		return P2SH
	}

	if len(addr) < 4 {
		return Unsupported
	}
	switch strings.ToLower(addr[:4]) {
	case "bc1q", "tb1q":
		switch len(scriptPubKey) {
		case 22:
			return P2WPKH
		case 34:
			return P2WSH
		}
	case "bc1p", "tb1p":
		return P2TR
	}
	return Unsupported
}

// typeFromDecoded maps the decoded btcutil address onto Type
func typeFromDecoded(decoded btcutil.Address) Type {
	switch decoded.(type) {
	case *btcutil.AddressPubKeyHash:
		return P2PKH
	case *btcutil.AddressScriptHash:
		return P2SH
	case *btcutil.AddressWitnessPubKeyHash:
		return P2WPKH
	case *btcutil.AddressWitnessScriptHash:
		return P2WSH
	case *btcutil.AddressTaproot:
		return P2TR
	default:
		return Unsupported
	}
}

// Classify maps an address string onto its descriptor. The variant comes from
// the prefix rules and is demoted to Unsupported when the decoded payload
// disagrees with them.
func Classify(addr string) (*Descriptor, error) {
	decoded, network, err := decode(addr)
	if err != nil {
		return nil, err
	}
	script, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return nil, types.WrapError(types.KindInvalidAddress, err, "no script template for '%s'", addr)
	}

	t := typeFromPrefix(addr, script)
	if t != typeFromDecoded(decoded) {
		t = Unsupported
	}

	return &Descriptor{
		Address:      decoded.EncodeAddress(),
		Type:         t,
		Network:      network,
		ScriptPubKey: script,
	}, nil
}

// ScriptPubKeyToAddress renders a standard locking script as an address
func ScriptPubKeyToAddress(script []byte, network Network) (string, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, network.Params())
	if err != nil {
		return "", types.WrapError(types.KindUnsupportedAddress, err, "failed to parse script")
	}
	if len(addrs) != 1 {
		return "", types.NewError(types.KindUnsupportedAddress, "script does not pay to a single address")
	}
	return addrs[0].EncodeAddress(), nil
}
