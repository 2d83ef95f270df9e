package verifier

import (
	"github.com/Layr-Labs/bip322-go/pkg/address"
	"github.com/Layr-Labs/bip322-go/pkg/transaction"
	"github.com/Layr-Labs/bip322-go/pkg/types"
	"github.com/Layr-Labs/bip322-go/pkg/witness"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

func (v *Verifier) verifyBIP322(desc *address.Descriptor, message []byte, raw []byte) (bool, error) {
	items, err := witness.Decode(raw)
	if err != nil {
		return false, err
	}

	toSpend, err := transaction.BuildToSpendTx(message, desc.ScriptPubKey)
	if err != nil {
		return false, err
	}

	switch desc.Type {
	case address.P2SH, address.P2WPKH:
		return v.verifyWitnessV0(desc, toSpend, items)
	case address.P2TR:
		return v.verifyTaprootKeyPath(desc, toSpend, items)
	case address.P2PKH, address.P2WSH, address.Unsupported:
		return false, types.NewError(types.KindUnsupportedAddress, "BIP-322 witness verification does not support %s addresses", desc.Type)
	default:
		return false, types.NewError(types.KindUnsupportedAddress, "unknown address type %d", int(desc.Type))
	}
}

// verifyWitnessV0 checks a [signature, pubkey] witness for a native or
// P2SH-wrapped P2WPKH address
func (v *Verifier) verifyWitnessV0(desc *address.Descriptor, toSpend *wire.MsgTx, items [][]byte) (bool, error) {
	if !address.IsP2WPKHWitness(items) {
		return false, types.NewError(types.KindMalformedWitness, "expected a [signature, compressed pubkey] witness, got %d items", len(items))
	}
	sigWithHashType, pub := items[0], items[1]
	if len(sigWithHashType) == 0 {
		return false, types.NewError(types.KindMalformedWitness, "empty signature")
	}

	hashType := txscript.SigHashType(sigWithHashType[len(sigWithHashType)-1])
	if hashType != txscript.SigHashAll {
		return false, types.NewError(types.KindInvalidSighash, "sighash type 0x%02x is not SIGHASH_ALL", byte(hashType))
	}
	der := sigWithHashType[:len(sigWithHashType)-1]
	if _, err := ecdsa.ParseDERSignature(der); err != nil {
		return false, types.WrapError(types.KindMalformedWitness, err, "invalid DER signature")
	}

	spendScript := desc.ScriptPubKey
	isScriptHashSpend := desc.Type == address.P2SH
	if isScriptHashSpend {
		spendScript = address.P2WPKHScript(pub)
	}
	packet, err := transaction.BuildToSignTx(toSpend.TxHash(), spendScript, isScriptHashSpend, nil)
	if err != nil {
		return false, err
	}
	sigHash, err := transaction.WitnessV0SigHash(packet, pub)
	if err != nil {
		return false, err
	}

	if !v.provider.VerifyECDSA(pub, sigHash, der) {
		v.logOutcome(desc, "bip322-ecdsa", false)
		return false, nil
	}

	// the witness key must own the queried address
	derived, err := v.deriver.FromPublicKeyForNetwork(pub, desc.Type, desc.Network)
	if err != nil {
		v.logger.Sugar().Debugw("Witness public key cannot derive address", "error", err)
		return false, nil
	}
	valid := derived == desc.Address
	v.logOutcome(desc, "bip322-ecdsa", valid)
	return valid, nil
}

// verifyTaprootKeyPath checks a single-signature key-path witness against the
// output key committed in the address
func (v *Verifier) verifyTaprootKeyPath(desc *address.Descriptor, toSpend *wire.MsgTx, items [][]byte) (bool, error) {
	switch {
	case len(items) >= 2:
		return false, types.NewError(types.KindUnsupportedAddress, "script-spend P2TR is unsupported")
	case !address.IsSingleKeyP2TRWitness(items):
		return false, types.NewError(types.KindMalformedWitness, "taproot witness is empty")
	}

	sig := items[0]
	hashType := txscript.SigHashDefault
	switch len(sig) {
	case schnorr.SignatureSize:
	case schnorr.SignatureSize + 1:
		if txscript.SigHashType(sig[schnorr.SignatureSize]) != txscript.SigHashAll {
			return false, types.NewError(types.KindInvalidSighash, "sighash type 0x%02x is not SIGHASH_ALL or SIGHASH_DEFAULT", sig[schnorr.SignatureSize])
		}
		hashType = txscript.SigHashAll
		sig = sig[:schnorr.SignatureSize]
	default:
		return false, types.NewError(types.KindInvalidSchnorrSignature, "schnorr signature must be 64 or 65 bytes, got %d", len(sig))
	}

	packet, err := transaction.BuildToSignTx(toSpend.TxHash(), desc.ScriptPubKey, false, nil)
	if err != nil {
		return false, err
	}
	sigHash, err := transaction.TaprootSigHash(packet, hashType)
	if err != nil {
		return false, err
	}

	// scriptPubKey is OP_1 <32-byte output key>
	outputKey := desc.ScriptPubKey[2:]
	valid := v.provider.VerifySchnorr(outputKey, sigHash, sig)
	v.logOutcome(desc, "bip322-schnorr", valid)
	return valid, nil
}
