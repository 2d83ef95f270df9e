// Package transaction builds the two virtual transactions of a BIP-322
// simple signature and computes the input sighash over them.
package transaction

import (
	"fmt"

	"github.com/Layr-Labs/bip322-go/pkg/address"
	"github.com/Layr-Labs/bip322-go/pkg/crypto"
	"github.com/Layr-Labs/bip322-go/pkg/witness"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	// txVersion and txLockTime are fixed to zero for both virtual transactions
	txVersion  int32  = 0
	txLockTime uint32 = 0
	txSequence uint32 = 0
)

// BuildToSpendTx builds the transaction whose single output the signature spends:
// null prevout, scriptSig OP_0 <BIP322 message hash>, one zero-value output
// paying scriptPubKey
func BuildToSpendTx(message []byte, scriptPubKey []byte) (*wire.MsgTx, error) {
	messageHash := crypto.BIP322MessageHash(message)

	scriptSig, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(messageHash[:]).
		Script()
	if err != nil {
		return nil, fmt.Errorf("failed to build toSpend scriptSig: %w", err)
	}

	tx := wire.NewMsgTx(txVersion)
	tx.LockTime = txLockTime

	prevOut := wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex)
	txIn := wire.NewTxIn(prevOut, scriptSig, nil)
	txIn.Sequence = txSequence
	tx.AddTxIn(txIn)

	tx.AddTxOut(wire.NewTxOut(0, scriptPubKey))
	return tx, nil
}

// BuildToSignTx builds the unsigned spending transaction as a PSBT.
//
// When isScriptHashSpend is set, spendScript is the P2SH redeem script: the
// spent output pays to its hash and the input's final scriptSig pushes it.
// Otherwise spendScript is the spent output's scriptPubKey and the scriptSig
// stays empty. internalPubKey, when present, is recorded as the taproot
// internal key of the input.
func BuildToSignTx(toSpendTxID chainhash.Hash, spendScript []byte, isScriptHashSpend bool, internalPubKey []byte) (*psbt.Packet, error) {
	tx := wire.NewMsgTx(txVersion)
	tx.LockTime = txLockTime

	txIn := wire.NewTxIn(wire.NewOutPoint(&toSpendTxID, 0), nil, nil)
	txIn.Sequence = txSequence
	tx.AddTxIn(txIn)

	opReturn, err := txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN).Script()
	if err != nil {
		return nil, fmt.Errorf("failed to build OP_RETURN output: %w", err)
	}
	tx.AddTxOut(wire.NewTxOut(0, opReturn))

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to create toSign packet: %w", err)
	}

	input := &packet.Inputs[0]
	prevOutScript := spendScript
	if isScriptHashSpend {
		prevOutScript, err = payToScriptHash(spendScript)
		if err != nil {
			return nil, err
		}
		finalScriptSig, err := txscript.NewScriptBuilder().AddData(spendScript).Script()
		if err != nil {
			return nil, fmt.Errorf("failed to build redeem scriptSig: %w", err)
		}
		input.RedeemScript = spendScript
		input.FinalScriptSig = finalScriptSig
	}
	input.WitnessUtxo = wire.NewTxOut(0, prevOutScript)

	if len(internalPubKey) > 0 {
		if len(internalPubKey) == 33 {
			internalPubKey = internalPubKey[1:]
		}
		if len(internalPubKey) != 32 {
			return nil, fmt.Errorf("taproot internal key must be 32 bytes, got %d", len(internalPubKey))
		}
		input.TaprootInternalKey = internalPubKey
	}

	return packet, nil
}

func payToScriptHash(redeemScript []byte) ([]byte, error) {
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(crypto.Hash160(redeemScript)).
		AddOp(txscript.OP_EQUAL).
		Script()
	if err != nil {
		return nil, fmt.Errorf("failed to build P2SH script: %w", err)
	}
	return script, nil
}

// SigHashes returns the prevout fetcher and sighash midstate of the packet's input
func SigHashes(packet *psbt.Packet) (txscript.PrevOutputFetcher, *txscript.TxSigHashes, error) {
	if len(packet.Inputs) != 1 || packet.Inputs[0].WitnessUtxo == nil {
		return nil, nil, fmt.Errorf("toSign packet must have one input with a witness utxo")
	}
	utxo := packet.Inputs[0].WitnessUtxo
	fetcher := txscript.NewCannedPrevOutputFetcher(utxo.PkScript, utxo.Value)
	return fetcher, txscript.NewTxSigHashes(packet.UnsignedTx, fetcher), nil
}

// WitnessV0SigHash computes the BIP-143 SIGHASH_ALL digest for a P2WPKH or
// P2SH-P2WPKH spend by pubKey
func WitnessV0SigHash(packet *psbt.Packet, pubKey []byte) ([]byte, error) {
	_, sigHashes, err := SigHashes(packet)
	if err != nil {
		return nil, err
	}
	utxo := packet.Inputs[0].WitnessUtxo
	hash, err := txscript.CalcWitnessSigHash(address.P2WPKHScript(pubKey), sigHashes, txscript.SigHashAll, packet.UnsignedTx, 0, utxo.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to compute witness v0 sighash: %w", err)
	}
	return hash, nil
}

// TaprootSigHash computes the BIP-341 key-path digest under hashType
func TaprootSigHash(packet *psbt.Packet, hashType txscript.SigHashType) ([]byte, error) {
	fetcher, sigHashes, err := SigHashes(packet)
	if err != nil {
		return nil, err
	}
	hash, err := txscript.CalcTaprootSignatureHash(sigHashes, hashType, packet.UnsignedTx, 0, fetcher)
	if err != nil {
		return nil, fmt.Errorf("failed to compute taproot sighash: %w", err)
	}
	return hash, nil
}

// ExtractToSignTx finalizes the packet with items as the input witness and
// returns the complete transaction
func ExtractToSignTx(packet *psbt.Packet, items [][]byte) (*wire.MsgTx, error) {
	packet.Inputs[0].FinalScriptWitness = witness.Encode(items)
	tx, err := psbt.Extract(packet)
	if err != nil {
		return nil, fmt.Errorf("failed to extract toSign transaction: %w", err)
	}
	return tx, nil
}
