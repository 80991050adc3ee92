package trader

import (
	"encoding/binary"
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
)

// SystemProgramID and TokenProgramID are the well-known native program
// addresses instructions are dispatched to.
const (
	SystemProgramID = "11111111111111111111111111111111"
	TokenProgramID  = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

func decodePubkey(address string) ([32]byte, error) {
	var out [32]byte
	raw, err := base58.Decode(address)
	if err != nil {
		return out, fmt.Errorf("decode address %s: %w", address, err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("address %s decodes to %d bytes, want 32", address, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func encodeShortVec(n int) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			out = append(out, b|0x80)
			continue
		}
		out = append(out, b)
		return out
	}
}

type instruction struct {
	programIDIndex byte
	accountIndices []byte
	data           []byte
}

// assembleLegacyTransaction builds an unsigned legacy (non-versioned)
// Solana transaction with a single empty 64-byte signature slot, ready for
// signTransaction to fill.
func assembleLegacyTransaction(accounts [][32]byte, numReadonlySigned, numReadonlyUnsigned int, blockhash [32]byte, instructions []instruction) (string, error) {
	var msg []byte
	msg = append(msg, 1, byte(numReadonlySigned), byte(numReadonlyUnsigned))
	msg = append(msg, encodeShortVec(len(accounts))...)
	for _, a := range accounts {
		msg = append(msg, a[:]...)
	}
	msg = append(msg, blockhash[:]...)
	msg = append(msg, encodeShortVec(len(instructions))...)
	for _, ix := range instructions {
		msg = append(msg, ix.programIDIndex)
		msg = append(msg, encodeShortVec(len(ix.accountIndices))...)
		msg = append(msg, ix.accountIndices...)
		msg = append(msg, encodeShortVec(len(ix.data))...)
		msg = append(msg, ix.data...)
	}

	tx := append([]byte{1}, make([]byte, signatureSize)...)
	tx = append(tx, msg...)
	return base64.StdEncoding.EncodeToString(tx), nil
}

// buildSystemTransfer builds an unsigned native-SOL transfer transaction.
func buildSystemTransfer(fromPub, toPub string, lamports uint64, blockhash string) (string, error) {
	from, err := decodePubkey(fromPub)
	if err != nil {
		return "", err
	}
	to, err := decodePubkey(toPub)
	if err != nil {
		return "", err
	}
	bh, err := decodePubkey(blockhash)
	if err != nil {
		return "", err
	}
	programID, err := decodePubkey(SystemProgramID)
	if err != nil {
		return "", err
	}

	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 2) // SystemInstruction::Transfer discriminant
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	accounts := [][32]byte{from, to, programID}
	ix := instruction{programIDIndex: 2, accountIndices: []byte{0, 1}, data: data}
	return assembleLegacyTransaction(accounts, 0, 1, bh, []instruction{ix})
}

// buildTokenTransfer builds an unsigned SPL token transfer between two
// existing token accounts, authorized by owner.
func buildTokenTransfer(ownerPub, sourceATA, destATA string, amount uint64, blockhash string) (string, error) {
	owner, err := decodePubkey(ownerPub)
	if err != nil {
		return "", err
	}
	source, err := decodePubkey(sourceATA)
	if err != nil {
		return "", err
	}
	dest, err := decodePubkey(destATA)
	if err != nil {
		return "", err
	}
	bh, err := decodePubkey(blockhash)
	if err != nil {
		return "", err
	}
	programID, err := decodePubkey(TokenProgramID)
	if err != nil {
		return "", err
	}

	data := make([]byte, 9)
	data[0] = 3 // TokenInstruction::Transfer tag
	binary.LittleEndian.PutUint64(data[1:9], amount)

	accounts := [][32]byte{owner, source, dest, programID}
	ix := instruction{programIDIndex: 3, accountIndices: []byte{1, 2, 0}, data: data}
	return assembleLegacyTransaction(accounts, 1, 1, bh, []instruction{ix})
}
