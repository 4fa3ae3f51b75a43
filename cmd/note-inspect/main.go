// Command note-inspect decodes a serialized note blob, recomputes the
// commitment and nullifier hash from the secrets, and reports whether they
// match. Secrets are only printed with -secrets.
package main

import (
	"flag"
	"fmt"
	"os"

	"shieldswap-client/internal/commitment"
	"shieldswap-client/internal/zkhash"
)

func main() {
	showSecrets := flag.Bool("secrets", false, "print nullifier and secret preimages")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: note-inspect [-secrets] <serialized-note>")
		os.Exit(1)
	}

	note, err := commitment.Deserialize(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to decode note: %v\n", err)
		os.Exit(1)
	}

	hasher := zkhash.NewMiMC()
	expectedCommitment := commitment.ComputeCommitment(hasher, note.Nullifier, note.Secret, note.Amount)
	expectedNullifierHash := commitment.ComputeNullifierHash(hasher, note.Nullifier)

	fmt.Printf("amount:         %s\n", note.Amount.Text(10))
	fmt.Printf("commitment:     %s\n", zkhash.ToDecimal(note.Commitment))
	fmt.Printf("nullifier hash: %s\n", zkhash.ToDecimal(note.NullifierHash))
	if note.LeafIndex != nil {
		fmt.Printf("leaf index:     %d\n", *note.LeafIndex)
	} else {
		fmt.Printf("leaf index:     unconfirmed\n")
	}

	if *showSecrets {
		fmt.Printf("nullifier:      %s\n", zkhash.ToDecimal(note.Nullifier))
		fmt.Printf("secret:         %s\n", zkhash.ToDecimal(note.Secret))
	}

	if expectedCommitment.Cmp(note.Commitment) != 0 {
		fmt.Println("WARNING: commitment does not match the secrets")
		os.Exit(1)
	}
	if expectedNullifierHash.Cmp(note.NullifierHash) != 0 {
		fmt.Println("WARNING: nullifier hash does not match the nullifier")
		os.Exit(1)
	}
	fmt.Println("note verifies")
}
