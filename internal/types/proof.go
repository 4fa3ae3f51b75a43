package types

// MerkleProofValues is the wire form of an authentication path: decimal
// strings, leaf level first, with one position bit per level (0 = path node
// is the left child).
type MerkleProofValues struct {
	LeafIndex uint64   `json:"leaf_index"`
	Leaf      string   `json:"leaf"`
	Siblings  []string `json:"siblings"`
	Positions []uint8  `json:"positions"`
	Root      string   `json:"root"`
}

// ProofInput is everything the external prover needs to build a swap proof:
// the note's secrets, a fresh inclusion path, and the public swap
// parameters bound into the proof.
type ProofInput struct {
	Nullifier      string            `json:"nullifier"`
	Secret         string            `json:"secret"`
	Amount         string            `json:"amount"`
	NullifierHash  string            `json:"nullifier_hash"`
	MerkleProof    MerkleProofValues `json:"merkle_proof"`
	Recipient      string            `json:"recipient"`
	Relayer        string            `json:"relayer"`
	RelayerFee     string            `json:"relayer_fee"`
	ExpectedOutput string            `json:"expected_output"`
}

// ProofResult is the prover's output, passed through to the caller
// untouched: a Groth16 proof and its public signals.
type ProofResult struct {
	Proof         ProofPoints `json:"proof"`
	PublicSignals []string    `json:"public_signals"`
}

// ProofPoints holds the three Groth16 proof elements as decimal-string
// coordinate arrays, the shape on-chain verifiers accept.
type ProofPoints struct {
	A []string   `json:"a"`
	B [][]string `json:"b"`
	C []string   `json:"c"`
}
