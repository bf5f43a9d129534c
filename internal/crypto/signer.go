package crypto

import "crypto"

// Signer extends crypto.Signer with knowledge of its own algorithm.
// Both software keys and PKCS#11 keys implement it, so callers can treat
// a file-backed responder key and an HSM-backed one uniformly.
type Signer interface {
	crypto.Signer

	// Algorithm returns the registered signature algorithm of the key.
	Algorithm() AlgorithmID
}
