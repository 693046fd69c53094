package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainWorkspace = "osversion/workspace/v1"
	DomainRun       = "osversion/run/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest computes the content hash of a workspace.
// Two workspaces with equal digests have the same version, record order,
// handles, field names and field values.
func Digest(w *Workspace) (string, error) {
	canonical, err := MarshalCanonical(canonicalForm(w))
	if err != nil {
		return "", fmt.Errorf("Digest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainWorkspace, canonical), nil
}

// MustDigest is like Digest but panics on error.
func MustDigest(w *Workspace) string {
	d, err := Digest(w)
	if err != nil {
		panic(err)
	}
	return d
}

// RunID computes the identity of a translation run from its input digest,
// its output digest and the version pair. Recording the same run twice
// yields the same ID.
func RunID(inputDigest, outputDigest string, from, to VersionTag) (string, error) {
	obj := map[string]any{
		"input":  inputDigest,
		"output": outputDigest,
		"from":   from.String(),
		"to":     to.String(),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RunID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRun, canonical), nil
}
