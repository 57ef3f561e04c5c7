package xdscompiler

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"google.golang.org/protobuf/proto"

	"github.com/flowplane/flowplane/internal/domain"
)

// HashResource returns the content-addressed version string for a
// single xDS resource: the hex-encoded sha256 of its canonical,
// deterministically serialized protobuf bytes. Two resources with
// identical fields always hash identically regardless of map or
// unknown-field ordering, which is what lets the ADS engine skip a push
// when a write touched an unrelated resource of the same type (spec.md
// §4.5).
func HashResource(msg proto.Message) (string, error) {
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg)
	if err != nil {
		return "", domain.Internal(err, "marshaling resource for content hash")
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// HashResourceSet hashes a named collection of resources of the same
// type URL into one version string for the whole collection, sorting by
// each resource's own per-resource hash first so member order never
// affects the result.
func HashResourceSet[T proto.Message](resources []T) (string, error) {
	hashes := make([]string, 0, len(resources))
	for _, r := range resources {
		h, err := HashResource(r)
		if err != nil {
			return "", err
		}
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	h := sha256.New()
	for _, hh := range hashes {
		h.Write([]byte(hh))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
