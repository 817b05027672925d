package store

import (
	"context"
	"fmt"
)

// VerifyRun recomputes the digest of a stored run from its rows and compares
// it with the digest recorded at write time. It returns the recomputed digest
// and whether the two match.
func (s *Store) VerifyRun(ctx context.Context, id string) (string, bool, error) {
	rec, err := s.ReadRun(ctx, id)
	if err != nil {
		return "", false, err
	}
	hash, err := rec.Digest()
	if err != nil {
		return "", false, fmt.Errorf("verify run %s: %w", id, err)
	}
	return hash, hash == rec.TraceHash, nil
}
