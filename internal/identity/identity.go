// Package identity resolves a model's durable logical id to the remote
// item id it corresponds to in a workspace. It layers a persistent mapping
// cache over a deterministic id derivation, and trusts neither without
// confirming the candidate against a live item listing.
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// DeriveItemID computes the candidate remote item id for a logical id by
// reversing the byte order of its binary form. The transform matches
// observed service behavior but is not a documented contract, so callers
// must confirm the candidate against a live listing before trusting it.
func DeriveItemID(logicalID string) (string, error) {
	id, err := uuid.Parse(logicalID)
	if err != nil {
		return "", fmt.Errorf("identity: logical id %q is not a UUID: %w", logicalID, err)
	}

	for i, j := 0, len(id)-1; i < j; i, j = i+1, j-1 {
		id[i], id[j] = id[j], id[i]
	}

	return id.String(), nil
}
