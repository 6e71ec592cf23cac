package database

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// newRevision returns the revision following prev. Revisions read
// "<generation>-<32 hex>"; callers treat them as opaque.
func newRevision(prev string) string {
	return fmt.Sprintf("%d-%s", revisionGeneration(prev)+1, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func revisionGeneration(rev string) int {
	head, _, ok := strings.Cut(rev, "-")
	if !ok {
		return 0
	}
	gen, err := strconv.Atoi(head)
	if err != nil || gen < 0 {
		return 0
	}
	return gen
}

func newDocumentID() string {
	return uuid.NewString()
}
