// Package contentgen produces tailored application content for a queue item.
// The generator is an external collaborator consumed through a typed contract:
// draft text plus a fixed score triple. Any implementation, including the
// canned template fallback, must satisfy that contract.
package contentgen

import (
	"context"

	"github.com/jonathan/autoapply/internal/types"
)

// Generator is the typed collaborator contract for content generation.
type Generator interface {
	// Generate produces draft content and the three quality scores for a
	// candidate under a profile's settings.
	Generate(ctx context.Context, candidate *types.JobCandidate, profile *types.AutomationProfile) (*types.GeneratedContent, error)
	// Close releases any resources held by the generator.
	Close() error
}
