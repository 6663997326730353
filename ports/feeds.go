package ports

import (
	"context"

	"sedentarism/domain/weekly"
)

// FeedReader provides the two upstream feeds: weekly feature vectors from the
// aggregation stage and ground-truth labels from the clustering stage.
type FeedReader interface {
	ReadFeatures(ctx context.Context) ([]weekly.Vector, error)
	ReadLabels(ctx context.Context) ([]weekly.Label, error)
}
