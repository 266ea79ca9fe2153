package client

import (
	"context"

	"github.com/menta2k/image-quality/pkg/types"
)

// VisionClient is a remote vision model able to annotate an image
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	Annotate(ctx context.Context, model, prompt, imgB64 string) (*types.RawAnnotations, error)
}
