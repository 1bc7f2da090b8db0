package client

import (
	"context"
	"time"

	"dermascan-be/pkg/llm"
	"dermascan-be/pkg/media"
	"dermascan-be/pkg/storage"
)

// DefaultSignedURLTTL outlives any single analysis call by a wide margin.
const DefaultSignedURLTTL = time.Hour

// Reference is what the vision model fetches. Location is where the image
// lives for good; it is what gets persisted, never URL.
type Reference struct {
	URL      string
	Location string
}

// ReferenceResolver turns a raw asset into a Reference valid for one call.
type ReferenceResolver interface {
	Resolve(ctx context.Context, owner string, asset media.ImageAsset) (Reference, error)
}

// UploadResolver stores the asset and hands out a signed URL to it.
type UploadResolver struct {
	storage storage.ObjectStorage
	ttl     time.Duration
	now     func() time.Time
}

func NewUploadResolver(store storage.ObjectStorage, ttl time.Duration) *UploadResolver {
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	return &UploadResolver{storage: store, ttl: ttl, now: time.Now}
}

func (r *UploadResolver) Resolve(ctx context.Context, owner string, asset media.ImageAsset) (Reference, error) {
	key := storage.ObjectKey(owner, r.now(), storage.ExtensionFor(asset.MIMEType))

	location, err := r.storage.Upload(ctx, key, asset.Data, asset.MIMEType)
	if err != nil {
		return Reference{}, &Error{Kind: KindUpload, Message: "Failed to upload image", Err: err}
	}

	signed, err := r.storage.SignedURL(ctx, key, r.ttl)
	if err != nil {
		return Reference{}, &Error{Kind: KindReference, Message: "Failed to create image link", Err: err}
	}

	return Reference{URL: signed, Location: location}, nil
}

// InlineResolver embeds the asset as a data: URL. Nothing leaves the request.
type InlineResolver struct{}

func (InlineResolver) Resolve(_ context.Context, _ string, asset media.ImageAsset) (Reference, error) {
	if len(asset.Data) == 0 {
		return Reference{}, &Error{Kind: KindReference, Message: "Image is empty"}
	}
	return Reference{
		URL:      llm.EncodeDataURL(asset.Data, asset.MIMEType),
		Location: "inline:" + asset.Name,
	}, nil
}
