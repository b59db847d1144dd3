package interfaces

import "context"

// MediaUpload carries one normalized image to the platform.
type MediaUpload struct {
	Filename    string
	ContentType string
	Data        []byte
	Role        MediaRole
}

// UploadedMedia is what the platform returned for an upload. Content uploads
// may only return a URL.
type UploadedMedia struct {
	MediaID string
	URL     string
}

// DraftArticle is the payload of a create-draft call.
type DraftArticle struct {
	Title              string
	Author             string
	Digest             string
	Content            string
	ContentSourceURL   string
	ThumbMediaID       string
	NeedOpenComment    bool
	OnlyFansCanComment bool
}

// PlatformClient is the primitive surface of the external content platform.
// Every call may fail with a platform-coded error; callers route all calls
// through the retry policy.
type PlatformClient interface {
	UploadCoverMedia(ctx context.Context, upload MediaUpload) (UploadedMedia, error)
	UploadContentMedia(ctx context.Context, upload MediaUpload) (UploadedMedia, error)
	CreateDraft(ctx context.Context, article DraftArticle) (string, error)
}
