package normalize

import (
	"fmt"
	"strings"

	"github.com/c360/provreport/errors"
)

// uiPathSuffix is the path segment identifying the engine UI. The
// instance base URL must end with it; the API prefix for content links is
// obtained by stripping it.
const uiPathSuffix = "/nifi"

// ContentURIs holds the four content links derived for one event.
type ContentURIs struct {
	DownloadInput  string
	DownloadOutput string
	ViewInput      string
	ViewOutput     string
}

// URIBuilder derives content-download/view links and component links from
// the instance base URL. The string transformation must be exact; the
// links are user-facing.
type URIBuilder struct {
	baseURL string
	prefix  string
}

// NewURIBuilder validates the instance base URL and returns a builder.
// A base URL that does not end with the UI path suffix is a configuration
// error, rejected here rather than silently tolerated downstream. A
// trailing slash is accepted and dropped, matching config validation.
func NewURIBuilder(baseURL string) (*URIBuilder, error) {
	if baseURL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "URIBuilder", "NewURIBuilder",
			"instance base URL is required")
	}
	trimmed := strings.TrimSuffix(baseURL, "/")
	if !strings.HasSuffix(trimmed, uiPathSuffix) {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "URIBuilder", "NewURIBuilder",
			fmt.Sprintf("instance base URL %q must end with %q", baseURL, uiPathSuffix))
	}
	return &URIBuilder{
		baseURL: trimmed,
		prefix:  strings.TrimSuffix(trimmed, uiPathSuffix),
	}, nil
}

// ContentURIs builds the four content links for an event id.
func (b *URIBuilder) ContentURIs(eventID int64) ContentURIs {
	download := fmt.Sprintf("%s/nifi-api/provenance-events/%d/content", b.prefix, eventID)
	view := fmt.Sprintf("%s/nifi-content-viewer/?ref=%s", b.prefix, download)
	return ContentURIs{
		DownloadInput:  download + "/input",
		DownloadOutput: download + "/output",
		ViewInput:      view + "/input",
		ViewOutput:     view + "/output",
	}
}

// ComponentURL builds the UI link selecting a component within its
// process group.
func (b *URIBuilder) ComponentURL(processGroupID, componentID string) string {
	return fmt.Sprintf("%s?processGroupId=%s&componentsIds=%s", b.baseURL, processGroupID, componentID)
}
