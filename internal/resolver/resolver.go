// Package resolver turns short-video share text into a directly
// fetchable media URL. Each supported platform implements
// PlatformResolver; a router keyed by domain picks one and unsupported
// domains are rejected before any network traffic happens.
package resolver

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"scriptparser-go/internal/errs"
	"scriptparser-go/internal/logger"
	"scriptparser-go/internal/types"
)

// PlatformResolver resolves a share URL for one platform.
type PlatformResolver interface {
	Platform() types.Platform
	Match(host string) bool
	Resolve(ctx context.Context, shareURL string) (types.ResolvedMedia, error)
}

// Service routes share text to the resolver for its platform.
type Service struct {
	resolvers []PlatformResolver
}

// New builds the router. With no arguments it carries the default
// platform set; tests inject fakes instead.
func New(resolvers ...PlatformResolver) *Service {
	if len(resolvers) == 0 {
		resolvers = []PlatformResolver{NewDouyin(), NewXiaohongshu()}
	}
	return &Service{resolvers: resolvers}
}

// Share URLs are plain ASCII, so the first character outside printable
// ASCII ends the match. That also cuts CJK copy glued straight onto the
// link, which share apps produce a lot.
var urlPattern = regexp.MustCompile(`https?://[!-~]+`)

// trailing punctuation that share apps glue onto the pasted link
const trailingJunk = ",.;:!?)]}>\"'`"

func (s *Service) Resolve(ctx context.Context, shareText string) (types.ResolvedMedia, error) {
	log := logger.New().WithField("component", "resolver")

	rawURL, ok := extractURL(shareText)
	if !ok {
		return types.ResolvedMedia{}, errs.New(errs.KindUnsupportedPlatform, "No supported video platform found in the shared text")
	}

	host := hostOf(rawURL)
	for _, r := range s.resolvers {
		if !r.Match(host) {
			continue
		}
		start := time.Now()
		media, err := r.Resolve(ctx, rawURL)
		if err != nil {
			log.WithField("platform", string(r.Platform())).WithError(err).Warn("share resolution failed")
			return types.ResolvedMedia{}, err
		}
		log.WithField("platform", string(media.Platform)).
			WithField("video_id", media.PlatformVideoID).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Info("share link resolved")
		return media, nil
	}

	return types.ResolvedMedia{}, errs.Newf(errs.KindUnsupportedPlatform, "Unsupported video platform: %s", host)
}

// extractURL pulls the first URL out of free-form share text and trims
// the punctuation marketing copy leaves stuck to it.
func extractURL(text string) (string, bool) {
	m := urlPattern.FindString(text)
	if m == "" {
		return "", false
	}
	m = strings.TrimRight(m, trailingJunk)
	return m, m != ""
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

var illegalTitleChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// sanitizeTitle makes a platform title safe for reuse in paths and keys.
func sanitizeTitle(title string) string {
	return strings.TrimSpace(illegalTitleChars.ReplaceAllString(title, "_"))
}
