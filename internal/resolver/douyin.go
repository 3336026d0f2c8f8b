package resolver

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"scriptparser-go/internal/errs"
	"scriptparser-go/internal/types"
)

const douyinCleanBase = "https://www.iesdouyin.com/share/video/"

// Douyin resolves v.douyin.com share links: redirect chain → video id →
// clean share page → window._ROUTER_DATA blob → no-watermark URL.
type Douyin struct {
	cleanBase string
}

func NewDouyin() *Douyin {
	return &Douyin{cleanBase: douyinCleanBase}
}

func (d *Douyin) Platform() types.Platform { return types.PlatformDouyin }

func (d *Douyin) Match(host string) bool {
	return strings.Contains(host, "douyin.com") || strings.Contains(host, "iesdouyin.com")
}

// id patterns, most specific first; the bare long-number match is the
// last resort for exotic redirect shapes.
var douyinIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/video/([0-9]+)`),
	regexp.MustCompile(`/share/video/([0-9]+)`),
	regexp.MustCompile(`video[_/=]([0-9]+)`),
	regexp.MustCompile(`([0-9]{15,})`),
}

var routerDataPattern = regexp.MustCompile(`(?s)window\._ROUTER_DATA\s*=\s*(.*?)</script>`)

func (d *Douyin) Resolve(ctx context.Context, shareURL string) (types.ResolvedMedia, error) {
	finalURL, err := fetchFinalURL(ctx, shareURL)
	if err != nil {
		return types.ResolvedMedia{}, err
	}

	videoID := extractDouyinID(finalURL)
	if videoID == "" {
		return types.ResolvedMedia{}, errs.New(errs.KindMalformedShare, "Could not extract a video id from the share link")
	}

	html, err := fetchCleanPage(ctx, d.cleanBase+videoID)
	if err != nil {
		return types.ResolvedMedia{}, err
	}

	media, err := parseDouyinPage(html, videoID)
	if err != nil {
		return types.ResolvedMedia{}, err
	}
	return media, nil
}

func extractDouyinID(u string) string {
	for _, p := range douyinIDPatterns {
		if m := p.FindStringSubmatch(u); m != nil {
			return m[1]
		}
	}
	return ""
}

type douyinRouterData struct {
	LoaderData map[string]struct {
		VideoInfoRes struct {
			ItemList []douyinItem `json:"item_list"`
		} `json:"videoInfoRes"`
	} `json:"loaderData"`
}

type douyinItem struct {
	Desc  string `json:"desc"`
	Video struct {
		PlayAddr struct {
			URLList []string `json:"url_list"`
		} `json:"play_addr"`
	} `json:"video"`
}

// parseDouyinPage digs the media URL and title out of the script-tag
// JSON the clean share page embeds.
func parseDouyinPage(html, videoID string) (types.ResolvedMedia, error) {
	m := routerDataPattern.FindStringSubmatch(html)
	if m == nil {
		return types.ResolvedMedia{}, errs.New(errs.KindMalformedShare, "Could not find video data in the share page")
	}
	raw := strings.TrimSuffix(strings.TrimSpace(m[1]), ";")

	var rd douyinRouterData
	if err := json.Unmarshal([]byte(raw), &rd); err != nil {
		return types.ResolvedMedia{}, errs.Wrap(errs.KindMalformedShare, "Video data in the share page is not valid JSON", err)
	}

	// video pages and note pages embed the same payload under
	// different loader keys
	item, ok := firstDouyinItem(rd, "video_(id)/page", "note_(id)/page")
	if !ok {
		return types.ResolvedMedia{}, errs.New(errs.KindMalformedShare, "Share page carries no video entry")
	}

	if len(item.Video.PlayAddr.URLList) == 0 {
		return types.ResolvedMedia{}, errs.New(errs.KindMalformedShare, "Share page carries no playable address")
	}
	// the watermarked endpoint serves the clean file under /play
	mediaURL := strings.Replace(item.Video.PlayAddr.URLList[0], "playwm", "play", 1)

	title := sanitizeTitle(item.Desc)
	if title == "" {
		title = "douyin_" + videoID
	}

	return types.ResolvedMedia{
		MediaURL:        mediaURL,
		Platform:        types.PlatformDouyin,
		PlatformVideoID: videoID,
		Title:           title,
	}, nil
}

func firstDouyinItem(rd douyinRouterData, keys ...string) (douyinItem, bool) {
	for _, key := range keys {
		page, ok := rd.LoaderData[key]
		if !ok || len(page.VideoInfoRes.ItemList) == 0 {
			continue
		}
		return page.VideoInfoRes.ItemList[0], true
	}
	return douyinItem{}, false
}
