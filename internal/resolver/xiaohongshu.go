package resolver

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kaptinlin/jsonrepair"

	"scriptparser-go/internal/errs"
	"scriptparser-go/internal/types"
)

const (
	xhsCleanBase = "https://www.xiaohongshu.com/explore/"
	xhsVideoCDN  = "https://sns-video-hw.xhscdn.com/"
)

// Xiaohongshu resolves xhslink.com / xiaohongshu.com note links:
// redirect chain → note id → explore page → window.__INITIAL_STATE__
// blob → master video URL.
type Xiaohongshu struct {
	cleanBase string
}

func NewXiaohongshu() *Xiaohongshu {
	return &Xiaohongshu{cleanBase: xhsCleanBase}
}

func (x *Xiaohongshu) Platform() types.Platform { return types.PlatformXiaohongshu }

func (x *Xiaohongshu) Match(host string) bool {
	return strings.Contains(host, "xiaohongshu.com") || strings.Contains(host, "xhslink.com")
}

var xhsIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/discovery/item/([0-9a-f]+)`),
	regexp.MustCompile(`/explore/([0-9a-f]+)`),
	regexp.MustCompile(`/item/([0-9a-f]+)`),
}

func (x *Xiaohongshu) Resolve(ctx context.Context, shareURL string) (types.ResolvedMedia, error) {
	finalURL, err := fetchFinalURL(ctx, shareURL)
	if err != nil {
		return types.ResolvedMedia{}, err
	}

	noteID := extractXHSID(finalURL)
	if noteID == "" {
		return types.ResolvedMedia{}, errs.New(errs.KindMalformedShare, "Could not extract a note id from the share link")
	}

	html, err := fetchCleanPage(ctx, x.cleanBase+noteID)
	if err != nil {
		return types.ResolvedMedia{}, err
	}

	return parseXHSPage(html, noteID)
}

func extractXHSID(u string) string {
	for _, p := range xhsIDPatterns {
		if m := p.FindStringSubmatch(u); m != nil {
			return m[1]
		}
	}
	return ""
}

type xhsInitialState struct {
	Note struct {
		NoteDetailMap map[string]struct {
			Note xhsNote `json:"note"`
		} `json:"noteDetailMap"`
	} `json:"note"`
}

type xhsNote struct {
	Title string `json:"title"`
	Desc  string `json:"desc"`
	Video struct {
		Media struct {
			Stream struct {
				H264 []struct {
					MasterURL string `json:"masterUrl"`
				} `json:"h264"`
			} `json:"stream"`
		} `json:"media"`
		Consumer struct {
			OriginVideoKey string `json:"originVideoKey"`
		} `json:"consumer"`
	} `json:"video"`
}

// parseXHSPage walks the script tags for the initial-state assignment
// and pulls the note's master video URL out of it.
func parseXHSPage(html, noteID string) (types.ResolvedMedia, error) {
	raw, ok := findInitialState(html)
	if !ok {
		return types.ResolvedMedia{}, errs.New(errs.KindMalformedShare, "Could not find video data in the note page")
	}

	var state xhsInitialState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		// the page serializes missing fields as bare `undefined`
		fixed, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return types.ResolvedMedia{}, errs.Wrap(errs.KindMalformedShare, "Video data in the note page is not valid JSON", err)
		}
		if err := json.Unmarshal([]byte(fixed), &state); err != nil {
			return types.ResolvedMedia{}, errs.Wrap(errs.KindMalformedShare, "Video data in the note page is not valid JSON", err)
		}
	}

	entry, ok := state.Note.NoteDetailMap[noteID]
	if !ok {
		return types.ResolvedMedia{}, errs.New(errs.KindMalformedShare, "Note page carries no entry for this note id")
	}
	note := entry.Note

	mediaURL := ""
	if h264 := note.Video.Media.Stream.H264; len(h264) > 0 && h264[0].MasterURL != "" {
		mediaURL = h264[0].MasterURL
	} else if key := note.Video.Consumer.OriginVideoKey; key != "" {
		mediaURL = xhsVideoCDN + key
	}
	if mediaURL == "" {
		return types.ResolvedMedia{}, errs.New(errs.KindMalformedShare, "Note has no downloadable video")
	}

	title := sanitizeTitle(note.Title)
	if title == "" {
		title = sanitizeTitle(note.Desc)
	}
	if title == "" {
		title = "xiaohongshu_" + noteID
	}

	return types.ResolvedMedia{
		MediaURL:        mediaURL,
		Platform:        types.PlatformXiaohongshu,
		PlatformVideoID: noteID,
		Title:           title,
	}, nil
}

// findInitialState returns the JSON assigned to
// window.__INITIAL_STATE__ in any script tag of the page.
func findInitialState(html string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	const marker = "window.__INITIAL_STATE__"
	var out string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, marker)
		if idx == -1 {
			return true
		}
		rest := text[idx+len(marker):]
		eq := strings.Index(rest, "=")
		if eq == -1 {
			return true
		}
		out = strings.TrimSuffix(strings.TrimSpace(rest[eq+1:]), ";")
		return false
	})
	return out, out != ""
}
