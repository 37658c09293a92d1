package sources

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"newsdesk/internal/core"

	"github.com/PuerkitoBio/goquery"
)

const (
	mbcBaseURL = "https://imnews.imbc.com"

	mbcStopMarker = "[톱플레이]"
)

var mbcSignOffs = []*regexp.Regexp{
	regexp.MustCompile(`\nMBC뉴스 [가-힣]+입니다\.[\s\S]*`),
	regexp.MustCompile(`\nMBC 뉴스 [가-힣]+입니다\.[\s\S]*`),
}

// MBC reads the MBC Newsdesk replay page.
type MBC struct {
	BaseURL string
}

// NewMBC creates the MBC adapter.
func NewMBC() *MBC {
	return &MBC{BaseURL: mbcBaseURL}
}

func (m *MBC) Source() core.Source { return core.SourceMBC }

// ProgramURL returns the replay listing for the day's year. The listing
// always shows the latest program, so only the current news-day can be
// collected from MBC.
func (m *MBC) ProgramURL(day time.Time) string {
	return fmt.Sprintf("%s/replay/%d/nwdesk/", m.BaseURL, day.Year())
}

func (m *MBC) WaitSelector() string { return ".item" }

// ParseProgram reads items up to the closing highlights segment.
func (m *MBC) ParseProgram(html string) ([]core.RawItem, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}

	lis := doc.Find("li.item")
	if lis.Length() == 0 {
		return nil, fmt.Errorf("%w: no program items on MBC page", core.ErrExtractionFailure)
	}

	var items []core.RawItem
	var parseErr error
	lis.EachWithBreak(func(_ int, li *goquery.Selection) bool {
		title := core.UnknownTitle
		if t := li.Find("span.tit.ellipsis2").First(); t.Length() > 0 {
			title = strings.TrimSpace(t.Text())
		} else if t := li.Find("span.tit.ellipsis").First(); t.Length() > 0 {
			title = strings.TrimSpace(t.Text())
		}
		if strings.HasPrefix(title, mbcStopMarker) {
			return false
		}

		href, _ := li.Find("a").First().Attr("href")
		link, ok, err := itemLink(m.Source(), m.BaseURL, href, title)
		if err != nil {
			parseErr = err
			return false
		}
		if !ok {
			return true
		}
		items = append(items, core.RawItem{Title: title, DetailURL: link})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return items, nil
}

func (m *MBC) ExtractScript(html string) (string, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return "", err
	}

	body := doc.Find("div.news_txt").First()
	if body.Length() == 0 {
		return "", fmt.Errorf("%w: news_txt not found on MBC page", core.ErrExtractionFailure)
	}

	text := stripSignOff(joinText(body), mbcSignOffs...)
	if text == "" {
		return "", fmt.Errorf("%w: empty MBC transcript", core.ErrExtractionFailure)
	}
	return text, nil
}
