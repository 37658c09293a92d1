package sources

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/newsday"

	"github.com/PuerkitoBio/goquery"
)

const (
	kbsBaseURL = "https://news.kbs.co.kr"

	kbsStartMarker = "오프닝"
	kbsStopMarker  = "[스포츠9 헤드라인]"
)

var (
	kbsMessageText = regexp.MustCompile(`(?s)var messageText = "(.*?)";`)
	kbsSignOff     = regexp.MustCompile(`\nKBS 뉴스 [가-힣]+입니다\.[\s\S]*`)
)

// KBS reads the KBS News 9 program page.
type KBS struct {
	BaseURL string
}

// NewKBS creates the KBS adapter.
func NewKBS() *KBS {
	return &KBS{BaseURL: kbsBaseURL}
}

func (k *KBS) Source() core.Source { return core.SourceKBS }

// ProgramURL selects the day through the page fragment; the listing renders client side.
func (k *KBS) ProgramURL(day time.Time) string {
	return fmt.Sprintf("%s/news/pc/program/program.do?bcd=0001&ref=pGnb#%s", k.BaseURL, newsday.Compact(day))
}

func (k *KBS) WaitSelector() string { return ".box-content" }

// ParseProgram keeps the items between the opening and the sports headlines.
func (k *KBS) ParseProgram(html string) ([]core.RawItem, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}

	boxes := doc.Find("a.box-content")
	if boxes.Length() == 0 {
		return nil, fmt.Errorf("%w: no program items on KBS page", core.ErrExtractionFailure)
	}

	var items []core.RawItem
	inNews := false
	var parseErr error
	boxes.EachWithBreak(func(_ int, box *goquery.Selection) bool {
		title := core.UnknownTitle
		if t := box.Find("p.title").First(); t.Length() > 0 {
			title = strings.TrimSpace(t.Text())
		}

		switch {
		case title == kbsStartMarker:
			inNews = true
			return true
		case !inNews:
			return true
		case title == kbsStopMarker:
			inNews = false
			return true
		}

		href, _ := box.Attr("href")
		link, ok, err := itemLink(k.Source(), k.BaseURL, href, title)
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

// ExtractScript reads the transcript embedded in the page's messageText variable.
func (k *KBS) ExtractScript(html string) (string, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return "", err
	}

	var content string
	found := false
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := kbsMessageText.FindStringSubmatch(s.Text()); m != nil {
			content = m[1]
			found = true
			return false
		}
		return true
	})
	if !found {
		return "", fmt.Errorf("%w: messageText not found on KBS page", core.ErrExtractionFailure)
	}

	body, err := parseDocument(content)
	if err != nil {
		return "", err
	}
	text := strings.ReplaceAll(joinText(body.Selection), `\`, "")
	text = stripSignOff(text, kbsSignOff)
	if text == "" {
		return "", fmt.Errorf("%w: empty KBS transcript", core.ErrExtractionFailure)
	}
	return text, nil
}
