package sources

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/newsday"

	"github.com/PuerkitoBio/goquery"
)

const (
	sbsBaseURL = "https://news.sbs.co.kr"

	sbsSportsCategory = "스포츠"
	sbsStopMarker     = "[날씨]"
)

// SBS reads the SBS 8 News program page.
type SBS struct {
	BaseURL string
}

// NewSBS creates the SBS adapter.
func NewSBS() *SBS {
	return &SBS{BaseURL: sbsBaseURL}
}

func (s *SBS) Source() core.Source { return core.SourceSBS }

func (s *SBS) ProgramURL(day time.Time) string {
	return fmt.Sprintf("%s/news/programMain.do?prog_cd=R1&broad_date=%s&plink=CAL&cooper=SBSNEWS", s.BaseURL, newsday.Compact(day))
}

func (s *SBS) WaitSelector() string { return `li[itemprop="itemListElement"]` }

// ParseProgram skips sports items and stops at the weather segment.
func (s *SBS) ParseProgram(html string) ([]core.RawItem, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}

	lis := doc.Find(`li[itemprop="itemListElement"]`)
	if lis.Length() == 0 {
		return nil, fmt.Errorf("%w: no program items on SBS page", core.ErrExtractionFailure)
	}

	var items []core.RawItem
	var parseErr error
	lis.EachWithBreak(func(_ int, li *goquery.Selection) bool {
		if strings.TrimSpace(li.Find("em.cate").First().Text()) == sbsSportsCategory {
			return true
		}

		title := core.UnknownTitle
		if alt, ok := li.Find("img").First().Attr("alt"); ok && strings.TrimSpace(alt) != "" {
			title = strings.TrimSpace(alt)
		}
		if strings.HasPrefix(title, sbsStopMarker) {
			return false
		}

		href, _ := li.Find("a").First().Attr("href")
		link, ok, err := itemLink(s.Source(), s.BaseURL, href, title)
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

// ExtractScript reads articleBody from the page's ld+json block.
func (s *SBS) ExtractScript(html string) (string, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return "", err
	}

	tag := doc.Find(`script[type="application/ld+json"]`).First()
	if tag.Length() == 0 {
		return "", fmt.Errorf("%w: ld+json not found on SBS page", core.ErrExtractionFailure)
	}

	var data struct {
		ArticleBody string `json:"articleBody"`
	}
	if err := json.Unmarshal([]byte(tag.Text()), &data); err != nil {
		return "", fmt.Errorf("%w: invalid ld+json on SBS page: %v", core.ErrExtractionFailure, err)
	}

	text := strings.TrimSpace(data.ArticleBody)
	if text == "" {
		return "", fmt.Errorf("%w: empty SBS transcript", core.ErrExtractionFailure)
	}
	return text, nil
}
