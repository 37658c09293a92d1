package sources

import (
	"errors"
	"strings"
	"testing"
	"time"

	"newsdesk/internal/core"
)

const kbsProgramHTML = `<html><body>
<a class="box-content" href="/news/pc/view/view.do?ncd=1"><p class="title">헤드라인</p></a>
<a class="box-content" href="/news/pc/view/view.do?ncd=2"><p class="title">오프닝</p></a>
<a class="box-content" href="/news/pc/view/view.do?ncd=3"><p class="title">첫 번째 뉴스</p></a>
<a class="box-content" href="/news/pc/view/view.do?ncd=4"></a>
<a class="box-content" href="/news/pc/view/view.do?ncd=5"><p class="title">[스포츠9 헤드라인]</p></a>
<a class="box-content" href="/news/pc/view/view.do?ncd=6"><p class="title">야구 소식</p></a>
</body></html>`

const kbsDetailHTML = `<html><head>
<script>var other = 1;</script>
<script>
var messageText = "<p>첫 문장입니다.</p><p>두 번째 \"인용\" 문장.</p><br />KBS 뉴스 홍길동입니다.<p>기사 더보기</p>";
</script>
</head><body></body></html>`

func TestKBS_ParseProgram(t *testing.T) {
	items, err := NewKBS().ParseProgram(kbsProgramHTML)
	if err != nil {
		t.Fatalf("ParseProgram failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 news items between markers, got %d: %+v", len(items), items)
	}
	if items[0].Title != "첫 번째 뉴스" {
		t.Errorf("Unexpected first title %q", items[0].Title)
	}
	if items[0].DetailURL != "https://news.kbs.co.kr/news/pc/view/view.do?ncd=3" {
		t.Errorf("Expected link resolved against base URL, got %s", items[0].DetailURL)
	}
	if items[1].Title != core.UnknownTitle {
		t.Errorf("Expected missing title to be %q, got %q", core.UnknownTitle, items[1].Title)
	}
}

func TestKBS_ParseProgram_NoItems(t *testing.T) {
	_, err := NewKBS().ParseProgram("<html><body></body></html>")
	if !errors.Is(err, core.ErrExtractionFailure) {
		t.Errorf("Expected ErrExtractionFailure, got %v", err)
	}
}

func TestKBS_ExtractScript(t *testing.T) {
	text, err := NewKBS().ExtractScript(kbsDetailHTML)
	if err != nil {
		t.Fatalf("ExtractScript failed: %v", err)
	}
	if !strings.HasPrefix(text, "첫 문장입니다.") {
		t.Errorf("Unexpected transcript start: %q", text)
	}
	if strings.Contains(text, `\`) {
		t.Errorf("Expected backslashes removed: %q", text)
	}
	if strings.Contains(text, "KBS 뉴스") || strings.Contains(text, "기사 더보기") {
		t.Errorf("Expected sign-off and trailing text stripped: %q", text)
	}
}

func TestKBS_ExtractScript_Missing(t *testing.T) {
	_, err := NewKBS().ExtractScript("<html><script>var x = 1;</script></html>")
	if !errors.Is(err, core.ErrExtractionFailure) {
		t.Errorf("Expected ErrExtractionFailure, got %v", err)
	}
}

func TestKBS_ProgramURL(t *testing.T) {
	day := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)
	got := NewKBS().ProgramURL(day)
	if !strings.HasSuffix(got, "#20250307") {
		t.Errorf("Expected date fragment, got %s", got)
	}
}

const mbcProgramHTML = `<html><body><ul>
<li class="item"><a href="https://imnews.imbc.com/replay/2025/nwdesk/article/1.html"><span class="tit ellipsis2">두 줄 제목</span></a></li>
<li class="item"><a href="/replay/2025/nwdesk/article/2.html"><span class="tit ellipsis">한 줄 제목</span></a></li>
<li class="item"><a href="/replay/2025/nwdesk/article/3.html"><span class="tit ellipsis">[톱플레이] 명장면</span></a></li>
<li class="item"><a href="/replay/2025/nwdesk/article/4.html"><span class="tit ellipsis">이후 항목</span></a></li>
</ul></body></html>`

func TestMBC_ParseProgram(t *testing.T) {
	items, err := NewMBC().ParseProgram(mbcProgramHTML)
	if err != nil {
		t.Fatalf("ParseProgram failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected parsing to stop at [톱플레이], got %d items", len(items))
	}
	if items[0].Title != "두 줄 제목" || items[1].Title != "한 줄 제목" {
		t.Errorf("Unexpected titles: %+v", items)
	}
	if items[1].DetailURL != "https://imnews.imbc.com/replay/2025/nwdesk/article/2.html" {
		t.Errorf("Expected relative link resolved, got %s", items[1].DetailURL)
	}
}

func TestMBC_ExtractScript(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"no space", `<div class="news_txt">첫 문장.<br>둘째 문장.<br>MBC뉴스 김기자입니다.<br>관련 기사</div>`},
		{"with space", `<div class="news_txt">첫 문장.<br>둘째 문장.<br>MBC 뉴스 김기자입니다.</div>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := NewMBC().ExtractScript(tt.html)
			if err != nil {
				t.Fatalf("ExtractScript failed: %v", err)
			}
			if text != "첫 문장.\n둘째 문장." {
				t.Errorf("Unexpected transcript %q", text)
			}
		})
	}
}

func TestMBC_ProgramURL(t *testing.T) {
	day := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	if got := NewMBC().ProgramURL(day); got != "https://imnews.imbc.com/replay/2024/nwdesk/" {
		t.Errorf("Unexpected program URL %s", got)
	}
}

const sbsProgramHTML = `<html><body><ul>
<li itemprop="itemListElement"><a href="/news/endPage.do?news_id=1"><img alt="정치 소식"></a></li>
<li itemprop="itemListElement"><em class="cate">스포츠</em><a href="/news/endPage.do?news_id=2"><img alt="축구 소식"></a></li>
<li itemprop="itemListElement"><em class="cate">사회</em><a href="/news/endPage.do?news_id=3"><img alt="사회 소식"></a></li>
<li itemprop="itemListElement"><a href="/news/endPage.do?news_id=4"><img alt="[날씨] 내일 날씨"></a></li>
<li itemprop="itemListElement"><a href="/news/endPage.do?news_id=5"><img alt="이후 항목"></a></li>
</ul></body></html>`

func TestSBS_ParseProgram(t *testing.T) {
	items, err := NewSBS().ParseProgram(sbsProgramHTML)
	if err != nil {
		t.Fatalf("ParseProgram failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected sports skipped and stop at weather, got %d: %+v", len(items), items)
	}
	if items[0].Title != "정치 소식" || items[1].Title != "사회 소식" {
		t.Errorf("Unexpected titles: %+v", items)
	}
	if items[1].DetailURL != "https://news.sbs.co.kr/news/endPage.do?news_id=3" {
		t.Errorf("Unexpected link %s", items[1].DetailURL)
	}
}

func TestSBS_ExtractScript(t *testing.T) {
	html := `<html><head><script type="application/ld+json">{"@type":"NewsArticle","articleBody":"  본문 내용입니다.  "}</script></head></html>`
	text, err := NewSBS().ExtractScript(html)
	if err != nil {
		t.Fatalf("ExtractScript failed: %v", err)
	}
	if text != "본문 내용입니다." {
		t.Errorf("Unexpected transcript %q", text)
	}

	_, err = NewSBS().ExtractScript(`<script type="application/ld+json">{"headline":"x"}</script>`)
	if !errors.Is(err, core.ErrExtractionFailure) {
		t.Errorf("Expected ErrExtractionFailure for missing body, got %v", err)
	}
}

func TestParseProgram_SkipsItemWithoutLink(t *testing.T) {
	tests := []struct {
		name    string
		adapter Adapter
		html    string
		want    []string
	}{
		{
			name:    "kbs",
			adapter: NewKBS(),
			html: `<html><body>
<a class="box-content" href="/news/pc/view/view.do?ncd=1"><p class="title">오프닝</p></a>
<a class="box-content" href="/news/pc/view/view.do?ncd=2"><p class="title">뉴스 A</p></a>
<a class="box-content"><p class="title">링크 없음</p></a>
<a class="box-content" href="%zz"><p class="title">잘못된 링크</p></a>
<a class="box-content" href="/news/pc/view/view.do?ncd=3"><p class="title">뉴스 B</p></a>
</body></html>`,
			want: []string{"뉴스 A", "뉴스 B"},
		},
		{
			name:    "mbc",
			adapter: NewMBC(),
			html: `<html><body><ul>
<li class="item"><a href="/replay/2025/nwdesk/article/1.html"><span class="tit ellipsis">뉴스 A</span></a></li>
<li class="item"><a><span class="tit ellipsis">링크 없음</span></a></li>
<li class="item"><a href="%zz"><span class="tit ellipsis">잘못된 링크</span></a></li>
<li class="item"><a href="/replay/2025/nwdesk/article/2.html"><span class="tit ellipsis">뉴스 B</span></a></li>
</ul></body></html>`,
			want: []string{"뉴스 A", "뉴스 B"},
		},
		{
			name:    "sbs",
			adapter: NewSBS(),
			html: `<html><body><ul>
<li itemprop="itemListElement"><a href="/news/endPage.do?news_id=1"><img alt="뉴스 A"></a></li>
<li itemprop="itemListElement"><a><img alt="링크 없음"></a></li>
<li itemprop="itemListElement"><a href="%zz"><img alt="잘못된 링크"></a></li>
<li itemprop="itemListElement"><a href="/news/endPage.do?news_id=2"><img alt="뉴스 B"></a></li>
</ul></body></html>`,
			want: []string{"뉴스 A", "뉴스 B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := tt.adapter.ParseProgram(tt.html)
			if err != nil {
				t.Fatalf("ParseProgram failed: %v", err)
			}
			if len(items) != len(tt.want) {
				t.Fatalf("Expected %d items, got %d: %+v", len(tt.want), len(items), items)
			}
			for i, title := range tt.want {
				if items[i].Title != title {
					t.Errorf("Item %d: expected %q, got %q", i, title, items[i].Title)
				}
			}
		})
	}
}

func TestParseProgram_InvalidBaseURL(t *testing.T) {
	kbs := &KBS{BaseURL: "://bad"}
	_, err := kbs.ParseProgram(kbsProgramHTML)
	if err == nil {
		t.Fatal("Expected error for invalid base URL")
	}
	if errors.Is(err, core.ErrExtractionFailure) {
		t.Errorf("Expected a configuration error, not an extraction failure: %v", err)
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := DefaultRegistry()

	got := r.Sources()
	if len(got) != 3 || got[0] != core.SourceKBS || got[2] != core.SourceSBS {
		t.Errorf("Unexpected sources %v", got)
	}

	adapters, err := r.Resolve([]string{"SBS", "kbs", "sbs"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(adapters) != 2 || adapters[0].Source() != core.SourceSBS {
		t.Errorf("Expected [sbs kbs], got %d adapters", len(adapters))
	}

	all, err := r.Resolve(nil)
	if err != nil || len(all) != 3 {
		t.Errorf("Expected all adapters, got %d (%v)", len(all), err)
	}

	if _, err := r.Resolve([]string{"jtbc"}); err == nil {
		t.Error("Expected error for unknown source")
	}
}
