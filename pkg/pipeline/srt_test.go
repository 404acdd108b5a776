package pipeline

import (
	"strings"
	"testing"
)

const sampleSRT = `1
00:00:00,000 --> 00:00:04,500
第一句话

2
00:00:04,500 --> 00:00:09,000
第二句话
跨两行

3
00:01:05,500 --> 00:01:10,000
第三句话
`

func TestParseSRT(t *testing.T) {
	cues, err := ParseSRT(sampleSRT)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}

	if len(cues) != 3 {
		t.Fatalf("期望 3 条字幕，得到 %d", len(cues))
	}

	if cues[0].Start != 0 || cues[0].End != 4.5 {
		t.Errorf("首条字幕时间应为 [0, 4.5]，得到 [%v, %v]", cues[0].Start, cues[0].End)
	}
	if cues[1].Text != "第二句话\n跨两行" {
		t.Errorf("多行文本保留换行，得到 %q", cues[1].Text)
	}
	if cues[2].Start != 65.5 {
		t.Errorf("00:01:05,500 应解析为 65.5 秒，得到 %v", cues[2].Start)
	}
}

func TestParseSRTWindowsLineEndings(t *testing.T) {
	doc := strings.ReplaceAll(sampleSRT, "\n", "\r\n")

	cues, err := ParseSRT(doc)
	if err != nil {
		t.Fatalf("CRLF 文档解析失败: %v", err)
	}
	if len(cues) != 3 {
		t.Errorf("期望 3 条字幕，得到 %d", len(cues))
	}
}

func TestParseSRTInvalidTimeLine(t *testing.T) {
	_, err := ParseSRT("1\n不是时间行\n文本")
	if err == nil {
		t.Fatal("时间行无效时应返回错误")
	}
}

func TestParseSRTSkipsEmptyBlocks(t *testing.T) {
	doc := "1\n00:00:00,000 --> 00:00:01,000\n你好\n\n\n\n2\n00:00:01,000 --> 00:00:02,000\n再见\n"

	cues, err := ParseSRT(doc)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(cues) != 2 {
		t.Errorf("期望 2 条字幕，得到 %d", len(cues))
	}
}

func TestCombineShiftAndRenumber(t *testing.T) {
	// 两个分片，第二片从 600s 开始：字幕时间整体平移，序号全局连续
	chunks := []Chunk{
		{Index: 0, Start: 0, End: 600},
		{Index: 1, Start: 600, End: 1200},
	}
	results := []ChunkResult{
		{
			Text: "第一段",
			Cues: []Cue{
				{Index: 1, Start: 0, End: 5, Text: "一"},
				{Index: 2, Start: 5, End: 10, Text: "二"},
			},
		},
		{
			Text: "第二段",
			Cues: []Cue{
				{Index: 1, Start: 0, End: 4, Text: "三"},
				{Index: 2, Start: 4, End: 8, Text: "四"},
			},
		},
	}

	combined := Combine(results, chunks, true)

	if combined.Text != "第一段\n\n第二段" {
		t.Errorf("文本应以空行拼接，得到 %q", combined.Text)
	}
	if combined.CueCount != 4 {
		t.Fatalf("期望 4 条字幕，得到 %d", combined.CueCount)
	}
	if combined.ChunkCount != 2 {
		t.Errorf("期望 2 个分片，得到 %d", combined.ChunkCount)
	}

	cues, err := ParseSRT(combined.SRT)
	if err != nil {
		t.Fatalf("合并产物应是合法的 SRT 文档: %v", err)
	}

	// 序号从 1 连续递增
	for i, cue := range cues {
		if cue.Index != i+1 {
			t.Errorf("第 %d 条字幕序号应为 %d，得到 %d", i, i+1, cue.Index)
		}
	}

	// 第二片的字幕按分片起点平移
	if cues[2].Start != 600 || cues[2].End != 604 {
		t.Errorf("平移后时间应为 [600, 604]，得到 [%v, %v]", cues[2].Start, cues[2].End)
	}

	// 全局时间轴单调
	for i := 1; i < len(cues); i++ {
		if cues[i].Start < cues[i-1].Start {
			t.Errorf("第 %d 条字幕起点 %v 早于前一条 %v", i, cues[i].Start, cues[i-1].Start)
		}
	}
}

func TestCombineSingleChunkNoShift(t *testing.T) {
	// 单分片：起点为 0，合并等价于原样透传
	chunks := []Chunk{{Index: 0, Start: 0, End: 300}}
	results := []ChunkResult{
		{
			Text: "完整文本",
			Cues: []Cue{
				{Index: 1, Start: 1, End: 2, Text: "你好"},
				{Index: 2, Start: 2.5, End: 4, Text: "世界"},
			},
		},
	}

	combined := Combine(results, chunks, true)

	if combined.Text != "完整文本" {
		t.Errorf("单分片文本应原样保留，得到 %q", combined.Text)
	}

	cues, err := ParseSRT(combined.SRT)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(cues) != 2 || cues[0].Start != 1 || cues[1].Start != 2.5 {
		t.Errorf("零平移应保留原始时间，得到 %+v", cues)
	}
}

func TestCombineSkipsBlankText(t *testing.T) {
	chunks := []Chunk{
		{Index: 0, Start: 0, End: 100},
		{Index: 1, Start: 100, End: 200},
	}
	results := []ChunkResult{
		{Text: "   \n  "},
		{Text: "有内容"},
	}

	combined := Combine(results, chunks, false)

	if combined.Text != "有内容" {
		t.Errorf("空白分片文本不应产生多余空行，得到 %q", combined.Text)
	}
	if combined.SRT != "" {
		t.Errorf("非字幕模式不应渲染 SRT，得到 %q", combined.SRT)
	}
}

func TestFormatSRTTime(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{65.5, "00:01:05,500"},
		{3661.25, "01:01:01,250"},
		{7322.75, "02:02:02,750"},
	}

	for _, tc := range cases {
		if got := formatSRTTime(tc.seconds); got != tc.want {
			t.Errorf("formatSRTTime(%v) = %q，期望 %q", tc.seconds, got, tc.want)
		}
	}
}

func TestSRTTimeRoundTrip(t *testing.T) {
	for _, s := range []string{"00:00:00,000", "00:01:05,500", "12:34:56,250"} {
		seconds, err := parseSRTTime(s)
		if err != nil {
			t.Fatalf("解析 %q 失败: %v", s, err)
		}
		if got := formatSRTTime(seconds); got != s {
			t.Errorf("往返后 %q 变为 %q", s, got)
		}
	}
}
