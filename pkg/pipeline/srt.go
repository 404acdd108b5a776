package pipeline

import (
	"fmt"
	"strconv"
	"strings"
)

// Combine 合并各分片的转录结果
// 纯文本：按分片顺序用空行拼接。
// 字幕：把每条字幕的起止时间加上所属分片在原始时间轴上的起点，
// 再用一个全局计数器从 1 开始重新编号。只平移和重编号，不重排——
// 只要各分片内部时间单调，合并后的全局时间轴就单调。
func Combine(results []ChunkResult, chunks []Chunk, subtitles bool) Result {
	texts := make([]string, 0, len(results))
	var cues []Cue
	counter := 1

	for i, r := range results {
		if t := strings.TrimSpace(r.Text); t != "" {
			texts = append(texts, t)
		}

		for _, cue := range r.Cues {
			cues = append(cues, Cue{
				Index: counter,
				Start: cue.Start + chunks[i].Start,
				End:   cue.End + chunks[i].Start,
				Text:  cue.Text,
			})
			counter++
		}
	}

	result := Result{
		Text:       strings.Join(texts, "\n\n"),
		CueCount:   len(cues),
		ChunkCount: len(results),
	}

	if subtitles {
		result.SRT = RenderSRT(cues)
	}

	return result
}

// ParseSRT 解析 SRT 字幕文档为有序的字幕条目
// 块与块之间以空行分隔：
//
//	1
//	00:00:00,000 --> 00:00:05,200
//	字幕文本
func ParseSRT(doc string) ([]Cue, error) {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	blocks := strings.Split(strings.TrimSpace(doc), "\n\n")

	var cues []Cue
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			continue // 空块或残缺块，跳过
		}

		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			return nil, fmt.Errorf("字幕序号无效: %q", lines[0])
		}

		start, end, err := parseTimeLine(lines[1])
		if err != nil {
			return nil, err
		}

		text := ""
		if len(lines) > 2 {
			text = strings.TrimSpace(strings.Join(lines[2:], "\n"))
		}

		cues = append(cues, Cue{
			Index: index,
			Start: start,
			End:   end,
			Text:  text,
		})
	}

	return cues, nil
}

// parseTimeLine 解析 "00:00:00,000 --> 00:00:05,200" 这样的时间行
func parseTimeLine(line string) (start, end float64, err error) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("字幕时间行无效: %q", line)
	}

	start, err = parseSRTTime(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}

	end, err = parseSRTTime(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}

	return start, end, nil
}

// parseSRTTime 解析 SRT 时间戳为秒数
// 例如: 00:01:05,500 -> 65.5
func parseSRTTime(s string) (float64, error) {
	var hours, minutes, secs, millis int
	if _, err := fmt.Sscanf(s, "%d:%d:%d,%d", &hours, &minutes, &secs, &millis); err != nil {
		return 0, fmt.Errorf("字幕时间戳无效: %q", s)
	}

	return float64(hours*3600+minutes*60+secs) + float64(millis)/1000, nil
}

// RenderSRT 把字幕条目渲染成 SRT 文档
func RenderSRT(cues []Cue) string {
	var builder strings.Builder

	for _, cue := range cues {
		builder.WriteString(fmt.Sprintf("%d\n", cue.Index))
		builder.WriteString(fmt.Sprintf("%s --> %s\n", formatSRTTime(cue.Start), formatSRTTime(cue.End)))
		builder.WriteString(fmt.Sprintf("%s\n\n", strings.TrimSpace(cue.Text)))
	}

	return builder.String()
}

// formatSRTTime 将秒数格式化为 SRT 时间格式
// 例如: 65.5 -> 00:01:05,500
func formatSRTTime(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	millis := int((seconds - float64(int(seconds))) * 1000)

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
