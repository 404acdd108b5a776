package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Chunker 音频分片器
// 按体积上限决定是否切分：不超限直接复用归一化文件，
// 超限则按时间等分导出 ceil(size/maxBytes) 个片段。
type Chunker struct {
	sampleRate int
	bitrate    string
}

// NewChunker 创建分片器，编码参数与归一化保持一致
func NewChunker(sampleRate int, bitrate string) *Chunker {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if bitrate == "" {
		bitrate = "32k"
	}
	return &Chunker{
		sampleRate: sampleRate,
		bitrate:    bitrate,
	}
}

// window 一个切分窗口（仅时间范围，尚未导出）
type window struct {
	start float64
	end   float64
}

// planWindows 计算切分方案
// 体积不超限返回单个覆盖全程的窗口；超限时按时间等分，
// 最后一个窗口吸收取整误差，保证整体覆盖恰好等于总时长。
// 等时切分假设码率大致恒定，单片实际体积可能有偏差——
// 换来的是恰好 n 次导出，不做迭代式重切。
func planWindows(size, maxBytes int64, duration float64) []window {
	if size <= maxBytes {
		return []window{{start: 0, end: duration}}
	}

	n := int((size + maxBytes - 1) / maxBytes) // ceil(size/maxBytes)
	windows := make([]window, 0, n)
	step := duration / float64(n)

	for i := 0; i < n; i++ {
		w := window{
			start: float64(i) * step,
			end:   float64(i+1) * step,
		}
		if i == n-1 {
			w.end = duration // 末片吸收余数
		}
		windows = append(windows, w)
	}

	return windows
}

// Split 切分归一化音频
// 返回的分片在时间上连续、不重叠、按序号有序。
// 单片场景直接引用原文件，不发生二次编码。
// 任何一片导出失败返回 ErrSplit，已导出的分片文件由调用方清理。
func (c *Chunker) Split(ctx context.Context, audio *Audio, maxBytes int64) ([]Chunk, error) {
	windows := planWindows(audio.Size, maxBytes, audio.Duration)

	if len(windows) == 1 {
		log.Printf("✓ 音频 %.2f MB 未超限，无需切分", float64(audio.Size)/1024/1024)
		return []Chunk{
			{
				Index: 0,
				Start: 0,
				End:   audio.Duration,
				Path:  audio.Path,
				Size:  audio.Size,
			},
		}, nil
	}

	log.Printf("✂️  音频 %.2f MB 超出 %.0f MB 限制，切分为 %d 个分片",
		float64(audio.Size)/1024/1024, float64(maxBytes)/1024/1024, len(windows))

	dir := filepath.Dir(audio.Path)
	chunks := make([]Chunk, 0, len(windows))

	for i, w := range windows {
		chunkPath := filepath.Join(dir, fmt.Sprintf("chunk_%03d.ogg", i))

		log.Printf("  ✂️  分片 %d/%d: %.2fs -> %.2fs", i+1, len(windows), w.start, w.end)
		size, err := c.exportWindow(ctx, audio.Path, chunkPath, w.start, w.end-w.start)
		if err != nil {
			return chunks, fmt.Errorf("%w: 分片 %d 导出失败: %v", ErrSplit, i, err)
		}

		chunks = append(chunks, Chunk{
			Index: i,
			Start: w.start,
			End:   w.end,
			Path:  chunkPath,
			Size:  size,
		})
	}

	return chunks, nil
}

// exportWindow 从归一化音频中导出一个时间窗口，编码设置与归一化相同
func (c *Chunker) exportWindow(ctx context.Context, inputPath, outputPath string, start, duration float64) (int64, error) {
	// ffmpeg -i in.ogg -ss start -t dur -ac 1 -ar 16000 -c:a libvorbis -b:a 32k -y out.ogg
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", inputPath,
		"-ss", fmt.Sprintf("%.3f", start),
		"-t", fmt.Sprintf("%.3f", duration),
		"-ac", "1",
		"-ar", strconv.Itoa(c.sampleRate),
		"-c:a", "libvorbis",
		"-b:a", c.bitrate,
		"-y",
		outputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffmpeg 执行失败: %v (stderr: %s)", err, tailOf(stderr.String()))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return 0, fmt.Errorf("分片文件不存在: %v", err)
	}

	return info.Size(), nil
}
