package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Normalizer 音频归一化器
// 把任意音视频文件转成统一的单声道 16kHz Ogg Vorbis 中间格式。
// Vorbis 是开放格式，32k 码率对语音识别来说体积和可懂度的平衡最好。
type Normalizer struct {
	sampleRate int
	bitrate    string
}

// NewNormalizer 创建归一化器
func NewNormalizer(sampleRate int, bitrate string) *Normalizer {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if bitrate == "" {
		bitrate = "32k"
	}
	return &Normalizer{
		sampleRate: sampleRate,
		bitrate:    bitrate,
	}
}

// Normalize 归一化源文件，导出到 outPath
// 源文件无法解析时返回 ErrDecode，导出失败返回 ErrEncode。
// 只写一个临时文件，删除责任交给调用方（编排器的清理器）。
func (n *Normalizer) Normalize(ctx context.Context, media Media, outPath string) (*Audio, error) {
	// 1. 先探测时长，顺便验证文件确实是可解析的媒体
	duration, err := probeDuration(ctx, media.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	log.Printf("🎵 音频时长: %.2f 秒 (%.2f 分钟)", duration, duration/60)

	// 2. 转码导出
	// ffmpeg -i input -vn -ac 1 -ar 16000 -c:a libvorbis -b:a 32k -q:a 4 -y out.ogg
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", media.Path,
		"-vn", // 丢弃视频流
		"-ac", "1",
		"-ar", strconv.Itoa(n.sampleRate),
		"-c:a", "libvorbis",
		"-b:a", n.bitrate,
		"-q:a", "4", // 语音场景的质量档位
		"-y",
		outPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg 执行失败: %v (stderr: %s)", ErrEncode, err, tailOf(stderr.String()))
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: 导出文件不存在: %v", ErrEncode, err)
	}

	log.Printf("✓ 归一化完成: %.2f MB", float64(info.Size())/1024/1024)

	return &Audio{
		Path:       outPath,
		Duration:   duration,
		Size:       info.Size(),
		SampleRate: n.sampleRate,
		Channels:   1,
	}, nil
}

// probeDuration 获取音频/视频文件时长（秒）
// ffprobe -v error -show_entries format=duration -of default=noprint_wrappers=1:nokey=1 input
func probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe 执行失败: %v (stderr: %s)", err, tailOf(stderr.String()))
	}

	durationStr := strings.TrimSpace(stdout.String())
	if durationStr == "" {
		return 0, fmt.Errorf("ffprobe 未返回时长信息 (stderr: %s)", tailOf(stderr.String()))
	}

	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("解析时长失败: %v (output: %s)", err, durationStr)
	}

	return duration, nil
}

// tailOf 截取 stderr 末尾，避免整段 ffmpeg 输出刷进错误信息
func tailOf(s string) string {
	s = strings.TrimSpace(s)
	const max = 400
	if len(s) > max {
		return "..." + s[len(s)-max:]
	}
	return s
}
