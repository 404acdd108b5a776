package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/l-qingyu/whisperflow/pkg/config"
	"github.com/l-qingyu/whisperflow/pkg/pipeline"
)

// 命令行版转录入口：不走队列和存储，直接对本地文件跑一遍管道，
// 进度打到终端，结果写在源文件旁边
func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	language := flag.String("lang", "auto", "语言代码（auto 为自动检测）")
	prompt := flag.String("prompt", "", "上下文提示词（人名、术语等）")
	srt := flag.Bool("srt", false, "同时生成 SRT 字幕")
	model := flag.String("model", "", "识别模型（默认取配置）")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "用法: transcribe [选项] <音频/视频文件>\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	inputPath := flag.Arg(0)
	info, err := os.Stat(inputPath)
	if err != nil {
		log.Fatalf("❌ 无法读取文件: %v", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("❌ 加载配置失败: %v", err)
	}

	if err := config.CheckFFmpeg(); err != nil {
		log.Fatalf("❌ %v", err)
	}

	if *model == "" {
		*model = cfg.OpenAI.Model
	}

	normalizer := pipeline.NewNormalizer(cfg.Pipeline.SampleRate, cfg.Pipeline.Bitrate)
	chunker := pipeline.NewChunker(cfg.Pipeline.SampleRate, cfg.Pipeline.Bitrate)
	client := pipeline.NewWhisperClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	orch := pipeline.NewOrchestrator(normalizer, chunker, client, cfg.Pipeline.MaxChunkBytes)

	media := pipeline.Media{Path: inputPath, Size: info.Size()}
	opts := pipeline.Options{
		Model:     *model,
		Language:  *language,
		Prompt:    *prompt,
		Subtitles: *srt,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Pipeline.TimeoutMinutes)*time.Minute)
	defer cancel()

	progress := func(p pipeline.Progress) {
		if p.Detail != "" {
			fmt.Printf("[%3d%%] %s (%s)\n", p.Percent, p.Stage, p.Detail)
		} else {
			fmt.Printf("[%3d%%] %s\n", p.Percent, p.Stage)
		}
	}

	startTime := time.Now()
	result, err := orch.Run(ctx, media, opts, progress)
	if err != nil {
		log.Fatalf("❌ 转录失败: %v", err)
	}

	// 结果写在源文件旁边
	basePath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))

	textPath := basePath + ".txt"
	if err := os.WriteFile(textPath, []byte(result.Text), 0644); err != nil {
		log.Fatalf("❌ 写入文本失败: %v", err)
	}
	fmt.Printf("✓ 文本已保存: %s\n", textPath)

	if result.SRT != "" {
		srtPath := basePath + ".srt"
		if err := os.WriteFile(srtPath, []byte(result.SRT), 0644); err != nil {
			log.Fatalf("❌ 写入字幕失败: %v", err)
		}
		fmt.Printf("✓ 字幕已保存: %s (%d 条)\n", srtPath, result.CueCount)
	}

	fmt.Printf("🎉 完成！音频 %.1f 分钟, %d 个分片, 耗时 %.1f 秒\n",
		result.Duration/60, result.ChunkCount, time.Since(startTime).Seconds())
}
