package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/l-qingyu/whisperflow/pkg/models"
)

// AudioNormalizer 归一化环节的抽象（测试时可替换为假实现）
type AudioNormalizer interface {
	Normalize(ctx context.Context, media Media, outPath string) (*Audio, error)
}

// AudioSplitter 分片环节的抽象
type AudioSplitter interface {
	Split(ctx context.Context, audio *Audio, maxBytes int64) ([]Chunk, error)
}

// Transcriber 转录环节的抽象
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) (*ChunkResult, error)
}

// Orchestrator 转录管道编排器
// 阶段严格单向：normalizing -> splitting -> transcribing -> aggregating -> done，
// 任何阶段失败都进入 failed 终态。分片逐个转录，不并发——
// 远端服务的速率限制未知，顺序执行也让失败清账简单得多。
type Orchestrator struct {
	normalizer AudioNormalizer
	splitter   AudioSplitter
	client     Transcriber
	maxBytes   int64
}

// NewOrchestrator 创建编排器
func NewOrchestrator(normalizer AudioNormalizer, splitter AudioSplitter, client Transcriber, maxChunkBytes int64) *Orchestrator {
	if maxChunkBytes <= 0 {
		maxChunkBytes = 20 * 1024 * 1024
	}
	return &Orchestrator{
		normalizer: normalizer,
		splitter:   splitter,
		client:     client,
		maxBytes:   maxChunkBytes,
	}
}

// Run 执行一次完整的转录
// 每次运行使用独立的临时目录，所有中间产物登记在清理器里：
// 分片文件在各自转录成功后立即删除，其余的（连同目录）在
// 任何退出路径上统一清扫。进度通知在每个阶段入口和每个分片完成后发出。
func (o *Orchestrator) Run(ctx context.Context, media Media, opts Options, progress ProgressFunc) (result *Result, err error) {
	notify := func(stage models.Stage, percent int, detail string) {
		if progress != nil {
			progress(Progress{Stage: stage, Percent: percent, Detail: detail})
		}
	}

	runDir, err := os.MkdirTemp("", "whisperflow-*")
	if err != nil {
		return nil, fmt.Errorf("创建临时目录失败: %v", err)
	}

	tr := newTracker(runDir)
	defer func() {
		if err != nil {
			notify(models.StageFailed, 0, err.Error())
		}
		tr.sweep()
	}()

	// 阶段 1: 归一化
	notify(models.StageNormalizing, 10, filepath.Base(media.Path))
	log.Printf("🎙  开始归一化: %s", filepath.Base(media.Path))

	normPath := filepath.Join(runDir, "normalized.ogg")
	tr.register(normPath)

	audio, err := o.normalizer.Normalize(ctx, media, normPath)
	if err != nil {
		return nil, err
	}

	// 阶段 2: 分片
	notify(models.StageSplitting, 30, "")

	chunks, splitErr := o.splitter.Split(ctx, audio, o.maxBytes)
	for _, c := range chunks {
		// 失败时返回的部分分片也要登记，统一清扫
		tr.register(c.Path)
	}
	if splitErr != nil {
		err = splitErr
		return nil, err
	}

	total := len(chunks)
	log.Printf("✓ 共 %d 个分片待转录", total)

	// 多分片时归一化文件已经没用了，提前删掉
	// （单分片场景分片就是它本身，此时还不能删）
	if total > 1 {
		tr.remove(audio.Path)
	}

	// 阶段 3: 逐个转录
	results := make([]ChunkResult, 0, total)
	for i, chunk := range chunks {
		notify(models.StageTranscribing, 50+40*i/total, fmt.Sprintf("chunk %d/%d", i+1, total))
		log.Printf("🔄 正在转录分片 %d/%d (%.1fs - %.1fs)", i+1, total, chunk.Start, chunk.End)

		res, terr := o.client.Transcribe(ctx, chunk.Path, opts)
		if terr != nil {
			// 缺一个分片就会破坏文本顺序和字幕时间轴的连续性，
			// 不做跳过，整个任务失败
			err = terr
			return nil, err
		}

		results = append(results, *res)

		// 分片用完即删，不等整个任务结束
		tr.remove(chunk.Path)

		notify(models.StageTranscribing, 50+40*(i+1)/total, fmt.Sprintf("chunk %d/%d", i+1, total))
	}

	// 阶段 4: 聚合
	notify(models.StageAggregating, 90, "")

	combined := Combine(results, chunks, opts.Subtitles)
	combined.Duration = audio.Duration

	notify(models.StageDone, 100, "")
	log.Printf("🎉 转录完成: %d 个分片, %d 条字幕, 文本 %d 字符",
		combined.ChunkCount, combined.CueCount, len(combined.Text))

	return &combined, nil
}
