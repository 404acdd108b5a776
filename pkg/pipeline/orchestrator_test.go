package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/l-qingyu/whisperflow/pkg/models"
)

// fakeNormalizer 把假的归一化产物写进编排器给定的临时目录，
// 并记录该目录以便测试结束后验证清扫。
type fakeNormalizer struct {
	duration float64
	size     int64
	err      error
	runDir   string
}

func (f *fakeNormalizer) Normalize(ctx context.Context, media Media, outPath string) (*Audio, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.runDir = filepath.Dir(outPath)
	if err := os.WriteFile(outPath, []byte("normalized"), 0644); err != nil {
		return nil, err
	}
	return &Audio{Path: outPath, Duration: f.duration, Size: f.size, SampleRate: 16000, Channels: 1}, nil
}

// fakeSplitter 生成 n 个真实存在的分片文件
// n 为 1 时分片直接复用归一化产物，和真实分片器的行为一致。
type fakeSplitter struct {
	n   int
	err error
}

func (f *fakeSplitter) Split(ctx context.Context, audio *Audio, maxBytes int64) ([]Chunk, error) {
	if f.n == 1 {
		return []Chunk{{Index: 0, Start: 0, End: audio.Duration, Path: audio.Path, Size: audio.Size}}, nil
	}

	dir := filepath.Dir(audio.Path)
	step := audio.Duration / float64(f.n)

	chunks := make([]Chunk, 0, f.n)
	for i := 0; i < f.n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("chunk_%03d.ogg", i))
		if err := os.WriteFile(path, []byte("chunk"), 0644); err != nil {
			return chunks, err
		}
		chunks = append(chunks, Chunk{
			Index: i,
			Start: float64(i) * step,
			End:   float64(i+1) * step,
			Path:  path,
			Size:  5,
		})
		if f.err != nil && i == f.n-1 {
			return chunks, f.err
		}
	}
	return chunks, nil
}

// fakeTranscriber 按调用顺序返回预置结果，failAt >= 0 时第 failAt 次调用失败
type fakeTranscriber struct {
	failAt int
	calls  int
	paths  []string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string, opts Options) (*ChunkResult, error) {
	idx := f.calls
	f.calls++
	f.paths = append(f.paths, audioPath)

	if f.failAt >= 0 && idx == f.failAt {
		return nil, fmt.Errorf("%w: 模拟上游故障", ErrTranscribe)
	}
	return &ChunkResult{
		Text: fmt.Sprintf("分片 %d 的文本", idx),
		Cues: []Cue{{Index: 1, Start: 0, End: 1, Text: fmt.Sprintf("字幕 %d", idx)}},
	}, nil
}

func TestOrchestratorRunMultiChunk(t *testing.T) {
	norm := &fakeNormalizer{duration: 900, size: 60 * 1024 * 1024}
	split := &fakeSplitter{n: 3}
	trans := &fakeTranscriber{failAt: -1}

	var events []Progress
	orch := NewOrchestrator(norm, split, trans, 20*1024*1024)

	result, err := orch.Run(context.Background(), Media{Path: "/tmp/input.mp4", Size: 60 * 1024 * 1024}, Options{
		Model:     "whisper-1",
		Subtitles: true,
	}, func(p Progress) {
		events = append(events, p)
	})
	if err != nil {
		t.Fatalf("运行失败: %v", err)
	}

	if result.ChunkCount != 3 {
		t.Errorf("期望 3 个分片，得到 %d", result.ChunkCount)
	}
	if result.Duration != 900 {
		t.Errorf("期望时长 900，得到 %v", result.Duration)
	}
	if result.CueCount != 3 {
		t.Errorf("期望 3 条字幕，得到 %d", result.CueCount)
	}
	if trans.calls != 3 {
		t.Errorf("期望转录 3 次，得到 %d", trans.calls)
	}

	// 阶段严格单向，进度单调不减
	wantStages := []models.Stage{
		models.StageNormalizing,
		models.StageSplitting,
		models.StageTranscribing,
		models.StageAggregating,
		models.StageDone,
	}
	stageIdx := 0
	lastPercent := -1
	for _, e := range events {
		for stageIdx < len(wantStages) && e.Stage != wantStages[stageIdx] {
			stageIdx++
		}
		if stageIdx == len(wantStages) {
			t.Fatalf("阶段 %q 出现在非法位置", e.Stage)
		}
		if e.Percent < lastPercent {
			t.Errorf("进度回退: %d -> %d (阶段 %s)", lastPercent, e.Percent, e.Stage)
		}
		lastPercent = e.Percent
	}

	last := events[len(events)-1]
	if last.Stage != models.StageDone || last.Percent != 100 {
		t.Errorf("末事件应为 done/100，得到 %s/%d", last.Stage, last.Percent)
	}

	// 临时目录及所有中间产物在成功路径上被清扫
	if _, err := os.Stat(norm.runDir); !os.IsNotExist(err) {
		t.Errorf("临时目录 %s 应已删除", norm.runDir)
	}
}

func TestOrchestratorRunChunkFailure(t *testing.T) {
	norm := &fakeNormalizer{duration: 900, size: 60 * 1024 * 1024}
	split := &fakeSplitter{n: 3}
	trans := &fakeTranscriber{failAt: 1} // 第 2 个分片失败

	var events []Progress
	orch := NewOrchestrator(norm, split, trans, 20*1024*1024)

	_, err := orch.Run(context.Background(), Media{Path: "/tmp/input.mp4", Size: 60 * 1024 * 1024}, Options{
		Model: "whisper-1",
	}, func(p Progress) {
		events = append(events, p)
	})

	if !errors.Is(err, ErrTranscribe) {
		t.Fatalf("分片失败应透传 ErrTranscribe，得到 %v", err)
	}

	// 不跳过失败分片：第 3 个分片不再转录
	if trans.calls != 2 {
		t.Errorf("期望在第 2 个分片后停止，实际转录 %d 次", trans.calls)
	}

	last := events[len(events)-1]
	if last.Stage != models.StageFailed || last.Percent != 0 {
		t.Errorf("末事件应为 failed/0，得到 %s/%d", last.Stage, last.Percent)
	}

	// 失败路径同样不留任何临时文件
	if _, err := os.Stat(norm.runDir); !os.IsNotExist(err) {
		t.Errorf("临时目录 %s 应已删除", norm.runDir)
	}
}

func TestOrchestratorRunSingleChunk(t *testing.T) {
	norm := &fakeNormalizer{duration: 120, size: 5 * 1024 * 1024}
	split := &fakeSplitter{n: 1}
	trans := &fakeTranscriber{failAt: -1}

	orch := NewOrchestrator(norm, split, trans, 20*1024*1024)

	result, err := orch.Run(context.Background(), Media{Path: "/tmp/short.mp3", Size: 5 * 1024 * 1024}, Options{
		Model: "whisper-1",
	}, nil)
	if err != nil {
		t.Fatalf("运行失败: %v", err)
	}

	if result.ChunkCount != 1 {
		t.Errorf("期望 1 个分片，得到 %d", result.ChunkCount)
	}

	// 单分片直接转录归一化产物本身
	if len(trans.paths) != 1 || filepath.Base(trans.paths[0]) != "normalized.ogg" {
		t.Errorf("单分片应转录归一化产物，实际转录 %v", trans.paths)
	}

	// 分片与归一化产物同路径，清扫不应因重复删除报错
	if _, err := os.Stat(norm.runDir); !os.IsNotExist(err) {
		t.Errorf("临时目录 %s 应已删除", norm.runDir)
	}
}

func TestOrchestratorRunNormalizeFailure(t *testing.T) {
	norm := &fakeNormalizer{err: fmt.Errorf("%w: 模拟解码失败", ErrDecode)}
	orch := NewOrchestrator(norm, &fakeSplitter{n: 1}, &fakeTranscriber{failAt: -1}, 0)

	var events []Progress
	_, err := orch.Run(context.Background(), Media{Path: "/tmp/broken.bin"}, Options{Model: "whisper-1"}, func(p Progress) {
		events = append(events, p)
	})

	if !errors.Is(err, ErrDecode) {
		t.Fatalf("归一化失败应透传 ErrDecode，得到 %v", err)
	}

	last := events[len(events)-1]
	if last.Stage != models.StageFailed {
		t.Errorf("末事件应为 failed，得到 %s", last.Stage)
	}
}

func TestOrchestratorRunSplitFailureCleansPartialChunks(t *testing.T) {
	norm := &fakeNormalizer{duration: 900, size: 60 * 1024 * 1024}
	split := &fakeSplitter{n: 3, err: fmt.Errorf("%w: 模拟导出失败", ErrSplit)}

	orch := NewOrchestrator(norm, split, &fakeTranscriber{failAt: -1}, 20*1024*1024)

	_, err := orch.Run(context.Background(), Media{Path: "/tmp/input.mp4"}, Options{Model: "whisper-1"}, nil)
	if !errors.Is(err, ErrSplit) {
		t.Fatalf("分片失败应透传 ErrSplit，得到 %v", err)
	}

	// 失败前已导出的部分分片也要随目录一起清掉
	if _, err := os.Stat(norm.runDir); !os.IsNotExist(err) {
		t.Errorf("临时目录 %s 应已删除", norm.runDir)
	}
}
