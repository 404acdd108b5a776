package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/l-qingyu/whisperflow/pkg/models"
	"github.com/l-qingyu/whisperflow/pkg/pipeline"
	"github.com/l-qingyu/whisperflow/pkg/queue"
	"github.com/l-qingyu/whisperflow/pkg/storage"
)

// Worker 任务处理器
// 从队列取任务，驱动转录管道，把阶段和进度实时写回存储。
// 管道内部是顺序执行的，多个 Worker 之间互不影响，各跑各的任务。
type Worker struct {
	queue     queue.Queue
	store     storage.Store
	orch      *pipeline.Orchestrator
	outputDir string
	timeout   time.Duration
	count     int
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWorker 创建 Worker
// count 为并发 Worker 数量（应与队列 prefetch 一致）
func NewWorker(
	q queue.Queue,
	store storage.Store,
	orch *pipeline.Orchestrator,
	outputDir string,
	timeout time.Duration,
	count int,
) *Worker {
	if count <= 0 {
		count = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		queue:     q,
		store:     store,
		orch:      orch,
		outputDir: outputDir,
		timeout:   timeout,
		count:     count,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start 启动所有 Worker goroutine
func (w *Worker) Start() {
	for i := 0; i < w.count; i++ {
		w.wg.Add(1)
		go w.run(i)
	}
	log.Printf("✓ 已启动 %d 个 Worker", w.count)
}

// Stop 停止 Worker 并等待在途任务退出
func (w *Worker) Stop() {
	log.Println("正在停止 Worker...")
	w.cancel()
	w.wg.Wait()
}

// run Worker 主循环
func (w *Worker) run(id int) {
	defer w.wg.Done()

	log.Printf("Worker #%d 已启动，等待任务...", id)

	for {
		select {
		case <-w.ctx.Done():
			log.Printf("Worker #%d 已停止", id)
			return
		default:
		}

		// 从队列获取任务（阻塞）
		job, err := w.queue.Dequeue()
		if err != nil {
			select {
			case <-w.ctx.Done():
				log.Printf("Worker #%d 已停止", id)
				return
			default:
			}
			log.Printf("从队列获取任务失败: %v", err)
			time.Sleep(1 * time.Second)
			continue
		}

		w.processJob(job)
	}
}

// processJob 处理单个任务
func (w *Worker) processJob(job *models.TranscriptionJob) {
	log.Printf("📝 开始处理任务: %s (%s)", job.JobID, job.Filename)

	w.store.Update(job.JobID, func(j *models.TranscriptionJob) {
		j.Status = models.StatusProcessing
		j.Stage = models.StageNormalizing
		j.Progress = 0
	})

	// 进度回调：把管道的阶段通知实时写回存储
	progress := func(p pipeline.Progress) {
		w.store.Update(job.JobID, func(j *models.TranscriptionJob) {
			j.Stage = p.Stage
			j.Progress = p.Percent
			j.Detail = p.Detail
		})
		log.Printf("任务 %s: %s %d%% %s", job.JobID, p.Stage, p.Percent, p.Detail)
	}

	info, err := os.Stat(job.FilePath)
	if err != nil {
		w.failJob(job, fmt.Errorf("源文件不可读: %w", err))
		return
	}

	media := pipeline.Media{Path: job.FilePath, Size: info.Size()}
	opts := pipeline.Options{
		Model:     job.Model,
		Language:  job.Language,
		Prompt:    job.Prompt,
		Subtitles: job.Subtitles,
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()

	startTime := time.Now()
	result, err := w.orch.Run(ctx, media, opts, progress)
	if err != nil {
		w.failJob(job, err)
		return
	}

	// 字幕模式下把 SRT 文档落盘
	subtitlePath := ""
	if result.SRT != "" {
		subtitlePath = filepath.Join(w.outputDir, job.JobID+".srt")
		if err := os.WriteFile(subtitlePath, []byte(result.SRT), 0644); err != nil {
			w.failJob(job, fmt.Errorf("写入字幕文件失败: %w", err))
			return
		}
	}

	elapsed := time.Since(startTime)
	log.Printf("🎉 任务 %s 完成！耗时 %.1f 秒, 文本 %d 字符", job.JobID, elapsed.Seconds(), len(result.Text))

	w.store.Update(job.JobID, func(j *models.TranscriptionJob) {
		j.Status = models.StatusCompleted
		j.Stage = models.StageDone
		j.Progress = 100
		j.Detail = ""
		j.Result = result.Text
		j.SubtitlePath = subtitlePath
		j.Duration = result.Duration
		j.ChunkCount = result.ChunkCount
		j.CompletedAt = time.Now()
	})

	if err := w.queue.Ack(job); err != nil {
		log.Printf("⚠️ 确认消息失败: %v", err)
	}
}

// failJob 标记任务失败
// 不自动重试：转录缺一个分片就是整体失败，重试交给调用方决定
func (w *Worker) failJob(job *models.TranscriptionJob, cause error) {
	log.Printf("❌ 任务 %s 失败: %v", job.JobID, cause)

	w.store.Update(job.JobID, func(j *models.TranscriptionJob) {
		j.Status = models.StatusFailed
		j.Stage = models.StageFailed
		j.Error = cause.Error()
		j.CompletedAt = time.Now()
	})

	if err := w.queue.Nack(job, false); err != nil {
		log.Printf("⚠️ 拒绝消息失败: %v", err)
	}
}
