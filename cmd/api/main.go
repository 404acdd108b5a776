package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/l-qingyu/whisperflow/pkg/config"
	"github.com/l-qingyu/whisperflow/pkg/models"
	"github.com/l-qingyu/whisperflow/pkg/pipeline"
	"github.com/l-qingyu/whisperflow/pkg/queue"
	"github.com/l-qingyu/whisperflow/pkg/storage"
	"github.com/l-qingyu/whisperflow/pkg/summary"
	"github.com/l-qingyu/whisperflow/pkg/worker"
)

// App 应用上下文
type App struct {
	config     *config.Config
	queue      queue.Queue
	store      storage.Store
	worker     *worker.Worker
	summarizer *summary.Summarizer
}

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("❌ 加载配置失败: %v", err)
	}
	log.Println("✓ 配置加载成功")

	// 2. 检查外部工具（管道依赖 FFmpeg，缺了没法跑）
	if err := config.CheckFFmpeg(); err != nil {
		log.Fatalf("❌ %v", err)
	}

	// 3. 确保必要的目录存在
	for _, dir := range []string{cfg.Server.UploadDir, cfg.Server.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("❌ 创建 %s 目录失败: %v", dir, err)
		}
	}

	app := &App{config: cfg}

	// 4. 初始化存储（根据配置选择类型）
	app.store, err = buildStore(cfg)
	if err != nil {
		log.Fatalf("❌ 初始化存储失败: %v", err)
	}

	// 5. 初始化队列
	switch cfg.Queue.Type {
	case "memory":
		app.queue = queue.NewMemoryQueue(cfg.Queue.BufferSize)
		log.Println("✓ 使用内存队列")
	case "rabbitmq":
		app.queue, err = queue.NewRabbitMQQueue(cfg.Queue.RabbitMQ.URL, cfg.Queue.RabbitMQ.QueueName, cfg.Queue.Prefetch)
		if err != nil {
			log.Fatalf("❌ 初始化 RabbitMQ 失败: %v", err)
		}
	default:
		log.Fatalf("❌ 不支持的队列类型: %s", cfg.Queue.Type)
	}

	// 6. 组装转录管道
	normalizer := pipeline.NewNormalizer(cfg.Pipeline.SampleRate, cfg.Pipeline.Bitrate)
	chunker := pipeline.NewChunker(cfg.Pipeline.SampleRate, cfg.Pipeline.Bitrate)
	client := pipeline.NewWhisperClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	orch := pipeline.NewOrchestrator(normalizer, chunker, client, cfg.Pipeline.MaxChunkBytes)
	log.Println("✓ 转录管道初始化成功")

	app.summarizer = summary.NewSummarizer(cfg.OpenAI.APIKey)

	// 7. 启动 Worker
	app.worker = worker.NewWorker(
		app.queue,
		app.store,
		orch,
		cfg.Server.OutputDir,
		time.Duration(cfg.Pipeline.TimeoutMinutes)*time.Minute,
		cfg.Queue.Prefetch,
	)
	app.worker.Start()

	// 8. 启动 HTTP 服务器
	router := app.setupRouter()
	port := fmt.Sprintf(":%d", cfg.Server.Port)

	log.Printf("🚀 WhisperFlow 服务器启动在 http://localhost:%d", cfg.Server.Port)
	log.Printf("📝 配置信息:")
	log.Printf("   - 分片上限: %.0f MB", float64(cfg.Pipeline.MaxChunkBytes)/1024/1024)
	log.Printf("   - 队列类型: %s", cfg.Queue.Type)
	log.Printf("   - 存储类型: %s", cfg.Storage.Type)

	go func() {
		if err := router.Run(port); err != nil {
			log.Fatalf("❌ 服务器启动失败: %v", err)
		}
	}()

	// 9. 等待中断信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 正在关闭服务器...")
	app.queue.Close()
	app.worker.Stop()
	app.store.Close()
	log.Println("✓ 服务器已关闭")
}

// buildStore 根据配置构建任务存储
func buildStore(cfg *config.Config) (storage.Store, error) {
	ttl := time.Duration(cfg.Storage.Redis.TTLHours) * time.Hour

	switch cfg.Storage.Type {
	case "memory":
		log.Println("✓ 使用内存存储")
		return storage.NewJobStore(), nil
	case "redis":
		return storage.NewRedisJobStore(cfg.Storage.Redis.Addr, cfg.Storage.Redis.Password, cfg.Storage.Redis.DB, ttl)
	case "postgres":
		return storage.NewPostgresJobStore(cfg.Storage.Postgres.DSN)
	case "hybrid":
		redisStore, err := storage.NewRedisJobStore(cfg.Storage.Redis.Addr, cfg.Storage.Redis.Password, cfg.Storage.Redis.DB, ttl)
		if err != nil {
			return nil, err
		}
		pgStore, err := storage.NewPostgresJobStore(cfg.Storage.Postgres.DSN)
		if err != nil {
			redisStore.Close()
			return nil, err
		}
		return storage.NewHybridJobStore(redisStore, pgStore), nil
	default:
		return nil, fmt.Errorf("不支持的存储类型: %s", cfg.Storage.Type)
	}
}

// setupRouter 设置路由
func (app *App) setupRouter() *gin.Engine {
	r := gin.Default()

	api := r.Group("/api")
	{
		api.GET("/ping", app.handlePing)
		api.POST("/upload", app.handleUpload)
		api.GET("/jobs", app.handleListJobs)
		api.GET("/jobs/:job_id", app.handleGetJob)
		api.GET("/jobs/:job_id/text", app.handleGetText)
		api.GET("/jobs/:job_id/srt", app.handleGetSRT)
		api.POST("/jobs/:job_id/summarize", app.handleSummarize)
	}

	return r
}

// isValidMediaFormat 验证上传文件格式
// 覆盖 Whisper API 支持的音频格式，外加几种常见视频容器（会被抽取音轨）
func isValidMediaFormat(ext string) bool {
	validFormats := map[string]bool{
		".mp3":  true,
		".mp4":  true,
		".mpeg": true,
		".mpga": true,
		".m4a":  true,
		".wav":  true,
		".webm": true,
		".flac": true,
		".aac":  true,
		".ogg":  true,
		".mkv":  true,
		".avi":  true,
		".mov":  true,
	}

	return validFormats[strings.ToLower(ext)]
}

// handlePing 健康检查
func (app *App) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
		"version": "0.3.0",
	})
}

// handleUpload 处理文件上传并创建转录任务
func (app *App) handleUpload(c *gin.Context) {
	// 1. 获取文件
	file, err := c.FormFile("media")
	if err != nil {
		c.JSON(400, gin.H{"error": "请上传文件"})
		return
	}

	// 2. 验证文件格式
	ext := filepath.Ext(file.Filename)
	if !isValidMediaFormat(ext) {
		c.JSON(400, gin.H{
			"error": fmt.Sprintf("不支持的文件格式 %s，支持: .mp3, .wav, .m4a, .mp4, .mkv, .flac, .aac, .ogg", ext),
		})
		return
	}

	// 3. 验证文件大小
	if file.Size > app.config.Server.MaxUploadSize {
		c.JSON(400, gin.H{
			"error": fmt.Sprintf("文件太大，最大 %.0f MB", float64(app.config.Server.MaxUploadSize)/1024/1024),
		})
		return
	}

	// 4. 识别选项
	language := c.DefaultPostForm("language", "auto")
	prompt := c.PostForm("prompt")
	subtitles := c.PostForm("subtitles") == "true"
	model := c.DefaultPostForm("model", app.config.OpenAI.Model)

	// 5. 保存文件（uuid 命名避免冲突）
	jobID := uuid.New().String()
	savePath := filepath.Join(app.config.Server.UploadDir, jobID+ext)

	if err := c.SaveUploadedFile(file, savePath); err != nil {
		c.JSON(500, gin.H{"error": "保存文件失败"})
		return
	}

	log.Printf("✓ 文件已保存: %s (%.2f MB)", file.Filename, float64(file.Size)/1024/1024)

	// 6. 创建任务
	job := &models.TranscriptionJob{
		JobID:     jobID,
		Filename:  file.Filename,
		FilePath:  savePath,
		Status:    models.StatusPending,
		Stage:     models.StageIdle,
		Progress:  0,
		Model:     model,
		Language:  language,
		Prompt:    prompt,
		Subtitles: subtitles,
		CreatedAt: time.Now(),
	}

	if err := app.store.Save(job); err != nil {
		c.JSON(500, gin.H{"error": "保存任务失败"})
		return
	}

	// 7. 加入队列，异步处理
	if err := app.queue.Enqueue(job); err != nil {
		c.JSON(500, gin.H{"error": "任务加入队列失败"})
		return
	}

	log.Printf("✓ 任务已加入队列: %s", jobID)

	c.JSON(200, gin.H{
		"job_id":    jobID,
		"filename":  file.Filename,
		"size":      file.Size,
		"status":    job.Status,
		"subtitles": subtitles,
		"message":   "上传成功，正在处理中...",
	})
}

// handleGetJob 获取任务状态（含阶段和进度百分比）
func (app *App) handleGetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := app.store.Get(jobID)
	if err != nil {
		c.JSON(404, gin.H{"error": "任务不存在"})
		return
	}

	c.JSON(200, job)
}

// handleListJobs 列出所有任务
func (app *App) handleListJobs(c *gin.Context) {
	jobs, err := app.store.List()
	if err != nil {
		c.JSON(500, gin.H{"error": "查询任务失败"})
		return
	}

	c.JSON(200, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// handleGetText 下载合并后的转录文本
func (app *App) handleGetText(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := app.store.Get(jobID)
	if err != nil {
		c.JSON(404, gin.H{"error": "任务不存在"})
		return
	}

	if job.Status != models.StatusCompleted {
		c.JSON(400, gin.H{"error": "任务尚未完成"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.Filename+".txt"))
	c.Data(200, "text/plain; charset=utf-8", []byte(job.Result))
}

// handleGetSRT 下载合并后的字幕文档
func (app *App) handleGetSRT(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := app.store.Get(jobID)
	if err != nil {
		c.JSON(404, gin.H{"error": "任务不存在"})
		return
	}

	if job.Status != models.StatusCompleted {
		c.JSON(400, gin.H{"error": "任务尚未完成"})
		return
	}

	if job.SubtitlePath == "" {
		c.JSON(400, gin.H{"error": "该任务未请求字幕输出"})
		return
	}

	c.FileAttachment(job.SubtitlePath, job.Filename+".srt")
}

// handleSummarize 为已完成的任务生成摘要
func (app *App) handleSummarize(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := app.store.Get(jobID)
	if err != nil {
		c.JSON(404, gin.H{"error": "任务不存在"})
		return
	}

	if job.Status != models.StatusCompleted {
		c.JSON(400, gin.H{"error": "任务尚未完成，无法生成摘要"})
		return
	}

	if job.Result == "" {
		c.JSON(400, gin.H{"error": "转录结果为空"})
		return
	}

	log.Printf("开始生成摘要，任务 ID: %s", jobID)
	text, err := app.summarizer.Summarize(c.Request.Context(), job.Result)
	if err != nil {
		log.Printf("❌ 生成摘要失败: %v", err)
		c.JSON(500, gin.H{"error": fmt.Sprintf("生成摘要失败: %v", err)})
		return
	}

	if err := app.store.Update(jobID, func(j *models.TranscriptionJob) {
		j.Summary = text
	}); err != nil {
		c.JSON(500, gin.H{"error": "保存摘要失败"})
		return
	}

	c.JSON(200, gin.H{
		"job_id":  jobID,
		"summary": text,
	})
}
