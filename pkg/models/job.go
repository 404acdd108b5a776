package models

import "time"

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Stage 管道执行阶段（严格单向推进）
type Stage string

const (
	StageIdle         Stage = "idle"
	StageNormalizing  Stage = "normalizing"
	StageSplitting    Stage = "splitting"
	StageTranscribing Stage = "transcribing"
	StageAggregating  Stage = "aggregating"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// TranscriptionJob 一次转录任务
type TranscriptionJob struct {
	JobID        string    `json:"job_id"`
	Filename     string    `json:"filename"`
	FilePath     string    `json:"file_path"`
	Status       JobStatus `json:"status"`
	Stage        Stage     `json:"stage"`
	Progress     int       `json:"progress"` // 0-100
	Detail       string    `json:"detail"`   // 当前阶段说明，如 "chunk 2/3"
	Result       string    `json:"result"`
	SubtitlePath string    `json:"subtitle_path"` // SRT 字幕文件路径（仅字幕模式）
	Model        string    `json:"model"`
	Language     string    `json:"language"` // ISO 代码，"auto" 表示自动检测
	Prompt       string    `json:"prompt"`
	Subtitles    bool      `json:"subtitles"` // 是否请求字幕输出
	Duration     float64   `json:"duration"`  // 音频时长（秒）
	ChunkCount   int       `json:"chunk_count"`
	Summary      string    `json:"summary"`
	Error        string    `json:"error"`
	CreatedAt    time.Time `json:"created_at"`
	CompletedAt  time.Time `json:"completed_at"`

	// RabbitMQ 相关（不序列化到 JSON）
	DeliveryTag      uint64 `json:"-"` // RabbitMQ delivery tag
	RabbitMQDelivery any    `json:"-"` // RabbitMQ delivery 对象（用于 Ack/Nack）
}
