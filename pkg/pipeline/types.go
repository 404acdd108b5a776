package pipeline

import "github.com/l-qingyu/whisperflow/pkg/models"

// Media 调用方给出的源文件引用，管道不会修改它
type Media struct {
	Path string
	Size int64
}

// Audio 归一化后的音频（已导出为临时文件）
type Audio struct {
	Path       string
	Duration   float64 // 秒
	Size       int64   // 导出后的字节数
	SampleRate int
	Channels   int
}

// Chunk 一个音频分片
// 不变量：按 Index 有序、时间上连续不重叠、整体覆盖源音频全部时长
type Chunk struct {
	Index int     `json:"index"`
	Start float64 `json:"start"` // 在原始时间轴上的起点（秒）
	End   float64 `json:"end"`
	Path  string  `json:"path"`
	Size  int64   `json:"size"`
}

// Options 一次转录的识别选项，运行期间不可变
type Options struct {
	Model     string
	Language  string // ISO 代码；"auto" 或空表示让服务端自动检测
	Prompt    string // 上下文提示词，空白则不发送
	Subtitles bool   // true 请求带时间轴的字幕输出
}

// Cue 一条字幕：序号、起止时间、文本
// 分片内的时间以该分片自己的零点为基准
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// ChunkResult 单个分片的转录结果
// 纯文本模式只有 Text；字幕模式下 Cues 非空，Text 由各条字幕拼出
type ChunkResult struct {
	Text string
	Cues []Cue
}

// Result 管道的最终输出
// SRT 仅在请求字幕且所有分片都成功时非空
type Result struct {
	Text       string
	SRT        string
	Duration   float64 // 源音频时长（秒）
	CueCount   int
	ChunkCount int
}

// Progress 进度通知
type Progress struct {
	Stage   models.Stage
	Percent int // 0-100
	Detail  string
}

// ProgressFunc 进度回调，在每个阶段入口以及每个分片完成后触发
type ProgressFunc func(Progress)
