package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultWhisperAPIURL = "https://api.openai.com/v1/audio/transcriptions"

// WhisperClient OpenAI Whisper API 客户端
// 每次调用独立无状态，不做连接池，也不做自动重试——
// 重试与否是上层（队列 worker）的策略。
type WhisperClient struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
}

// NewWhisperClient 创建 Whisper 客户端
// baseURL 留空使用官方地址，可指向代理或兼容端点
func NewWhisperClient(apiKey, baseURL string) *WhisperClient {
	apiURL := defaultWhisperAPIURL
	if baseURL != "" {
		apiURL = strings.TrimSuffix(baseURL, "/") + "/audio/transcriptions"
	}

	return &WhisperClient{
		apiKey: apiKey,
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // 单个分片最多 20MB，5 分钟足够
		},
	}
}

// whisperJSONResponse 纯文本模式的 API 响应（json 格式）
type whisperJSONResponse struct {
	Text string `json:"text"`
}

// Transcribe 转录单个分片
// 选项翻译规则：
//   - Language 为 "auto" 或空 → 不发送 language 字段，让服务端自动检测
//   - Prompt 为空白 → 不发送 prompt 字段，而不是发空字符串
//   - Subtitles 为 true → response_format=srt，否则 json
//
// 网络错误、超时或非 200 状态返回 ErrTranscribe，携带上游错误详情。
func (wc *WhisperClient) Transcribe(ctx context.Context, audioPath string, opts Options) (*ChunkResult, error) {
	// 1. 打开分片文件
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: 打开文件失败: %v", ErrTranscribe, err)
	}
	defer file.Close()

	// 2. 构造 multipart 表单
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("%w: 创建表单失败: %v", ErrTranscribe, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("%w: 复制文件失败: %v", ErrTranscribe, err)
	}

	writer.WriteField("model", opts.Model)

	if lang := strings.TrimSpace(opts.Language); lang != "" && lang != "auto" {
		writer.WriteField("language", lang)
	}

	if prompt := strings.TrimSpace(opts.Prompt); prompt != "" {
		writer.WriteField("prompt", prompt)
	}

	if opts.Subtitles {
		writer.WriteField("response_format", "srt")
	} else {
		writer.WriteField("response_format", "json")
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: 关闭表单失败: %v", ErrTranscribe, err)
	}

	// 3. 发送请求
	req, err := http.NewRequestWithContext(ctx, "POST", wc.apiURL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: 创建请求失败: %v", ErrTranscribe, err)
	}

	req.Header.Set("Authorization", "Bearer "+wc.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := wc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: 请求失败: %v", ErrTranscribe, err)
	}
	defer resp.Body.Close()

	// 4. 检查响应状态
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: API 返回错误 (状态码 %d): %s", ErrTranscribe, resp.StatusCode, string(bodyBytes))
	}

	// 5. 解析响应
	if opts.Subtitles {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: 读取响应失败: %v", ErrTranscribe, err)
		}

		cues, err := ParseSRT(string(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: 解析字幕响应失败: %v", ErrTranscribe, err)
		}

		return &ChunkResult{
			Text: cueText(cues),
			Cues: cues,
		}, nil
	}

	var jsonResp whisperJSONResponse
	if err := json.NewDecoder(resp.Body).Decode(&jsonResp); err != nil {
		return nil, fmt.Errorf("%w: 解析响应失败: %v", ErrTranscribe, err)
	}

	return &ChunkResult{Text: jsonResp.Text}, nil
}

// cueText 把各条字幕的文本拼成该分片的纯文本
func cueText(cues []Cue) string {
	parts := make([]string, 0, len(cues))
	for _, cue := range cues {
		if t := strings.TrimSpace(cue.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
