package summary

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Summarizer 转录文本摘要生成器
type Summarizer struct {
	client *openai.Client
}

// NewSummarizer 创建摘要生成器
func NewSummarizer(apiKey string) *Summarizer {
	return &Summarizer{
		client: openai.NewClient(apiKey),
	}
}

// Summarize 为转录文本生成摘要
// 输出语言跟随原文
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "你是一个专业的内容摘要助手。用户会给你一段音频转录文本，" +
					"请用原文的语言输出一段简洁的摘要：先用两三句话概括主题，" +
					"再列出最多 5 个要点。只输出摘要本身，不要任何额外说明。",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(text),
			},
		},
		Temperature: 0.3, // 降低温度，使输出更稳定
	})

	if err != nil {
		return "", fmt.Errorf("调用 OpenAI API 失败: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API 未返回结果")
	}

	return resp.Choices[0].Message.Content, nil
}

// buildPrompt 构建提示词，限制文本长度避免超出 token 限制
func buildPrompt(text string) string {
	const maxLength = 12000
	if len(text) > maxLength {
		text = text[:maxLength] + "..."
	}

	return fmt.Sprintf("转录文本如下：\n\n%s", text)
}
