package pipeline

import "errors"

// 管道错误分类。所有致命错误都会包装对应的哨兵值，
// 调用方用 errors.Is 区分失败发生在哪个环节。
var (
	// ErrConfig 凭证或外部工具缺失，任务开始前就应失败
	ErrConfig = errors.New("配置错误")

	// ErrDecode 源文件无法被解析为媒体
	ErrDecode = errors.New("解码失败")

	// ErrEncode 归一化导出失败
	ErrEncode = errors.New("编码失败")

	// ErrSplit 分片导出失败
	ErrSplit = errors.New("分片失败")

	// ErrTranscribe 单个分片的网络调用或服务端失败
	ErrTranscribe = errors.New("转录失败")
)
