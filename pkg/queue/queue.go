package queue

import "github.com/l-qingyu/whisperflow/pkg/models"

// Queue 任务队列接口
// 内存实现适合单机部署，RabbitMQ 实现支持多实例消费
type Queue interface {
	// Enqueue 将任务加入队列
	Enqueue(job *models.TranscriptionJob) error

	// Dequeue 从队列取出任务（阻塞）
	Dequeue() (*models.TranscriptionJob, error)

	// Ack 确认消息（任务处理成功）
	Ack(job *models.TranscriptionJob) error

	// Nack 拒绝消息（任务处理失败）
	// requeue: 是否重新入队
	Nack(job *models.TranscriptionJob, requeue bool) error

	// Close 关闭队列
	Close() error
}
