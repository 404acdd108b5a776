package queue

import (
	"testing"

	"github.com/l-qingyu/whisperflow/pkg/models"
)

func TestMemoryQueueFIFO(t *testing.T) {
	mq := NewMemoryQueue(10)

	for _, id := range []string{"a", "b", "c"} {
		if err := mq.Enqueue(&models.TranscriptionJob{JobID: id}); err != nil {
			t.Fatalf("入队失败: %v", err)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		job, err := mq.Dequeue()
		if err != nil {
			t.Fatalf("出队失败: %v", err)
		}
		if job.JobID != want {
			t.Errorf("期望出队 %q，得到 %q", want, job.JobID)
		}
	}
}

func TestMemoryQueueFull(t *testing.T) {
	mq := NewMemoryQueue(1)

	if err := mq.Enqueue(&models.TranscriptionJob{JobID: "a"}); err != nil {
		t.Fatalf("入队失败: %v", err)
	}
	if err := mq.Enqueue(&models.TranscriptionJob{JobID: "b"}); err == nil {
		t.Fatal("队列满时应拒绝入队而不是阻塞")
	}
}

func TestMemoryQueueClosed(t *testing.T) {
	mq := NewMemoryQueue(1)

	if err := mq.Enqueue(&models.TranscriptionJob{JobID: "a"}); err != nil {
		t.Fatalf("入队失败: %v", err)
	}
	if err := mq.Close(); err != nil {
		t.Fatalf("关闭失败: %v", err)
	}

	// 关闭后先排空余量，再返回关闭错误
	job, err := mq.Dequeue()
	if err != nil || job.JobID != "a" {
		t.Fatalf("关闭后应能取出剩余任务，得到 %v / %v", job, err)
	}
	if _, err := mq.Dequeue(); err == nil {
		t.Fatal("空的已关闭队列应返回错误")
	}
}

func TestMemoryQueueAckNack(t *testing.T) {
	mq := NewMemoryQueue(1)
	job := &models.TranscriptionJob{JobID: "a"}

	// 内存队列取出即消费，确认操作只是满足接口
	if err := mq.Ack(job); err != nil {
		t.Errorf("Ack 不应报错: %v", err)
	}
	if err := mq.Nack(job, true); err != nil {
		t.Errorf("Nack 不应报错: %v", err)
	}
}
