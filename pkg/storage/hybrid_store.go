package storage

import (
	"log"
	"time"

	"github.com/l-qingyu/whisperflow/pkg/models"
)

// HybridJobStore 混合存储：Redis（热数据） + PostgreSQL（冷数据）
// 写入先落 Redis 保证查询快，终态任务异步批量刷进数据库
type HybridJobStore struct {
	redis     Store
	db        Store
	syncQueue chan *models.TranscriptionJob
	stopCh    chan struct{}
}

// NewHybridJobStore 创建混合存储
func NewHybridJobStore(redis, db Store) *HybridJobStore {
	store := &HybridJobStore{
		redis:     redis,
		db:        db,
		syncQueue: make(chan *models.TranscriptionJob, 100),
		stopCh:    make(chan struct{}),
	}

	// 启动后台同步 Worker
	go store.syncWorker()

	log.Println("✓ 混合存储初始化成功（Redis + PostgreSQL）")

	return store
}

// Save 保存任务
// 策略：立即写 Redis，终态任务异步写数据库
func (s *HybridJobStore) Save(job *models.TranscriptionJob) error {
	if err := s.redis.Save(job); err != nil {
		log.Printf("⚠️ Redis 写入失败: %v", err)
		// Redis 失败不影响业务，继续走数据库
	}

	if job.Status == models.StatusCompleted || job.Status == models.StatusFailed {
		s.asyncSyncToDB(job)
	}

	return nil
}

// Get 获取任务
// 策略：优先 Redis，未命中查数据库并回写 Redis
func (s *HybridJobStore) Get(jobID string) (*models.TranscriptionJob, error) {
	job, err := s.redis.Get(jobID)
	if err == nil {
		return job, nil
	}

	job, err = s.db.Get(jobID)
	if err != nil {
		return nil, err
	}

	// 回写 Redis，下次查询走缓存
	go func() {
		if err := s.redis.Save(job); err != nil {
			log.Printf("⚠️ 回写 Redis 失败: %v", err)
		}
	}()

	return job, nil
}

// Update 更新任务
// 策略：只更新 Redis（快速），终态时同步数据库
func (s *HybridJobStore) Update(jobID string, updateFn func(*models.TranscriptionJob)) error {
	err := s.redis.Update(jobID, updateFn)
	if err != nil {
		log.Printf("⚠️ Redis 更新失败: %v, 尝试更新数据库", err)
		return s.db.Update(jobID, updateFn)
	}

	job, _ := s.redis.Get(jobID)
	if job != nil && (job.Status == models.StatusCompleted || job.Status == models.StatusFailed) {
		s.asyncSyncToDB(job)
	}

	return nil
}

// List 列出任务
// 策略：优先 Redis，失败降级到数据库
func (s *HybridJobStore) List() ([]*models.TranscriptionJob, error) {
	jobs, err := s.redis.List()
	if err != nil {
		log.Printf("⚠️ Redis 列表查询失败: %v, 降级到数据库", err)
		return s.db.List()
	}

	return jobs, nil
}

// Delete 删除任务
// 策略：两边都删，确保持久化数据也被清理
func (s *HybridJobStore) Delete(jobID string) error {
	if err := s.redis.Delete(jobID); err != nil {
		log.Printf("⚠️ Redis 删除失败: %v", err)
	}

	if err := s.db.Delete(jobID); err != nil {
		log.Printf("⚠️ 数据库删除失败: %v", err)
		return err
	}

	return nil
}

// Close 关闭存储
func (s *HybridJobStore) Close() error {
	// 停止同步 Worker
	close(s.stopCh)

	// 等待队列清空（最多等待 5 秒）
	timeout := time.After(5 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			log.Printf("⚠️ 同步队列清空超时，剩余 %d 个任务", len(s.syncQueue))
			goto cleanup
		case <-ticker.C:
			if len(s.syncQueue) == 0 {
				goto cleanup
			}
		}
	}

cleanup:
	s.redis.Close()
	s.db.Close()

	log.Println("✓ 混合存储已关闭")
	return nil
}

// asyncSyncToDB 异步同步到数据库
func (s *HybridJobStore) asyncSyncToDB(job *models.TranscriptionJob) {
	select {
	case s.syncQueue <- job:
		// 成功加入队列
	default:
		// 队列满，退化为同步写入
		log.Printf("⚠️ 同步队列已满，同步写入数据库")
		if err := s.db.Save(job); err != nil {
			log.Printf("❌ 同步写入数据库失败: %v", err)
		}
	}
}

// syncWorker 后台同步 Worker
// 批量写入：凑够 50 条或每 5 秒刷一次
func (s *HybridJobStore) syncWorker() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	batch := make([]*models.TranscriptionJob, 0, 50)

	for {
		select {
		case job, ok := <-s.syncQueue:
			if !ok {
				s.batchSave(batch)
				return
			}

			batch = append(batch, job)

			if len(batch) >= 50 {
				s.batchSave(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.batchSave(batch)
				batch = batch[:0]
			}

		case <-s.stopCh:
			s.batchSave(batch)
			return
		}
	}
}

// batchSave 批量保存到数据库
func (s *HybridJobStore) batchSave(jobs []*models.TranscriptionJob) {
	if len(jobs) == 0 {
		return
	}

	successCount := 0
	for _, job := range jobs {
		if err := s.db.Save(job); err != nil {
			log.Printf("❌ 同步任务失败: %s, 错误: %v", job.JobID, err)
		} else {
			successCount++
		}
	}

	log.Printf("✓ 批量同步 %d/%d 个任务到数据库", successCount, len(jobs))
}
