package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/l-qingyu/whisperflow/pkg/models"
)

// JobStore 任务存储（内存实现）
type JobStore struct {
	jobs map[string]*models.TranscriptionJob
	mu   sync.RWMutex
}

// NewJobStore 创建内存任务存储
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*models.TranscriptionJob),
	}
}

// Save 保存任务
func (js *JobStore) Save(job *models.TranscriptionJob) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	js.jobs[job.JobID] = job
	return nil
}

// Get 获取任务
func (js *JobStore) Get(jobID string) (*models.TranscriptionJob, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	job, exists := js.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("任务不存在: %s", jobID)
	}

	return job, nil
}

// Update 更新任务状态
func (js *JobStore) Update(jobID string, updateFn func(*models.TranscriptionJob)) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, exists := js.jobs[jobID]
	if !exists {
		return fmt.Errorf("任务不存在: %s", jobID)
	}

	updateFn(job)
	return nil
}

// List 列出所有任务（按创建时间倒序）
func (js *JobStore) List() ([]*models.TranscriptionJob, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	jobs := make([]*models.TranscriptionJob, 0, len(js.jobs))
	for _, job := range js.jobs {
		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	return jobs, nil
}

// Delete 删除任务
func (js *JobStore) Delete(jobID string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if _, exists := js.jobs[jobID]; !exists {
		return fmt.Errorf("任务不存在: %s", jobID)
	}

	delete(js.jobs, jobID)
	return nil
}

// Close 关闭存储（内存存储无需关闭）
func (js *JobStore) Close() error {
	return nil
}
