package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/l-qingyu/whisperflow/pkg/models"
)

const redisIndexKey = "whisperflow:jobs:index"

// RedisJobStore Redis 任务存储
// 热数据层：任务带 TTL 过期，Sorted Set 按创建时间做索引
type RedisJobStore struct {
	client *redis.Client
	ttl    time.Duration
	ctx    context.Context
}

// NewRedisJobStore 创建 Redis 任务存储
func NewRedisJobStore(addr, password string, db int, ttl time.Duration) (*RedisJobStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password, // 无密码留空
		DB:       db,
	})

	// 测试连接
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}

	return &RedisJobStore{
		client: client,
		ttl:    ttl,
		ctx:    ctx,
	}, nil
}

// getKey 生成 Redis key
// 格式: "whisperflow:job:{jobID}"
func (rs *RedisJobStore) getKey(jobID string) string {
	return fmt.Sprintf("whisperflow:job:%s", jobID)
}

// Save 保存任务到 Redis
func (rs *RedisJobStore) Save(job *models.TranscriptionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}

	key := rs.getKey(job.JobID)
	if err := rs.client.Set(rs.ctx, key, data, rs.ttl).Err(); err != nil {
		return fmt.Errorf("保存到 Redis 失败: %w", err)
	}

	// 将 JobID 加入索引集合（用于 List 操作），score 为创建时间戳
	score := float64(job.CreatedAt.Unix())
	if err := rs.client.ZAdd(rs.ctx, redisIndexKey, redis.Z{
		Score:  score,
		Member: job.JobID,
	}).Err(); err != nil {
		return fmt.Errorf("添加到索引失败: %w", err)
	}

	return nil
}

// Get 从 Redis 获取任务
func (rs *RedisJobStore) Get(jobID string) (*models.TranscriptionJob, error) {
	key := rs.getKey(jobID)

	data, err := rs.client.Get(rs.ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("任务不存在: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("从 Redis 获取失败: %w", err)
	}

	var job models.TranscriptionJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("反序列化任务失败: %w", err)
	}

	return &job, nil
}

// Update 更新任务
func (rs *RedisJobStore) Update(jobID string, updateFn func(*models.TranscriptionJob)) error {
	job, err := rs.Get(jobID)
	if err != nil {
		return err
	}

	updateFn(job)

	return rs.Save(job)
}

// List 列出所有任务（按创建时间倒序）
func (rs *RedisJobStore) List() ([]*models.TranscriptionJob, error) {
	jobIDs, err := rs.client.ZRevRange(rs.ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("获取任务索引失败: %w", err)
	}

	jobs := make([]*models.TranscriptionJob, 0, len(jobIDs))
	for _, jobID := range jobIDs {
		job, err := rs.Get(jobID)
		if err != nil {
			// 任务可能已过期，跳过并清理索引
			rs.client.ZRem(rs.ctx, redisIndexKey, jobID)
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// Delete 删除任务
func (rs *RedisJobStore) Delete(jobID string) error {
	key := rs.getKey(jobID)

	deleted, err := rs.client.Del(rs.ctx, key).Result()
	if err != nil {
		return fmt.Errorf("删除任务失败: %w", err)
	}

	if deleted == 0 {
		return fmt.Errorf("任务不存在: %s", jobID)
	}

	rs.client.ZRem(rs.ctx, redisIndexKey, jobID)

	return nil
}

// Close 关闭 Redis 连接
func (rs *RedisJobStore) Close() error {
	return rs.client.Close()
}
