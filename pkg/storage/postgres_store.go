package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/l-qingyu/whisperflow/pkg/models"
)

// PostgresJobStore PostgreSQL 任务存储（冷数据持久化层）
type PostgresJobStore struct {
	db *sql.DB
}

// NewPostgresJobStore 创建 PostgreSQL 任务存储
func NewPostgresJobStore(dsn string) (*PostgresJobStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 设置连接池
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	store := &PostgresJobStore{db: db}
	if err := store.ensureSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

// ensureSchema 建表（幂等）
func (s *PostgresJobStore) ensureSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS transcription_jobs (
		job_id        TEXT PRIMARY KEY,
		filename      TEXT NOT NULL,
		file_path     TEXT,
		status        TEXT NOT NULL,
		stage         TEXT,
		progress      INT DEFAULT 0,
		detail        TEXT,
		result        TEXT,
		subtitle_path TEXT,
		model         TEXT,
		language      TEXT,
		prompt        TEXT,
		subtitles     BOOLEAN DEFAULT FALSE,
		duration      DOUBLE PRECISION DEFAULT 0,
		chunk_count   INT DEFAULT 0,
		summary       TEXT,
		error         TEXT,
		created_at    TIMESTAMPTZ NOT NULL,
		completed_at  TIMESTAMPTZ
	)`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("建表失败: %w", err)
	}

	return nil
}

// Save 保存任务（UPSERT）
func (s *PostgresJobStore) Save(job *models.TranscriptionJob) error {
	query := `
	INSERT INTO transcription_jobs (
	job_id, filename, file_path, status, stage, progress, detail,
	result, subtitle_path, model, language, prompt, subtitles,
	duration, chunk_count, summary, error, created_at, completed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	ON CONFLICT (job_id)
	DO UPDATE SET
	status = EXCLUDED.status,
	stage = EXCLUDED.stage,
	progress = EXCLUDED.progress,
	detail = EXCLUDED.detail,
	result = EXCLUDED.result,
	subtitle_path = EXCLUDED.subtitle_path,
	model = EXCLUDED.model,
	language = EXCLUDED.language,
	prompt = EXCLUDED.prompt,
	subtitles = EXCLUDED.subtitles,
	duration = EXCLUDED.duration,
	chunk_count = EXCLUDED.chunk_count,
	summary = EXCLUDED.summary,
	error = EXCLUDED.error,
	completed_at = EXCLUDED.completed_at
	`

	_, err := s.db.Exec(query,
		job.JobID,
		job.Filename,
		job.FilePath,
		job.Status,
		job.Stage,
		job.Progress,
		job.Detail,
		job.Result,
		job.SubtitlePath,
		job.Model,
		job.Language,
		job.Prompt,
		job.Subtitles,
		job.Duration,
		job.ChunkCount,
		job.Summary,
		job.Error,
		job.CreatedAt,
		nullableTime(job),
	)

	if err != nil {
		return fmt.Errorf("保存到数据库失败: %w", err)
	}

	return nil
}

// nullableTime 未完成的任务 completed_at 存 NULL
func nullableTime(job *models.TranscriptionJob) any {
	if job.CompletedAt.IsZero() {
		return nil
	}
	return job.CompletedAt
}

const selectColumns = `
	SELECT job_id, filename, COALESCE(file_path, ''), status, COALESCE(stage, ''),
	progress, COALESCE(detail, ''), COALESCE(result, ''), COALESCE(subtitle_path, ''),
	COALESCE(model, ''), COALESCE(language, ''), COALESCE(prompt, ''), subtitles,
	duration, chunk_count, COALESCE(summary, ''), COALESCE(error, ''),
	created_at, completed_at
	FROM transcription_jobs
	`

// scanJob 从一行记录扫描出任务
func scanJob(row interface {
	Scan(dest ...any) error
}) (*models.TranscriptionJob, error) {
	var job models.TranscriptionJob
	var stage string
	var completedAt sql.NullTime

	err := row.Scan(
		&job.JobID,
		&job.Filename,
		&job.FilePath,
		&job.Status,
		&stage,
		&job.Progress,
		&job.Detail,
		&job.Result,
		&job.SubtitlePath,
		&job.Model,
		&job.Language,
		&job.Prompt,
		&job.Subtitles,
		&job.Duration,
		&job.ChunkCount,
		&job.Summary,
		&job.Error,
		&job.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Stage = models.Stage(stage)
	if completedAt.Valid {
		job.CompletedAt = completedAt.Time
	}

	return &job, nil
}

// Get 获取任务
func (s *PostgresJobStore) Get(jobID string) (*models.TranscriptionJob, error) {
	row := s.db.QueryRow(selectColumns+`WHERE job_id = $1`, jobID)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("任务不存在: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("查询数据库失败: %w", err)
	}

	return job, nil
}

// Update 更新任务
func (s *PostgresJobStore) Update(jobID string, updateFn func(*models.TranscriptionJob)) error {
	job, err := s.Get(jobID)
	if err != nil {
		return err
	}

	updateFn(job)

	return s.Save(job)
}

// List 列出任务（按创建时间倒序，最多 100 条）
func (s *PostgresJobStore) List() ([]*models.TranscriptionJob, error) {
	rows, err := s.db.Query(selectColumns + `ORDER BY created_at DESC LIMIT 100`)
	if err != nil {
		return nil, fmt.Errorf("查询数据库失败: %w", err)
	}
	defer rows.Close()

	jobs := make([]*models.TranscriptionJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// Delete 删除任务
func (s *PostgresJobStore) Delete(jobID string) error {
	result, err := s.db.Exec(`DELETE FROM transcription_jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("删除任务失败: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("获取删除结果失败: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("任务不存在: %s", jobID)
	}

	return nil
}

// Close 关闭数据库连接
func (s *PostgresJobStore) Close() error {
	return s.db.Close()
}
