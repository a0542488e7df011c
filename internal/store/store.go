// Package store persists the run journal: 每轮流水线结果与每次提交
// 报告都落库，便于事后复盘。本地视图不从这里恢复，交易所才是真源。
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradecore/internal/logger"
	"tradecore/internal/pipeline"
	"tradecore/internal/submit"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// RunRecord 是单轮流水线的落库记录。
type RunRecord struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	RunID      string         `gorm:"uniqueIndex;size:64" json:"run_id"`
	State      string         `gorm:"size:32;index" json:"state"`
	Posture    string         `gorm:"size:16" json:"posture"`
	FailStage  string         `gorm:"size:32" json:"fail_stage,omitempty"`
	FailKind   string         `gorm:"size:32" json:"fail_kind,omitempty"`
	FailDetail string         `json:"fail_detail,omitempty"`
	Picks      datatypes.JSON `json:"picks,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	CreatedAt  time.Time      `json:"created_at"`
}

// SubmissionRecord 是单次提交的落库记录，报告整体以 JSON 存档。
type SubmissionRecord struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Success     bool           `json:"success"`
	Symbols     string         `gorm:"size:256" json:"symbols"`
	Report      datatypes.JSON `json:"report"`
	SubmittedAt time.Time      `json:"submitted_at"`
	CreatedAt   time.Time      `json:"created_at"`
}

type Store struct {
	db *gorm.DB
}

// Open 打开（必要时创建）本地 sqlite 库并迁移表结构。
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("打开 sqlite 失败 (%s): %w", path, err)
	}
	if err := db.AutoMigrate(&RunRecord{}, &SubmissionRecord{}); err != nil {
		return nil, fmt.Errorf("迁移表结构失败: %w", err)
	}
	logger.Infof("store: 运行日志库已就绪 %s", path)
	return &Store{db: db}, nil
}

// SaveRun 落库一轮流水线结果。失败只记日志，不影响主流程。
func (s *Store) SaveRun(result pipeline.RunResult) {
	record := RunRecord{
		RunID:      result.RunID,
		State:      string(result.State),
		Posture:    string(result.Posture),
		FailStage:  result.FailStage,
		FailKind:   result.FailKind,
		FailDetail: result.FailDetail,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}
	if len(result.Picks) > 0 {
		if raw, err := json.Marshal(result.Picks); err == nil {
			record.Picks = raw
		}
	}
	if err := s.db.Create(&record).Error; err != nil {
		logger.Errorf("store: 保存 run %s 失败: %v", result.RunID, err)
	}
}

// SaveSubmission 落库一次提交报告。
func (s *Store) SaveSubmission(report submit.Report) {
	symbols := ""
	for i, it := range report.Intents {
		if i > 0 {
			symbols += ","
		}
		symbols += it.Symbol
	}
	record := SubmissionRecord{
		Success:     report.Result.Success,
		Symbols:     symbols,
		SubmittedAt: report.SubmittedAt,
	}
	if raw, err := json.Marshal(report); err == nil {
		record.Report = raw
	}
	if err := s.db.Create(&record).Error; err != nil {
		logger.Errorf("store: 保存提交记录失败: %v", err)
	}
}

// RecentRuns 按时间倒序返回最近 limit 轮记录。
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var records []RunRecord
	err := s.db.Order("id DESC").Limit(limit).Find(&records).Error
	return records, err
}

// RecentSubmissions 按时间倒序返回最近 limit 条提交记录。
func (s *Store) RecentSubmissions(limit int) ([]SubmissionRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var records []SubmissionRecord
	err := s.db.Order("id DESC").Limit(limit).Find(&records).Error
	return records, err
}
