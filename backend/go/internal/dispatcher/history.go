package dispatcher

import (
	"Friday/backend/go/internal/models"
	"sort"
	"time"
)

// Statistics 是执行历史的汇总。
type Statistics struct {
	TotalTasks     int               `json:"total_tasks"`
	SuccessTasks   int               `json:"success_tasks"`
	FailedTasks    int               `json:"failed_tasks"`
	SuccessRate    float64           `json:"success_rate"`
	TypeStatistics map[string]int    `json:"type_statistics"`
	TodayTasks     int               `json:"today_tasks"`
	AvailableTypes []models.TaskType `json:"available_task_types"`
}

// GetExecutionStatus 返回单次执行的快照。
func (d *Dispatcher) GetExecutionStatus(id string) (models.ExecutionRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.history[id]
	if !ok {
		return models.ExecutionRecord{}, false
	}
	return *rec, true
}

// GetUserTaskHistory 返回用户最近的执行记录，按开始时间倒序。limit<=0 时取 20。
func (d *Dispatcher) GetUserTaskHistory(userID string, limit int) []models.ExecutionRecord {
	if limit <= 0 {
		limit = 20
	}
	out := d.snapshot(userID)
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GetTaskStatistics 汇总执行历史。userID 为空时统计所有用户。
func (d *Dispatcher) GetTaskStatistics(userID string) Statistics {
	recs := d.snapshot(userID)
	today := d.now().Format("2006-01-02")

	stats := Statistics{
		TypeStatistics: make(map[string]int),
		AvailableTypes: d.registry.Types(),
	}
	for _, r := range recs {
		stats.TotalTasks++
		stats.TypeStatistics[string(r.TaskType)]++
		if r.StartTime.Format("2006-01-02") == today {
			stats.TodayTasks++
		}
		if r.Status != models.ExecutionCompleted || r.Success == nil {
			continue
		}
		if *r.Success {
			stats.SuccessTasks++
		} else {
			stats.FailedTasks++
		}
	}
	if stats.TotalTasks > 0 {
		stats.SuccessRate = float64(stats.SuccessTasks) / float64(stats.TotalTasks)
	}
	return stats
}

// CleanupOldHistory 删除开始时间早于 days 天前的记录，返回删除条数。
func (d *Dispatcher) CleanupOldHistory(days int) int {
	if days < 0 {
		days = 0
	}
	cutoff := d.now().Add(-time.Duration(days) * 24 * time.Hour)

	d.mu.Lock()
	defer d.mu.Unlock()
	removed := 0
	for id, rec := range d.history {
		if rec.StartTime.Before(cutoff) {
			delete(d.history, id)
			removed++
		}
	}
	if removed > 0 {
		d.log.WithField("removed", removed).Info("execution history pruned")
	}
	return removed
}

func (d *Dispatcher) snapshot(userID string) []models.ExecutionRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.ExecutionRecord, 0, len(d.history))
	for _, rec := range d.history {
		if userID == "" || rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	return out
}
