package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"volume-sentry/internal/detector"
	"volume-sentry/internal/store"
)

// Service 负责持久化监控事件。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService 初始化监控服务，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("monitor: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     store.DB(),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS monitor_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_monitor_events_type ON monitor_events(event_type);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("monitor: 初始化表失败: %w", err)
	}
	return nil
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("monitor: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO monitor_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		string(event.Type), string(payload), event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入事件失败: %w", err)
	}

	return nil
}

// RecordWindowRefresh 记录行情窗口刷新。
func (s *Service) RecordWindowRefresh(ctx context.Context, payload WindowRefreshPayload) {
	if err := s.Record(ctx, Event{
		Type:      EventWindowRefresh,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); err != nil {
		s.logger.Warn("记录行情事件失败", zap.Error(err))
	}
}

// RecordSignal 记录检测到的信号。
func (s *Service) RecordSignal(ctx context.Context, signal detector.Signal, acted bool) {
	if err := s.Record(ctx, Event{
		Type:      EventSignal,
		Timestamp: time.Now().UTC(),
		Payload:   SignalPayload{Signal: signal, Acted: acted},
	}); err != nil {
		s.logger.Warn("记录信号事件失败", zap.Error(err))
	}
}

// RecordTrade 记录交易生命周期结果。
func (s *Service) RecordTrade(ctx context.Context, payload TradePayload) {
	if err := s.Record(ctx, Event{
		Type:      EventTrade,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); err != nil {
		s.logger.Warn("记录交易事件失败", zap.Error(err))
	}
}

// RecordError 记录异常事件。
func (s *Service) RecordError(ctx context.Context, message string, cause error, extra map[string]interface{}) {
	payload := ErrorPayload{
		Message: message,
		Context: extra,
	}
	if cause != nil {
		payload.Error = cause.Error()
	}

	if err := s.Record(ctx, Event{
		Type:      EventError,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); err != nil {
		s.logger.Warn("记录异常事件失败", zap.Error(err))
	}
}

// ListEvents 按时间倒序返回监控事件，eventType 为空时不过滤。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = 200
	}

	query := `SELECT id, event_type, payload, created_at FROM monitor_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询事件失败: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	events := make([]StoredEvent, 0, limit)
	for rows.Next() {
		var (
			event     StoredEvent
			eventKind string
			createdAt string
		)
		if err := rows.Scan(&event.ID, &eventKind, &event.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("monitor: 读取事件失败: %w", err)
		}
		event.Type = EventType(eventKind)
		if ts, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
			event.Timestamp = ts
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 遍历事件失败: %w", err)
	}

	return events, nil
}
