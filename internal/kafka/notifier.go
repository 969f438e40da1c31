// Package kafka 内置配置变更通知
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
	"github.com/eidos-exchange/eidos/eidos-qprofile/pkg/logger"
)

// TopicBuiltInChanges 内置配置变更摘要
const TopicBuiltInChanges = "qprofile-builtin-changes"

// ProfileDigest 单个配置的变更摘要
type ProfileDigest struct {
	ProfileKey   string `json:"profile_key"`
	ProfileName  string `json:"profile_name"`
	Language     string `json:"language"`
	NewRules     int    `json:"new_rules"`
	UpdatedRules int    `json:"updated_rules"`
	RemovedRules int    `json:"removed_rules"`
	StartDate    int64  `json:"start_date"`
	EndDate      int64  `json:"end_date"`
}

// Config 生产者配置
type Config struct {
	Brokers  []string
	ClientID string
	Topic    string
	Enabled  bool
}

// NewSyncProducer 创建同步生产者
func NewSyncProducer(cfg *Config) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.ClientID = cfg.ClientID

	return sarama.NewSyncProducer(cfg.Brokers, config)
}

// ChangeNotifier 内置配置变更通知器
type ChangeNotifier struct {
	producer sarama.SyncProducer
	topic    string
	enabled  bool
}

// NewChangeNotifier 创建通知器, producer 为 nil 时不发送
func NewChangeNotifier(producer sarama.SyncProducer, topic string, enabled bool) *ChangeNotifier {
	if topic == "" {
		topic = TopicBuiltInChanges
	}
	return &ChangeNotifier{
		producer: producer,
		topic:    topic,
		enabled:  enabled && producer != nil,
	}
}

// Enabled 是否启用
func (n *ChangeNotifier) Enabled() bool {
	return n.enabled
}

// Digest 统计每个配置新增/更新/删除的规则数
func Digest(changes model.ProfileChanges, start, end int64) []*ProfileDigest {
	digests := make([]*ProfileDigest, 0, len(changes))
	for _, profile := range changes.Profiles() {
		d := &ProfileDigest{
			ProfileKey:  profile.Key,
			ProfileName: profile.Name,
			Language:    profile.Language,
			StartDate:   start,
			EndDate:     end,
		}
		for _, change := range changes[profile] {
			switch change.Type {
			case model.ChangeTypeActivated:
				d.NewRules++
			case model.ChangeTypeUpdated:
				d.UpdatedRules++
			case model.ChangeTypeDeactivated:
				d.RemovedRules++
			}
		}
		digests = append(digests, d)
	}
	return digests
}

// NotifyBuiltInChanges 每个配置发送一条摘要, 变更为空或未启用时不发送
func (n *ChangeNotifier) NotifyBuiltInChanges(ctx context.Context, changes model.ProfileChanges, start, end int64) error {
	if !n.enabled || changes.Len() == 0 {
		return nil
	}

	digests := Digest(changes, start, end)
	msgs := make([]*sarama.ProducerMessage, 0, len(digests))
	for _, d := range digests {
		data, err := json.Marshal(d)
		if err != nil {
			return err
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: n.topic,
			Key:   sarama.StringEncoder(d.ProfileKey),
			Value: sarama.ByteEncoder(data),
		})
	}

	if err := n.producer.SendMessages(msgs); err != nil {
		logger.Error("failed to send built-in change digest",
			zap.Int("profiles", len(msgs)),
			zap.Error(err),
		)
		return fmt.Errorf("send built-in change digest: %w", err)
	}

	logger.Debug("built-in change digest sent", zap.Int("profiles", len(msgs)))
	return nil
}

// Close 关闭生产者
func (n *ChangeNotifier) Close() error {
	if n.producer == nil {
		return nil
	}
	return n.producer.Close()
}
