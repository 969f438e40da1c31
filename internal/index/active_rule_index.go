// Package index 激活规则的 Redis 索引, 供读副本查询
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
)

const (
	activeRulesKeyPrefix  = "qprofile:active_rules:"  // hash: rule_key -> Document
	ruleProfilesKeyPrefix = "qprofile:rule_profiles:" // set: profile_key
)

// Document 索引中的激活规则
type Document struct {
	RuleKey     model.RuleKey     `json:"rule_key"`
	RuleID      int64             `json:"rule_id"`
	Severity    model.Severity    `json:"severity"`
	Inheritance model.Inheritance `json:"inheritance"`
	Params      map[string]string `json:"params,omitempty"`
}

// ActiveRuleIndex 激活规则索引
type ActiveRuleIndex struct {
	client redis.UniversalClient
}

// NewActiveRuleIndex 创建激活规则索引
func NewActiveRuleIndex(client redis.UniversalClient) *ActiveRuleIndex {
	return &ActiveRuleIndex{client: client}
}

func activeRulesKey(profileKey string) string {
	return activeRulesKeyPrefix + profileKey
}

func ruleProfilesKey(ruleKey model.RuleKey) string {
	return ruleProfilesKeyPrefix + string(ruleKey)
}

// IndexChanges 按变更顺序更新索引
func (idx *ActiveRuleIndex) IndexChanges(ctx context.Context, changes []*model.ActiveRuleChange) error {
	if len(changes) == 0 {
		return nil
	}

	pipe := idx.client.TxPipeline()
	for _, change := range changes {
		switch change.Type {
		case model.ChangeTypeDeactivated:
			pipe.HDel(ctx, activeRulesKey(change.ProfileKey), string(change.RuleKey))
			pipe.SRem(ctx, ruleProfilesKey(change.RuleKey), change.ProfileKey)
		default:
			data, err := json.Marshal(&Document{
				RuleKey:     change.RuleKey,
				RuleID:      change.RuleID,
				Severity:    change.Severity,
				Inheritance: change.Inheritance,
				Params:      change.Params,
			})
			if err != nil {
				return err
			}
			pipe.HSet(ctx, activeRulesKey(change.ProfileKey), string(change.RuleKey), data)
			pipe.SAdd(ctx, ruleProfilesKey(change.RuleKey), change.ProfileKey)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// IndexProfile 用完整快照重建某配置的索引
func (idx *ActiveRuleIndex) IndexProfile(ctx context.Context, profileKey string, activeRules []*model.ActiveRule) error {
	if err := idx.DeleteByProfileKeys(ctx, []string{profileKey}); err != nil {
		return err
	}
	if len(activeRules) == 0 {
		return nil
	}

	pipe := idx.client.TxPipeline()
	for _, ar := range activeRules {
		data, err := json.Marshal(&Document{
			RuleKey:     ar.RuleKey,
			RuleID:      ar.RuleID,
			Severity:    ar.Severity,
			Inheritance: ar.Inheritance,
			Params:      ar.ParamMap(),
		})
		if err != nil {
			return err
		}
		pipe.HSet(ctx, activeRulesKey(profileKey), string(ar.RuleKey), data)
		pipe.SAdd(ctx, ruleProfilesKey(ar.RuleKey), profileKey)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// DeleteByProfileKeys 删除配置的全部索引
func (idx *ActiveRuleIndex) DeleteByProfileKeys(ctx context.Context, profileKeys []string) error {
	for _, profileKey := range profileKeys {
		ruleKeys, err := idx.client.HKeys(ctx, activeRulesKey(profileKey)).Result()
		if err != nil {
			return fmt.Errorf("list indexed rules of %s: %w", profileKey, err)
		}

		pipe := idx.client.TxPipeline()
		for _, ruleKey := range ruleKeys {
			pipe.SRem(ctx, ruleProfilesKey(model.RuleKey(ruleKey)), profileKey)
		}
		pipe.Del(ctx, activeRulesKey(profileKey))
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// GetActiveRules 查询配置的索引文档
func (idx *ActiveRuleIndex) GetActiveRules(ctx context.Context, profileKey string) (map[model.RuleKey]*Document, error) {
	values, err := idx.client.HGetAll(ctx, activeRulesKey(profileKey)).Result()
	if err != nil {
		return nil, err
	}

	docs := make(map[model.RuleKey]*Document, len(values))
	for ruleKey, value := range values {
		var doc Document
		if err := json.Unmarshal([]byte(value), &doc); err != nil {
			return nil, fmt.Errorf("decode indexed rule %s: %w", ruleKey, err)
		}
		docs[model.RuleKey(ruleKey)] = &doc
	}
	return docs, nil
}

// GetActiveRule 查询单条索引文档, 不存在时返回 nil, nil
func (idx *ActiveRuleIndex) GetActiveRule(ctx context.Context, profileKey string, ruleKey model.RuleKey) (*Document, error) {
	value, err := idx.client.HGet(ctx, activeRulesKey(profileKey), string(ruleKey)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(value, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ProfilesActivating 激活了该规则的配置, 按 key 排序
func (idx *ActiveRuleIndex) ProfilesActivating(ctx context.Context, ruleKey model.RuleKey) ([]string, error) {
	profiles, err := idx.client.SMembers(ctx, ruleProfilesKey(ruleKey)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(profiles)
	return profiles, nil
}

// CountActiveRules 统计配置的激活规则数
func (idx *ActiveRuleIndex) CountActiveRules(ctx context.Context, profileKey string) (int64, error) {
	return idx.client.HLen(ctx, activeRulesKey(profileKey)).Result()
}
