// Package builtin 内置质量配置同步
package builtin

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
)

// Definition 内置配置的声明
type Definition struct {
	Language string         `yaml:"language"`
	Name     string         `yaml:"name"`
	Rules    []DeclaredRule `yaml:"rules"`
}

// DeclaredRule 声明的规则, Severity 为空时使用规则默认值
type DeclaredRule struct {
	RuleKey  model.RuleKey     `yaml:"rule"`
	Severity model.Severity    `yaml:"severity"`
	Params   map[string]string `yaml:"params"`
}

// Identity 返回配置标识
func (d *Definition) Identity() string {
	return d.Language + "/" + d.Name
}

// LoadDefinitions 从 YAML 文件加载内置配置声明
func LoadDefinitions(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read built-in profiles: %w", err)
	}
	var file struct {
		Profiles []Definition `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse built-in profiles: %w", err)
	}
	return file.Profiles, nil
}
