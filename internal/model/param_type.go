package model

import (
	"strings"
)

// 参数类型
const (
	ParamTypeString           = "STRING"
	ParamTypeText             = "TEXT"
	ParamTypeInteger          = "INTEGER"
	ParamTypeFloat            = "FLOAT"
	ParamTypeBoolean          = "BOOLEAN"
	ParamTypeSingleSelectList = "SINGLE_SELECT_LIST"
)

// ParamType 解析后的参数类型
// 例: SINGLE_SELECT_LIST,values="a,b,c",multiple=true
type ParamType struct {
	Type     string
	Values   []string
	Multiple bool
}

// ParseParamType 解析参数类型声明
func ParseParamType(s string) ParamType {
	if s == "" {
		return ParamType{Type: ParamTypeString}
	}
	head, rest, _ := strings.Cut(s, ",")
	pt := ParamType{Type: strings.TrimSpace(head)}
	for rest != "" {
		var opt string
		opt, rest = nextOption(rest)
		name, value, ok := strings.Cut(opt, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"`)
		switch strings.TrimSpace(name) {
		case "values":
			for _, v := range strings.Split(value, ",") {
				if v = strings.TrimSpace(v); v != "" {
					pt.Values = append(pt.Values, v)
				}
			}
		case "multiple":
			pt.Multiple = value == "true"
		}
	}
	return pt
}

// nextOption 切分下一个选项, 引号内的逗号不作为分隔符
func nextOption(s string) (string, string) {
	quoted := false
	for i, c := range s {
		switch {
		case c == '"':
			quoted = !quoted
		case c == ',' && !quoted:
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}
