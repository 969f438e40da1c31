package activation

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
	"github.com/eidos-exchange/eidos/eidos-qprofile/pkg/errors"
)

// ValidateParam 按参数声明的类型校验取值
func ValidateParam(param *model.RuleParam, value string) error {
	pt := model.ParseParamType(param.Type)
	values := []string{value}
	if pt.Multiple {
		values = strings.Split(value, ",")
	}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if msg := checkValue(pt, v); msg != "" {
			return errors.ErrInvalidParam.WithMessagef(msg, v).WithDetail("param", param.Name)
		}
	}
	return nil
}

// checkValue 返回带 %s 占位的错误消息, 合法时为空
func checkValue(pt model.ParamType, value string) string {
	switch pt.Type {
	case model.ParamTypeInteger:
		if _, err := strconv.Atoi(value); err != nil {
			return "Value '%s' must be an integer."
		}
	case model.ParamTypeFloat:
		if _, err := decimal.NewFromString(value); err != nil {
			return "Value '%s' must be a floating point number."
		}
	case model.ParamTypeBoolean:
		if value != "true" && value != "false" {
			return "Value '%s' must be one of : true,false."
		}
	case model.ParamTypeSingleSelectList:
		if len(pt.Values) == 0 {
			return ""
		}
		for _, allowed := range pt.Values {
			if value == allowed {
				return ""
			}
		}
		return "Value '%s' must be one of : " + strings.Join(pt.Values, ",") + "."
	}
	return ""
}
