package model

// Profile 质量配置
type Profile struct {
	ID             int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Kee            string  `gorm:"type:varchar(64);uniqueIndex;not null" json:"key"`
	Name           string  `gorm:"type:varchar(100);uniqueIndex:idx_qprofiles_lang_name;not null" json:"name"`
	Language       string  `gorm:"type:varchar(20);uniqueIndex:idx_qprofiles_lang_name;not null" json:"language"`
	ParentKee      *string `gorm:"type:varchar(64);index" json:"parent_key,omitempty"`
	IsBuiltIn      bool    `gorm:"not null;default:false" json:"is_built_in"`
	RulesUpdatedAt int64   `gorm:"type:bigint;not null;default:0" json:"rules_updated_at"` // 最近一次规则变更时间
	UserUpdatedAt  *int64  `gorm:"type:bigint" json:"user_updated_at,omitempty"`            // 仅用户变更时更新
	CreatedAt      int64   `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"`
	UpdatedAt      int64   `gorm:"type:bigint;not null;autoUpdateTime:milli" json:"updated_at"`
}

// TableName 返回表名
func (Profile) TableName() string {
	return "qprofiles"
}

// HasParent 是否有父配置
func (p *Profile) HasParent() bool {
	return p.ParentKee != nil && *p.ParentKee != ""
}

// ParentKey 返回父配置 key, 无父配置时为空
func (p *Profile) ParentKey() string {
	if p.ParentKee == nil {
		return ""
	}
	return *p.ParentKee
}

// Actor 变更发起方, UserID 为空表示系统
type Actor struct {
	UserID string
}

// SystemActor 系统发起的变更
func SystemActor() Actor {
	return Actor{}
}

// UserActor 用户发起的变更
func UserActor(userID string) Actor {
	return Actor{UserID: userID}
}

// IsSystem 是否为系统变更
func (a Actor) IsSystem() bool {
	return a.UserID == ""
}
