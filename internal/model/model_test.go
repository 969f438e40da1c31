package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleKey(t *testing.T) {
	key := NewRuleKey("xoo", "x1")
	assert.Equal(t, RuleKey("xoo:x1"), key)
	assert.Equal(t, "xoo", key.Repository())
	assert.Equal(t, "x1", key.Key())

	_, err := ParseRuleKey("xoo")
	assert.Error(t, err)
	_, err = ParseRuleKey(":x1")
	assert.Error(t, err)
	parsed, err := ParseRuleKey("common-java:DuplicatedBlocks")
	require.NoError(t, err)
	assert.Equal(t, "common-java", parsed.Repository())
}

func TestParseParamType(t *testing.T) {
	pt := ParseParamType(`SINGLE_SELECT_LIST,values="a,b,c",multiple=true`)
	assert.Equal(t, ParamTypeSingleSelectList, pt.Type)
	assert.Equal(t, []string{"a", "b", "c"}, pt.Values)
	assert.True(t, pt.Multiple)

	assert.Equal(t, ParamType{Type: ParamTypeInteger}, ParseParamType("INTEGER"))
	assert.Equal(t, ParamType{Type: ParamTypeString}, ParseParamType(""))
}

func TestSeverity_IsValid(t *testing.T) {
	assert.True(t, SeverityBlocker.IsValid())
	assert.False(t, Severity("HUGE").IsValid())
	assert.False(t, Severity("").IsValid())
}

func TestChangeLog_FlatParams(t *testing.T) {
	change := &ActiveRuleChange{
		Type:        ChangeTypeActivated,
		ProfileKey:  "p1",
		RuleKey:     "xoo:x1",
		RuleID:      3,
		Severity:    SeverityBlocker,
		Inheritance: InheritanceNone,
		Params:      map[string]string{"max": "7"},
	}

	log := change.ToChangeLog("c1", UserActor("u1"), 1000)
	assert.Equal(t, `{"param_max":"7"}`, log.Data)
	require.NotNil(t, log.ActorID)
	assert.Equal(t, "u1", *log.ActorID)
	require.NotNil(t, log.Severity)
	assert.Equal(t, "BLOCKER", *log.Severity)
	assert.Equal(t, map[string]string{"max": "7"}, log.Params())

	deactivated := &ActiveRuleChange{Type: ChangeTypeDeactivated, ProfileKey: "p1", RuleKey: "xoo:x1"}
	log = deactivated.ToChangeLog("c2", SystemActor(), 1000)
	assert.Nil(t, log.ActorID)
	assert.Nil(t, log.Severity)
	assert.Empty(t, log.Params())
}

func TestProfileChanges(t *testing.T) {
	pc := ProfileChanges{}
	b := ProfileIdentity{Key: "k2", Name: "Sonar way", Language: "xoo"}
	a := ProfileIdentity{Key: "k1", Name: "Basic", Language: "xoo"}
	pc.Add(b, &ActiveRuleChange{}, &ActiveRuleChange{})
	pc.Add(a, &ActiveRuleChange{})

	assert.Equal(t, 3, pc.Len())
	assert.Equal(t, []ProfileIdentity{a, b}, pc.Profiles())
}

func TestEqualParams(t *testing.T) {
	assert.True(t, EqualParams(nil, map[string]string{}))
	assert.True(t, EqualParams(map[string]string{"a": "1"}, map[string]string{"a": "1"}))
	assert.False(t, EqualParams(map[string]string{"a": "1"}, map[string]string{"a": "2"}))
	assert.False(t, EqualParams(map[string]string{"a": "1"}, map[string]string{"b": "1"}))
}
