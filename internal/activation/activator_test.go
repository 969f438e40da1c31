package activation

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/repository"
	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/repository/repotest"
	"github.com/eidos-exchange/eidos/eidos-qprofile/pkg/errors"
)

const testNow int64 = 1700000000000

var user = model.UserActor("admin")

type fixture struct {
	t         *testing.T
	ctx       context.Context
	store     *repository.ActivationStore
	activator *Activator
}

func newFixture(t *testing.T) *fixture {
	store := repotest.NewStore(t)
	activator := NewActivator(store, store, store, store)
	activator.SetClock(func() int64 { return testNow })
	return &fixture{t: t, ctx: context.Background(), store: store, activator: activator}
}

func (f *fixture) rule(key model.RuleKey, opts ...repotest.RuleOption) *model.Rule {
	return repotest.CreateRule(f.t, f.store, key, "xoo", model.SeverityMajor, opts...)
}

func (f *fixture) profile(name string) *model.Profile {
	return repotest.CreateProfile(f.t, f.store, name, "xoo", nil)
}

// child 通过 SetParent 挂到父配置下, 与真实流程一致
func (f *fixture) child(name string, parent *model.Profile) *model.Profile {
	p := f.profile(name)
	_, err := f.activator.SetParent(f.ctx, p.Kee, parent.Kee, user)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) activate(profile *model.Profile, req RuleActivation) []*model.ActiveRuleChange {
	changes, err := f.activator.Activate(f.ctx, profile.Kee, req, user)
	require.NoError(f.t, err)
	return changes
}

func (f *fixture) assertActiveRule(profile *model.Profile, key model.RuleKey, severity model.Severity, inheritance model.Inheritance, params map[string]string) {
	f.t.Helper()
	ar, err := f.store.GetActiveRule(f.ctx, profile.Kee, key)
	require.NoError(f.t, err)
	require.NotNil(f.t, ar, "rule %s not active on %s", key, profile.Name)
	assert.Equal(f.t, severity, ar.Severity)
	assert.Equal(f.t, inheritance, ar.Inheritance)
	assert.Equal(f.t, params, ar.ParamMap())
}

func (f *fixture) assertInactive(profile *model.Profile, key model.RuleKey) {
	f.t.Helper()
	ar, err := f.store.GetActiveRule(f.ctx, profile.Kee, key)
	require.NoError(f.t, err)
	assert.Nil(f.t, ar)
}

func (f *fixture) changeLogCount(profile *model.Profile) int64 {
	_, total, err := f.store.Changes.ListByProfile(f.ctx, profile.Kee, nil, repository.NewPagination(1, 1))
	require.NoError(f.t, err)
	return total
}

func changeKeys(changes []*model.ActiveRuleChange) []string {
	keys := make([]string, 0, len(changes))
	for _, c := range changes {
		keys = append(keys, string(c.Type)+":"+c.ProfileKey)
	}
	return keys
}

func TestActivate_FirstActivationUsesDefaults(t *testing.T) {
	f := newFixture(t)
	rule := f.rule("xoo:x1", repotest.WithParam("max", model.ParamTypeInteger, repotest.StrPtr("10")))
	p1 := f.profile("p1")

	changes := f.activate(p1, RuleActivation{RuleKey: rule.RuleKey})

	require.Len(t, changes, 1)
	assert.Equal(t, model.ChangeTypeActivated, changes[0].Type)
	assert.Equal(t, model.SeverityMajor, changes[0].Severity)
	assert.Equal(t, model.InheritanceNone, changes[0].Inheritance)
	assert.Equal(t, rule.ID, changes[0].RuleID)
	f.assertActiveRule(p1, rule.RuleKey, model.SeverityMajor, model.InheritanceNone, map[string]string{"max": "10"})

	profile, err := f.store.GetProfile(f.ctx, p1.Kee)
	require.NoError(t, err)
	assert.Equal(t, testNow, profile.RulesUpdatedAt)
	require.NotNil(t, profile.UserUpdatedAt)
	assert.Equal(t, testNow, *profile.UserUpdatedAt)
	assert.Equal(t, int64(1), f.changeLogCount(p1))
}

func TestActivate_SystemActorLeavesUserTimestamp(t *testing.T) {
	f := newFixture(t)
	rule := f.rule("xoo:x1")
	p1 := f.profile("p1")

	_, err := f.activator.Activate(f.ctx, p1.Kee, RuleActivation{RuleKey: rule.RuleKey}, model.SystemActor())
	require.NoError(t, err)

	profile, err := f.store.GetProfile(f.ctx, p1.Kee)
	require.NoError(t, err)
	assert.Equal(t, testNow, profile.RulesUpdatedAt)
	assert.Nil(t, profile.UserUpdatedAt)
}

func TestActivate_Idempotent(t *testing.T) {
	f := newFixture(t)
	rule := f.rule("xoo:x1", repotest.WithParam("max", model.ParamTypeInteger, repotest.StrPtr("10")))
	p1 := f.profile("p1")
	f.child("p2", p1)

	req := RuleActivation{RuleKey: rule.RuleKey, Severity: model.SeverityBlocker, Params: map[string]string{"max": "7"}}
	assert.Len(t, f.activate(p1, req), 2)
	assert.Empty(t, f.activate(p1, req))
	assert.Equal(t, int64(1), f.changeLogCount(p1))
}

func TestActivate_InheritanceScenario(t *testing.T) {
	f := newFixture(t)
	x1 := f.rule("xoo:x1", repotest.WithParam("max", model.ParamTypeInteger, repotest.StrPtr("10")))
	p1 := f.profile("p1")

	f.activate(p1, RuleActivation{RuleKey: x1.RuleKey, Severity: model.SeverityBlocker, Params: map[string]string{"max": "7"}})
	f.assertActiveRule(p1, x1.RuleKey, model.SeverityBlocker, model.InheritanceNone, map[string]string{"max": "7"})

	// 子配置创建后继承父配置
	p2 := f.child("p2", p1)
	f.assertActiveRule(p2, x1.RuleKey, model.SeverityBlocker, model.InheritanceInherited, map[string]string{"max": "7"})

	changes := f.activate(p1, RuleActivation{RuleKey: x1.RuleKey, Severity: model.SeverityInfo})
	assert.Equal(t, []string{"UPDATED:" + p1.Kee, "UPDATED:" + p2.Kee}, changeKeys(changes))
	f.assertActiveRule(p2, x1.RuleKey, model.SeverityInfo, model.InheritanceInherited, map[string]string{"max": "7"})

	changes = f.activate(p2, RuleActivation{RuleKey: x1.RuleKey, Severity: model.SeverityCritical})
	require.Len(t, changes, 1)
	assert.Equal(t, model.InheritanceOverrides, changes[0].Inheritance)
	f.assertActiveRule(p2, x1.RuleKey, model.SeverityCritical, model.InheritanceOverrides, map[string]string{"max": "7"})

	changes = f.activate(p1, RuleActivation{RuleKey: x1.RuleKey, Severity: model.SeverityMajor})
	assert.Equal(t, []string{"UPDATED:" + p1.Kee}, changeKeys(changes))
	f.assertActiveRule(p2, x1.RuleKey, model.SeverityCritical, model.InheritanceOverrides, map[string]string{"max": "7"})
}

func TestActivate_OverrideIsPropagationBoundary(t *testing.T) {
	f := newFixture(t)
	x1 := f.rule("xoo:x1")
	root := f.profile("root")
	child := f.child("child", root)
	grandchild := f.child("grandchild", child)

	changes := f.activate(root, RuleActivation{RuleKey: x1.RuleKey, Severity: model.SeverityBlocker})
	assert.Equal(t, []string{"ACTIVATED:" + root.Kee, "ACTIVATED:" + child.Kee, "ACTIVATED:" + grandchild.Kee}, changeKeys(changes))

	changes = f.activate(child, RuleActivation{RuleKey: x1.RuleKey, Severity: model.SeverityCritical})
	assert.Equal(t, []string{"UPDATED:" + child.Kee, "UPDATED:" + grandchild.Kee}, changeKeys(changes))
	f.assertActiveRule(grandchild, x1.RuleKey, model.SeverityCritical, model.InheritanceInherited, map[string]string{})

	changes = f.activate(root, RuleActivation{RuleKey: x1.RuleKey, Severity: model.SeverityInfo})
	assert.Equal(t, []string{"UPDATED:" + root.Kee}, changeKeys(changes))
	f.assertActiveRule(child, x1.RuleKey, model.SeverityCritical, model.InheritanceOverrides, map[string]string{})
	f.assertActiveRule(grandchild, x1.RuleKey, model.SeverityCritical, model.InheritanceInherited, map[string]string{})
}

func TestActivate_BreadthFirstOrder(t *testing.T) {
	f := newFixture(t)
	x1 := f.rule("xoo:x1")
	root := f.profile("root")
	a := f.child("a", root)
	b := f.child("b", root)
	a1 := f.child("a1", a)

	changes := f.activate(root, RuleActivation{RuleKey: x1.RuleKey})

	assert.Equal(t, []string{
		"ACTIVATED:" + root.Kee,
		"ACTIVATED:" + a.Kee,
		"ACTIVATED:" + b.Kee,
		"ACTIVATED:" + a1.Kee,
	}, changeKeys(changes))
}

func TestActivate_NoOpStillReachesDescendants(t *testing.T) {
	f := newFixture(t)
	x1 := f.rule("xoo:x1")
	root := f.profile("root")
	child := f.child("child", root)
	repotest.InsertActiveRule(t, f.store, root, x1, model.SeverityMajor, model.InheritanceNone, nil)

	changes := f.activate(root, RuleActivation{RuleKey: x1.RuleKey})

	assert.Equal(t, []string{"ACTIVATED:" + child.Kee}, changeKeys(changes))
	f.assertActiveRule(child, x1.RuleKey, model.SeverityMajor, model.InheritanceInherited, map[string]string{})
}

func TestActivate_Preconditions(t *testing.T) {
	f := newFixture(t)
	removed := f.rule("xoo:removed", repotest.WithStatus(model.RuleStatusRemoved))
	template := f.rule("xoo:template", repotest.AsTemplate())
	jsRule := repotest.CreateRule(t, f.store, "js:j1", "js", model.SeverityMajor)
	x1 := f.rule("xoo:x1")
	p1 := f.profile("p1")
	builtIn := repotest.CreateBuiltInProfile(t, f.store, "Sonar way", "xoo")

	tests := []struct {
		name    string
		profile string
		rule    model.RuleKey
		want    *errors.Error
	}{
		{"unknown rule", p1.Kee, "xoo:missing", errors.ErrRuleNotFound},
		{"unknown profile", "missing", x1.RuleKey, errors.ErrProfileNotFound},
		{"removed rule", p1.Kee, removed.RuleKey, errors.ErrRuleRemoved},
		{"template rule", p1.Kee, template.RuleKey, errors.ErrRuleTemplate},
		{"language mismatch", p1.Kee, jsRule.RuleKey, errors.ErrLanguageMismatch},
		{"built-in profile", builtIn.Kee, x1.RuleKey, errors.ErrBuiltInReadOnly},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes, err := f.activator.Activate(f.ctx, tt.profile, RuleActivation{RuleKey: tt.rule}, user)
			assert.Nil(t, changes)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.True(t, errors.IsBusiness(err))
		})
	}
	assert.Zero(t, f.changeLogCount(p1))
}

func TestActivate_InvalidParamAbortsWithoutWrites(t *testing.T) {
	f := newFixture(t)
	x1 := f.rule("xoo:x1", repotest.WithParam("max", model.ParamTypeInteger, repotest.StrPtr("10")))
	p1 := f.profile("p1")
	f.child("p2", p1)

	_, err := f.activator.Activate(f.ctx, p1.Kee, RuleActivation{RuleKey: x1.RuleKey, Params: map[string]string{"max": "foo"}}, user)

	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), "Value 'foo' must be an integer.")
	f.assertInactive(p1, x1.RuleKey)
	assert.Zero(t, f.changeLogCount(p1))
}

func TestActivate_IndependentChildKeepsItsValues(t *testing.T) {
	f := newFixture(t)
	x1 := f.rule("xoo:x1")
	x2 := f.rule("xoo:x2")
	p1 := f.profile("p1")
	p2 := f.profile("p2")
	f.activate(p1, RuleActivation{RuleKey: x1.RuleKey, Severity: model.SeverityBlocker})
	f.activate(p1, RuleActivation{RuleKey: x2.RuleKey, Severity: model.SeverityBlocker})
	f.activate(p2, RuleActivation{RuleKey: x1.RuleKey, Severity: model.SeverityCritical})
	f.activate(p2, RuleActivation{RuleKey: x2.RuleKey, Severity: model.SeverityBlocker})

	changes, err := f.activator.SetParent(f.ctx, p2.Kee, p1.Kee, user)
	require.NoError(t, err)

	require.Len(t, changes, 2)
	f.assertActiveRule(p2, x1.RuleKey, model.SeverityCritical, model.InheritanceOverrides, map[string]string{})
	f.assertActiveRule(p2, x2.RuleKey, model.SeverityBlocker, model.InheritanceInherited, map[string]string{})
}

func TestDeactivate_CascadesThroughDescendants(t *testing.T) {
	f := newFixture(t)
	x1 := f.rule("xoo:x1")
	root := f.profile("root")
	child := f.child("child", root)
	grandchild := f.child("grandchild", child)
	f.activate(root, RuleActivation{RuleKey: x1.RuleKey})

	changes, err := f.activator.Deactivate(f.ctx, root.Kee, x1.RuleKey, user)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"DEACTIVATED:" + root.Kee,
		"DEACTIVATED:" + child.Kee,
		"DEACTIVATED:" + grandchild.Kee,
	}, changeKeys(changes))
	assert.Empty(t, changes[0].Severity)
	f.assertInactive(root, x1.RuleKey)
	f.assertInactive(child, x1.RuleKey)
	f.assertInactive(grandchild, x1.RuleKey)
}

func TestDeactivate_CascadesThroughOverrides(t *testing.T) {
	f := newFixture(t)
	x1 := f.rule("xoo:x1")
	root := f.profile("root")
	child := f.child("child", root)
	f.activate(root, RuleActivation{RuleKey: x1.RuleKey})
	f.activate(child, RuleActivation{RuleKey: x1.RuleKey, Severity: model.SeverityInfo})

	changes, err := f.activator.Deactivate(f.ctx, root.Kee, x1.RuleKey, user)
	require.NoError(t, err)
	assert.Len(t, changes, 2)
	f.assertInactive(child, x1.RuleKey)
}

func TestDeactivate_InheritedRuleRejected(t *testing.T) {
	f := newFixture(t)
	x1 := f.rule("xoo:x1")
	root := f.profile("root")
	child := f.child("child", root)
	f.activate(root, RuleActivation{RuleKey: x1.RuleKey})
	before := f.changeLogCount(child)

	changes, err := f.activator.Deactivate(f.ctx, child.Kee, x1.RuleKey, user)

	assert.Nil(t, changes)
	assert.True(t, errors.Is(err, errors.ErrInheritedRule))
	assert.True(t, errors.IsValidation(err))
	f.assertActiveRule(child, x1.RuleKey, model.SeverityMajor, model.InheritanceInherited, map[string]string{})
	assert.Equal(t, before, f.changeLogCount(child))
}

func TestDeactivate_NotActiveIsNoOp(t *testing.T) {
	f := newFixture(t)
	x1 := f.rule("xoo:x1")
	p1 := f.profile("p1")

	changes, err := f.activator.Deactivate(f.ctx, p1.Kee, x1.RuleKey, user)
	assert.NoError(t, err)
	assert.Empty(t, changes)

	_, err = f.activator.Deactivate(f.ctx, p1.Kee, "xoo:missing", user)
	assert.True(t, errors.IsNotFound(err))
}

func TestDeactivate_RemovedRuleAllowed(t *testing.T) {
	f := newFixture(t)
	x1 := f.rule("xoo:x1")
	p1 := f.profile("p1")
	f.activate(p1, RuleActivation{RuleKey: x1.RuleKey})
	require.NoError(t, f.store.Rules.UpdateStatus(f.ctx, x1.RuleKey, model.RuleStatusRemoved))

	changes, err := f.activator.Deactivate(f.ctx, p1.Kee, x1.RuleKey, user)
	require.NoError(t, err)
	assert.Len(t, changes, 1)
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	x1 := f.rule("xoo:x1",
		repotest.WithParam("max", model.ParamTypeInteger, repotest.StrPtr("10")),
		repotest.WithParam("format", model.ParamTypeString, nil),
	)
	root := f.profile("root")
	f.activate(root, RuleActivation{RuleKey: x1.RuleKey, Severity: model.SeverityBlocker, Params: map[string]string{"max": "7", "format": "x"}})

	t.Run("root reverts to rule defaults", func(t *testing.T) {
		changes, err := f.activator.Reset(f.ctx, root.Kee, x1.RuleKey, user)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, model.ChangeTypeUpdated, changes[0].Type)
		f.assertActiveRule(root, x1.RuleKey, model.SeverityMajor, model.InheritanceNone, map[string]string{"max": "10"})
	})

	t.Run("overriding child becomes inherited", func(t *testing.T) {
		child := f.child("child", root)
		f.activate(child, RuleActivation{RuleKey: x1.RuleKey, Severity: model.SeverityCritical, Params: map[string]string{"max": "3"}})
		f.assertActiveRule(child, x1.RuleKey, model.SeverityCritical, model.InheritanceOverrides, map[string]string{"max": "3"})

		_, err := f.activator.Reset(f.ctx, child.Kee, x1.RuleKey, user)
		require.NoError(t, err)
		f.assertActiveRule(child, x1.RuleKey, model.SeverityMajor, model.InheritanceInherited, map[string]string{"max": "10"})
	})

	t.Run("inactive rule is ignored", func(t *testing.T) {
		other := f.profile("other")
		changes, err := f.activator.Reset(f.ctx, other.Kee, x1.RuleKey, user)
		require.NoError(t, err)
		assert.Empty(t, changes)
		f.assertInactive(other, x1.RuleKey)
	})
}

type mockRuleSource struct {
	mock.Mock
}

func (m *mockRuleSource) FindRules(ctx context.Context, query model.RuleQuery, page, pageSize int) ([]*model.Rule, error) {
	args := m.Called(ctx, query, page, pageSize)
	rules, _ := args.Get(0).([]*model.Rule)
	return rules, args.Error(1)
}

func TestBulkActivate_CountsFailures(t *testing.T) {
	f := newFixture(t)
	f.activator.SetBulkPageSize(2)
	f.rule("xoo:x1")
	f.rule("xoo:x2")
	repotest.CreateRule(t, f.store, "js:j1", "js", model.SeverityMajor)
	p1 := f.profile("p1")

	result, err := f.activator.BulkActivate(f.ctx, p1.Kee, model.RuleQuery{}, model.SeverityCritical, user)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.Changes, 2)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, model.RuleKey("js:j1"), result.Errors[0].RuleKey)
	assert.True(t, errors.Is(result.Errors[0].Err, errors.ErrLanguageMismatch))
	f.assertActiveRule(p1, "xoo:x1", model.SeverityCritical, model.InheritanceNone, map[string]string{})
	f.assertActiveRule(p1, "xoo:x2", model.SeverityCritical, model.InheritanceNone, map[string]string{})
}

func TestBulkActivate_PageSizeAboveStoreLimit(t *testing.T) {
	f := newFixture(t)
	f.activator.SetBulkPageSize(200)
	for i := 0; i < 150; i++ {
		f.rule(model.RuleKey(fmt.Sprintf("xoo:x%03d", i)))
	}
	p1 := f.profile("p1")

	result, err := f.activator.BulkActivate(f.ctx, p1.Kee, model.RuleQuery{}, "", user)
	require.NoError(t, err)

	assert.Equal(t, 150, result.Succeeded)
	assert.Zero(t, result.Failed)
	assert.Len(t, result.Changes, 150)
	f.assertActiveRule(p1, "xoo:x149", model.SeverityMajor, model.InheritanceNone, map[string]string{})
	assert.Equal(t, int64(150), f.changeLogCount(p1))
}

func TestBulkActivate_InvalidSeverity(t *testing.T) {
	f := newFixture(t)
	p1 := f.profile("p1")

	_, err := f.activator.BulkActivate(f.ctx, p1.Kee, model.RuleQuery{}, "HUGE", user)
	assert.True(t, errors.Is(err, errors.ErrInvalidSeverity))
}

func TestBulkDeactivate_SkipsInheritedRules(t *testing.T) {
	f := newFixture(t)
	x1 := f.rule("xoo:x1")
	x2 := f.rule("xoo:x2")
	f.rule("xoo:x3")
	root := f.profile("root")
	child := f.child("child", root)
	f.activate(root, RuleActivation{RuleKey: x1.RuleKey})
	f.activate(root, RuleActivation{RuleKey: x2.RuleKey})
	f.activate(child, RuleActivation{RuleKey: x2.RuleKey, Severity: model.SeverityInfo})

	result, err := f.activator.BulkDeactivate(f.ctx, child.Kee, model.RuleQuery{Repository: "xoo"}, user)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"DEACTIVATED:" + child.Kee}, changeKeys(result.Changes))
	f.assertActiveRule(child, x1.RuleKey, model.SeverityMajor, model.InheritanceInherited, map[string]string{})
	f.assertInactive(child, x2.RuleKey)
}

func TestBulkActivate_StorageErrorAbortsBatch(t *testing.T) {
	f := newFixture(t)
	x1 := f.rule("xoo:x1")
	p1 := f.profile("p1")

	source := new(mockRuleSource)
	source.On("FindRules", mock.Anything, model.RuleQuery{}, 1, 1).Return([]*model.Rule{x1}, nil)
	source.On("FindRules", mock.Anything, model.RuleQuery{}, 2, 1).Return(nil, stderrors.New("search unavailable"))

	activator := NewActivator(f.store, f.store, f.store, source)
	activator.SetBulkPageSize(1)
	result, err := activator.BulkActivate(f.ctx, p1.Kee, model.RuleQuery{}, "", user)

	assert.EqualError(t, err, "search unavailable")
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Succeeded)
	f.assertActiveRule(p1, x1.RuleKey, model.SeverityMajor, model.InheritanceNone, map[string]string{})
	source.AssertExpectations(t)
}

func TestPropagate_FromBuiltInProfile(t *testing.T) {
	f := newFixture(t)
	x1 := f.rule("xoo:x1")
	x2 := f.rule("xoo:x2")
	builtIn := repotest.CreateBuiltInProfile(t, f.store, "Sonar way", "xoo")
	repotest.InsertActiveRule(t, f.store, builtIn, x1, model.SeverityMajor, model.InheritanceNone, nil)
	repotest.InsertActiveRule(t, f.store, builtIn, x2, model.SeverityMajor, model.InheritanceNone, nil)
	child := f.child("child", builtIn)
	f.assertActiveRule(child, x1.RuleKey, model.SeverityMajor, model.InheritanceInherited, map[string]string{})

	// 内置配置的行由同步器直接修改
	x1Row, err := f.store.GetActiveRule(f.ctx, builtIn.Kee, x1.RuleKey)
	require.NoError(t, err)
	x1Row.Severity = model.SeverityBlocker
	require.NoError(t, f.store.UpsertActiveRule(f.ctx, x1Row))
	require.NoError(t, f.store.DeleteActiveRule(f.ctx, builtIn.Kee, x2.RuleKey))

	changes, err := f.activator.Propagate(f.ctx, builtIn.Kee, x1.RuleKey, model.SystemActor())
	require.NoError(t, err)
	assert.Equal(t, []string{"UPDATED:" + child.Kee}, changeKeys(changes))
	f.assertActiveRule(child, x1.RuleKey, model.SeverityBlocker, model.InheritanceInherited, map[string]string{})

	changes, err = f.activator.Propagate(f.ctx, builtIn.Kee, x2.RuleKey, model.SystemActor())
	require.NoError(t, err)
	assert.Equal(t, []string{"DEACTIVATED:" + child.Kee}, changeKeys(changes))
	f.assertInactive(child, x2.RuleKey)
}
