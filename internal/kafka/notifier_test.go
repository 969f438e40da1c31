package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eidos-exchange/eidos/eidos-qprofile/internal/model"
)

func sampleChanges() model.ProfileChanges {
	sonarWay := model.ProfileIdentity{Key: "k1", Name: "Sonar way", Language: "xoo"}
	basic := model.ProfileIdentity{Key: "k2", Name: "Basic", Language: "xoo"}
	changes := model.ProfileChanges{}
	changes.Add(sonarWay,
		&model.ActiveRuleChange{Type: model.ChangeTypeActivated},
		&model.ActiveRuleChange{Type: model.ChangeTypeActivated},
		&model.ActiveRuleChange{Type: model.ChangeTypeUpdated},
		&model.ActiveRuleChange{Type: model.ChangeTypeDeactivated},
	)
	changes.Add(basic, &model.ActiveRuleChange{Type: model.ChangeTypeDeactivated})
	return changes
}

func TestDigest(t *testing.T) {
	digests := Digest(sampleChanges(), 100, 200)

	require.Len(t, digests, 2)
	assert.Equal(t, "Basic", digests[0].ProfileName)
	assert.Equal(t, 1, digests[0].RemovedRules)
	assert.Equal(t, &ProfileDigest{
		ProfileKey:   "k1",
		ProfileName:  "Sonar way",
		Language:     "xoo",
		NewRules:     2,
		UpdatedRules: 1,
		RemovedRules: 1,
		StartDate:    100,
		EndDate:      200,
	}, digests[1])
}

func TestChangeNotifier_SendsOneMessagePerProfile(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	var sent []*ProfileDigest
	checker := func(val []byte) error {
		var d ProfileDigest
		if err := json.Unmarshal(val, &d); err != nil {
			return err
		}
		sent = append(sent, &d)
		return nil
	}
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(checker)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(checker)

	notifier := NewChangeNotifier(producer, "", true)
	require.NoError(t, notifier.NotifyBuiltInChanges(context.Background(), sampleChanges(), 100, 200))

	require.Len(t, sent, 2)
	assert.Equal(t, "k2", sent[0].ProfileKey)
	assert.Equal(t, "k1", sent[1].ProfileKey)
	assert.Equal(t, 2, sent[1].NewRules)
	require.NoError(t, notifier.Close())
}

func TestChangeNotifier_SkipsEmptyOrDisabled(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)

	disabled := NewChangeNotifier(producer, TopicBuiltInChanges, false)
	assert.False(t, disabled.Enabled())
	assert.NoError(t, disabled.NotifyBuiltInChanges(context.Background(), sampleChanges(), 1, 2))

	enabled := NewChangeNotifier(producer, TopicBuiltInChanges, true)
	assert.NoError(t, enabled.NotifyBuiltInChanges(context.Background(), model.ProfileChanges{}, 1, 2))

	noProducer := NewChangeNotifier(nil, "", true)
	assert.False(t, noProducer.Enabled())
	assert.NoError(t, noProducer.Close())

	require.NoError(t, producer.Close())
}

func TestChangeNotifier_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	producer.ExpectSendMessageAndFail(errors.New("broker down"))

	notifier := NewChangeNotifier(producer, "", true)
	changes := model.ProfileChanges{}
	changes.Add(model.ProfileIdentity{Key: "k1", Name: "Sonar way"}, &model.ActiveRuleChange{Type: model.ChangeTypeActivated})

	err := notifier.NotifyBuiltInChanges(context.Background(), changes, 1, 2)
	assert.ErrorContains(t, err, "send built-in change digest")
	require.NoError(t, producer.Close())
}
