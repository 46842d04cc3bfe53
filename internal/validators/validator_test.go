package validators

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/evalops/deployverify/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestRegistry_For(t *testing.T) {
	registry := DefaultRegistry(testLogger())

	t.Run("untagged case gets always-run validators only", func(t *testing.T) {
		vs := registry.For(&models.TestCase{})
		names := make([]string, 0, len(vs))
		for _, v := range vs {
			names = append(names, v.Name())
		}
		require.ElementsMatch(t, []string{models.CheckReasoningOnly, models.CheckTriggerSimilarity}, names)
	})

	t.Run("tags add validators", func(t *testing.T) {
		vs := registry.For(&models.TestCase{
			CheckTypes: []string{models.CheckToolCalls, models.CheckRepeatNGram},
		})
		require.Len(t, vs, 4)
	})

	t.Run("unknown tags are skipped", func(t *testing.T) {
		vs := registry.For(&models.TestCase{CheckTypes: []string{"no_such_check"}})
		require.Len(t, vs, 2)
	})

	t.Run("duplicate tags run once", func(t *testing.T) {
		vs := registry.For(&models.TestCase{
			CheckTypes: []string{models.CheckLanguageFollowing, "contains_russian_characters_unicode"},
		})
		require.Len(t, vs, 3)
	})
}

func TestRegistry_Injection(t *testing.T) {
	registry := NewRegistry(testLogger())
	fake := &fakeValidator{name: "fake"}
	registry.Register("fake_check", fake)

	vs := registry.For(&models.TestCase{CheckTypes: []string{"fake_check"}})
	require.Len(t, vs, 1)
	require.Equal(t, "fake", vs[0].Name())
}

type fakeValidator struct{ name string }

func (f *fakeValidator) Name() string { return f.name }
func (f *fakeValidator) Score(in Input) models.Verdict {
	return models.Verdict{Validator: f.name, Triggered: true, Passed: true}
}

func TestCreate(t *testing.T) {
	t.Run("repeat_n_gram decodes params", func(t *testing.T) {
		v, err := Create(models.CheckRepeatNGram, map[string]any{"n": 5, "repeat_count": 2})
		require.NoError(t, err)

		rv, ok := v.(*RepeatNGramValidator)
		require.True(t, ok)
		require.Equal(t, 5, rv.n)
		require.Equal(t, 2, rv.repeatCount)
	})

	t.Run("known tags build without params", func(t *testing.T) {
		for _, tag := range []string{
			models.CheckToolCalls,
			models.CheckReasoningOnly,
			models.CheckTriggerSimilarity,
			models.CheckLanguageFollowing,
			"contains_russian_characters_unicode",
		} {
			v, err := Create(tag, nil)
			require.NoError(t, err, tag)
			require.NotNil(t, v, tag)
		}
	})

	t.Run("unknown tag errors", func(t *testing.T) {
		_, err := Create("bogus", nil)
		require.Error(t, err)
	})
}
