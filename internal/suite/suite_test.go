package suite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("reads cases in file order", func(t *testing.T) {
		path := writeSuite(t, `{"messages":[{"role":"user","content":"one"}]}
{"messages":[{"role":"user","content":"two"}]}
`)
		cases, err := Load(path, "target-model", testLogger())
		require.NoError(t, err)
		require.Len(t, cases, 2)
		require.Equal(t, 1, cases[0].Index)
		require.Equal(t, 2, cases[1].Index)
		require.NotEqual(t, cases[0].ID, cases[1].ID)
	})

	t.Run("malformed and blank lines are skipped", func(t *testing.T) {
		path := writeSuite(t, `{"messages":[{"role":"user","content":"ok"}]}
not json at all

{"messages":[{"role":"user","content":"also ok"}]}
`)
		cases, err := Load(path, "m", testLogger())
		require.NoError(t, err)
		require.Len(t, cases, 2)
		// Indexes reflect physical line numbers, not the surviving count.
		require.Equal(t, 1, cases[0].Index)
		require.Equal(t, 4, cases[1].Index)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.jsonl"), "m", testLogger())
		require.Error(t, err)
	})
}

func TestBuild(t *testing.T) {
	t.Run("verification fields are stripped from the prepared request", func(t *testing.T) {
		raw := map[string]any{
			"messages":         []any{map[string]any{"role": "user", "content": "hi"}},
			"check_type":       []any{"tool_calls"},
			"expect_tool_call": true,
			"expect_language":  "ru",
		}
		tc, err := Build(1, raw, "target-model")
		require.NoError(t, err)

		require.NotContains(t, tc.Prepared, "check_type")
		require.NotContains(t, tc.Prepared, "expect_tool_call")
		require.NotContains(t, tc.Prepared, "expect_language")
		require.Equal(t, "target-model", tc.Prepared["model"])

		require.Equal(t, []string{"tool_calls"}, tc.CheckTypes)
		require.NotNil(t, tc.ExpectToolCall)
		require.True(t, *tc.ExpectToolCall)
		require.Equal(t, "ru", tc.ExpectLanguage)

		// The raw record is untouched.
		require.Contains(t, tc.Raw, "check_type")
	})

	t.Run("legacy _input role becomes system", func(t *testing.T) {
		raw := map[string]any{
			"messages": []any{
				map[string]any{"role": "_input", "content": "you are helpful"},
				map[string]any{"role": "user", "content": "hi"},
			},
		}
		tc, err := Build(1, raw, "m")
		require.NoError(t, err)

		msgs := tc.Prepared["messages"].([]any)
		require.Equal(t, "system", msgs[0].(map[string]any)["role"])
		require.Equal(t, "user", msgs[1].(map[string]any)["role"])

		// The raw copy still carries the original role.
		rawMsgs := raw["messages"].([]any)
		require.Equal(t, "_input", rawMsgs[0].(map[string]any)["role"])
	})

	t.Run("streaming is forced off", func(t *testing.T) {
		raw := map[string]any{
			"messages":       []any{map[string]any{"role": "user", "content": "hi"}},
			"stream":         true,
			"stream_options": map[string]any{"include_usage": true},
		}
		tc, err := Build(1, raw, "m")
		require.NoError(t, err)

		require.NotContains(t, tc.Prepared, "stream")
		require.NotContains(t, tc.Prepared, "stream_options")
		require.Contains(t, tc.Raw, "stream")

		// A streaming and a non-streaming variant of the same request are
		// the same case.
		plain, err := Build(2, map[string]any{
			"messages": []any{map[string]any{"role": "user", "content": "hi"}},
		}, "m")
		require.NoError(t, err)
		require.Equal(t, plain.ID, tc.ID)
	})

	t.Run("the target model overrides the suite's", func(t *testing.T) {
		raw := map[string]any{"model": "old", "messages": []any{}}
		tc, err := Build(1, raw, "new")
		require.NoError(t, err)
		require.Equal(t, "new", tc.Prepared["model"])
	})

	t.Run("single-string check_type is accepted", func(t *testing.T) {
		raw := map[string]any{"check_type": "tool_calls"}
		tc, err := Build(1, raw, "m")
		require.NoError(t, err)
		require.Equal(t, []string{"tool_calls"}, tc.CheckTypes)
	})

	t.Run("absent optional fields stay unset", func(t *testing.T) {
		tc, err := Build(1, map[string]any{"messages": []any{}}, "m")
		require.NoError(t, err)
		require.Empty(t, tc.CheckTypes)
		require.Nil(t, tc.ExpectToolCall)
		require.Empty(t, tc.ExpectLanguage)
	})
}

func TestHashRequest(t *testing.T) {
	t.Run("identical content hashes identically", func(t *testing.T) {
		a, err := HashRequest(map[string]any{"model": "m", "temperature": 0.5})
		require.NoError(t, err)
		b, err := HashRequest(map[string]any{"temperature": 0.5, "model": "m"})
		require.NoError(t, err)
		require.Equal(t, a, b)
	})

	t.Run("different content hashes differently", func(t *testing.T) {
		a, err := HashRequest(map[string]any{"model": "m1"})
		require.NoError(t, err)
		b, err := HashRequest(map[string]any{"model": "m2"})
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})

	t.Run("stripping does not change the hash of prepared requests", func(t *testing.T) {
		bare := map[string]any{
			"model":    "m",
			"messages": []any{map[string]any{"role": "user", "content": "hi"}},
		}
		annotated := map[string]any{
			"model":            "m",
			"messages":         []any{map[string]any{"role": "user", "content": "hi"}},
			"expect_tool_call": false,
		}
		tcBare, err := Build(1, bare, "m")
		require.NoError(t, err)
		tcAnnotated, err := Build(2, annotated, "m")
		require.NoError(t, err)
		require.Equal(t, tcBare.ID, tcAnnotated.ID)
	})
}
