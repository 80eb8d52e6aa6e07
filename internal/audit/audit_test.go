package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamcoop/surveylogic/rules"
)

func TestJSONLRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	rec := NewJSONLRecorder(path, 1, 1)

	rec.Record(Entry{
		TenantID:   "t1",
		SurveyID:   "s1",
		QuestionID: "q1",
		Decision:   rules.Decision{NextQuestionID: "q3", RuleID: "r1", Reason: rules.ReasonRule},
	})
	rec.Record(Entry{
		TenantID:   "t1",
		SurveyID:   "s1",
		QuestionID: "q9",
		Decision:   rules.Decision{End: true, Reason: rules.ReasonEndOfSurvey},
	})
	require.NoError(t, rec.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 2)

	assert.Equal(t, "q3", lines[0]["next"])
	assert.Equal(t, "r1", lines[0]["rule"])
	assert.Equal(t, "rule", lines[0]["reason"])
	assert.NotEmpty(t, lines[0]["time"])
	assert.NotContains(t, lines[0], "level")
	assert.NotContains(t, lines[0], "msg")

	assert.Equal(t, true, lines[1]["end"])
	assert.NotContains(t, lines[1], "next")
	assert.NotContains(t, lines[1], "rule")
}

func TestJSONLRecorder_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	rec := NewJSONLRecorder(path, 10, 1)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Record(Entry{TenantID: "t", SurveyID: "s", QuestionID: "q", Decision: rules.Decision{Reason: rules.ReasonLinear}})
		}()
	}
	wg.Wait()
	require.NoError(t, rec.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	count := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		assert.True(t, json.Valid(scanner.Bytes()))
		count++
	}
	assert.Equal(t, 100, count)
}

func TestNopRecorder(t *testing.T) {
	var rec Recorder = NopRecorder{}
	rec.Record(Entry{})
	assert.NoError(t, rec.Close())
}
