package survey

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamcoop/surveylogic/rules"
)

func testDefinition() *Definition {
	adult := rules.Compare(rules.OpGreater, "AGE", rules.Num(17))
	minor := rules.Compare(rules.OpLess, "AGE", rules.Num(18))
	return &Definition{
		ID:   "s1",
		Name: "Survey one",
		Questions: []rules.Question{
			{ID: "q1", Code: "AGE", Order: 1, Text: "Age?"},
			{ID: "q2", Code: "CONSENT", Order: 2, Text: "Consent?", DisplayLogic: &minor},
			{ID: "q3", Code: "SCORE", Order: 3, Text: "Score?"},
		},
		Rules: []rules.RoutingRule{
			{ID: "r1", Name: "adults skip", SourceQuestionID: "q1", TargetQuestionID: "q3", Condition: &adult,
				Action: rules.ActionSkipTo, Priority: 10, IsActive: true},
		},
		DerivedFields: []DerivedField{{Name: "DOUBLE_SCORE", Expression: "{SCORE} * 2"}},
	}
}

func newTestStores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "surveys.db"), "tenant-a")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.DB().Close() })

	return map[string]Store{
		"memory": NewInMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			def := testDefinition()
			require.NoError(t, store.SaveSurvey(def))
			assert.False(t, def.CreatedAt.IsZero())

			got, err := store.GetSurvey("s1")
			require.NoError(t, err)
			assert.Equal(t, "Survey one", got.Name)
			require.Len(t, got.Questions, 3)
			assert.Equal(t, "CONSENT", got.Questions[1].Code)
			require.NotNil(t, got.Questions[1].DisplayLogic)
			assert.Equal(t, rules.OpLess, got.Questions[1].DisplayLogic.Type)
			assert.Nil(t, got.Questions[0].DisplayLogic)

			require.Len(t, got.Rules, 1)
			rule := got.Rules[0]
			assert.Equal(t, "q1", rule.SourceQuestionID)
			assert.Equal(t, "q3", rule.TargetQuestionID)
			assert.Equal(t, rules.ActionSkipTo, rule.Action)
			assert.Equal(t, 10, rule.Priority)
			assert.True(t, rule.IsActive)
			assert.True(t, rule.Condition.Value.Equal(rules.Num(17)))
			assert.False(t, rule.CreatedAt.IsZero())

			assert.Equal(t, []DerivedField{{Name: "DOUBLE_SCORE", Expression: "{SCORE} * 2"}}, got.DerivedFields)
		})
	}
}

func TestStore_SaveReplacesChildren(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.SaveSurvey(testDefinition()))
			first, err := store.GetSurvey("s1")
			require.NoError(t, err)

			def := testDefinition()
			def.Name = "Renamed"
			def.Questions = def.Questions[:2]
			def.Rules = nil
			def.DerivedFields = nil
			require.NoError(t, store.SaveSurvey(def))

			got, err := store.GetSurvey("s1")
			require.NoError(t, err)
			assert.Equal(t, "Renamed", got.Name)
			assert.Len(t, got.Questions, 2)
			assert.Empty(t, got.Rules)
			assert.Empty(t, got.DerivedFields)
			assert.True(t, got.CreatedAt.Equal(first.CreatedAt), "CreatedAt must survive a resave")
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.GetSurvey("nope")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = store.GetRule("nope", "r1")
			assert.ErrorIs(t, err, ErrNotFound)

			err = store.AddRule("nope", &rules.RoutingRule{ID: "r9"})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_ListSurveys(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			second := testDefinition()
			second.ID = "s2"
			require.NoError(t, store.SaveSurvey(second))
			require.NoError(t, store.SaveSurvey(testDefinition()))

			list, err := store.ListSurveys()
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "s1", list[0].ID)
			assert.Equal(t, "s2", list[1].ID)
		})
	}
}

func TestStore_RuleCRUD(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.SaveSurvey(testDefinition()))

			cond := rules.Compare(rules.OpEquals, "CONSENT", rules.Str("no"))
			rule := &rules.RoutingRule{ID: "r2", SourceQuestionID: "q2", Condition: &cond, Action: rules.ActionEndSurvey, IsActive: true}
			require.NoError(t, store.AddRule("s1", rule))
			assert.False(t, rule.CreatedAt.IsZero())

			err := store.AddRule("s1", rule)
			assert.ErrorIs(t, err, ErrAlreadyExists)

			got, err := store.GetRule("s1", "r2")
			require.NoError(t, err)
			assert.Equal(t, rules.ActionEndSurvey, got.Action)
			assert.Empty(t, got.TargetQuestionID)

			def, err := store.GetSurvey("s1")
			require.NoError(t, err)
			require.Len(t, def.Rules, 2)
			assert.Equal(t, "r1", def.Rules[0].ID)
			assert.Equal(t, "r2", def.Rules[1].ID)

			updated := *got
			updated.Priority = 3
			updated.IsActive = false
			require.NoError(t, store.UpdateRule("s1", &updated))
			assert.True(t, updated.CreatedAt.Equal(got.CreatedAt))

			got, err = store.GetRule("s1", "r2")
			require.NoError(t, err)
			assert.Equal(t, 3, got.Priority)
			assert.False(t, got.IsActive)

			missing := rules.RoutingRule{ID: "ghost", Action: rules.ActionEndSurvey}
			assert.ErrorIs(t, store.UpdateRule("s1", &missing), ErrNotFound)

			require.NoError(t, store.DeleteRule("s1", "r2"))
			_, err = store.GetRule("s1", "r2")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, store.DeleteRule("s1", "r2"), ErrNotFound)
		})
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	store := NewInMemoryStore()
	require.NoError(t, store.SaveSurvey(testDefinition()))

	got, err := store.GetSurvey("s1")
	require.NoError(t, err)
	got.Rules[0].Condition.Field = "CHANGED"
	got.Questions[0].Code = "CHANGED"

	again, err := store.GetSurvey("s1")
	require.NoError(t, err)
	assert.Equal(t, "AGE", again.Rules[0].Condition.Field)
	assert.Equal(t, "AGE", again.Questions[0].Code)
}

func TestSQLiteStore_TenantIsolation(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "shared.db"))
	require.NoError(t, err)
	defer db.Close()

	storeA := NewSQLStore(db, SQLite, "tenant-a")
	storeB := NewSQLStore(db, SQLite, "tenant-b")

	require.NoError(t, storeA.SaveSurvey(testDefinition()))

	_, err = storeB.GetSurvey("s1")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := storeB.ListSurveys()
	require.NoError(t, err)
	assert.Empty(t, list)

	other := testDefinition()
	other.Name = "Tenant B survey"
	require.NoError(t, storeB.SaveSurvey(other))

	gotA, err := storeA.GetSurvey("s1")
	require.NoError(t, err)
	assert.Equal(t, "Survey one", gotA.Name)
	assert.Len(t, gotA.Rules, 1)
}

func TestDialectRebind(t *testing.T) {
	query := "SELECT a FROM t WHERE x = ? AND y = ?"
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", Postgres.Rebind(query))
	assert.Equal(t, query, SQLite.Rebind(query))
	assert.Equal(t, "postgres", Postgres.DriverName())
	assert.Equal(t, "sqlite", SQLite.DriverName())
}
