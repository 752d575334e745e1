package issuance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"openbar-go/internal/api"
)

var testNow = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

func fp(v float64) *float64 { return &v }

func activeSession() *api.Session {
	opened := testNow.Add(-time.Hour)
	end := testNow.Add(3 * time.Hour)
	return &api.Session{ID: 11, Status: api.SessionActive, OpenedAt: &opened, ExpectedEndAt: &end}
}

// Mixed drink: a required spirit selection, an optional garnish selection,
// a top-up selection, then strength and ice.
func mixedRecipe() *api.Recipe {
	return &api.Recipe{
		ID:          5,
		Name:        "Mixed",
		AskStrength: true,
		HasIce:      true,
		IceCubes:    3,
		Lines: []api.RecipeLine{
			{ID: 1, Kind: api.LineCategorySelector, CategoryID: 100, Quantity: fp(40), AffectsStrength: true},
			{ID: 2, Kind: api.LineCategorySelector, CategoryID: 200, IsOptional: true, Quantity: fp(10)},
			{ID: 3, Kind: api.LineCategorySelector, CategoryID: 300, IsTopUp: true},
		},
	}
}

func pipelineFor(recipe *api.Recipe, sess *api.Session) *Pipeline {
	p := New(recipe, func() *api.Session { return sess })
	p.SetNow(func() time.Time { return testNow })
	return p
}

func TestStepCompilation(t *testing.T) {
	p := pipelineFor(mixedRecipe(), activeSession())

	var kinds []StepKind
	for _, s := range p.steps {
		kinds = append(kinds, s.Kind)
	}
	require.Equal(t, []StepKind{StepCategory, StepCategory, StepCategory, StepStrength, StepIce}, kinds)

	// a plain fixed recipe has nothing to ask
	plain := &api.Recipe{ID: 2, Lines: []api.RecipeLine{
		{ID: 9, Kind: api.LineFixedIngredient, IngredientID: 4, Quantity: fp(250)},
	}}
	require.True(t, pipelineFor(plain, activeSession()).Done())
}

func TestFullWalk(t *testing.T) {
	p := pipelineFor(mixedRecipe(), activeSession())

	require.NoError(t, p.SetServings(2))
	p.SetStaffDrink(true)

	require.NoError(t, p.SelectCategory(41)) // spirit
	require.NoError(t, p.Skip())             // garnish is optional
	require.NoError(t, p.SelectCategory(43)) // top-up
	require.NoError(t, p.SetStrength(StrengthDouble))
	require.NoError(t, p.SetIce(false))
	require.True(t, p.Done())

	req, err := p.Request()
	require.NoError(t, err)
	require.Equal(t, int64(11), req.SessionID)
	require.Equal(t, int64(5), req.RecipeID)
	require.Equal(t, int64(2), req.Servings)
	require.True(t, req.IsStaffDrink)
	require.Equal(t, StrengthDouble, req.Strength)
	require.NotNil(t, req.IncludeIce)
	require.False(t, *req.IncludeIce)
	require.Equal(t, []api.CategorySelection{
		{LineID: 1, IngredientID: 41},
		{LineID: 3, IngredientID: 43},
	}, req.CategorySelections)
	require.False(t, req.AllowInactiveSession)
}

func TestRequiredStepCannotBeSkipped(t *testing.T) {
	p := pipelineFor(mixedRecipe(), activeSession())

	err := p.Skip()
	var selErr *api.MissingCategorySelection
	require.ErrorAs(t, err, &selErr)
	require.Equal(t, int64(1), selErr.LineID)
}

func TestCommitBlocksOnMissingSelection(t *testing.T) {
	recipe := mixedRecipe()
	p := pipelineFor(recipe, activeSession())

	// force past the steps without answering the required line
	p.idx = len(p.steps)
	_, err := p.Request()
	var selErr *api.MissingCategorySelection
	require.ErrorAs(t, err, &selErr)
	require.Equal(t, int64(1), selErr.LineID)
}

func TestBackClearsOnlyThatStep(t *testing.T) {
	p := pipelineFor(mixedRecipe(), activeSession())

	require.NoError(t, p.SetServings(4))
	require.NoError(t, p.SelectCategory(41))
	require.NoError(t, p.Skip())
	require.NoError(t, p.SelectCategory(43))
	require.NoError(t, p.SetStrength(StrengthDouble))

	// back over strength and the top-up selection
	require.True(t, p.Back())
	require.True(t, p.Back())

	step, ok := p.Current()
	require.True(t, ok)
	require.Equal(t, StepCategory, step.Kind)
	require.Equal(t, int64(3), step.Line.ID)
	require.NotContains(t, p.selections, int64(3))
	require.Contains(t, p.selections, int64(1), "earlier answers survive")
	require.Empty(t, p.strength)

	// servings persist through navigation
	require.NoError(t, p.SelectCategory(44))
	require.NoError(t, p.SetStrength(StrengthSingle))
	require.NoError(t, p.SetIce(true))
	req, err := p.Request()
	require.NoError(t, err)
	require.Equal(t, int64(4), req.Servings)
	require.Equal(t, int64(44), req.CategorySelections[1].IngredientID)
}

func TestSessionGuardOnEveryAdvance(t *testing.T) {
	sess := activeSession()
	p := pipelineFor(mixedRecipe(), sess)

	require.NoError(t, p.SelectCategory(41))

	// session expires mid-walk
	past := testNow.Add(-time.Minute)
	sess.ExpectedEndAt = &past

	var stErr *api.SessionStateError
	require.ErrorAs(t, p.SelectCategory(42), &stErr)
	require.ErrorAs(t, p.Skip(), &stErr)

	_, err := p.Request()
	require.ErrorAs(t, err, &stErr)
}

func TestManagerOverride(t *testing.T) {
	sess := activeSession()
	past := testNow.Add(-time.Minute)
	sess.ExpectedEndAt = &past

	p := pipelineFor(mixedRecipe(), sess)
	p.SetManagerOverride(true)

	require.NoError(t, p.SelectCategory(41))
	require.NoError(t, p.Skip())
	require.NoError(t, p.SelectCategory(43))
	require.NoError(t, p.SetStrength(StrengthSingle))
	require.NoError(t, p.SetIce(true))

	req, err := p.Request()
	require.NoError(t, err)
	require.True(t, req.AllowInactiveSession)
}

func TestResetAfterCommit(t *testing.T) {
	p := pipelineFor(mixedRecipe(), activeSession())

	require.NoError(t, p.SetServings(5))
	p.SetStaffDrink(true)
	require.NoError(t, p.SelectCategory(41))
	require.NoError(t, p.Skip())
	require.NoError(t, p.SelectCategory(43))
	require.NoError(t, p.SetStrength(StrengthSingle))
	require.NoError(t, p.SetIce(true))
	_, err := p.Request()
	require.NoError(t, err)

	p.Reset()
	step, ok := p.Current()
	require.True(t, ok)
	require.Equal(t, StepCategory, step.Kind)
	require.Equal(t, int64(1), step.Line.ID)
	require.Empty(t, p.selections)
	require.Equal(t, int64(1), p.servings)
	require.False(t, p.staffDrink)
}

func TestServingsBounds(t *testing.T) {
	p := pipelineFor(mixedRecipe(), activeSession())
	require.Error(t, p.SetServings(0))
	require.Error(t, p.SetServings(100))
	require.NoError(t, p.SetServings(99))
}

func TestStrengthValidation(t *testing.T) {
	recipe := &api.Recipe{ID: 8, AskStrength: true}
	p := pipelineFor(recipe, activeSession())
	require.Error(t, p.SetStrength("triple"))
	require.NoError(t, p.SetStrength(StrengthDouble))
	require.True(t, p.Done())
}
