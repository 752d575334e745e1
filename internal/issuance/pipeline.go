// Package issuance walks a bartender through pouring one recipe: the step
// sequence is compiled from the recipe itself, every advance re-checks the
// session, and the commit builds the request the offline queue submits. The
// pipeline never touches stock; the server stays authoritative.
package issuance

import (
	"time"

	"openbar-go/internal/api"
)

type StepKind string

const (
	StepCategory StepKind = "category"
	StepStrength StepKind = "strength"
	StepIce      StepKind = "ice"
)

const (
	StrengthSingle = "single"
	StrengthDouble = "double"
)

// Step is one question the bartender answers. Category steps carry the line
// they select for.
type Step struct {
	Kind StepKind
	Line api.RecipeLine
}

// Pipeline is the in-progress pour. Not safe for concurrent use; one pour,
// one goroutine.
type Pipeline struct {
	recipe  *api.Recipe
	current func() *api.Session
	now     func() time.Time

	// override lets a manager pour into an inactive or expired session. Its
	// value at commit is what travels with the request.
	override bool

	steps []Step
	idx   int

	servings   int64
	staffDrink bool
	notes      string
	strength   string
	includeIce *bool
	selections map[int64]int64
}

// New compiles the step sequence for a recipe: one step per category
// selector line, then strength if the recipe asks, then ice if the recipe
// has it. A recipe with no questions is ready to commit immediately.
func New(recipe *api.Recipe, current func() *api.Session) *Pipeline {
	p := &Pipeline{
		recipe:     recipe,
		current:    current,
		now:        time.Now,
		servings:   1,
		selections: map[int64]int64{},
	}
	for _, ln := range recipe.Lines {
		if ln.Kind == api.LineCategorySelector {
			p.steps = append(p.steps, Step{Kind: StepCategory, Line: ln})
		}
	}
	if recipe.AskStrength {
		p.steps = append(p.steps, Step{Kind: StepStrength})
	}
	if recipe.HasIce {
		p.steps = append(p.steps, Step{Kind: StepIce})
	}
	return p
}

// SetNow overrides the clock. Test hook.
func (p *Pipeline) SetNow(now func() time.Time) { p.now = now }

// SetManagerOverride arms pouring past an inactive or expired session.
func (p *Pipeline) SetManagerOverride(on bool) { p.override = on }

// Done reports whether every step has been answered.
func (p *Pipeline) Done() bool { return p.idx >= len(p.steps) }

// Current returns the step waiting for an answer, or false when done.
func (p *Pipeline) Current() (Step, bool) {
	if p.Done() {
		return Step{}, false
	}
	return p.steps[p.idx], true
}

// guard blocks any advance once the session is gone, inactive or past its
// limit. The server re-checks all of this on commit; failing early here just
// saves a doomed round trip.
func (p *Pipeline) guard() error {
	if p.override {
		return nil
	}
	sess := p.current()
	if sess == nil {
		return &api.SessionStateError{Reason: "no session"}
	}
	if sess.Status != api.SessionActive {
		return &api.SessionStateError{Reason: "session is not active"}
	}
	if sess.Expired(p.now()) {
		return &api.SessionStateError{Reason: "session time limit has passed"}
	}
	return nil
}

// SelectCategory answers the current category step with an ingredient.
func (p *Pipeline) SelectCategory(ingredientID int64) error {
	if err := p.guard(); err != nil {
		return err
	}
	step, ok := p.Current()
	if !ok || step.Kind != StepCategory {
		return &api.ValidationError{Msg: "no category selection pending"}
	}
	if ingredientID <= 0 {
		return &api.ValidationError{Msg: "ingredient is required"}
	}
	p.selections[step.Line.ID] = ingredientID
	p.idx++
	return nil
}

// Skip passes over the current step when it is optional.
func (p *Pipeline) Skip() error {
	if err := p.guard(); err != nil {
		return err
	}
	step, ok := p.Current()
	if !ok {
		return &api.ValidationError{Msg: "nothing to skip"}
	}
	if step.Kind == StepCategory && !step.Line.IsOptional {
		return &api.MissingCategorySelection{LineID: step.Line.ID}
	}
	delete(p.selections, step.Line.ID)
	p.idx++
	return nil
}

// SetStrength answers the strength step.
func (p *Pipeline) SetStrength(strength string) error {
	if err := p.guard(); err != nil {
		return err
	}
	step, ok := p.Current()
	if !ok || step.Kind != StepStrength {
		return &api.ValidationError{Msg: "no strength choice pending"}
	}
	if strength != StrengthSingle && strength != StrengthDouble {
		return &api.ValidationError{Msg: "strength must be single or double"}
	}
	p.strength = strength
	p.idx++
	return nil
}

// SetIce answers the ice step. Ice is always the last question, so answering
// it leaves the pipeline ready to commit.
func (p *Pipeline) SetIce(include bool) error {
	if err := p.guard(); err != nil {
		return err
	}
	step, ok := p.Current()
	if !ok || step.Kind != StepIce {
		return &api.ValidationError{Msg: "no ice choice pending"}
	}
	v := include
	p.includeIce = &v
	p.idx++
	return nil
}

// Back returns to the previous step, clearing only that step's answer.
// Servings and the staff flag survive navigation.
func (p *Pipeline) Back() bool {
	if p.idx == 0 {
		return false
	}
	p.idx--
	step := p.steps[p.idx]
	switch step.Kind {
	case StepCategory:
		delete(p.selections, step.Line.ID)
	case StepStrength:
		p.strength = ""
	case StepIce:
		p.includeIce = nil
	}
	return true
}

// SetServings sets the serving count. Valid at any point before commit.
func (p *Pipeline) SetServings(n int64) error {
	if n < 1 || n > 99 {
		return &api.ValidationError{Msg: "servings must be between 1 and 99"}
	}
	p.servings = n
	return nil
}

func (p *Pipeline) SetStaffDrink(on bool) { p.staffDrink = on }
func (p *Pipeline) SetNotes(notes string) { p.notes = notes }

// Reset clears every answer back to the first step, ready for the next pour
// of the same recipe. Called after a committed request is handed off.
func (p *Pipeline) Reset() {
	p.idx = 0
	p.servings = 1
	p.staffDrink = false
	p.notes = ""
	p.strength = ""
	p.includeIce = nil
	p.selections = map[int64]int64{}
}

// Request builds the commit payload. Every required category line must have
// a selection; the override flag is snapshotted here, not when it was armed.
func (p *Pipeline) Request() (api.CreateDrinkIssueRequest, error) {
	if err := p.guard(); err != nil {
		return api.CreateDrinkIssueRequest{}, err
	}
	for _, ln := range p.recipe.Lines {
		if ln.Kind != api.LineCategorySelector || ln.IsOptional {
			continue
		}
		if _, ok := p.selections[ln.ID]; !ok {
			return api.CreateDrinkIssueRequest{}, &api.MissingCategorySelection{LineID: ln.ID}
		}
	}

	sess := p.current()
	if sess == nil {
		return api.CreateDrinkIssueRequest{}, &api.SessionStateError{Reason: "no session"}
	}

	var sels []api.CategorySelection
	for _, ln := range p.recipe.Lines {
		if ingID, ok := p.selections[ln.ID]; ok {
			sels = append(sels, api.CategorySelection{LineID: ln.ID, IngredientID: ingID})
		}
	}
	return api.CreateDrinkIssueRequest{
		SessionID:            sess.ID,
		RecipeID:             p.recipe.ID,
		Servings:             p.servings,
		Strength:             p.strength,
		IncludeIce:           p.includeIce,
		IsStaffDrink:         p.staffDrink,
		Notes:                p.notes,
		CategorySelections:   sels,
		AllowInactiveSession: p.override,
	}, nil
}
