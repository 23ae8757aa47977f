package domain

// Model identifies an attribution model. The set is closed; the calculator
// holds one strategy per model so an unknown name cannot be dispatched
// silently.
type Model string

const (
	ModelFirstTouch Model = "first_touch"
	ModelLastTouch  Model = "last_touch"
	ModelLinear     Model = "linear"
	ModelTimeDecay  Model = "time_decay"
	ModelUShaped    Model = "u_shaped"
	ModelWShaped    Model = "w_shaped"
	ModelCustom     Model = "custom"

	// ModelDataDriven is accepted but produces no rows: the engine has no
	// closed-form data-driven implementation and must not fall back to
	// another model.
	ModelDataDriven Model = "data_driven"
)

// ParseModel returns the model matching the given name, or "" when the
// name is not a known model.
func ParseModel(s string) Model {
	switch Model(s) {
	case ModelFirstTouch, ModelLastTouch, ModelLinear, ModelTimeDecay,
		ModelUShaped, ModelWShaped, ModelCustom, ModelDataDriven:
		return Model(s)
	}
	return ""
}

// AttributionResult is one row of credit assigned to one touchpoint under
// one model. Channel, source, medium and campaign are copied from the
// touchpoint so reporting does not need a join back to the touchpoint store.
//
// Credit is a percentage in [0,100]; for a given model and conversion the
// rows sum to 100 whenever at least one touchpoint exists.
type AttributionResult struct {
	Model           Model
	TouchpointID    string
	Channel         Channel
	Source          string
	Medium          string
	Campaign        string
	Credit          float64
	AttributedValue float64
}
