package configs

// Attribution configures which models the engine computes and their
// parameters. Models are parsed into the closed model set in main;
// unknown names are rejected at startup rather than silently skipped
// at processing time.
type Attribution struct {
	// Models is the set of attribution models computed per conversion.
	Models []string `env:"MODELS" envDefault:"first_touch,last_touch,linear,time_decay,u_shaped,w_shaped"`

	// HalfLifeDays is the time-decay half-life in days.
	HalfLifeDays float64 `env:"HALF_LIFE_DAYS" envDefault:"7"`

	// CustomWeights maps channel names to raw weights for the custom
	// model, e.g. ATTR_CUSTOM_WEIGHTS="paid_social:2,email:1.5".
	CustomWeights map[string]float64 `env:"CUSTOM_WEIGHTS" envKeyValSeparator:":"`

	// BatchLimit caps one unprocessed-conversions pass.
	BatchLimit int `env:"BATCH_LIMIT" envDefault:"100"`
}
