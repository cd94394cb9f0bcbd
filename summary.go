package customfit

// SummaryRecord is a compact record capturing that a specific variation was
// observed for a flag, per §3. DedupKey returns (session_id, flag_key,
// variation_id), the key Summary Manager uses to suppress duplicate
// observations within the same session.
type SummaryRecord struct {
	ConfigID       string `json:"config_id"`
	VariationID    string `json:"variation_id"`
	ExperienceID   string `json:"experience_id"`
	RuleID         string `json:"rule_id"`
	FlagKey        string `json:"flag_key"`
	UserCustomerID string `json:"user_customer_id"`
	SessionID      string `json:"session_id"`
	SummaryTimeMs  int64  `json:"summary_time_ms"`
	BehaviourID    string `json:"behaviour_id"`
}

type summaryDedupKey struct {
	SessionID   string
	FlagKey     string
	VariationID string
}

func (r SummaryRecord) dedupKey() summaryDedupKey {
	return summaryDedupKey{SessionID: r.SessionID, FlagKey: r.FlagKey, VariationID: r.VariationID}
}
