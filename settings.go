package customfit

// SettingsMetadata is the pair of HTTP validators retained across polls to
// form conditional requests, per §3.
type SettingsMetadata struct {
	LastModified string
	ETag         string
}

// SdkSettings is the remote kill-switch payload fetched by a settings GET,
// per §3. Either flag being in the "disabled" position disables the whole
// SDK: flag reads fall back to caller defaults and GetAllFlags returns
// empty, per §4.I's sdk_enabled computation.
type SdkSettings struct {
	AccountEnabled bool `json:"cf_account_enabled"`
	SkipSDK        bool `json:"cf_skip_sdk"`
}

// Enabled computes sdk_enabled = cf_account_enabled && !cf_skip_sdk.
func (s SdkSettings) Enabled() bool {
	return s.AccountEnabled && !s.SkipSDK
}
