package customfit

import (
	"context"
	"encoding/json"
	"fmt"
)

// ConfigFetcher is Component H: the four endpoint interactions described
// in §4.H, each wrapped in the Retry + CircuitBreaker layer (§4.B) and
// gated on the Connection Monitor's offline flag. It owns no polling
// logic of its own — Config Manager drives when each method is called.
type ConfigFetcher struct {
	http       *httpClient
	breakers   *CircuitBreakerRegistry
	retry      RetryPolicy
	conn       *ConnectionMonitor
	apiBase    string
	settingsBase string
	clientKey  string
	dimensionID string
}

func NewConfigFetcher(http *httpClient, breakers *CircuitBreakerRegistry, retry RetryPolicy, conn *ConnectionMonitor, apiBase, settingsBase, clientKey string) *ConfigFetcher {
	return &ConfigFetcher{
		http:         http,
		breakers:     breakers,
		retry:        retry,
		conn:         conn,
		apiBase:      apiBase,
		settingsBase: settingsBase,
		clientKey:    clientKey,
		dimensionID:  extractDimensionID(clientKey),
	}
}

func (f *ConfigFetcher) settingsURL() string {
	return fmt.Sprintf("%s/%s/%s", f.settingsBase, f.dimensionID, sdkSettingsFile)
}

func (f *ConfigFetcher) offlineErr() error {
	return NewError(CategoryNetwork, "fetcher is in offline mode", nil)
}

// guard wraps op in the circuit breaker for endpoint and the retry policy,
// short-circuiting immediately with a NETWORK error when offline mode is
// set, per §4.E.
func (f *ConfigFetcher) guard(ctx context.Context, endpoint string, op func(ctx context.Context) (*httpResponse, error)) (*httpResponse, error) {
	if f.conn != nil && f.conn.IsOfflineMode() {
		return nil, f.offlineErr()
	}
	breaker := f.breakers.For(endpoint)
	resp, err := withRetry(ctx, f.retry, func(ctx context.Context) (*httpResponse, error) {
		v, err := breaker.Execute(ctx, func(ctx context.Context) (any, error) {
			return op(ctx)
		})
		if err != nil {
			return nil, err
		}
		return v.(*httpResponse), nil
	})
	if err != nil {
		if f.conn != nil {
			f.conn.RecordFailure(err, 0)
		}
		return nil, err
	}
	if f.conn != nil {
		f.conn.RecordSuccess()
	}
	return resp, nil
}

// HeadSettings reads Last-Modified/ETag cheaply without a body, per §4.H.
func (f *ConfigFetcher) HeadSettings(ctx context.Context, etag string) (*httpResponse, error) {
	return f.guard(ctx, "settings", func(ctx context.Context) (*httpResponse, error) {
		return f.http.Head(ctx, f.settingsURL(), etag)
	})
}

// GetSettings fetches the full SdkSettings body.
func (f *ConfigFetcher) GetSettings(ctx context.Context, etag string) (SdkSettings, *httpResponse, error) {
	resp, err := f.guard(ctx, "settings", func(ctx context.Context) (*httpResponse, error) {
		return f.http.Get(ctx, f.settingsURL(), etag)
	})
	if err != nil {
		return SdkSettings{}, nil, err
	}
	if resp.NotModified {
		return SdkSettings{}, resp, nil
	}
	var s SdkSettings
	if err := json.Unmarshal(resp.Body, &s); err != nil {
		return SdkSettings{}, nil, NewError(CategorySerialization, "parsing SDK settings", err)
	}
	return s, resp, nil
}

type userConfigsRequest struct {
	User map[string]interface{} `json:"user"`
}

// PostUserConfigs fetches the per-user ConfigMap, honoring conditional
// headers so an unchanged configuration round-trips as 304.
func (f *ConfigFetcher) PostUserConfigs(ctx context.Context, user User, etag string) (ConfigMap, *httpResponse, error) {
	body, err := json.Marshal(userConfigsRequest{User: user.canonicalSerialization()})
	if err != nil {
		return nil, nil, NewError(CategorySerialization, "encoding user configs request", err)
	}
	url := fmt.Sprintf("%s%s", f.apiBase, pathUserConfigs)
	resp, err := f.guard(ctx, "user-configs", func(ctx context.Context) (*httpResponse, error) {
		return f.http.do(ctx, "POST", url, etag, body)
	})
	if err != nil {
		return nil, nil, err
	}
	if resp.NotModified {
		return nil, resp, nil
	}
	var m ConfigMap
	if err := json.Unmarshal(resp.Body, &m); err != nil {
		return nil, nil, NewError(CategorySerialization, "parsing user configs response", err)
	}
	return m, resp, nil
}

type eventsRequest struct {
	Events []EventRecord `json:"events"`
}

// PostEvents batch-POSTs events, per §4.H/§6.
func (f *ConfigFetcher) PostEvents(ctx context.Context, events []EventRecord) error {
	body, err := json.Marshal(eventsRequest{Events: events})
	if err != nil {
		return NewError(CategorySerialization, "encoding events batch", err)
	}
	url := fmt.Sprintf("%s%s", f.apiBase, pathEvents)
	_, err = f.guard(ctx, "events", func(ctx context.Context) (*httpResponse, error) {
		return f.http.Post(ctx, url, body)
	})
	return err
}

type summariesRequest struct {
	Summaries []SummaryRecord `json:"summaries"`
}

// PostSummaries batch-POSTs summaries, per §4.H/§6.
func (f *ConfigFetcher) PostSummaries(ctx context.Context, summaries []SummaryRecord) error {
	body, err := json.Marshal(summariesRequest{Summaries: summaries})
	if err != nil {
		return NewError(CategorySerialization, "encoding summaries batch", err)
	}
	url := fmt.Sprintf("%s%s", f.apiBase, pathSummaries)
	_, err = f.guard(ctx, "summaries", func(ctx context.Context) (*httpResponse, error) {
		return f.http.Post(ctx, url, body)
	})
	return err
}
