package customfit

// EvaluationContext is a typed side-channel of attributes a User carries in
// addition to its core identity fields, per §3.
type EvaluationContext struct {
	Type       ContextType
	Key        string
	Properties map[string]Value
}

func (c EvaluationContext) clone() EvaluationContext {
	props := make(map[string]Value, len(c.Properties))
	for k, v := range c.Properties {
		props[k] = v
	}
	return EvaluationContext{Type: c.Type, Key: c.Key, Properties: props}
}

// SDKType and SDKVersion identify this SDK in the injected device
// sub-object of every canonical User serialization.
const (
	SDKType    = "go"
	SDKVersion = "1.0.0"
)

// User carries customer identity and properties used to scope server-side
// evaluation. Every mutator returns a new User; the receiver (including its
// property map) is never mutated, per §3 and the "Dynamic any property
// maps" design note in §9.
type User struct {
	customerID  *string
	anonymousID *string
	deviceID    *string
	anonymous   bool
	properties  map[string]Value
	contexts    []EvaluationContext
}

// NewUser returns an empty, non-anonymous User.
func NewUser() User {
	return User{}
}

func (u User) clone() User {
	nu := User{
		customerID:  u.customerID,
		anonymousID: u.anonymousID,
		deviceID:    u.deviceID,
		anonymous:   u.anonymous,
	}
	if u.properties != nil {
		nu.properties = make(map[string]Value, len(u.properties))
		for k, v := range u.properties {
			nu.properties[k] = v
		}
	}
	if u.contexts != nil {
		nu.contexts = make([]EvaluationContext, len(u.contexts))
		copy(nu.contexts, u.contexts)
	}
	return nu
}

func strPtr(s string) *string { return &s }

func (u User) WithCustomerID(id string) User {
	nu := u.clone()
	nu.customerID = strPtr(id)
	return nu
}

func (u User) WithAnonymousID(id string) User {
	nu := u.clone()
	nu.anonymousID = strPtr(id)
	return nu
}

func (u User) WithDeviceID(id string) User {
	nu := u.clone()
	nu.deviceID = strPtr(id)
	return nu
}

func (u User) WithAnonymous(anonymous bool) User {
	nu := u.clone()
	nu.anonymous = anonymous
	return nu
}

// WithProperty returns a new User with the property set; the receiver's
// property map is not mutated.
func (u User) WithProperty(key string, value Value) User {
	nu := u.clone()
	if nu.properties == nil {
		nu.properties = make(map[string]Value, 1)
	}
	nu.properties[key] = value
	return nu
}

// WithProperties merges the given properties into a new User.
func (u User) WithProperties(props map[string]Value) User {
	nu := u.clone()
	if nu.properties == nil {
		nu.properties = make(map[string]Value, len(props))
	}
	for k, v := range props {
		nu.properties[k] = v
	}
	return nu
}

func (u User) WithContext(ctx EvaluationContext) User {
	nu := u.clone()
	nu.contexts = append(nu.contexts, ctx.clone())
	return nu
}

// WithoutContext returns a new User with every context whose Key matches
// removed.
func (u User) WithoutContext(key string) User {
	nu := u.clone()
	filtered := nu.contexts[:0:0]
	for _, c := range nu.contexts {
		if c.Key != key {
			filtered = append(filtered, c)
		}
	}
	nu.contexts = filtered
	return nu
}

func (u User) CustomerID() (string, bool) {
	if u.customerID == nil {
		return "", false
	}
	return *u.customerID, true
}

func (u User) AnonymousID() (string, bool) {
	if u.anonymousID == nil {
		return "", false
	}
	return *u.anonymousID, true
}

func (u User) DeviceID() (string, bool) {
	if u.deviceID == nil {
		return "", false
	}
	return *u.deviceID, true
}

func (u User) Anonymous() bool { return u.anonymous }

func (u User) Property(key string) (Value, bool) {
	v, ok := u.properties[key]
	return v, ok
}

func (u User) Contexts() []EvaluationContext {
	out := make([]EvaluationContext, len(u.contexts))
	copy(out, u.contexts)
	return out
}

// canonicalSerialization builds the exact wire shape documented in §3:
// {user_customer_id?, anonymous_id?, anonymous, properties{…, device:{…}},
// contexts[…]}. It's consumed by the Config Fetcher's user-configs POST.
func (u User) canonicalSerialization() map[string]interface{} {
	out := map[string]interface{}{
		"anonymous": u.anonymous,
	}
	if u.customerID != nil {
		out["user_customer_id"] = *u.customerID
	}
	if u.anonymousID != nil {
		out["anonymous_id"] = *u.anonymousID
	}

	props := make(map[string]interface{}, len(u.properties)+1)
	for _, k := range sortedKeys(u.properties) {
		props[k] = u.properties[k].Raw()
	}
	deviceID := ""
	if u.deviceID != nil {
		deviceID = *u.deviceID
	}
	props["device"] = map[string]interface{}{
		"device_id":   deviceID,
		"os_name":     "",
		"sdk_type":    SDKType,
		"sdk_version": SDKVersion,
	}
	out["properties"] = props

	contexts := make([]interface{}, len(u.contexts))
	for i, c := range u.contexts {
		cprops := make(map[string]interface{}, len(c.Properties))
		for k, v := range c.Properties {
			cprops[k] = v.Raw()
		}
		contexts[i] = map[string]interface{}{
			"type":       string(c.Type),
			"key":        c.Key,
			"properties": cprops,
		}
	}
	out["contexts"] = contexts

	return out
}
