package aliexpress

import "time"

// RawResponse is a classified gateway response. It is not modified after the
// client returns it.
type RawResponse struct {
	Success    bool                   `json:"success"`
	Data       map[string]interface{} `json:"data"`
	Error      string                 `json:"error,omitempty"`
	TraceID    string                 `json:"trace_id,omitempty"`
	API        string                 `json:"api"`
	Ret        []string               `json:"ret"`
	StatusCode int                    `json:"status_code"`
	Signature  string                 `json:"signature"`
	Timestamp  string                 `json:"timestamp"`
	ProductID  string                 `json:"product_id,omitempty"`
	Attempts   int                    `json:"attempts"`
	Cached     bool                   `json:"cached,omitempty"`
	FetchedAt  time.Time              `json:"fetched_at"`
}

// Result returns data.result, where the product query puts its modules.
func (r *RawResponse) Result() map[string]interface{} {
	if r == nil || r.Data == nil {
		return nil
	}
	res, _ := r.Data["result"].(map[string]interface{})
	return res
}

// clone copies r deeply so cached entries never share decoded data with callers.
func (r *RawResponse) clone() *RawResponse {
	cp := *r
	cp.Ret = append([]string(nil), r.Ret...)
	if r.Data != nil {
		cp.Data = cloneValue(r.Data).(map[string]interface{})
	}
	return &cp
}

func (r *RawResponse) cachedCopy() *RawResponse {
	cp := r.clone()
	cp.Cached = true
	return cp
}

// cloneValue copies the maps and slices produced by encoding/json.
func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}

// BatchResult is the outcome for one id of FetchProducts.
type BatchResult struct {
	Input     string       `json:"input"`
	ProductID string       `json:"product_id,omitempty"`
	Response  *RawResponse `json:"response,omitempty"`
	Err       error        `json:"-"`
	ErrorKind Kind         `json:"error_kind,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// BatchSummary counts a FetchProducts run.
type BatchSummary struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
}
